// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package constants holds the fixed values shared across layers: server
// deadlines, rate limiter housekeeping, ingestion limits, header names and
// Redis keys. Tunables an operator may change live in config instead.
package constants

import "time"

// # Metadata

const (
	AppName    = "inkshelf-api"
	AppVersion = "0.1.0-dev"
)

// # Server

const (
	// DefaultReadTimeout covers reading a whole multipart upload.
	DefaultReadTimeout = 2 * time.Minute

	// DefaultWriteTimeout covers the handler plus writing the response.
	DefaultWriteTimeout = 2 * time.Minute

	// DefaultIdleTimeout closes keep-alive connections left unused.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout guards against slow header senders.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the context deadline chi applies to each request.
	GlobalRequestTimeout = 90 * time.Second

	// StatementTimeout bounds a single SQL statement on every pooled connection.
	StatementTimeout = 30 * time.Second

	// ShutdownTimeout bounds draining in-flight requests after a signal.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// RateLimitCleanupInterval is the janitor tick.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is the idle time after which an IP's buckets are dropped.
	RateLimitClientTTL = 3 * time.Minute

	// MaxRequestIDLength caps client supplied X-Request-ID values.
	MaxRequestIDLength = 64
)

// # Ingestion

const (
	// UnitOfWorkTimeout bounds a whole transaction plus its blob cleanup.
	// It is applied to a context detached from the caller, so a client that
	// disconnects mid-request cannot leave a half-applied chapter behind.
	UnitOfWorkTimeout = 45 * time.Second

	// MultipartMemory is the in-memory threshold for multipart parsing;
	// larger parts spill to temporary files.
	MultipartMemory = 32 << 20

	// DefaultSweepGrace is the minimum age of an unowned blob before the
	// sweeper is allowed to delete it.
	DefaultSweepGrace = 1 * time.Hour

	// MinSweepGrace is the longest an upload can stay stored but uncommitted:
	// the request deadline plus the unit of work that may outlive it.
	MinSweepGrace = GlobalRequestTimeout + UnitOfWorkTimeout

	// DefaultMaxRequestBytes caps a whole multipart body.
	DefaultMaxRequestBytes = 256 << 20
)

// # Authentication

const (
	// AuthIssuer is the iss claim inkctl signs and the API requires.
	AuthIssuer = "inkshelf.app"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderRetryAfter    = "Retry-After"
)

// # JSON Field Identifiers

const (
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldChecks  = "checks"
)

// # Redis Keys

const (
	RedisChannelChapterEvents = "inkshelf:chapter-events"
	RedisKeyRecentWorks       = "inkshelf:works:recent"
)
