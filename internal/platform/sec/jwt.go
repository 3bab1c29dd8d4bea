// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec verifies the RS256 bearer tokens minted by the identity
// service and defines the roles they carry. The API holds only the public
// key; the [Signer] exists for operator tooling and tests.
package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// clockSkew tolerates small clock drift between the issuer and this API.
const clockSkew = 30 * time.Second

// AuthClaims is the token payload. Custom claim names are abbreviated to
// keep headers small on multipart uploads.
type AuthClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"uid"`
	Role   string `json:"rol"`
}

// # Verification

// Verifier checks token signatures against the identity service public key.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// LoadVerifier reads a PEM encoded RSA public key from disk.
func LoadVerifier(publicKeyPath, issuer string) (*Verifier, error) {
	pem, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("auth: read public key %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}

	return NewVerifier(publicKey, issuer), nil
}

// NewVerifier builds a [Verifier] from a parsed key.
func NewVerifier(publicKey *rsa.PublicKey, issuer string) *Verifier {
	return &Verifier{publicKey: publicKey, issuer: issuer}
}

// VerifyToken returns the claims of a valid, unexpired RS256 token from the
// configured issuer.
func (verifier *Verifier) VerifyToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return verifier.publicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(verifier.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("auth: token has no subject")
	}

	return claims, nil
}

// # Signing

// Signer mints tokens with the identity service private key.
type Signer struct {
	privateKey *rsa.PrivateKey
	issuer     string
	now        func() time.Time
}

// LoadSigner reads a PEM encoded RSA private key from disk.
func LoadSigner(privateKeyPath, issuer string) (*Signer, error) {
	pem, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("auth: read private key %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}

	return NewSigner(privateKey, issuer), nil
}

// NewSigner builds a [Signer] from a parsed key.
func NewSigner(privateKey *rsa.PrivateKey, issuer string) *Signer {
	return &Signer{privateKey: privateKey, issuer: issuer, now: time.Now}
}

// Issue signs a token for userID with role that expires after ttl.
func (signer *Signer) Issue(userID string, role UserRole, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("auth: token lifetime must be positive, got %s", ttl)
	}

	issuedAt := signer.now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    signer.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		UserID: userID,
		Role:   string(role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(signer.privateKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
