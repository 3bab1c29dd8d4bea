// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// UserRole is the "role" claim issued by the identity service.
type UserRole string

const (
	// RoleAdmin may create, reorder and delete chapters and pages.
	RoleAdmin UserRole = "admin"

	// RoleEditor curates catalogue metadata but cannot change page files.
	RoleEditor UserRole = "editor"

	// RoleReader is any signed-in account.
	RoleReader UserRole = "reader"
)

// roleRank orders roles; unknown roles rank zero and satisfy nothing.
var roleRank = map[UserRole]int{
	RoleReader: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// AtLeast reports whether r ranks at or above target.
func (r UserRole) AtLeast(target UserRole) bool {
	rank, known := roleRank[r]
	return known && rank >= roleRank[target]
}
