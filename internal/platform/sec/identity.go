// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// Identity is the authenticated principal attached to a request.
//
// It is built from a verified access token and the live account record, so
// Role reflects the role stored at request time rather than the one embedded
// in the token.
type Identity struct {
	UserID  string   `json:"id"`
	Subject string   `json:"subject"`
	Email   string   `json:"email"`
	Role    UserRole `json:"role"`
}

// HasRole reports whether the identity meets the required role.
func (i *Identity) HasRole(required UserRole) bool {
	return i != nil && i.Role.AtLeast(required)
}
