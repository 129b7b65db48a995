// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns of the relational store, so
// repositories never spell identifiers by hand.
package schema

import "strings"

// UserAccountTable represents the 'users.account' table.
type UserAccountTable struct {
	Table     string
	ID        string
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	CreatedAt string
	UpdatedAt string
}

// UserAccount is the schema definition for users.account.
var UserAccount = UserAccountTable{
	Table:     "users.account",
	ID:        "id",
	Username:  "username",
	Email:     "email",
	Password:  "passwordhash",
	FirstName: "firstname",
	LastName:  "lastname",
	Role:      "role",
	CreatedAt: "createdat",
	UpdatedAt: "updatedat",
}

// Columns returns all column names in declaration order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Email, t.Password, t.FirstName,
		t.LastName, t.Role, t.CreatedAt, t.UpdatedAt,
	}
}

// Projection returns [UserAccountTable.Columns] as a SELECT list.
func (t UserAccountTable) Projection() string {
	return strings.Join(t.Columns(), ", ")
}
