package model

import "time"

// User represents a row in the `users` table. Emails are unique per
// tenant, not globally: the same address may register once under each
// tenant. A user carries exactly one role at any time; role changes are
// single-column swaps so no partial permission state is ever visible.
//
// Fields:
//  ID           – primary key identifier of the user.
//  TenantID     – isolation boundary the user belongs to.
//  Email        – address, lower-cased, unique within the tenant.
//  PasswordHash – bcrypt hashed password. Plaintext is never stored.
//  Role         – name of the role (e.g. DOCTOR, PATIENT).
//  FirstName    – optional display name part.
//  LastName     – optional display name part.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	TenantID     string    // users.tenant_id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role (references roles.name)
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// UserUpdate describes a partial update of a user record. Nil pointers
// mean "leave unchanged". Role changes must be validated against the
// role registry before being applied.
type UserUpdate struct {
	Email     *string
	Role      *string
	FirstName *string
	LastName  *string
	IsActive  *bool
}

// Identity is the value the authorization guard passes downstream once
// a request is admitted. Handlers read this instead of re-parsing raw
// tokens themselves.
type Identity struct {
	UserID   uint64 `json:"user_id"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}
