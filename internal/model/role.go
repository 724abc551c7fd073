package model

import "time"

// Role represents a row in the `roles` table. A role's current
// permission set is derived from the `role_permissions` join table and
// never stored redundantly on the role itself.
type Role struct {
	ID          uint64    // roles.id
	Name        string    // roles.name (unique)
	Description string    // roles.description
	CreatedAt   time.Time // roles.created_at
}

// Permission represents a row in the `permissions` table. The name
// encodes a (resource, action) pair such as "patients:delete".
// Permissions are immutable once created so that historical
// assignments keep their meaning.
type Permission struct {
	ID          uint64    `json:"id"`          // permissions.id
	Name        string    `json:"name"`        // permissions.name (unique)
	Description string    `json:"description"` // permissions.description
	CreatedAt   time.Time `json:"created_at"`  // permissions.created_at
}

// AssignMode controls how assignPermissions treats the existing edge
// set of a role.
type AssignMode string

const (
	// AssignReplace sets the role's permission set to exactly the
	// given ids, detaching anything not listed.
	AssignReplace AssignMode = "REPLACE"
	// AssignAdd unions the given ids into the existing set. Re-adding
	// an already assigned id is a no-op, never an error.
	AssignAdd AssignMode = "ADD"
)
