// Package repository defines error types that are reused across
// multiple repositories. These sentinel values let handlers translate
// storage failures into precise HTTP statuses without string matching.
package repository

import "errors"

// ErrEmailExists is returned when a registration collides with an
// existing (tenant_id, email) pair. Handlers translate this into 409.
var ErrEmailExists = errors.New("email already exists")

// ErrRoleExists is returned when a role name is already taken.
var ErrRoleExists = errors.New("role already exists")

// ErrRoleInUse is returned when a role deletion is rejected because
// users still reference the role. Deletion never cascades onto users.
var ErrRoleInUse = errors.New("role is referenced by users")

// ErrUnknownRole is returned when a user write names a role that does
// not exist in the registry. Handlers translate this into 400.
var ErrUnknownRole = errors.New("unknown role")

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// ErrTokenConsumed is returned by the rotation CAS when the presented
// refresh token was not in the ACTIVE state. The caller decides
// whether that means a lost race or a replay.
var ErrTokenConsumed = errors.New("refresh token already consumed")
