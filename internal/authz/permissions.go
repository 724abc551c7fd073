// Package authz declares the role and permission vocabulary shared by
// the guard, the registry seeder and every resource group that mounts
// the guard. Resource groups register a (resource, action) pair here
// once instead of hardcoding permission strings in their handlers.
package authz

import "fmt"

// Built-in role names. SUPER_ADMIN bypasses permission checks entirely.
const (
	RoleSuperAdmin    = "SUPER_ADMIN"
	RoleAdmin         = "ADMIN"
	RoleDoctor        = "DOCTOR"
	RolePatient       = "PATIENT"
	RoleReceptionist  = "RECEPTIONIST"
	RoleLabTechnician = "LAB_TECHNICIAN"
	RolePharmacist    = "PHARMACIST"
)

// BuiltinRoles lists every role seeded at startup, with descriptions.
var BuiltinRoles = []struct {
	Name        string
	Description string
}{
	{RoleSuperAdmin, "Unrestricted access to every resource"},
	{RoleAdmin, "Tenant administrator"},
	{RoleDoctor, "Medical practitioner"},
	{RolePatient, "Registered patient"},
	{RoleReceptionist, "Front-desk operations"},
	{RoleLabTechnician, "Laboratory workflows"},
	{RolePharmacist, "Pharmacy workflows"},
}

// Actions every resource group supports.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Resource groups known to the system. The domain groups are served by
// external collaborators; they still declare their permissions here so
// enforcement stays uniform.
const (
	ResourcePatients       = "patients"
	ResourceAppointments   = "appointments"
	ResourceBilling        = "billing"
	ResourceStaff          = "staff"
	ResourceLaboratory     = "laboratory"
	ResourcePharmacy       = "pharmacy"
	ResourceCommunications = "communications"
	ResourceRBAC           = "rbac"
)

var resources = []string{
	ResourcePatients,
	ResourceAppointments,
	ResourceBilling,
	ResourceStaff,
	ResourceLaboratory,
	ResourcePharmacy,
	ResourceCommunications,
	ResourceRBAC,
}

var actions = []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

// Permission returns the canonical permission name for a resource and
// action, e.g. Permission("patients", "delete") == "patients:delete".
func Permission(resource, action string) string {
	return resource + ":" + action
}

// CatalogEntry is one row of the built-in permission catalog.
type CatalogEntry struct {
	Name        string
	Description string
}

// Catalog returns the full built-in permission catalog, one entry per
// (resource, action) pair, in stable order.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(resources)*len(actions))
	for _, r := range resources {
		for _, a := range actions {
			out = append(out, CatalogEntry{
				Name:        Permission(r, a),
				Description: fmt.Sprintf("%s %s records", a, r),
			})
		}
	}
	return out
}

// DefaultGrants maps each built-in role to the permission names it is
// seeded with. SUPER_ADMIN carries no explicit grants because the
// guard admits it unconditionally. ADMIN receives the entire catalog.
func DefaultGrants() map[string][]string {
	all := make([]string, 0, len(resources)*len(actions))
	for _, r := range resources {
		for _, a := range actions {
			all = append(all, Permission(r, a))
		}
	}
	return map[string][]string{
		RoleAdmin: all,
		RoleDoctor: {
			Permission(ResourcePatients, ActionRead),
			Permission(ResourcePatients, ActionUpdate),
			Permission(ResourceAppointments, ActionRead),
			Permission(ResourceAppointments, ActionUpdate),
			Permission(ResourceLaboratory, ActionRead),
			Permission(ResourceLaboratory, ActionCreate),
			Permission(ResourcePharmacy, ActionRead),
			Permission(ResourcePharmacy, ActionCreate),
			Permission(ResourceCommunications, ActionRead),
			Permission(ResourceCommunications, ActionCreate),
		},
		RolePatient: {
			Permission(ResourceAppointments, ActionRead),
			Permission(ResourceAppointments, ActionCreate),
			Permission(ResourceBilling, ActionRead),
			Permission(ResourceCommunications, ActionRead),
		},
		RoleReceptionist: {
			Permission(ResourcePatients, ActionRead),
			Permission(ResourcePatients, ActionCreate),
			Permission(ResourceAppointments, ActionRead),
			Permission(ResourceAppointments, ActionCreate),
			Permission(ResourceAppointments, ActionUpdate),
			Permission(ResourceBilling, ActionRead),
			Permission(ResourceBilling, ActionCreate),
			Permission(ResourceCommunications, ActionRead),
			Permission(ResourceCommunications, ActionCreate),
		},
		RoleLabTechnician: {
			Permission(ResourceLaboratory, ActionRead),
			Permission(ResourceLaboratory, ActionUpdate),
			Permission(ResourcePatients, ActionRead),
		},
		RolePharmacist: {
			Permission(ResourcePharmacy, ActionRead),
			Permission(ResourcePharmacy, ActionUpdate),
			Permission(ResourcePatients, ActionRead),
		},
	}
}

// KnownRole reports whether name is one of the built-in roles. User
// registration and role updates reject anything else unless the role
// exists in the registry.
func KnownRole(name string) bool {
	for _, r := range BuiltinRoles {
		if r.Name == name {
			return true
		}
	}
	return false
}
