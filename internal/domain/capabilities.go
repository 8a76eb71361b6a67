package domain

import "slices"

// Capability is a named permission granted to a role.
type Capability string

// Capabilities over submissions and intake settings.
const (
	CapDeleteApps          Capability = "delete_apps"
	CapDeleteOthersApps    Capability = "delete_others_apps"
	CapDeletePublishedApps Capability = "delete_published_apps"
	CapEditApp             Capability = "edit_app"
	CapReadApp             Capability = "read_app"
	CapEditApps            Capability = "edit_apps"
	CapEditOthersApps      Capability = "edit_others_apps"
	CapPublishApps         Capability = "publish_apps"
	CapCreateApps          Capability = "create_apps"
	CapReadPrivateApps     Capability = "read_private_apps"
	CapManageOptions       Capability = "manage_options"
)

// RoleAdministrator is the operator role that manages submissions.
const RoleAdministrator = "administrator"

// RoleCapabilities maps each role to its explicit capability grants.
// Submissions only enter through the intake form, so no role may create,
// publish or edit a single submission.
var RoleCapabilities = map[string]map[Capability]bool{
	RoleAdministrator: {
		CapDeleteApps:          true,
		CapDeleteOthersApps:    true,
		CapDeletePublishedApps: true,
		CapEditApp:             false,
		CapReadApp:             true,
		CapEditApps:            true,
		CapEditOthersApps:      true,
		CapPublishApps:         false,
		CapCreateApps:          false,
		CapReadPrivateApps:     true,
		CapManageOptions:       true,
	},
}

// RolesGrant reports whether any of roles is granted capability.
func RolesGrant(roles []string, capability Capability) bool {
	for _, role := range roles {
		if RoleCapabilities[role][capability] {
			return true
		}
	}

	return false
}

// GrantedCapabilities lists the capabilities granted to any of roles, sorted.
func GrantedCapabilities(roles []string) []string {
	seen := make(map[Capability]struct{})
	granted := make([]string, 0)

	for _, role := range roles {
		for capability, ok := range RoleCapabilities[role] {
			if !ok {
				continue
			}

			if _, dup := seen[capability]; dup {
				continue
			}

			seen[capability] = struct{}{}
			granted = append(granted, string(capability))
		}
	}

	slices.Sort(granted)

	return granted
}
