package common

import "fmt"

const (
	// RoleGovernance gates configuration changes, slashing and auction control.
	RoleGovernance = "GOVERNANCE"
	// RolePauser may toggle module pause flags.
	RolePauser = "PAUSER"
)

// RoleView answers capability checks against the role registry.
type RoleView interface {
	HasRole(role string, addr []byte) bool
}

// RequireRole fails with an authorization error unless caller holds role.
func RequireRole(r RoleView, role string, caller [20]byte) error {
	if r == nil || !r.HasRole(role, caller[:]) {
		return Authorization(fmt.Sprintf("caller %x lacks role %s", caller, role))
	}
	return nil
}

// RequireCaller fails unless caller is the expected contract account.
func RequireCaller(expected, caller [20]byte, name string) error {
	if expected == ([20]byte{}) || expected != caller {
		return Authorization(fmt.Sprintf("caller %x is not the %s", caller, name))
	}
	return nil
}
