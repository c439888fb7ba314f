package common

import (
	"errors"
	"fmt"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports the circuit-breaker flag for a module.
type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseController is the state a pause toggle needs.
type PauseController interface {
	PauseView
	RoleView
	SetPaused(module string, paused bool) error
}

// SetModulePaused flips the circuit breaker of module. Holders of PAUSER or
// GOVERNANCE may call it.
func SetModulePaused(c PauseController, caller [20]byte, module string, paused bool) error {
	if c == nil {
		return State("pause controller not configured")
	}
	if module == "" {
		return Validation("module required")
	}
	if !c.HasRole(RolePauser, caller[:]) && !c.HasRole(RoleGovernance, caller[:]) {
		return Authorization(fmt.Sprintf("caller %x may not pause %s", caller, module))
	}
	if c.IsPaused(module) == paused {
		return nil
	}
	return c.SetPaused(module, paused)
}
