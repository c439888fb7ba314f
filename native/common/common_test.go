package common

import (
	"errors"
	"math/big"
	"testing"
)

type stubPauseView map[string]bool

func (s stubPauseView) IsPaused(module string) bool { return s[module] }

func TestGuard(t *testing.T) {
	view := stubPauseView{"stakepool": true}
	if err := Guard(view, "stakepool"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(view, "auction"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Guard(nil, "stakepool"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
}

func TestTimingErrorCarriesDeadline(t *testing.T) {
	sentinel := Timing("cooldown not elapsed")
	err := NewTimingError(sentinel, 1_234)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected module sentinel in chain")
	}
	if !errors.Is(err, ErrTiming) {
		t.Fatalf("expected ErrTiming kind in chain")
	}
	deadline, ok := DeadlineOf(err)
	if !ok || deadline != 1_234 {
		t.Fatalf("unexpected deadline %d (ok=%v)", deadline, ok)
	}
	if KindOf(err) != ErrTiming {
		t.Fatalf("unexpected kind %v", KindOf(err))
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{Validation("x"), ErrValidation},
		{Authorization("x"), ErrAuthorization},
		{Capacity("x"), ErrCapacity},
		{State("x"), ErrState},
		{errors.New("plain"), nil},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

type roleSet map[string]bool

func (r roleSet) HasRole(role string, addr []byte) bool { return r[role+string(addr)] }

func TestRequireRole(t *testing.T) {
	var gov [20]byte
	gov[0] = 1
	roles := roleSet{RoleGovernance + string(gov[:]): true}
	if err := RequireRole(roles, RoleGovernance, gov); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var other [20]byte
	if err := RequireRole(roles, RoleGovernance, other); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestReentrancyGuard(t *testing.T) {
	var g ReentrancyGuard
	if err := g.Enter(); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := g.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected reentrancy rejection, got %v", err)
	}
	g.Exit()
	if err := g.Enter(); err != nil {
		t.Fatalf("re-enter after exit: %v", err)
	}
}

func TestMulDivRounding(t *testing.T) {
	a, b, c := big.NewInt(10), big.NewInt(10), big.NewInt(3)
	if got := MulDiv(a, b, c); got.Cmp(big.NewInt(33)) != 0 {
		t.Fatalf("MulDiv = %s", got)
	}
	if got := MulDivUp(a, b, c); got.Cmp(big.NewInt(34)) != 0 {
		t.Fatalf("MulDivUp = %s", got)
	}
	if got := MulDiv(a, b, big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("zero denominator should yield zero, got %s", got)
	}
}

type pauseController struct {
	roleSet
	stubPauseView
}

func (p pauseController) SetPaused(module string, paused bool) error {
	p.stubPauseView[module] = paused
	return nil
}

func TestSetModulePaused(t *testing.T) {
	pauser := [20]byte{2}
	gov := [20]byte{1}
	c := pauseController{
		roleSet:       roleSet{RolePauser + string(pauser[:]): true, RoleGovernance + string(gov[:]): true},
		stubPauseView: stubPauseView{},
	}
	if err := SetModulePaused(c, pauser, "auction", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !c.IsPaused("auction") {
		t.Fatalf("expected auction paused")
	}
	if err := SetModulePaused(c, gov, "auction", false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if c.IsPaused("auction") {
		t.Fatalf("expected auction running")
	}
	if err := SetModulePaused(c, [20]byte{9}, "auction", true); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := SetModulePaused(c, pauser, "", true); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
