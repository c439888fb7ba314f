package stakepool

import (
	"math/big"
	"testing"
)

func TestNextCooldownPrecedence(t *testing.T) {
	pool := &Pool{CooldownSeconds: 100, UnstakeWindow: 50}
	const now = 1_000

	cases := []struct {
		name      string
		from, to  uint64
		amount    int64
		toBalance int64
		want      uint64
	}{
		{name: "receiver unset", from: 990, to: 0, amount: 10, toBalance: 10, want: 0},
		{name: "receiver expired", from: 990, to: 800, amount: 10, toBalance: 10, want: 0},
		{name: "sender unset", from: 0, to: 900, amount: 10, toBalance: 10, want: 900},
		{name: "sender expired", from: 700, to: 900, amount: 10, toBalance: 10, want: 900},
		{name: "sender older", from: 880, to: 900, amount: 10, toBalance: 10, want: 900},
		{name: "blend", from: 960, to: 900, amount: 10, toBalance: 30, want: 915},
		{name: "equal timestamps", from: 900, to: 900, amount: 5, toBalance: 5, want: 900},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextCooldown(pool, tc.from, tc.to, big.NewInt(tc.amount), big.NewInt(tc.toBalance), now)
			if got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

func TestCooldownExpiredBoundary(t *testing.T) {
	pool := &Pool{CooldownSeconds: 100, UnstakeWindow: 50}
	if cooldownExpired(pool, 850, 1_000) {
		t.Fatalf("window closing exactly now is still valid")
	}
	if !cooldownExpired(pool, 849, 1_000) {
		t.Fatalf("expected expiry one second past the window")
	}
}

func TestCheckUnstakeWindow(t *testing.T) {
	pool := &Pool{CooldownSeconds: 100, UnstakeWindow: 50}
	holder := &Holder{CooldownStart: 1_000}
	if err := checkUnstakeWindow(pool, holder, 1_099); err == nil {
		t.Fatalf("expected cooldown active")
	}
	if err := checkUnstakeWindow(pool, holder, 1_100); err != nil {
		t.Fatalf("window opens at cooldown end: %v", err)
	}
	if err := checkUnstakeWindow(pool, holder, 1_150); err != nil {
		t.Fatalf("window inclusive at close: %v", err)
	}
	if err := checkUnstakeWindow(pool, holder, 1_151); err == nil {
		t.Fatalf("expected window expired")
	}
}
