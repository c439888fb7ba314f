package common

import "math/big"

var (
	// Wad is the 1e18 fixed-point unit used for rates, multipliers and
	// accumulators.
	Wad = mustBigInt("1000000000000000000")
	// BasisPoints is the denominator for weights and percentages.
	BasisPoints = big.NewInt(10_000)
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Zero returns a fresh zero value.
func Zero() *big.Int { return big.NewInt(0) }

// Clone copies v, mapping nil to zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// IsPositive reports whether v is non-nil and > 0.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// MulDiv computes a*b/c rounded toward zero. A zero denominator yields zero;
// callers guard that case explicitly where it matters.
func MulDiv(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}

// MulDivUp computes a*b/c rounded up for non-negative inputs.
func MulDivUp(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	rem := new(big.Int)
	out.QuoRem(out, c, rem)
	if rem.Sign() > 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// WadMul multiplies two wad values rounding down.
func WadMul(a, b *big.Int) *big.Int {
	return MulDiv(a, b, Wad)
}

// WadDiv divides two wad values rounding down.
func WadDiv(a, b *big.Int) *big.Int {
	return MulDiv(a, Wad, b)
}

// Min returns the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// WadFromUint scales n whole units to wad precision.
func WadFromUint(n uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(n), Wad)
}
