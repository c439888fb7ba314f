package common

// ErrReentrantCall is returned when a value-moving call is entered while
// another one is still in flight on the same engine.
var ErrReentrantCall = State("reentrant call rejected")

// ReentrancyGuard is a single-writer flag held around call sequences that move
// value before all bookkeeping is complete.
type ReentrancyGuard struct {
	entered bool
}

// Enter acquires the guard.
func (g *ReentrancyGuard) Enter() error {
	if g.entered {
		return ErrReentrantCall
	}
	g.entered = true
	return nil
}

// Exit releases the guard.
func (g *ReentrancyGuard) Exit() {
	g.entered = false
}
