package stakepool

import (
	"fmt"
	"math/big"

	"safetymodule/native/common"
)

// Pool returns a copy of the pool record.
func (e *Engine) Pool(addr [20]byte) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPool(addr)
}

// Pools lists the registered pool addresses.
func (e *Engine) Pools() ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.StakePoolList()
}

// ExchangeRate returns the underlying per share, wad scaled.
func (e *Engine) ExchangeRate(addr [20]byte) (*big.Int, error) {
	pool, err := e.Pool(addr)
	if err != nil {
		return nil, err
	}
	return pool.ExchangeRate, nil
}

// TotalShares returns the outstanding share supply of a pool.
func (e *Engine) TotalShares(addr [20]byte) (*big.Int, error) {
	pool, err := e.Pool(addr)
	if err != nil {
		return nil, err
	}
	return pool.TotalShares, nil
}

// UnderlyingHeld returns the collateral backing a pool's shares.
func (e *Engine) UnderlyingHeld(addr [20]byte) (*big.Int, error) {
	pool, err := e.Pool(addr)
	if err != nil {
		return nil, err
	}
	return pool.UnderlyingHeld, nil
}

// IsPostSlashing reports whether the pool awaits settlement of a slash.
func (e *Engine) IsPostSlashing(addr [20]byte) (bool, error) {
	pool, err := e.Pool(addr)
	if err != nil {
		return false, err
	}
	return pool.PostSlashing, nil
}

// SharesOf returns the share balance of holder.
func (e *Engine) SharesOf(addr, holder [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	h, err := e.loadHolder(addr, holder)
	if err != nil {
		return nil, err
	}
	return h.Shares, nil
}

// CooldownStart returns the holder's cooldown timestamp, zero when unset.
func (e *Engine) CooldownStart(addr, holder [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	h, err := e.loadHolder(addr, holder)
	if err != nil {
		return 0, err
	}
	return h.CooldownStart, nil
}

// PreviewStake returns the shares a stake of amount would mint now.
func (e *Engine) PreviewStake(addr [20]byte, amount *big.Int) (*big.Int, error) {
	pool, err := e.Pool(addr)
	if err != nil {
		return nil, err
	}
	if pool.ExchangeRate.Sign() == 0 {
		return nil, ErrZeroExchangeRate
	}
	return common.MulDiv(amount, common.Wad, pool.ExchangeRate), nil
}

// PreviewRedeem returns the underlying a redemption of shares would pay now.
func (e *Engine) PreviewRedeem(addr [20]byte, shares *big.Int) (*big.Int, error) {
	pool, err := e.Pool(addr)
	if err != nil {
		return nil, err
	}
	return common.MulDiv(shares, pool.ExchangeRate, common.Wad), nil
}

// SetCooldownSeconds updates the cooldown length of a pool.
func (e *Engine) SetCooldownSeconds(caller, addr [20]byte, seconds uint64) error {
	return e.updateParam(caller, addr, "cooldownSeconds", func(p *Pool) (string, error) {
		p.CooldownSeconds = seconds
		return fmt.Sprint(seconds), nil
	})
}

// SetUnstakeWindow updates the redemption window of a pool.
func (e *Engine) SetUnstakeWindow(caller, addr [20]byte, seconds uint64) error {
	return e.updateParam(caller, addr, "unstakeWindow", func(p *Pool) (string, error) {
		p.UnstakeWindow = seconds
		return fmt.Sprint(seconds), nil
	})
}

// SetMaxStakeAmount updates the per-holder share cap. Zero removes the cap.
func (e *Engine) SetMaxStakeAmount(caller, addr [20]byte, limit *big.Int) error {
	return e.updateParam(caller, addr, "maxStakeAmount", func(p *Pool) (string, error) {
		if limit == nil || limit.Sign() < 0 {
			return "", ErrInvalidPool
		}
		p.MaxStakeAmount = new(big.Int).Set(limit)
		return limit.String(), nil
	})
}

func (e *Engine) updateParam(caller, addr [20]byte, name string, apply func(*Pool) (string, error)) (err error) {
	finish, err := e.begin(false)
	if err != nil {
		return err
	}
	defer finish(&err)
	if err = common.RequireRole(e.state, common.RoleGovernance, caller); err != nil {
		return err
	}
	pool, err := e.loadPool(addr)
	if err != nil {
		return err
	}
	value, err := apply(pool)
	if err != nil {
		return err
	}
	if err = e.state.PutStakePool(pool); err != nil {
		return err
	}
	e.emit(eventsParamUpdated(addr, name, value))
	return nil
}
