package explorer

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Envelope is a named emission bucket: a capped total, an upfront release percentage,
// a cliff and a linear vesting duration (both in blocks).
type Envelope struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	TotalCap          AmountBlockchain `json:"total_cap"`
	UpfrontRate       uint8            `json:"upfront_rate"`
	Cliff             uint32           `json:"cliff"`
	VestingDuration   uint32           `json:"vesting_duration"`
	UniqueBeneficiary *Address         `json:"unique_beneficiary,omitempty"`
	// Reported by the ledger; may transiently exceed TotalCap.
	Distributed AmountBlockchain `json:"distributed"`
}

// UpfrontAmount is the part of the cap released immediately, outside of vesting.
func (e *Envelope) UpfrontAmount() AmountBlockchain {
	rate := NewAmountBlockchainFromUint64(uint64(e.UpfrontRate))
	hundred := NewAmountBlockchainFromUint64(100)
	prod := e.TotalCap.Mul(&rate)
	return prod.Div(&hundred)
}

// DistributedClamped is the distributed amount capped at TotalCap.
func (e *Envelope) DistributedClamped() AmountBlockchain {
	return e.Distributed.Min(&e.TotalCap)
}

func (e *Envelope) Remaining() AmountBlockchain {
	return e.TotalCap.SaturatingSub(&e.Distributed)
}

// DistributedPercent is in the range 0..100.
func (e *Envelope) DistributedPercent() float64 {
	if e.TotalCap.IsZero() {
		return 0
	}
	distributed := e.DistributedClamped()
	pct, _ := distributed.Decimal().Div(e.TotalCap.Decimal()).Mul(decimal.NewFromInt(100)).Float64()
	return clamp(pct, 0, 100)
}

// Allocation is one beneficiary's claim against an envelope.
type Allocation struct {
	Envelope    Envelope         `json:"envelope"`
	Total       AmountBlockchain `json:"total"`
	Upfront     AmountBlockchain `json:"upfront"`
	VestedTotal AmountBlockchain `json:"vested_total"`
	// Not guaranteed to be <= VestedTotal.
	Released AmountBlockchain `json:"released"`
	Start    uint32           `json:"start"`
}

// Locked is the vested amount not released yet; never negative.
func (a *Allocation) Locked() AmountBlockchain {
	return a.VestedTotal.SaturatingSub(&a.Released)
}

// Progress is released / vested_total clamped to [0, 1]; 0 when nothing vests.
func (a *Allocation) Progress() float64 {
	if a.VestedTotal.IsZero() {
		return 0
	}
	released := a.Released.Min(&a.VestedTotal)
	p, _ := new(big.Rat).SetFrac(released.Int(), a.VestedTotal.Int()).Float64()
	return clamp(p, 0, 1)
}

// EmissionRatePerBlock is vested_total / vesting_duration, 0 for a zero duration.
func (a *Allocation) EmissionRatePerBlock() decimal.Decimal {
	if a.Envelope.VestingDuration == 0 {
		return decimal.Zero
	}
	return a.VestedTotal.Decimal().Div(decimal.NewFromInt(int64(a.Envelope.VestingDuration)))
}

// NextPeriodRelease estimates the amount released over the next epoch,
// floor(rate * epochLength), computed without rounding the rate.
func (a *Allocation) NextPeriodRelease(epochLength uint32) AmountBlockchain {
	if a.Envelope.VestingDuration == 0 {
		return NewAmountBlockchainFromUint64(0)
	}
	epoch := NewAmountBlockchainFromUint64(uint64(epochLength))
	duration := NewAmountBlockchainFromUint64(uint64(a.Envelope.VestingDuration))
	prod := a.VestedTotal.Mul(&epoch)
	return prod.Div(&duration)
}

// Balance of an account. An account unknown to the ledger has all zero balances.
type Balance struct {
	Free     AmountBlockchain `json:"free"`
	Reserved AmountBlockchain `json:"reserved"`
	Frozen   AmountBlockchain `json:"frozen"`
}

func NewZeroBalance() Balance {
	return Balance{
		Free:     NewAmountBlockchainFromUint64(0),
		Reserved: NewAmountBlockchainFromUint64(0),
		Frozen:   NewAmountBlockchainFromUint64(0),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
