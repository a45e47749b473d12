package explorer_test

import (
	"math/big"

	. "github.com/allfeat/explorer"
)

func unit(n int64) AmountBlockchain {
	v := new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(DefaultDecimals), nil))
	return NewAmountBlockchainFromBigInt(v)
}

func (s *ExplorerTestSuite) TestEnvelopeUpfrontAmount() {
	require := s.Require()
	env := Envelope{TotalCap: unit(1_000_000), UpfrontRate: 10}
	expected := unit(100_000)
	upfront := env.UpfrontAmount()
	require.Equal(expected.String(), upfront.String())

	env.UpfrontRate = 0
	upfront = env.UpfrontAmount()
	require.True(upfront.IsZero())
}

func (s *ExplorerTestSuite) TestEnvelopeDistribution() {
	require := s.Require()
	env := Envelope{
		TotalCap:    NewAmountBlockchainFromUint64(1000),
		Distributed: NewAmountBlockchainFromUint64(250),
	}
	remaining := env.Remaining()
	require.Equal("750", remaining.String())
	require.InDelta(25.0, env.DistributedPercent(), 0.0001)

	// over-distribution reported by the ledger must not go negative
	env.Distributed = NewAmountBlockchainFromUint64(1500)
	remaining = env.Remaining()
	clamped := env.DistributedClamped()
	require.Equal("0", remaining.String())
	require.Equal("1000", clamped.String())
	require.Equal(100.0, env.DistributedPercent())

	env.TotalCap = NewAmountBlockchainFromUint64(0)
	require.Equal(0.0, env.DistributedPercent())
}

func (s *ExplorerTestSuite) TestAllocationProgress() {
	require := s.Require()
	type testcase struct {
		vested   uint64
		released uint64
		progress float64
	}
	for _, tc := range []testcase{
		{vested: 0, released: 0, progress: 0},
		{vested: 0, released: 50, progress: 0},
		{vested: 1200, released: 300, progress: 0.25},
		{vested: 1200, released: 1200, progress: 1},
		{vested: 1200, released: 5000, progress: 1},
	} {
		alloc := Allocation{
			VestedTotal: NewAmountBlockchainFromUint64(tc.vested),
			Released:    NewAmountBlockchainFromUint64(tc.released),
		}
		require.InDelta(tc.progress, alloc.Progress(), 1e-9, "vested=%d released=%d", tc.vested, tc.released)
	}
}

func (s *ExplorerTestSuite) TestAllocationLocked() {
	require := s.Require()
	alloc := Allocation{
		VestedTotal: NewAmountBlockchainFromUint64(100),
		Released:    NewAmountBlockchainFromUint64(300),
	}
	locked := alloc.Locked()
	require.Equal("0", locked.String())

	alloc.Released = NewAmountBlockchainFromUint64(40)
	locked = alloc.Locked()
	require.Equal("60", locked.String())
}

func (s *ExplorerTestSuite) TestNextPeriodRelease() {
	require := s.Require()
	alloc := Allocation{
		Envelope:    Envelope{VestingDuration: 1200},
		VestedTotal: NewAmountBlockchainFromUint64(1200),
		Released:    NewAmountBlockchainFromUint64(300),
	}
	require.Equal("1", alloc.EmissionRatePerBlock().String())
	next := alloc.NextPeriodRelease(100)
	require.Equal("100", next.String())

	// floor of a fractional rate
	alloc.VestedTotal = NewAmountBlockchainFromUint64(1000)
	alloc.Envelope.VestingDuration = 3
	next = alloc.NextPeriodRelease(2)
	require.Equal("666", next.String())

	alloc.Envelope.VestingDuration = 0
	require.True(alloc.EmissionRatePerBlock().IsZero())
	next = alloc.NextPeriodRelease(100)
	require.True(next.IsZero())
}

func (s *ExplorerTestSuite) TestZeroBalance() {
	require := s.Require()
	bal := NewZeroBalance()
	require.Equal("0", bal.Free.String())
	require.Equal("0", bal.Reserved.String())
	require.Equal("0", bal.Frozen.String())
}
