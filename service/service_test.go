package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/address"
	"github.com/allfeat/explorer/aggregator"
	"github.com/allfeat/explorer/cache"
	"github.com/allfeat/explorer/errors"
	"github.com/allfeat/explorer/service"
	"github.com/allfeat/explorer/testutil"
	"github.com/stretchr/testify/suite"
)

type ServiceTestSuite struct {
	suite.Suite
	Ctx    context.Context
	Chain  *testutil.Chain
	Reader *testutil.CountingReader
	Clock  *testutil.Clock
	Svc    *service.Service
}

func (s *ServiceTestSuite) SetupTest() {
	s.Ctx = context.Background()
	s.Chain = testutil.DemoChain()
	s.Reader = testutil.NewCountingReader(s.Chain)
	s.Clock = testutil.NewClock()
	svc, err := service.New(s.Reader, service.Options{
		Prefix:   xe.DefaultNetworkTag,
		CacheTTL: cache.DefaultTTL,
		Clock:    s.Clock,
	})
	s.Require().NoError(err)
	s.Svc = svc
}

func TestService(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func addressOf(key xe.AccountKey) string {
	return string(address.MustEncode(key, xe.DefaultNetworkTag))
}

func (s *ServiceTestSuite) TestNewRejectsPrefix() {
	_, err := service.New(s.Reader, service.Options{Prefix: 20_000})
	s.Require().Error(err)
}

func (s *ServiceTestSuite) TestTotalIssuance() {
	require := s.Require()
	issuance, err := s.Svc.GetTotalIssuance(s.Ctx)
	require.NoError(err)
	require.Equal("1000000000", issuance.ToHuman(xe.DefaultDecimals).String())
}

func (s *ServiceTestSuite) TestTreasuryBalance() {
	require := s.Require()
	treasury, err := s.Svc.GetTreasuryBalance(s.Ctx)
	require.NoError(err)
	require.Equal(addressOf(testutil.DemoTreasury), string(treasury.Address))
	require.Equal(testutil.Unit(50_000_000).String(), treasury.Free.String())
	require.Equal("0", treasury.Reserved.String())

	// the configured account may use another network prefix
	svc, err := service.New(s.Reader, service.Options{
		Prefix:   xe.DefaultNetworkTag,
		Treasury: address.MustEncode(testutil.DemoFounder, 42),
	})
	require.NoError(err)
	treasury, err = svc.GetTreasuryBalance(s.Ctx)
	require.NoError(err)
	require.Equal(addressOf(testutil.DemoFounder), string(treasury.Address))
	require.Equal(testutil.Unit(12_500).String(), treasury.Free.String())

	_, err = service.New(s.Reader, service.Options{Prefix: xe.DefaultNetworkTag, Treasury: "garbage"})
	require.Error(err)
	require.Equal(errors.InvalidAddressFormat, errors.StatusOf(err))
}

func (s *ServiceTestSuite) TestCirculatingSupply() {
	require := s.Require()
	circulating, err := s.Svc.GetCirculatingSupply(s.Ctx)
	require.NoError(err)
	require.Equal("79500000", circulating.ToHuman(xe.DefaultDecimals).String())

	supply, err := s.Svc.GetSupply(s.Ctx)
	require.NoError(err)
	require.Equal(circulating.String(), supply.Circulating.String())
}

func (s *ServiceTestSuite) TestBalanceOf() {
	require := s.Require()
	balance, err := s.Svc.GetBalanceOf(s.Ctx, addressOf(testutil.DemoFounder))
	require.NoError(err)
	require.Equal(testutil.Unit(12_500).String(), balance.Free.String())
	require.Equal(testutil.Unit(10_000).String(), balance.Frozen.String())

	balance, err = s.Svc.GetBalanceOf(s.Ctx, addressOf(testutil.KeyOf(0x77)))
	require.NoError(err)
	require.True(balance.Free.IsZero())
}

func (s *ServiceTestSuite) TestInvalidAddressSkipsLedger() {
	require := s.Require()
	for _, addr := range []string{
		"",
		"not an address",
		// valid checksum, other network
		"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		// one character changed
		"qSz84FFpCxyRLmeoAQfTHiHgDJ8FGWnoaUzHTvnZdRGDTX21X",
	} {
		_, err := s.Svc.GetBalanceOf(s.Ctx, addr)
		require.Equal(errors.InvalidAddressFormat, errors.StatusOf(err), addr)
		_, err = s.Svc.GetAllocationsOf(s.Ctx, addr)
		require.Equal(errors.InvalidAddressFormat, errors.StatusOf(err), addr)
	}
	require.Equal(0, s.Reader.Pins())
}

func (s *ServiceTestSuite) TestAllocationsCachedWithinTTL() {
	require := s.Require()

	first, err := s.Svc.GetAllocations(s.Ctx)
	require.NoError(err)
	require.False(first.Cached)
	require.Len(first.Envelopes, 5)
	reads := s.Reader.Reads()
	require.Equal(1, s.Reader.Pins())

	s.Clock.Advance(time.Second)
	second, err := s.Svc.GetAllocations(s.Ctx)
	require.NoError(err)
	require.True(second.Cached)
	require.Equal(first.Envelopes, second.Envelopes)
	require.Equal(first.ComputedAt, second.ComputedAt)
	require.Equal(1, s.Reader.Pins())
	require.Equal(reads, s.Reader.Reads())
}

func (s *ServiceTestSuite) TestAllocationsRefreshAfterTTL() {
	require := s.Require()

	_, err := s.Svc.GetAllocations(s.Ctx)
	require.NoError(err)
	reads := s.Reader.Reads()

	s.Clock.Advance(cache.DefaultTTL + time.Second)
	refreshed, err := s.Svc.GetAllocations(s.Ctx)
	require.NoError(err)
	require.False(refreshed.Cached)
	require.Equal(2, s.Reader.Pins())
	require.Equal(2*reads, s.Reader.Reads())

	_, err = s.Svc.GetAllocations(s.Ctx)
	require.NoError(err)
	require.Equal(2, s.Reader.Pins())
}

func (s *ServiceTestSuite) TestAllocationsFailedRefresh() {
	require := s.Require()

	first, err := s.Svc.GetAllocations(s.Ctx)
	require.NoError(err)

	s.Clock.Advance(cache.DefaultTTL)
	s.Chain.SetUnavailable(fmt.Errorf("node restarting"))
	_, err = s.Svc.GetAllocations(s.Ctx)
	require.Equal(errors.ChainUnavailable, errors.StatusOf(err))

	// the stale entry was kept and is replaced on the next successful refresh
	s.Chain.SetUnavailable(nil)
	s.Clock.Advance(time.Second)
	again, err := s.Svc.GetAllocations(s.Ctx)
	require.NoError(err)
	require.False(again.Cached)
	require.Equal(first.Envelopes, again.Envelopes)
	require.True(again.ComputedAt.After(first.ComputedAt))
}

func (s *ServiceTestSuite) TestEnvelopeViews() {
	require := s.Require()
	envelopes, err := s.Svc.GetAllocations(s.Ctx)
	require.NoError(err)

	airdrop := envelopes.Envelopes[0]
	require.Equal("airdrop", airdrop.ID)
	require.Equal(testutil.Unit(20_000_000).String(), airdrop.UpfrontAmount.String())
	require.Equal(testutil.Unit(16_000_000).String(), airdrop.Remaining.String())
	require.InDelta(20.0, airdrop.DistributedPercent, 1e-9)
}

func (s *ServiceTestSuite) TestGetEnvelope() {
	require := s.Require()
	envelope, err := s.Svc.GetEnvelope(s.Ctx, "founders")
	require.NoError(err)
	require.Equal("Founders", envelope.Name)
	require.InDelta(100.0, envelope.DistributedPercent, 1e-9)

	_, err = s.Svc.GetEnvelope(s.Ctx, "nope")
	require.Equal(errors.EnvelopeNotFound, errors.StatusOf(err))
	_, err = s.Svc.GetEnvelope(s.Ctx, "kol-funding")
	require.Equal(errors.EnvelopeNotFound, errors.StatusOf(err))
}

func (s *ServiceTestSuite) TestAllocationsOfDerivedMetrics() {
	require := s.Require()
	chain := testutil.NewChain()
	chain.SetEpochDuration(100)
	chain.SetEnvelope(aggregator.ICO1, testutil.EnvelopeFixture{TotalCap: testutil.Amount("1200"), VestingDuration: 1200})
	beneficiary := testutil.KeyOf(0x42)
	chain.AddAllocation(testutil.AllocationFixture{
		Envelope:    aggregator.ICO1,
		Beneficiary: beneficiary,
		Total:       testutil.Amount("1200"),
		VestedTotal: testutil.Amount("1200"),
		Released:    testutil.Amount("300"),
	})
	chain.Finalize()
	svc, err := service.New(chain, service.Options{Prefix: xe.DefaultNetworkTag})
	require.NoError(err)

	result, err := svc.GetAllocationsOf(s.Ctx, addressOf(beneficiary))
	require.NoError(err)
	require.EqualValues(100, result.EpochDuration)
	require.Len(result.Allocations, 1)
	view := result.Allocations[0]
	require.Equal("1", view.EmissionRatePerBlock.String())
	require.Equal("100", view.NextPeriodRelease.String())
	require.Equal("900", view.Locked.String())
	require.InDelta(0.25, view.Progress, 1e-9)
	require.Equal("ico-1", view.Envelope.ID)
}

func (s *ServiceTestSuite) TestEpochDuration() {
	epoch, err := s.Svc.GetEpochDuration(s.Ctx)
	s.Require().NoError(err)
	s.Require().EqualValues(14_400, epoch)
}

func (s *ServiceTestSuite) TestStreamBlockNumbers() {
	require := s.Require()
	ctx, cancel := context.WithCancel(s.Ctx)
	defer cancel()

	events, err := s.Svc.StreamBlockNumbers(ctx)
	require.NoError(err)

	first := s.Chain.Finalize()
	second := s.Chain.Finalize()
	ev := <-events
	require.NoError(ev.Err)
	require.Equal(first.Number, ev.Number)
	ev = <-events
	require.Equal(second.Number, ev.Number)
	require.Equal(second.Hash, ev.Hash)

	cancel()
	for range events {
	}
}

func (s *ServiceTestSuite) TestStreamUpstreamFailure() {
	require := s.Require()
	events, err := s.Svc.StreamBlockNumbers(s.Ctx)
	require.NoError(err)

	s.Chain.FailSubscriptions(fmt.Errorf("subscription dropped"))
	ev, ok := <-events
	require.True(ok)
	require.Equal(errors.ChainUnavailable, errors.StatusOf(ev.Err))
	require.ErrorContains(ev.Err, "subscription dropped")
	_, ok = <-events
	require.False(ok)
}

func (s *ServiceTestSuite) TestStreamUnavailable() {
	s.Chain.SetUnavailable(fmt.Errorf("down"))
	_, err := s.Svc.StreamBlockNumbers(s.Ctx)
	s.Require().Equal(errors.ChainUnavailable, errors.StatusOf(err))
}

func (s *ServiceTestSuite) TestIdenticon() {
	require := s.Require()
	svg, err := s.Svc.Identicon(addressOf(testutil.DemoFounder), 32)
	require.NoError(err)
	require.True(strings.HasPrefix(string(svg), "<svg"))

	// any network is accepted
	_, err = s.Svc.Identicon("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", 32)
	require.NoError(err)

	_, err = s.Svc.Identicon("garbage", 32)
	require.Equal(errors.InvalidAddressFormat, errors.StatusOf(err))
}
