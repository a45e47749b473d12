// Package service exposes the explorer operations consumed by the HTTP API and the CLI.
package service

import (
	"context"
	"time"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/address"
	"github.com/allfeat/explorer/aggregator"
	"github.com/allfeat/explorer/cache"
	"github.com/allfeat/explorer/errors"
	"github.com/allfeat/explorer/identicon"
	"github.com/allfeat/explorer/ledger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Prefix   xe.NetworkTag
	CacheTTL time.Duration
	Clock    cache.Clock
	// Treasury may use any network prefix. Defaults to xe.TreasuryAccount.
	Treasury xe.Address
}

type Service struct {
	reader     ledger.Reader
	aggregator *aggregator.Aggregator
	addresses  address.AddressBuilder
	envelopes  *cache.Cache[[]xe.Envelope]
	treasury   xe.AccountKey
}

func New(reader ledger.Reader, opts Options) (*Service, error) {
	builder, err := address.NewAddressBuilder(opts.Prefix)
	if err != nil {
		return nil, err
	}
	if opts.Treasury == "" {
		opts.Treasury = xe.TreasuryAccount
	}
	treasury, _, err := address.Decode(string(opts.Treasury))
	if err != nil {
		return nil, err
	}
	var cacheOpts []cache.Option
	if opts.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(opts.Clock))
	}
	return &Service{
		reader:     reader,
		aggregator: aggregator.New(reader, opts.Prefix),
		addresses:  builder,
		envelopes:  cache.New[[]xe.Envelope](opts.CacheTTL, cacheOpts...),
		treasury:   treasury,
	}, nil
}

func (s *Service) Prefix() xe.NetworkTag {
	return s.addresses.Prefix()
}

// ParseAddress rejects addresses of other networks before any ledger access.
func (s *Service) ParseAddress(addr string) (xe.AccountKey, error) {
	return s.addresses.Parse(addr)
}

func (s *Service) GetTotalIssuance(ctx context.Context) (xe.AmountBlockchain, error) {
	return s.aggregator.TotalIssuance(ctx)
}

func (s *Service) GetCirculatingSupply(ctx context.Context) (xe.AmountBlockchain, error) {
	return s.aggregator.CirculatingSupply(ctx)
}

// GetSupply is the circulating supply with the totals it was derived from.
func (s *Service) GetSupply(ctx context.Context) (aggregator.Supply, error) {
	return s.aggregator.Supply(ctx)
}

func (s *Service) GetBalanceOf(ctx context.Context, addr string) (xe.Balance, error) {
	key, err := s.ParseAddress(addr)
	if err != nil {
		return xe.Balance{}, err
	}
	return s.aggregator.BalanceOf(ctx, key)
}

type TreasuryBalance struct {
	Address xe.Address `json:"address"`
	xe.Balance
}

// GetTreasuryBalance reads the treasury account, reported under the configured network prefix.
func (s *Service) GetTreasuryBalance(ctx context.Context) (TreasuryBalance, error) {
	balance, err := s.aggregator.BalanceOf(ctx, s.treasury)
	if err != nil {
		return TreasuryBalance{}, err
	}
	addr, err := s.addresses.GetAddressFromPublicKey(s.treasury[:])
	if err != nil {
		return TreasuryBalance{}, err
	}
	return TreasuryBalance{Address: addr, Balance: balance}, nil
}

func (s *Service) GetEpochDuration(ctx context.Context) (uint32, error) {
	return s.aggregator.EpochDuration(ctx)
}

// EnvelopeView is an envelope with its derived figures.
type EnvelopeView struct {
	xe.Envelope
	UpfrontAmount      xe.AmountBlockchain `json:"upfront_amount"`
	Remaining          xe.AmountBlockchain `json:"remaining"`
	DistributedPercent float64             `json:"distributed_percent"`
}

func NewEnvelopeView(envelope xe.Envelope) EnvelopeView {
	return EnvelopeView{
		Envelope:           envelope,
		UpfrontAmount:      envelope.UpfrontAmount(),
		Remaining:          envelope.Remaining(),
		DistributedPercent: envelope.DistributedPercent(),
	}
}

type Envelopes struct {
	Envelopes  []EnvelopeView `json:"envelopes"`
	ComputedAt time.Time      `json:"computed_at"`
	// Served from cache without reading the ledger
	Cached bool `json:"-"`
}

// GetAllocations enumerates every envelope, served from the cache while it is fresh.
func (s *Service) GetAllocations(ctx context.Context) (Envelopes, error) {
	entry, hit, err := s.envelopes.Get(ctx, s.aggregator.Envelopes)
	if err != nil {
		return Envelopes{}, err
	}
	logrus.WithFields(logrus.Fields{
		"cache_hit":   hit,
		"computed_at": entry.ComputedAt,
	}).Debug("envelope enumeration")

	views := make([]EnvelopeView, len(entry.Payload))
	for i, envelope := range entry.Payload {
		views[i] = NewEnvelopeView(envelope)
	}
	return Envelopes{Envelopes: views, ComputedAt: entry.ComputedAt, Cached: hit}, nil
}

// GetEnvelope reads one envelope directly from the ledger by slug, name or index.
func (s *Service) GetEnvelope(ctx context.Context, id string) (EnvelopeView, error) {
	envelopeID, ok := aggregator.ParseEnvelopeID(id)
	if !ok {
		return EnvelopeView{}, errors.EnvelopeNotFoundf("unknown envelope %q", id)
	}
	envelope, err := s.aggregator.EnvelopeConfig(ctx, envelopeID)
	if err != nil {
		return EnvelopeView{}, err
	}
	return NewEnvelopeView(envelope), nil
}

// AllocationView is an allocation with its derived vesting metrics.
type AllocationView struct {
	xe.Allocation
	Locked               xe.AmountBlockchain `json:"locked"`
	Progress             float64             `json:"progress"`
	EmissionRatePerBlock decimal.Decimal     `json:"emission_rate_per_block"`
	NextPeriodRelease    xe.AmountBlockchain `json:"next_period_release"`
}

func NewAllocationView(allocation xe.Allocation, epochDuration uint32) AllocationView {
	return AllocationView{
		Allocation:           allocation,
		Locked:               allocation.Locked(),
		Progress:             allocation.Progress(),
		EmissionRatePerBlock: allocation.EmissionRatePerBlock(),
		NextPeriodRelease:    allocation.NextPeriodRelease(epochDuration),
	}
}

type AccountAllocations struct {
	Address       xe.Address       `json:"address"`
	Block         ledger.BlockRef  `json:"block"`
	EpochDuration uint32           `json:"epoch_duration"`
	Allocations   []AllocationView `json:"allocations"`
}

func (s *Service) GetAllocationsOf(ctx context.Context, addr string) (AccountAllocations, error) {
	key, err := s.ParseAddress(addr)
	if err != nil {
		return AccountAllocations{}, err
	}
	vesting, err := s.aggregator.AccountVesting(ctx, key)
	if err != nil {
		return AccountAllocations{}, err
	}
	views := make([]AllocationView, len(vesting.Allocations))
	for i, allocation := range vesting.Allocations {
		views[i] = NewAllocationView(allocation, vesting.EpochDuration)
	}
	return AccountAllocations{
		Address:       xe.Address(addr),
		Block:         vesting.Block,
		EpochDuration: vesting.EpochDuration,
		Allocations:   views,
	}, nil
}

// Identicon renders the avatar of any well formed address, whatever its network.
func (s *Service) Identicon(addr string, size int) ([]byte, error) {
	if _, _, err := address.Decode(addr); err != nil {
		return nil, err
	}
	return identicon.SVG(addr, size), nil
}
