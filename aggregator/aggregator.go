// Package aggregator computes economic metrics from ledger storage. Every public
// operation pins one block and issues all of its reads against it.
package aggregator

import (
	"bytes"
	"context"
	"time"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/address"
	"github.com/allfeat/explorer/errors"
	"github.com/allfeat/explorer/ledger"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Aggregator struct {
	reader ledger.Reader
	prefix xe.NetworkTag
}

func New(reader ledger.Reader, prefix xe.NetworkTag) *Aggregator {
	return &Aggregator{reader: reader, prefix: prefix}
}

// Supply is the breakdown behind the circulating supply.
type Supply struct {
	Block            ledger.BlockRef     `json:"block"`
	TotalDistributed xe.AmountBlockchain `json:"total_distributed"`
	Locked           xe.AmountBlockchain `json:"locked"`
	Circulating      xe.AmountBlockchain `json:"circulating"`
}

// Vesting is every allocation of an account together with the epoch length, read
// at the same block.
type Vesting struct {
	Block         ledger.BlockRef `json:"block"`
	EpochDuration uint32          `json:"epoch_duration"`
	Allocations   []xe.Allocation `json:"allocations"`
}

func (a *Aggregator) pin(ctx context.Context, op string) (ledger.BlockRef, func(), error) {
	start := time.Now()
	ref, err := a.reader.Pin(ctx)
	if err != nil {
		return ref, nil, errors.Wrap(errors.ChainUnavailable, err, "could not pin snapshot")
	}
	done := func() {
		logrus.WithFields(logrus.Fields{
			"op":       op,
			"block":    ref.Number,
			"duration": time.Since(start),
		}).Debug("aggregation pass complete")
	}
	return ref, done, nil
}

func (a *Aggregator) read(ctx context.Context, ref ledger.BlockRef, key ledger.Key) ([]byte, bool, error) {
	value, found, err := a.reader.Read(ctx, ref, key)
	if err != nil {
		return nil, false, errors.Wrap(errors.ChainUnavailable, err, "could not read %s", key)
	}
	return value, found, nil
}

func decodeAmount(key ledger.Key, value []byte) (xe.AmountBlockchain, error) {
	var v types.U128
	if err := Decode(key, value, &v); err != nil {
		return xe.AmountBlockchain{}, err
	}
	return FromU128(v), nil
}

func (a *Aggregator) TotalIssuance(ctx context.Context) (xe.AmountBlockchain, error) {
	ref, done, err := a.pin(ctx, "total_issuance")
	if err != nil {
		return xe.AmountBlockchain{}, err
	}
	defer done()

	key := TotalIssuanceKey()
	value, found, err := a.read(ctx, ref, key)
	if err != nil {
		return xe.AmountBlockchain{}, err
	}
	if !found {
		return xe.AmountBlockchain{}, errors.MetricNotFoundf("%s is not set at %s", key, ref)
	}
	return decodeAmount(key, value)
}

func (a *Aggregator) sumDistributed(ctx context.Context, ref ledger.BlockRef) (xe.AmountBlockchain, error) {
	total := xe.NewAmountBlockchainFromUint64(0)
	key := EnvelopeDistributedPrefix()
	for kv, err := range a.reader.ReadRange(ctx, ref, key) {
		if err != nil {
			return total, errors.Wrap(errors.ChainUnavailable, err, "could not scan %s", key)
		}
		amount, err := decodeAmount(key, kv.Value)
		if err != nil {
			return total, err
		}
		total = total.Add(&amount)
	}
	return total, nil
}

// scanAllocations visits every allocation at ref, stopping at the first error.
func (a *Aggregator) scanAllocations(ctx context.Context, ref ledger.BlockRef, visit func(AllocationInfo) error) error {
	key := AllocationsPrefix()
	for kv, err := range a.reader.ReadRange(ctx, ref, key) {
		if err != nil {
			return errors.Wrap(errors.ChainUnavailable, err, "could not scan %s", key)
		}
		var info AllocationInfo
		if err := Decode(key, kv.Value, &info); err != nil {
			return err
		}
		if err := visit(info); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) sumLocked(ctx context.Context, ref ledger.BlockRef) (xe.AmountBlockchain, error) {
	locked := xe.NewAmountBlockchainFromUint64(0)
	err := a.scanAllocations(ctx, ref, func(info AllocationInfo) error {
		vested := FromU128(info.VestedTotal)
		released := FromU128(info.Released)
		remaining := vested.SaturatingSub(&released)
		locked = locked.Add(&remaining)
		return nil
	})
	return locked, err
}

// Supply computes distributed minus locked, saturating at zero. Both scans run
// concurrently against the same block.
func (a *Aggregator) Supply(ctx context.Context) (Supply, error) {
	ref, done, err := a.pin(ctx, "circulating_supply")
	if err != nil {
		return Supply{}, err
	}
	defer done()

	var distributed, locked xe.AmountBlockchain
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		distributed, err = a.sumDistributed(groupCtx, ref)
		return err
	})
	group.Go(func() (err error) {
		locked, err = a.sumLocked(groupCtx, ref)
		return err
	})
	if err := group.Wait(); err != nil {
		return Supply{}, err
	}
	return Supply{
		Block:            ref,
		TotalDistributed: distributed,
		Locked:           locked,
		Circulating:      distributed.SaturatingSub(&locked),
	}, nil
}

func (a *Aggregator) CirculatingSupply(ctx context.Context) (xe.AmountBlockchain, error) {
	supply, err := a.Supply(ctx)
	if err != nil {
		return xe.AmountBlockchain{}, err
	}
	return supply.Circulating, nil
}

// BalanceOf reports zero balances for an account the ledger does not know.
func (a *Aggregator) BalanceOf(ctx context.Context, account xe.AccountKey) (xe.Balance, error) {
	ref, done, err := a.pin(ctx, "balance_of")
	if err != nil {
		return xe.Balance{}, err
	}
	defer done()

	key := AccountKey(account)
	value, found, err := a.read(ctx, ref, key)
	if err != nil {
		return xe.Balance{}, err
	}
	if !found {
		return xe.NewZeroBalance(), nil
	}
	var info AccountInfo
	if err := Decode(key, value, &info); err != nil {
		return xe.Balance{}, err
	}
	return xe.Balance{
		Free:     FromU128(info.Data.Free),
		Reserved: FromU128(info.Data.Reserved),
		Frozen:   FromU128(info.Data.Frozen),
	}, nil
}

// envelopeAt joins the configuration and distributed counter of one envelope.
func (a *Aggregator) envelopeAt(ctx context.Context, ref ledger.BlockRef, id EnvelopeID) (xe.Envelope, error) {
	var configValue, distributedValue []byte
	var configFound, distributedFound bool
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		configValue, configFound, err = a.read(groupCtx, ref, EnvelopeKey(id))
		return err
	})
	group.Go(func() (err error) {
		distributedValue, distributedFound, err = a.read(groupCtx, ref, EnvelopeDistributedKey(id))
		return err
	})
	if err := group.Wait(); err != nil {
		return xe.Envelope{}, err
	}
	if !configFound {
		return xe.Envelope{}, errors.EnvelopeNotFoundf("envelope %s is not configured at %s", id.Slug(), ref)
	}

	var config EnvelopeConfig
	if err := Decode(EnvelopeKey(id), configValue, &config); err != nil {
		return xe.Envelope{}, err
	}
	distributed := xe.NewAmountBlockchainFromUint64(0)
	if distributedFound {
		var err error
		distributed, err = decodeAmount(EnvelopeDistributedKey(id), distributedValue)
		if err != nil {
			return xe.Envelope{}, err
		}
	}

	envelope := xe.Envelope{
		ID:              id.Slug(),
		Name:            id.String(),
		TotalCap:        FromU128(config.TotalCap),
		UpfrontRate:     uint8(config.UpfrontRate),
		Cliff:           uint32(config.Cliff),
		VestingDuration: uint32(config.VestingDuration),
		Distributed:     distributed,
	}
	if config.UniqueBeneficiary.HasValue {
		addr, err := address.Encode(xe.AccountKey(config.UniqueBeneficiary.Value), a.prefix)
		if err != nil {
			return xe.Envelope{}, err
		}
		envelope.UniqueBeneficiary = &addr
	}
	return envelope, nil
}

func (a *Aggregator) EnvelopeConfig(ctx context.Context, id EnvelopeID) (xe.Envelope, error) {
	if !id.Valid() {
		return xe.Envelope{}, errors.EnvelopeNotFoundf("unknown envelope %d", id)
	}
	ref, done, err := a.pin(ctx, "envelope_config")
	if err != nil {
		return xe.Envelope{}, err
	}
	defer done()
	return a.envelopeAt(ctx, ref, id)
}

// Envelopes reads every configured envelope, in ledger order. Envelopes without a
// configuration at the pinned block are left out.
func (a *Aggregator) Envelopes(ctx context.Context) ([]xe.Envelope, error) {
	ref, done, err := a.pin(ctx, "envelopes")
	if err != nil {
		return nil, err
	}
	defer done()

	ids := AllEnvelopes()
	results := make([]*xe.Envelope, len(ids))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, id := range ids {
		group.Go(func() error {
			envelope, err := a.envelopeAt(groupCtx, ref, id)
			if errors.Is(err, errors.EnvelopeNotFound) {
				logrus.WithField("envelope", id.Slug()).Debug("envelope not configured")
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = &envelope
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	envelopes := make([]xe.Envelope, 0, len(ids))
	for _, envelope := range results {
		if envelope != nil {
			envelopes = append(envelopes, *envelope)
		}
	}
	return envelopes, nil
}

func (a *Aggregator) allocationsAt(ctx context.Context, ref ledger.BlockRef, account xe.AccountKey) ([]xe.Allocation, error) {
	var matched []AllocationInfo
	err := a.scanAllocations(ctx, ref, func(info AllocationInfo) error {
		if bytes.Equal(info.Beneficiary[:], account[:]) {
			matched = append(matched, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// one join per distinct envelope
	envelopes := map[EnvelopeID]*xe.Envelope{}
	for _, info := range matched {
		envelopes[EnvelopeID(info.Envelope)] = nil
	}
	results := make(chan struct {
		id       EnvelopeID
		envelope xe.Envelope
	}, len(envelopes))
	group, groupCtx := errgroup.WithContext(ctx)
	for id := range envelopes {
		group.Go(func() error {
			envelope, err := a.envelopeAt(groupCtx, ref, id)
			if err != nil {
				return err
			}
			results <- struct {
				id       EnvelopeID
				envelope xe.Envelope
			}{id, envelope}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	close(results)
	for res := range results {
		envelopes[res.id] = &res.envelope
	}

	allocations := make([]xe.Allocation, 0, len(matched))
	for _, info := range matched {
		allocations = append(allocations, xe.Allocation{
			Envelope:    *envelopes[EnvelopeID(info.Envelope)],
			Total:       FromU128(info.Total),
			Upfront:     FromU128(info.Upfront),
			VestedTotal: FromU128(info.VestedTotal),
			Released:    FromU128(info.Released),
			Start:       uint32(info.Start),
		})
	}
	return allocations, nil
}

// AllocationsOf lists the allocations whose beneficiary is account.
func (a *Aggregator) AllocationsOf(ctx context.Context, account xe.AccountKey) ([]xe.Allocation, error) {
	ref, done, err := a.pin(ctx, "allocations_of")
	if err != nil {
		return nil, err
	}
	defer done()
	return a.allocationsAt(ctx, ref, account)
}

func (a *Aggregator) epochDurationAt(ctx context.Context, ref ledger.BlockRef) (uint32, error) {
	value, err := a.reader.Constant(ctx, ref, PalletTokenAllocation, EpochDurationConstant)
	if err != nil {
		return 0, errors.Wrap(errors.ChainUnavailable, err, "could not read %s.%s", PalletTokenAllocation, EpochDurationConstant)
	}
	var epoch types.U32
	if err := Decode(ledger.NewKey(PalletTokenAllocation, EpochDurationConstant), value, &epoch); err != nil {
		return 0, err
	}
	return uint32(epoch), nil
}

func (a *Aggregator) EpochDuration(ctx context.Context) (uint32, error) {
	ref, done, err := a.pin(ctx, "epoch_duration")
	if err != nil {
		return 0, err
	}
	defer done()
	return a.epochDurationAt(ctx, ref)
}

// AccountVesting reads an account's allocations and the epoch length in one pass.
func (a *Aggregator) AccountVesting(ctx context.Context, account xe.AccountKey) (Vesting, error) {
	ref, done, err := a.pin(ctx, "account_vesting")
	if err != nil {
		return Vesting{}, err
	}
	defer done()

	var vesting Vesting
	vesting.Block = ref
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		vesting.Allocations, err = a.allocationsAt(groupCtx, ref, account)
		return err
	})
	group.Go(func() (err error) {
		vesting.EpochDuration, err = a.epochDurationAt(groupCtx, ref)
		return err
	})
	if err := group.Wait(); err != nil {
		return Vesting{}, err
	}
	return vesting, nil
}
