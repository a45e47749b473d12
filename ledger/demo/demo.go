// Package demo builds SCALE encoded economies on top of the memory ledger. It
// backs the --memory mode of the CLI and the fixtures of the tests.
package demo

import (
	"fmt"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/address"
	"github.com/allfeat/explorer/aggregator"
	"github.com/allfeat/explorer/ledger/memory"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

// EnvelopeFixture is the stored configuration of an envelope.
type EnvelopeFixture struct {
	TotalCap          xe.AmountBlockchain
	UpfrontRate       uint8
	Cliff             uint32
	VestingDuration   uint32
	UniqueBeneficiary *xe.AccountKey
}

type AllocationFixture struct {
	Envelope    aggregator.EnvelopeID
	Beneficiary xe.AccountKey
	Total       xe.AmountBlockchain
	Upfront     xe.AmountBlockchain
	VestedTotal xe.AmountBlockchain
	Released    xe.AmountBlockchain
	Start       uint32
}

// Chain writes SCALE encoded fixtures into a memory ledger. Writes become
// visible to readers once Finalize is called.
type Chain struct {
	*memory.Ledger
	nextAllocation uint32
}

func NewChain() *Chain {
	return &Chain{Ledger: memory.New()}
}

func (c *Chain) SetTotalIssuance(amount xe.AmountBlockchain) *Chain {
	c.Set(aggregator.TotalIssuanceKey(), aggregator.Encode(aggregator.NewU128(amount)))
	return c
}

func (c *Chain) SetAccount(key xe.AccountKey, balance xe.Balance) *Chain {
	info := aggregator.AccountInfo{
		Nonce:     1,
		Providers: 1,
		Data: aggregator.AccountData{
			Free:     aggregator.NewU128(balance.Free),
			Reserved: aggregator.NewU128(balance.Reserved),
			Frozen:   aggregator.NewU128(balance.Frozen),
			Flags:    aggregator.NewU128(xe.NewAmountBlockchainFromUint64(0)),
		},
	}
	c.Set(aggregator.AccountKey(key), aggregator.Encode(info))
	return c
}

func (c *Chain) SetEnvelope(id aggregator.EnvelopeID, envelope EnvelopeFixture) *Chain {
	config := aggregator.EnvelopeConfig{
		TotalCap:        aggregator.NewU128(envelope.TotalCap),
		UpfrontRate:     types.NewU8(envelope.UpfrontRate),
		Cliff:           types.NewU32(envelope.Cliff),
		VestingDuration: types.NewU32(envelope.VestingDuration),
	}
	if envelope.UniqueBeneficiary != nil {
		config.UniqueBeneficiary = aggregator.NewOptionAccountID(*envelope.UniqueBeneficiary)
	}
	c.Set(aggregator.EnvelopeKey(id), aggregator.Encode(config))
	return c
}

func (c *Chain) SetDistributed(id aggregator.EnvelopeID, amount xe.AmountBlockchain) *Chain {
	c.Set(aggregator.EnvelopeDistributedKey(id), aggregator.Encode(aggregator.NewU128(amount)))
	return c
}

// AddAllocation stores the allocation under the next free id and returns it.
func (c *Chain) AddAllocation(allocation AllocationFixture) uint32 {
	id := c.nextAllocation
	c.nextAllocation++
	c.SetAllocation(id, allocation)
	return id
}

func (c *Chain) SetAllocation(id uint32, allocation AllocationFixture) {
	info := aggregator.AllocationInfo{
		Envelope:    types.NewU8(uint8(allocation.Envelope)),
		Beneficiary: types.AccountID(allocation.Beneficiary),
		Total:       aggregator.NewU128(allocation.Total),
		Upfront:     aggregator.NewU128(allocation.Upfront),
		VestedTotal: aggregator.NewU128(allocation.VestedTotal),
		Released:    aggregator.NewU128(allocation.Released),
		Start:       types.NewU32(allocation.Start),
	}
	c.Set(aggregator.AllocationKey(id), aggregator.Encode(info))
}

func (c *Chain) SetEpochDuration(blocks uint32) *Chain {
	c.SetConstant(aggregator.PalletTokenAllocation, aggregator.EpochDurationConstant, aggregator.Encode(types.NewU32(blocks)))
	return c
}

// Accounts used by Economy.
var (
	Founder     = KeyOf(0x01)
	Investor    = KeyOf(0x02)
	Treasury    = mustDecode(xe.TreasuryAccount)
	Community   = KeyOf(0x04)
	NoAllocated = KeyOf(0x05)
)

func mustDecode(addr xe.Address) xe.AccountKey {
	key, _, err := address.Decode(string(addr))
	if err != nil {
		panic(err)
	}
	return key
}

// KeyOf is a deterministic key filled with b.
func KeyOf(b byte) xe.AccountKey {
	var key xe.AccountKey
	for i := range key {
		key[i] = b
	}
	return key
}

// Unit is n whole tokens.
func Unit(n uint64) xe.AmountBlockchain {
	h, err := xe.NewAmountHumanReadableFromStr(fmt.Sprint(n))
	if err != nil {
		panic(err)
	}
	return h.ToBlockchain(xe.DefaultDecimals)
}

// Economy is a small but complete economy: issuance, balances, a few envelopes
// and vesting allocations at various stages.
func Economy() *Chain {
	c := NewChain()
	c.SetTotalIssuance(Unit(1_000_000_000))
	c.SetEpochDuration(14_400)

	c.SetAccount(Founder, xe.Balance{Free: Unit(12_500), Reserved: Unit(0), Frozen: Unit(10_000)})
	c.SetAccount(Investor, xe.Balance{Free: Unit(250_000), Reserved: Unit(1_000), Frozen: Unit(0)})
	c.SetAccount(Treasury, xe.Balance{Free: Unit(50_000_000), Reserved: Unit(0), Frozen: Unit(0)})

	c.SetEnvelope(aggregator.Airdrop, EnvelopeFixture{TotalCap: Unit(20_000_000), UpfrontRate: 100})
	c.SetDistributed(aggregator.Airdrop, Unit(4_000_000))
	c.SetEnvelope(aggregator.CommunityRewards, EnvelopeFixture{TotalCap: Unit(150_000_000), UpfrontRate: 0, VestingDuration: 5_256_000})
	c.SetDistributed(aggregator.CommunityRewards, Unit(10_000_000))
	c.SetEnvelope(aggregator.SeedFunding, EnvelopeFixture{TotalCap: Unit(40_000_000), UpfrontRate: 10, Cliff: 1_296_000, VestingDuration: 2_592_000})
	c.SetDistributed(aggregator.SeedFunding, Unit(40_000_000))
	c.SetEnvelope(aggregator.Founders, EnvelopeFixture{TotalCap: Unit(100_000_000), Cliff: 2_592_000, VestingDuration: 7_776_000})
	c.SetDistributed(aggregator.Founders, Unit(100_000_000))
	c.SetEnvelope(aggregator.Reserve, EnvelopeFixture{TotalCap: Unit(200_000_000), UniqueBeneficiary: &Treasury})
	c.SetDistributed(aggregator.Reserve, Unit(50_000_000))

	c.AddAllocation(AllocationFixture{
		Envelope:    aggregator.Founders,
		Beneficiary: Founder,
		Total:       Unit(100_000_000),
		VestedTotal: Unit(100_000_000),
		Released:    Unit(12_500_000),
	})
	c.AddAllocation(AllocationFixture{
		Envelope:    aggregator.SeedFunding,
		Beneficiary: Investor,
		Total:       Unit(40_000_000),
		Upfront:     Unit(4_000_000),
		VestedTotal: Unit(36_000_000),
		Released:    Unit(9_000_000),
	})
	c.AddAllocation(AllocationFixture{
		Envelope:    aggregator.CommunityRewards,
		Beneficiary: Community,
		Total:       Unit(10_000_000),
		VestedTotal: Unit(10_000_000),
		Released:    Unit(0),
		Start:       100,
	})
	c.Finalize()
	return c
}
