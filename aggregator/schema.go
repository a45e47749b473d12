package aggregator

import (
	"fmt"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/ledger"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

const (
	PalletBalances        = "Balances"
	PalletSystem          = "System"
	PalletTokenAllocation = "TokenAllocation"
)

func TotalIssuanceKey() ledger.Key {
	return ledger.NewKey(PalletBalances, "TotalIssuance")
}

func AccountKey(account xe.AccountKey) ledger.Key {
	return ledger.NewKey(PalletSystem, "Account", account.Bytes())
}

func EnvelopeKey(id EnvelopeID) ledger.Key {
	return ledger.NewKey(PalletTokenAllocation, "Envelopes", []byte{byte(id)})
}

func EnvelopeDistributedKey(id EnvelopeID) ledger.Key {
	return ledger.NewKey(PalletTokenAllocation, "EnvelopeDistributed", []byte{byte(id)})
}

// Range prefix of every distributed counter.
func EnvelopeDistributedPrefix() ledger.Key {
	return ledger.NewKey(PalletTokenAllocation, "EnvelopeDistributed")
}

func AllocationKey(id uint32) ledger.Key {
	bz, _ := codec.Encode(types.NewU32(id))
	return ledger.NewKey(PalletTokenAllocation, "Allocations", bz)
}

// Range prefix of every allocation.
func AllocationsPrefix() ledger.Key {
	return ledger.NewKey(PalletTokenAllocation, "Allocations")
}

const EpochDurationConstant = "EpochDuration"

// AccountData mirrors pallet_balances::AccountData.
type AccountData struct {
	Free     types.U128
	Reserved types.U128
	Frozen   types.U128
	Flags    types.U128
}

// AccountInfo mirrors frame_system::AccountInfo.
type AccountInfo struct {
	Nonce       types.U32
	Consumers   types.U32
	Providers   types.U32
	Sufficients types.U32
	Data        AccountData
}

// OptionAccountID is Option<AccountId32>
type OptionAccountID struct {
	HasValue bool
	Value    types.AccountID
}

func NewOptionAccountID(key xe.AccountKey) OptionAccountID {
	return OptionAccountID{HasValue: true, Value: types.AccountID(key)}
}

func (o OptionAccountID) Encode(encoder scale.Encoder) error {
	if !o.HasValue {
		return encoder.PushByte(0)
	}
	if err := encoder.PushByte(1); err != nil {
		return err
	}
	return encoder.Encode(o.Value)
}

func (o *OptionAccountID) Decode(decoder scale.Decoder) error {
	tag, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		o.HasValue = false
		return nil
	case 1:
		o.HasValue = true
		return decoder.Decode(&o.Value)
	default:
		return fmt.Errorf("invalid option tag %d", tag)
	}
}

// EnvelopeConfig is the stored configuration of one envelope.
type EnvelopeConfig struct {
	TotalCap types.U128
	// Percent, 0..100
	UpfrontRate       types.U8
	Cliff             types.U32
	VestingDuration   types.U32
	UniqueBeneficiary OptionAccountID
}

// AllocationInfo is one entry of the Allocations map.
type AllocationInfo struct {
	Envelope    types.U8
	Beneficiary types.AccountID
	Total       types.U128
	Upfront     types.U128
	VestedTotal types.U128
	Released    types.U128
	Start       types.U32
}

func NewU128(amount xe.AmountBlockchain) types.U128 {
	return types.NewU128(*amount.Int())
}

func FromU128(v types.U128) xe.AmountBlockchain {
	if v.Int == nil {
		return xe.NewAmountBlockchainFromUint64(0)
	}
	return xe.NewAmountBlockchainFromBigInt(v.Int)
}

// Decode is codec.Decode with the entry named in the error.
func Decode(key ledger.Key, value []byte, target interface{}) error {
	if err := codec.Decode(value, target); err != nil {
		return fmt.Errorf("could not decode %s: %w", key, err)
	}
	return nil
}

func Encode(value interface{}) []byte {
	bz, err := codec.Encode(value)
	if err != nil {
		panic(fmt.Sprintf("could not encode %T: %v", value, err))
	}
	return bz
}
