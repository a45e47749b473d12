package testutil

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/ledger/demo"
)

func FromHex(s string) []byte {
	bz, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		panic(err)
	}
	return bz
}

// Key parses a 32 byte hex account key.
func Key(s string) xe.AccountKey {
	bz := FromHex(s)
	if len(bz) != 32 {
		panic(fmt.Sprintf("account key %s is %d bytes", s, len(bz)))
	}
	var key xe.AccountKey
	copy(key[:], bz)
	return key
}

// KeyOf is a deterministic key filled with b.
func KeyOf(b byte) xe.AccountKey {
	return demo.KeyOf(b)
}

func HumanToBlockchain(amount string, decimals int) xe.AmountBlockchain {
	h, err := xe.NewAmountHumanReadableFromStr(amount)
	if err != nil {
		panic(err)
	}
	return h.ToBlockchain(int32(decimals))
}

// Unit is n whole tokens.
func Unit(n uint64) xe.AmountBlockchain {
	return demo.Unit(n)
}

func Amount(s string) xe.AmountBlockchain {
	return xe.NewAmountBlockchainFromStr(s)
}

func JsonPrint(a any) {
	bz, _ := json.MarshalIndent(a, "", "  ")
	fmt.Println(string(bz))
}

func Ref[T any](s T) *T {
	return &s
}
