package demo_test

import (
	"context"
	"testing"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/aggregator"
	"github.com/allfeat/explorer/ledger/demo"
	"github.com/stretchr/testify/require"
)

func TestTreasuryIsPalletAccount(t *testing.T) {
	require := require.New(t)
	var expected xe.AccountKey
	copy(expected[:], "modlpy/trsry")
	require.Equal(expected, demo.Treasury)
}

func TestEconomy(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	agg := aggregator.New(demo.Economy(), xe.DefaultNetworkTag)

	issuance, err := agg.TotalIssuance(ctx)
	require.NoError(err)
	require.Equal(demo.Unit(1_000_000_000).String(), issuance.String())

	balance, err := agg.BalanceOf(ctx, demo.Treasury)
	require.NoError(err)
	require.Equal(demo.Unit(50_000_000).String(), balance.Free.String())

	epoch, err := agg.EpochDuration(ctx)
	require.NoError(err)
	require.EqualValues(14_400, epoch)
}
