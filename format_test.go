package explorer_test

import (
	"math/big"

	. "github.com/allfeat/explorer"
)

func (s *ExplorerTestSuite) TestFormatCompact() {
	require := s.Require()
	for _, tc := range []struct {
		amount   AmountBlockchain
		symbol   string
		expected string
	}{
		{unit(0), "", "0"},
		{unit(999), "", "999"},
		{unit(1_500_000), "", "1.5M"},
		{unit(1_500_000), DefaultSymbol, "1.5M $AFT"},
		{unit(1_000_000_000), DefaultSymbol, "1B $AFT"},
		{NewAmountBlockchainFromStr("1234567800000000"), "", "1.23K"},
		{NewAmountBlockchainFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)), "", "1000P"},
	} {
		require.Equal(tc.expected, FormatCompact(tc.amount, DefaultDecimals, tc.symbol))
	}
}

func (s *ExplorerTestSuite) TestFormatBlocksDuration() {
	require := s.Require()
	for _, tc := range []struct {
		blocks   uint32
		expected string
	}{
		{0, "None"},
		{1, "Less than 1 day"},
		{7199, "Less than 1 day"},
		{7200, "1 days"},
		{10800, "1.5 days"},
		{100800, "2 weeks"},
		{324000, "1.5 months"},
		{2592000, "1 years"},
	} {
		require.Equal(tc.expected, FormatBlocksDuration(tc.blocks), "blocks %d", tc.blocks)
	}
}

func (s *ExplorerTestSuite) TestFormatBlocks() {
	require := s.Require()
	require.Equal("0", FormatBlocks(0))
	require.Equal("999", FormatBlocks(999))
	require.Equal("1 000", FormatBlocks(1000))
	require.Equal("100 000", FormatBlocks(100_000))
	require.Equal("1 234 567", FormatBlocks(1_234_567))
}
