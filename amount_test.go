package explorer_test

import (
	"encoding/json"

	. "github.com/allfeat/explorer"
)

func (s *ExplorerTestSuite) TestNewAmountBlockchainFromUint64() {
	require := s.Require()
	amount := NewAmountBlockchainFromUint64(123)
	require.Equal(uint64(123), amount.Uint64())
	require.Equal("123", amount.String())
}

func (s *ExplorerTestSuite) TestNewBlockchainAmountStr() {
	require := s.Require()
	amount := NewAmountBlockchainFromStr("340282366920938463463374607431768211455")
	require.Equal("340282366920938463463374607431768211455", amount.String())

	amount = NewAmountBlockchainFromStr("0x10")
	require.Equal("16", amount.String())

	amount = NewAmountBlockchainFromStr("invalid")
	require.Equal("0", amount.String())
}

func (s *ExplorerTestSuite) TestSaturatingSub() {
	require := s.Require()
	a := NewAmountBlockchainFromUint64(10)
	b := NewAmountBlockchainFromUint64(25)

	require.Equal("0", a.SaturatingSub(&b).String())
	require.Equal("15", b.SaturatingSub(&a).String())
	require.Equal("0", a.SaturatingSub(&a).String())
	// operands are left untouched
	require.Equal("10", a.String())
	require.Equal("25", b.String())
}

func (s *ExplorerTestSuite) TestDivByZero() {
	require := s.Require()
	a := NewAmountBlockchainFromUint64(10)
	zero := NewAmountBlockchainFromUint64(0)
	require.Equal("0", a.Div(&zero).String())
}

func (s *ExplorerTestSuite) TestMin() {
	require := s.Require()
	a := NewAmountBlockchainFromUint64(10)
	b := NewAmountBlockchainFromUint64(25)
	require.Equal("10", a.Min(&b).String())
	require.Equal("10", b.Min(&a).String())
}

func (s *ExplorerTestSuite) TestAmountToHuman() {
	require := s.Require()
	amount := NewAmountBlockchainFromStr("1500000000000")
	human := amount.ToHuman(DefaultDecimals)
	require.Equal("1.5", human.String())
	require.Equal("1.5 AFT", human.Format(2, "AFT"))
	require.Equal("1500000000000", human.ToBlockchain(DefaultDecimals).String())
}

func (s *ExplorerTestSuite) TestAmountJson() {
	require := s.Require()
	amount := NewAmountBlockchainFromStr("340282366920938463463374607431768211455")
	bz, err := json.Marshal(amount)
	require.NoError(err)
	require.Equal(`"340282366920938463463374607431768211455"`, string(bz))

	var decoded AmountBlockchain
	require.NoError(json.Unmarshal(bz, &decoded))
	require.Equal(amount.String(), decoded.String())

	require.Error(json.Unmarshal([]byte(`"abc"`), &decoded))
}
