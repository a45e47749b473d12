package testutil

import "github.com/allfeat/explorer/ledger/demo"

type Chain = demo.Chain
type EnvelopeFixture = demo.EnvelopeFixture
type AllocationFixture = demo.AllocationFixture

func NewChain() *Chain {
	return demo.NewChain()
}

// DemoChain is demo.Economy, finalized at block 1.
func DemoChain() *Chain {
	return demo.Economy()
}

var (
	DemoFounder     = demo.Founder
	DemoInvestor    = demo.Investor
	DemoTreasury    = demo.Treasury
	DemoCommunity   = demo.Community
	DemoNoAllocated = demo.NoAllocated
)
