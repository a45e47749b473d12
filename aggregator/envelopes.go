package aggregator

import (
	"fmt"
	"strings"
)

// EnvelopeID is the index of the envelope variant in the ledger's enum.
type EnvelopeID uint8

const (
	Airdrop EnvelopeID = iota
	CommunityRewards
	PrivateFunding1
	PrivateFunding2
	SeedFunding
	SerieAFunding
	ICO1
	ICO2
	Founders
	Reserve
	Exchanges
	ResearchDevelopment
	KoLFunding
)

type envelopeName struct {
	slug string
	name string
}

var envelopeNames = []envelopeName{
	Airdrop:             {"airdrop", "Airdrop"},
	CommunityRewards:    {"community-rewards", "Community Rewards"},
	PrivateFunding1:     {"private-funding-1", "Private Funding #1"},
	PrivateFunding2:     {"private-funding-2", "Private Funding #2"},
	SeedFunding:         {"seed-funding", "Seed Funding"},
	SerieAFunding:       {"serie-a-funding", "Serie A Funding"},
	ICO1:                {"ico-1", "ICO #1"},
	ICO2:                {"ico-2", "ICO #2"},
	Founders:            {"founders", "Founders"},
	Reserve:             {"reserve", "Reserve"},
	Exchanges:           {"exchanges", "Exchanges (CEX/DEX)"},
	ResearchDevelopment: {"research-development", "Research & Development"},
	KoLFunding:          {"kol-funding", "KoL Funding"},
}

// AllEnvelopes lists every envelope in ledger order.
func AllEnvelopes() []EnvelopeID {
	ids := make([]EnvelopeID, len(envelopeNames))
	for i := range envelopeNames {
		ids[i] = EnvelopeID(i)
	}
	return ids
}

func (id EnvelopeID) Valid() bool {
	return int(id) < len(envelopeNames)
}

// Slug is the stable identifier used in URLs and JSON.
func (id EnvelopeID) Slug() string {
	if !id.Valid() {
		return fmt.Sprintf("envelope-%d", id)
	}
	return envelopeNames[id].slug
}

func (id EnvelopeID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("Envelope #%d", id)
	}
	return envelopeNames[id].name
}

// ParseEnvelopeID accepts a slug, a display name or the numeric index.
func ParseEnvelopeID(s string) (EnvelopeID, bool) {
	for i, n := range envelopeNames {
		if strings.EqualFold(s, n.slug) || strings.EqualFold(s, n.name) || s == fmt.Sprint(i) {
			return EnvelopeID(i), true
		}
	}
	return 0, false
}
