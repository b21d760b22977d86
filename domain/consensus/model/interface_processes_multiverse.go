package model

import "github.com/anchorchain/anchord/domain/consensus/model/externalapi"

// Multiverse maintains the forest of chain entries and selects its
// canonical head
type Multiverse interface {
	Accept(candidate *externalapi.Candidate) (*externalapi.AcceptResult, error)
	Restore(candidates []*externalapi.Candidate) (restored int)

	Genesis() *externalapi.ChainEntry
	Head() *externalapi.ChainEntry
	Entry(blockHash *externalapi.DomainHash) (*externalapi.ChainEntry, bool)
	CanonicalChain() []*externalapi.ChainEntry
	Snapshot() map[uint64][]*externalapi.ChainEntry
	Len() int

	Purge() []*externalapi.ChainEntry
	PurgeForks() []*externalapi.ChainEntry
}
