package model

import "github.com/anchorchain/anchord/domain/consensus/model/externalapi"

// ChainEntryStore persists accepted chain entries by the candidates that
// produced them. Entries are derived again on restore.
type ChainEntryStore interface {
	Stage(entry *externalapi.ChainEntry) error
	StageDelete(entry *externalapi.ChainEntry)
	Commit() error
	Discard()
	Candidates() ([]*externalapi.Candidate, error)
	Count() (int, error)
}
