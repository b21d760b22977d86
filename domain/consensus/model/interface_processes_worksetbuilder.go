package model

import "github.com/anchorchain/anchord/domain/consensus/model/externalapi"

// WorkSetBuilder assembles work sets out of the latest record of every
// source and the local canonical head. All times are unix seconds.
type WorkSetBuilder interface {
	AddRecord(record *externalapi.SourceRecord, now int64) (changed bool, err error)
	SetHead(head *externalapi.ChainEntry, now int64) error
	Refresh(now int64) error
	Current() *externalapi.WorkSet
	IsHolding() bool
	Latest(sourceID externalapi.SourceID) (*externalapi.SourceRecord, bool)
	Pending(sourceID externalapi.SourceID) []*externalapi.SourceRecord
}
