package chainentrystore

import (
	"encoding/binary"

	"github.com/anchorchain/anchord/domain/consensus/model"
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/infrastructure/db/database"
	"github.com/pkg/errors"
)

var bucket = database.MakeBucket([]byte("chain-entries"))

// chainEntryStore represents a store of accepted chain entries. Staged
// changes reach the database only on Commit.
type chainEntryStore struct {
	db       database.Database
	toAdd    map[externalapi.DomainHash]*externalapi.ChainEntry
	toDelete map[externalapi.DomainHash]*externalapi.ChainEntry
}

// New instantiates a new ChainEntryStore
func New(db database.Database) model.ChainEntryStore {
	store := &chainEntryStore{db: db}
	store.Discard()
	return store
}

// Stage stages the given entry for insertion. Genesis is never persisted.
func (ces *chainEntryStore) Stage(entry *externalapi.ChainEntry) error {
	if entry.IsGenesis() || entry.Candidate() == nil {
		return errors.Errorf("cannot store %s: it carries no candidate", entry)
	}
	delete(ces.toDelete, *entry.BlockHash())
	ces.toAdd[*entry.BlockHash()] = entry
	return nil
}

// StageDelete stages the given entry for removal
func (ces *chainEntryStore) StageDelete(entry *externalapi.ChainEntry) {
	delete(ces.toAdd, *entry.BlockHash())
	ces.toDelete[*entry.BlockHash()] = entry
}

// Commit writes every staged change in a single database transaction
func (ces *chainEntryStore) Commit() error {
	if len(ces.toAdd) == 0 && len(ces.toDelete) == 0 {
		return nil
	}

	dbTx, err := ces.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	for _, entry := range ces.toAdd {
		entryBytes, err := serializeCandidate(entry.Candidate())
		if err != nil {
			return err
		}
		err = dbTx.Put(entryKey(entry), entryBytes)
		if err != nil {
			return err
		}
	}
	for _, entry := range ces.toDelete {
		err := dbTx.Delete(entryKey(entry))
		if err != nil {
			return err
		}
	}

	err = dbTx.Commit()
	if err != nil {
		return err
	}
	log.Debugf("Committed %d added and %d deleted chain entries", len(ces.toAdd), len(ces.toDelete))
	ces.Discard()
	return nil
}

// Discard drops every staged change
func (ces *chainEntryStore) Discard() {
	ces.toAdd = make(map[externalapi.DomainHash]*externalapi.ChainEntry)
	ces.toDelete = make(map[externalapi.DomainHash]*externalapi.ChainEntry)
}

// Candidates returns the candidates of every committed entry in height order.
// Records that fail to decode are logged and skipped.
func (ces *chainEntryStore) Candidates() ([]*externalapi.Candidate, error) {
	cursor, err := ces.db.Cursor(bucket)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var candidates []*externalapi.Candidate
	for ok := cursor.First(); ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return nil, err
		}
		value, err := cursor.Value()
		if err != nil {
			return nil, err
		}
		candidate, err := deserializeCandidate(value)
		if err != nil {
			log.Warnf("Skipping undecodable chain entry %s: %s", key, err)
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// Count returns the number of committed entries
func (ces *chainEntryStore) Count() (int, error) {
	cursor, err := ces.db.Cursor(bucket)
	if err != nil {
		return 0, err
	}
	defer cursor.Close()

	count := 0
	for ok := cursor.First(); ok; ok = cursor.Next() {
		count++
	}
	return count, nil
}

// entryKey orders entries by height first. Heights are big-endian so
// that byte order matches numeric order.
func entryKey(entry *externalapi.ChainEntry) *database.Key {
	suffix := make([]byte, 8, 8+externalapi.DomainHashSize)
	binary.BigEndian.PutUint64(suffix, entry.Height())
	suffix = append(suffix, entry.BlockHash().ByteSlice()...)
	return bucket.Key(suffix)
}
