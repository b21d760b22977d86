package chainentrystore

import (
	"math/big"
	"strings"
	"testing"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/processes/distance"
	"github.com/anchorchain/anchord/domain/consensus/utils/hashes"
	"github.com/anchorchain/anchord/infrastructure/db/database/ldb"
)

func prepareDatabaseForTest(t *testing.T) (*ldb.LevelDB, string) {
	path := t.TempDir()
	db, err := ldb.NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("NewLevelDB: %s", err)
	}
	return db, path
}

func testGenesis(t *testing.T) *externalapi.ChainEntry {
	state, err := externalapi.NewDifficultyState(big.NewInt(100), big.NewInt(100), 1000, nil, 0,
		big.NewInt(100), nil)
	if err != nil {
		t.Fatalf("NewDifficultyState: %s", err)
	}
	genesisHash, _ := externalapi.NewDomainHashFromString(strings.Repeat("aa", 32))
	genesis, err := externalapi.NewGenesisEntry(genesisHash, state)
	if err != nil {
		t.Fatalf("NewGenesisEntry: %s", err)
	}
	return genesis
}

// testEntry mines an entry on parent with references and shares for two
// sources
func testEntry(t *testing.T, parent *externalapi.ChainEntry, nonce uint64) *externalapi.ChainEntry {
	refs := make(map[externalapi.SourceID]*externalapi.SourceRecord)
	shares := make(map[externalapi.SourceID]externalapi.SourceShare)
	for i, sourceID := range []externalapi.SourceID{"btc", "eth"} {
		hash := strings.Repeat(string("0123456789"[i+int(parent.Height())%8]), 64)
		record, err := externalapi.NewSourceRecord(sourceID, 10+parent.Height(), hash, strings.Repeat("f", 64),
			strings.Repeat("e", 64), 900)
		if err != nil {
			t.Fatalf("NewSourceRecord: %s", err)
		}
		refs[sourceID] = record
		shares[sourceID] = externalapi.SourceShare{Difficulty: big.NewInt(int64(40 + i)), Timestamp: 900, Hash: hash}
	}

	blockTime := parent.Timestamp() + 5
	state, err := externalapi.NewDifficultyState(big.NewInt(181), big.NewInt(100), blockTime,
		parent.Difficulty(), parent.Timestamp(), big.NewInt(100), shares)
	if err != nil {
		t.Fatalf("NewDifficultyState: %s", err)
	}
	workSet, err := externalapi.NewWorkSet(parent.Height()+7, parent.Height()+1, parent.BlockHash(), "c0ffee",
		refs, 0, state, blockTime, externalapi.DistanceAlgorithmJaroWinkler, externalapi.GatingAggregate)
	if err != nil {
		t.Fatalf("NewWorkSet: %s", err)
	}

	fingerprint := hashes.WorkSetFingerprint(workSet)
	digest := hashes.NonceDigest(workSet.MinerAddress(), fingerprint, nonce)
	evaluation, err := distance.Evaluate(workSet, hashes.References(workSet), digest)
	if err != nil {
		t.Fatalf("Evaluate: %s", err)
	}
	candidate, err := externalapi.NewCandidate(workSet, nonce, digest, hashes.BlockHash(fingerprint, digest),
		evaluation.Distances, evaluation.Score, 3)
	if err != nil {
		t.Fatalf("NewCandidate: %s", err)
	}
	entry, err := externalapi.NewChainEntry(candidate, parent)
	if err != nil {
		t.Fatalf("NewChainEntry: %s", err)
	}
	return entry
}

func TestChainEntryStoreSanity(t *testing.T) {
	db, path := prepareDatabaseForTest(t)
	store := New(db)
	genesis := testGenesis(t)

	first := testEntry(t, genesis, 1)
	second := testEntry(t, first, 2)
	sibling := testEntry(t, genesis, 3)
	for _, entry := range []*externalapi.ChainEntry{second, first, sibling} {
		err := store.Stage(entry)
		if err != nil {
			t.Fatalf("TestChainEntryStoreSanity: Stage: %s", err)
		}
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("TestChainEntryStoreSanity: Count: %s", err)
	}
	if count != 0 {
		t.Fatalf("TestChainEntryStoreSanity: staged entries are visible before Commit")
	}
	err = store.Commit()
	if err != nil {
		t.Fatalf("TestChainEntryStoreSanity: Commit: %s", err)
	}

	err = db.Close()
	if err != nil {
		t.Fatalf("TestChainEntryStoreSanity: Close: %s", err)
	}
	db, err = ldb.NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("TestChainEntryStoreSanity: reopen: %s", err)
	}
	defer db.Close()
	store = New(db)

	candidates, err := store.Candidates()
	if err != nil {
		t.Fatalf("TestChainEntryStoreSanity: Candidates: %s", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("TestChainEntryStoreSanity: expected 3 candidates, got %d", len(candidates))
	}
	if candidates[2].WorkSet().TargetHeight() != 2 {
		t.Fatalf("TestChainEntryStoreSanity: candidates are not in height order")
	}

	// Entries rebuilt from the decoded candidates must match the originals
	restoredFirst := rebuild(t, candidates, first.BlockHash(), genesis)
	if !restoredFirst.Equal(first) {
		t.Fatalf("TestChainEntryStoreSanity: restored %s differs from %s", restoredFirst, first)
	}
	restoredSecond := rebuild(t, candidates, second.BlockHash(), restoredFirst)
	if !restoredSecond.Equal(second) {
		t.Fatalf("TestChainEntryStoreSanity: restored %s differs from %s", restoredSecond, second)
	}
	if restoredSecond.Candidate().WorkerID() != 3 || restoredSecond.Candidate().Digest() != second.Candidate().Digest() {
		t.Fatalf("TestChainEntryStoreSanity: candidate fields were not restored")
	}
	restoredShares := restoredSecond.DifficultyState().SourceDifficulties()
	if restoredShares["eth"].Int64() != 41 {
		t.Fatalf("TestChainEntryStoreSanity: restored eth share is %s", restoredShares["eth"])
	}
}

func rebuild(t *testing.T, candidates []*externalapi.Candidate, blockHash *externalapi.DomainHash,
	parent *externalapi.ChainEntry) *externalapi.ChainEntry {

	for _, candidate := range candidates {
		if candidate.BlockHash().Equal(blockHash) {
			entry, err := externalapi.NewChainEntry(candidate, parent)
			if err != nil {
				t.Fatalf("NewChainEntry: %s", err)
			}
			return entry
		}
	}
	t.Fatalf("candidate %s was not restored", blockHash)
	return nil
}

func TestChainEntryStoreDeleteAndDiscard(t *testing.T) {
	db, _ := prepareDatabaseForTest(t)
	defer db.Close()
	store := New(db)
	genesis := testGenesis(t)

	kept := testEntry(t, genesis, 1)
	deleted := testEntry(t, genesis, 2)
	for _, entry := range []*externalapi.ChainEntry{kept, deleted} {
		err := store.Stage(entry)
		if err != nil {
			t.Fatalf("TestChainEntryStoreDeleteAndDiscard: Stage: %s", err)
		}
	}
	err := store.Commit()
	if err != nil {
		t.Fatalf("TestChainEntryStoreDeleteAndDiscard: Commit: %s", err)
	}

	store.StageDelete(deleted)
	err = store.Commit()
	if err != nil {
		t.Fatalf("TestChainEntryStoreDeleteAndDiscard: Commit: %s", err)
	}

	err = store.Stage(testEntry(t, kept, 3))
	if err != nil {
		t.Fatalf("TestChainEntryStoreDeleteAndDiscard: Stage: %s", err)
	}
	store.Discard()
	err = store.Commit()
	if err != nil {
		t.Fatalf("TestChainEntryStoreDeleteAndDiscard: Commit: %s", err)
	}

	candidates, err := store.Candidates()
	if err != nil {
		t.Fatalf("TestChainEntryStoreDeleteAndDiscard: Candidates: %s", err)
	}
	if len(candidates) != 1 || !candidates[0].BlockHash().Equal(kept.BlockHash()) {
		t.Fatalf("TestChainEntryStoreDeleteAndDiscard: expected only the kept entry, got %d candidates",
			len(candidates))
	}
}

func TestChainEntryStoreRejectsGenesis(t *testing.T) {
	db, _ := prepareDatabaseForTest(t)
	defer db.Close()

	err := New(db).Stage(testGenesis(t))
	if err == nil {
		t.Fatalf("TestChainEntryStoreRejectsGenesis: staging genesis unexpectedly succeeded")
	}
}

func TestChainEntryStoreSkipsCorruptRecords(t *testing.T) {
	db, _ := prepareDatabaseForTest(t)
	defer db.Close()
	store := New(db)
	entry := testEntry(t, testGenesis(t), 1)

	err := store.Stage(entry)
	if err != nil {
		t.Fatalf("TestChainEntryStoreSkipsCorruptRecords: Stage: %s", err)
	}
	err = store.Commit()
	if err != nil {
		t.Fatalf("TestChainEntryStoreSkipsCorruptRecords: Commit: %s", err)
	}
	err = db.Put(bucket.Key([]byte("garbage")), []byte{serializationVersion, 1, 2, 3})
	if err != nil {
		t.Fatalf("TestChainEntryStoreSkipsCorruptRecords: Put: %s", err)
	}

	candidates, err := store.Candidates()
	if err != nil {
		t.Fatalf("TestChainEntryStoreSkipsCorruptRecords: Candidates: %s", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("TestChainEntryStoreSkipsCorruptRecords: expected 1 candidate, got %d", len(candidates))
	}
	count, err := store.Count()
	if err != nil {
		t.Fatalf("TestChainEntryStoreSkipsCorruptRecords: Count: %s", err)
	}
	if count != 2 {
		t.Fatalf("TestChainEntryStoreSkipsCorruptRecords: expected 2 records, got %d", count)
	}
}
