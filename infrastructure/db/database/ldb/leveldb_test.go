package ldb

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/anchorchain/anchord/infrastructure/db/database"
)

func prepareDatabaseForTest(t *testing.T, testName string) (ldb *LevelDB, teardownFunc func()) {
	// Create a temp db to run tests against
	path := t.TempDir()
	ldb, err := NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("%s: NewLevelDB unexpectedly "+
			"failed: %s", testName, err)
	}
	teardownFunc = func() {
		err = ldb.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly "+
				"failed: %s", testName, err)
		}
	}
	return ldb, teardownFunc
}

func heightKey(bucket *database.Bucket, height uint64, tag byte) *database.Key {
	suffix := make([]byte, 9)
	binary.BigEndian.PutUint64(suffix, height)
	suffix[8] = tag
	return bucket.Key(suffix)
}

func TestLevelDBSanity(t *testing.T) {
	ldb, teardownFunc := prepareDatabaseForTest(t, "TestLevelDBSanity")
	defer teardownFunc()

	key := database.MakeBucket([]byte("entries")).Key([]byte("head"))
	putData := []byte("canonical")
	err := ldb.Put(key, putData)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Put unexpectedly failed: %s", err)
	}

	exists, err := ldb.Has(key)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Has unexpectedly failed: %s", err)
	}
	if !exists {
		t.Fatalf("TestLevelDBSanity: Has unexpectedly returned false")
	}

	getData, err := ldb.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Get unexpectedly failed: %s", err)
	}
	if !bytes.Equal(getData, putData) {
		t.Fatalf("TestLevelDBSanity: Get returned wrong data. "+
			"Want: %s, got: %s", putData, getData)
	}

	err = ldb.Delete(key)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Delete unexpectedly failed: %s", err)
	}
	_, err = ldb.Get(key)
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestLevelDBSanity: Get after Delete returned wrong error: %v", err)
	}
}

func TestLevelDBTransactionSanity(t *testing.T) {
	ldb, teardownFunc := prepareDatabaseForTest(t, "TestLevelDBTransactionSanity")
	defer teardownFunc()

	bucket := database.MakeBucket([]byte("entries"))
	committedKey := heightKey(bucket, 1, 'a')
	rolledBackKey := heightKey(bucket, 2, 'b')

	// Puts inside a transaction are not visible before commit
	tx, err := ldb.Begin()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Begin unexpectedly failed: %s", err)
	}
	err = tx.Put(committedKey, []byte("one"))
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Put unexpectedly failed: %s", err)
	}
	exists, err := ldb.Has(committedKey)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Has unexpectedly failed: %s", err)
	}
	if exists {
		t.Fatalf("TestLevelDBTransactionSanity: uncommitted key is unexpectedly visible")
	}
	err = tx.Commit()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Commit unexpectedly failed: %s", err)
	}
	exists, err = ldb.Has(committedKey)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Has unexpectedly failed: %s", err)
	}
	if !exists {
		t.Fatalf("TestLevelDBTransactionSanity: committed key is missing")
	}

	tx, err = ldb.Begin()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Begin unexpectedly failed: %s", err)
	}
	err = tx.Put(rolledBackKey, []byte("two"))
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Put unexpectedly failed: %s", err)
	}
	err = tx.Rollback()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Rollback unexpectedly failed: %s", err)
	}
	err = tx.RollbackUnlessClosed()
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: RollbackUnlessClosed unexpectedly failed: %s", err)
	}
	if err := tx.Commit(); err == nil {
		t.Fatalf("TestLevelDBTransactionSanity: Commit of a closed transaction unexpectedly succeeded")
	}
	exists, err = ldb.Has(rolledBackKey)
	if err != nil {
		t.Fatalf("TestLevelDBTransactionSanity: Has unexpectedly failed: %s", err)
	}
	if exists {
		t.Fatalf("TestLevelDBTransactionSanity: rolled back key is unexpectedly visible")
	}
}

func TestLevelDBReopen(t *testing.T) {
	path := t.TempDir()
	key := database.MakeBucket([]byte("entries")).Key([]byte("genesis"))

	ldb, err := NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("TestLevelDBReopen: NewLevelDB unexpectedly failed: %s", err)
	}
	err = ldb.Put(key, []byte{1})
	if err != nil {
		t.Fatalf("TestLevelDBReopen: Put unexpectedly failed: %s", err)
	}
	err = ldb.Close()
	if err != nil {
		t.Fatalf("TestLevelDBReopen: Close unexpectedly failed: %s", err)
	}

	ldb, err = NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("TestLevelDBReopen: NewLevelDB unexpectedly failed: %s", err)
	}
	defer ldb.Close()
	data, err := ldb.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBReopen: Get unexpectedly failed: %s", err)
	}
	if !bytes.Equal(data, []byte{1}) {
		t.Fatalf("TestLevelDBReopen: Get returned wrong data: %x", data)
	}
}
