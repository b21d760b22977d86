package hashes

import (
	"math/big"
	"strings"
	"testing"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
)

func testWorkSet(t *testing.T, id uint64, btcHash string) *externalapi.WorkSet {
	prevHash := strings.Repeat("11", 32)
	btc, err := externalapi.NewSourceRecord("btc", 100, btcHash, prevHash, "", 1000)
	if err != nil {
		t.Fatalf("NewSourceRecord: %s", err)
	}
	eth, err := externalapi.NewSourceRecord("eth", 200, strings.Repeat("22", 32), prevHash, "", 1000)
	if err != nil {
		t.Fatalf("NewSourceRecord: %s", err)
	}
	state, err := externalapi.NewDifficultyState(big.NewInt(10), big.NewInt(0), 1000, nil, 0, big.NewInt(10), nil)
	if err != nil {
		t.Fatalf("NewDifficultyState: %s", err)
	}
	previous, _ := externalapi.NewDomainHashFromString(prevHash)
	workSet, err := externalapi.NewWorkSet(id, 1, previous, "abcd",
		map[externalapi.SourceID]*externalapi.SourceRecord{"btc": btc, "eth": eth},
		0, state, 1000, externalapi.DistanceAlgorithmCosine, externalapi.GatingPerSource)
	if err != nil {
		t.Fatalf("NewWorkSet: %s", err)
	}
	return workSet
}

func TestWorkSetFingerprint(t *testing.T) {
	first := testWorkSet(t, 1, strings.Repeat("33", 32))
	sameContent := testWorkSet(t, 2, strings.Repeat("33", 32))
	otherRecord := testWorkSet(t, 3, strings.Repeat("44", 32))

	if !WorkSetFingerprint(first).Equal(WorkSetFingerprint(sameContent)) {
		t.Fatalf("TestWorkSetFingerprint: fingerprint depends on the work set id")
	}
	if WorkSetFingerprint(first).Equal(WorkSetFingerprint(otherRecord)) {
		t.Fatalf("TestWorkSetFingerprint: fingerprint ignores a changed record")
	}
}

func TestDigestsAreEqualLengthHex(t *testing.T) {
	workSet := testWorkSet(t, 1, strings.Repeat("33", 32))
	fingerprint := WorkSetFingerprint(workSet)
	digest := NonceDigest(workSet.MinerAddress(), fingerprint, 42)
	if !externalapi.IsLowerHex(digest) || len(digest) != 2*externalapi.DomainHashSize {
		t.Fatalf("TestDigestsAreEqualLengthHex: bad digest %q", digest)
	}
	if digest == NonceDigest(workSet.MinerAddress(), fingerprint, 43) {
		t.Fatalf("TestDigestsAreEqualLengthHex: different nonces produced the same digest")
	}
	for sourceID, reference := range References(workSet) {
		if len(reference) != len(digest) {
			t.Fatalf("TestDigestsAreEqualLengthHex: reference of %s has length %d, digest has %d",
				sourceID, len(reference), len(digest))
		}
	}
	if _, ok := References(workSet)[externalapi.SelfSourceID]; !ok {
		t.Fatalf("TestDigestsAreEqualLengthHex: self reference is missing")
	}
}
