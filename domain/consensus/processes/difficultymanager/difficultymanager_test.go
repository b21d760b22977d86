package difficultymanager

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/domain/consensus/ruleerrors"
	"github.com/anchorchain/anchord/domain/dagconfig"
	"pgregory.net/rapid"
)

var testMaxDifficulty = new(big.Int).Lsh(big.NewInt(1), 256)

func TestShareDifficultySlowPeriodClampsToMinimum(t *testing.T) {
	minimum := big.NewInt(1_966_995_338_232)
	parent := big.NewInt(23_521_577_413_209)

	next, err := ShareDifficulty(12345, 0, parent, minimum, testMaxDifficulty, 0)
	if err != nil {
		t.Fatalf("TestShareDifficultySlowPeriodClampsToMinimum: unexpected error: %s", err)
	}
	if next.Cmp(minimum) != 0 {
		t.Fatalf("TestShareDifficultySlowPeriodClampsToMinimum: expected %s, got %s", minimum, next)
	}
}

func TestShareDifficulty(t *testing.T) {
	minimum := big.NewInt(1000)
	parent := big.NewInt(5000)
	tests := []struct {
		name       string
		blockTime  int64
		parentTime int64
		handicap   int64
		expected   int64
	}{
		{"instant block", 0, 0, 0, 5625},
		{"fast block", 3, 0, 0, 5040},
		{"almost on target", 4, 0, 0, 5005},
		{"on target", 5, 0, 0, 5000},
		{"within grace", 7, 0, 0, 5000},
		{"past grace", 8, 0, 0, 4995},
		{"slow block", 100, 0, 0, 4905},
		{"factor at its floor", 500, 0, 0, 4505},
		{"stalled chain", 505, 0, 0, 1000},
		{"block time before parent", 0, 10, 0, 5625},
		{"handicap turns a slow block into a cube", 8, 0, 1, 4865},
		{"parent time offset", 1_000_008, 1_000_000, 0, 4995},
	}

	for _, test := range tests {
		next, err := ShareDifficulty(test.blockTime, test.parentTime, parent, minimum, testMaxDifficulty, test.handicap)
		if err != nil {
			t.Fatalf("TestShareDifficulty: %s: unexpected error: %s", test.name, err)
		}
		if next.Int64() != test.expected {
			t.Fatalf("TestShareDifficulty: %s: expected %d, got %s", test.name, test.expected, next)
		}
	}
}

func TestShareDifficultyArithmeticErrors(t *testing.T) {
	minimum := big.NewInt(1000)
	tests := []struct {
		name          string
		parent        *big.Int
		minimum       *big.Int
		max           *big.Int
		expectedValue *big.Int
	}{
		{"zero minimum", big.NewInt(5000), big.NewInt(0), testMaxDifficulty, nil},
		{"negative parent", big.NewInt(-1), minimum, testMaxDifficulty, minimum},
		{"overflow", big.NewInt(5000), minimum, big.NewInt(5500), minimum},
	}

	for _, test := range tests {
		next, err := ShareDifficulty(0, 0, test.parent, test.minimum, test.max, 0)
		if !errors.Is(err, ruleerrors.ErrArithmetic) {
			t.Fatalf("TestShareDifficultyArithmeticErrors: %s: expected ErrArithmetic, got %v", test.name, err)
		}
		if test.expectedValue == nil {
			if next != nil {
				t.Fatalf("TestShareDifficultyArithmeticErrors: %s: expected no value, got %s", test.name, next)
			}
			continue
		}
		if next.Cmp(test.expectedValue) != 0 {
			t.Fatalf("TestShareDifficultyArithmeticErrors: %s: expected %s, got %s", test.name, test.expectedValue, next)
		}
	}
}

func TestShareDifficultyNeverBelowMinimum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		minimum := big.NewInt(rapid.Int64Range(1, 1<<40).Draw(t, "minimum"))
		parent := new(big.Int).Add(minimum, big.NewInt(rapid.Int64Range(0, 1<<50).Draw(t, "excess")))
		parentTime := rapid.Int64Range(0, 1<<32).Draw(t, "parentTime")
		blockTime := parentTime + rapid.Int64Range(-100, 1<<20).Draw(t, "elapsed")
		handicap := rapid.Int64Range(-5, 5).Draw(t, "handicap")

		next, err := ShareDifficulty(blockTime, parentTime, parent, minimum, testMaxDifficulty, handicap)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if next.Cmp(minimum) < 0 {
			t.Fatalf("difficulty %s is below the minimum %s", next, minimum)
		}
	})
}

func TestExponentialFactor(t *testing.T) {
	tests := []struct {
		parentHeight uint64
		expected     int64
	}{
		{0, 100},
		{19, 100},
		{20, 101},
		{29, 102},
		{39, 104},
		{99, 100 + 256},
	}
	for _, test := range tests {
		result := ExponentialFactor(big.NewInt(100), test.parentHeight, 10)
		if result.Int64() != test.expected {
			t.Fatalf("TestExponentialFactor: height %d: expected %d, got %s",
				test.parentHeight, test.expected, result)
		}
	}
}

func TestDistanceThreshold(t *testing.T) {
	minimum := big.NewInt(1000)
	tests := []struct {
		difficulty int64
		expected   uint64
	}{
		{500, 100},
		{1000, 100},
		{2000, 150},
		{4000, 175},
		{1_000_000, 200 - 100*1000/1_000_000},
	}
	for _, test := range tests {
		threshold := DistanceThreshold(big.NewInt(test.difficulty), minimum, 100, 200)
		if threshold != test.expected {
			t.Fatalf("TestDistanceThreshold: difficulty %d: expected %d, got %d",
				test.difficulty, test.expected, threshold)
		}
	}

	rapid.Check(t, func(t *rapid.T) {
		low := rapid.Int64Range(1000, 1<<40).Draw(t, "low")
		high := low + rapid.Int64Range(0, 1<<40).Draw(t, "delta")
		lowThreshold := DistanceThreshold(big.NewInt(low), minimum, 100, 200)
		highThreshold := DistanceThreshold(big.NewInt(high), minimum, 100, 200)
		if highThreshold < lowThreshold || lowThreshold < 100 || highThreshold > 200 {
			t.Fatalf("threshold isn't monotone within its range: %d at %d, %d at %d",
				lowThreshold, low, highThreshold, high)
		}
	})
}

func testParams() *dagconfig.Params {
	params := dagconfig.SimnetParams
	params.SingularityHeight = 1_000_000
	return &params
}

func testRecord(t *testing.T, sourceID externalapi.SourceID, height uint64, hashByte string, timestamp int64) *externalapi.SourceRecord {
	record, err := externalapi.NewSourceRecord(sourceID, height, strings.Repeat(hashByte, 32),
		strings.Repeat("00", 32), "", timestamp)
	if err != nil {
		t.Fatalf("NewSourceRecord: %s", err)
	}
	return record
}

func testEntry(t *testing.T, dm *difficultyManager, parent *externalapi.ChainEntry, blockTime int64,
	refs map[externalapi.SourceID]*externalapi.SourceRecord) *externalapi.ChainEntry {

	state, err := dm.NextDifficultyState(parent, blockTime, refs)
	if err != nil {
		t.Fatalf("NextDifficultyState: %s", err)
	}
	workSet, err := externalapi.NewWorkSet(parent.Height()+1, parent.Height()+1, parent.BlockHash(), "aa", refs,
		0, state, blockTime, externalapi.DistanceAlgorithmCosine, externalapi.GatingPerSource)
	if err != nil {
		t.Fatalf("NewWorkSet: %s", err)
	}
	distances := map[externalapi.SourceID]uint64{externalapi.SelfSourceID: 0}
	for sourceID := range refs {
		distances[sourceID] = 0
	}
	var hashBytes [externalapi.DomainHashSize]byte
	hashBytes[0] = byte(parent.Height() + 1)
	candidate, err := externalapi.NewCandidate(workSet, 0, "00", externalapi.NewDomainHashFromByteArray(&hashBytes),
		distances, 0, 0)
	if err != nil {
		t.Fatalf("NewCandidate: %s", err)
	}
	entry, err := externalapi.NewChainEntry(candidate, parent)
	if err != nil {
		t.Fatalf("NewChainEntry: %s", err)
	}
	return entry
}

func TestNextDifficultyState(t *testing.T) {
	params := testParams()
	dm := New(params).(*difficultyManager)
	genesisState, err := dm.GenesisDifficultyState()
	if err != nil {
		t.Fatalf("TestNextDifficultyState: GenesisDifficultyState: %s", err)
	}
	genesis, err := externalapi.NewGenesisEntry(params.GenesisHash, genesisState)
	if err != nil {
		t.Fatalf("TestNextDifficultyState: NewGenesisEntry: %s", err)
	}

	start := params.GenesisTimestamp
	btc := testRecord(t, "btc", 1, "01", start)
	eth := testRecord(t, "eth", 1, "02", start)
	first := testEntry(t, dm, genesis, start+5,
		map[externalapi.SourceID]*externalapi.SourceRecord{"btc": btc, "eth": eth})

	firstState := first.DifficultyState()
	for _, sourceID := range []externalapi.SourceID{"btc", "eth"} {
		share, ok := firstState.Share(sourceID)
		if !ok {
			t.Fatalf("TestNextDifficultyState: missing share of %s", sourceID)
		}
		if share.Difficulty.Cmp(params.MinimumDifficulty) != 0 {
			t.Fatalf("TestNextDifficultyState: first share of %s is %s, expected the minimum",
				sourceID, share.Difficulty)
		}
	}
	if first.Difficulty().Cmp(params.MinimumDifficulty) < 0 {
		t.Fatalf("TestNextDifficultyState: difficulty %s is below the minimum", first.Difficulty())
	}

	// btc advances quickly, eth doesn't change
	btc2 := testRecord(t, "btc", 2, "03", start+1)
	second := testEntry(t, dm, first, start+10,
		map[externalapi.SourceID]*externalapi.SourceRecord{"btc": btc2, "eth": eth})

	secondState := second.DifficultyState()
	btcShare, _ := secondState.Share("btc")
	expectedBTCShare := dm.ShareDifficulty(start+1, start, params.MinimumDifficulty)
	if btcShare.Difficulty.Cmp(expectedBTCShare) != 0 || btcShare.Hash != btc2.Hash() {
		t.Fatalf("TestNextDifficultyState: btc share is %s at %s, expected %s at %s",
			btcShare.Difficulty, btcShare.Hash, expectedBTCShare, btc2.Hash())
	}
	ethShare, _ := secondState.Share("eth")
	firstETHShare, _ := firstState.Share("eth")
	if ethShare.Difficulty.Cmp(firstETHShare.Difficulty) != 0 || ethShare.Timestamp != firstETHShare.Timestamp {
		t.Fatalf("TestNextDifficultyState: unchanged eth share was recomputed")
	}

	expectedSelf := dm.ShareDifficulty(start+10, start+5, firstState.SelfDifficulty())
	if secondState.SelfDifficulty().Cmp(expectedSelf) != 0 {
		t.Fatalf("TestNextDifficultyState: self share is %s, expected %s", secondState.SelfDifficulty(), expectedSelf)
	}
	sum := new(big.Int).Add(btcShare.Difficulty, ethShare.Difficulty)
	sum.Add(sum, expectedSelf)
	expectedCombined := dm.ShareDifficulty(start+10, start+5, sum)
	if second.Difficulty().Cmp(expectedCombined) != 0 {
		t.Fatalf("TestNextDifficultyState: combined difficulty is %s, expected %s", second.Difficulty(), expectedCombined)
	}
}

func TestExponentialFactorRespectsSingularity(t *testing.T) {
	params := testParams()
	params.ExpDiffPeriod = 10
	params.SingularityHeight = 50
	dm := New(params)

	difficulty := big.NewInt(1000)
	if dm.ExponentialFactor(difficulty, 49).Cmp(difficulty) != 0 {
		t.Fatalf("TestExponentialFactorRespectsSingularity: bonus applied before the singularity height")
	}
	if dm.ExponentialFactor(difficulty, 50).Cmp(difficulty) <= 0 {
		t.Fatalf("TestExponentialFactorRespectsSingularity: bonus missing after the singularity height")
	}
}
