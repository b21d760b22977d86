package chainentrystore

import (
	"math/big"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// serializationVersion prefixes every stored record. The rest of the record
// is a protobuf encoded DbCandidate:
//
//	message DbCandidate {
//	  DbWorkSet workSet = 1;
//	  uint64 nonce = 2;
//	  string digest = 3;
//	  bytes blockHash = 4;
//	  uint64 distance = 5;
//	  sint64 workerId = 6;
//	  repeated DbSourceDistance distances = 7;
//	}
//	message DbSourceDistance { string sourceId = 1; uint64 distance = 2; }
//	message DbWorkSet {
//	  uint64 id = 1; uint64 targetHeight = 2; bytes previousHash = 3;
//	  string minerAddress = 4; uint64 distanceThreshold = 5; sint64 timestamp = 6;
//	  uint32 algorithm = 7; uint32 gating = 8;
//	  repeated DbSourceRecord refs = 9; DbDifficultyState difficultyState = 10;
//	}
//	message DbSourceRecord {
//	  string sourceId = 1; string hash = 2; string prevHash = 3;
//	  string merkleRoot = 4; uint64 height = 5; sint64 timestamp = 6;
//	}
//	message DbDifficultyState {
//	  bytes difficulty = 1; bytes selfDifficulty = 2; sint64 timestamp = 3;
//	  bytes parentDifficulty = 4; sint64 parentTimestamp = 5;
//	  bytes minimumDifficulty = 6; repeated DbSourceShare shares = 7;
//	}
//	message DbSourceShare {
//	  string sourceId = 1; bytes difficulty = 2; sint64 timestamp = 3; string hash = 4;
//	}
//
// Big integers are their big-endian magnitude. parentDifficulty is absent
// for the genesis state.
const serializationVersion = 2

// maxCollectionSize bounds the element count of any repeated field
const maxCollectionSize = 1 << 10

func serializeCandidate(candidate *externalapi.Candidate) ([]byte, error) {
	workSet, err := serializeWorkSet(candidate.WorkSet())
	if err != nil {
		return nil, err
	}

	b := []byte{serializationVersion}
	b = appendBytesField(b, 1, workSet)
	b = appendVarintField(b, 2, candidate.Nonce())
	b = appendStringField(b, 3, candidate.Digest())
	b = appendBytesField(b, 4, candidate.BlockHash().ByteSlice())
	b = appendVarintField(b, 5, candidate.Distance())
	b = appendVarintField(b, 6, protowire.EncodeZigZag(int64(candidate.WorkerID())))

	distances := candidate.Distances()
	sourceIDs := make([]externalapi.SourceID, 0, len(distances))
	for sourceID := range distances {
		sourceIDs = append(sourceIDs, sourceID)
	}
	for _, sourceID := range externalapi.SortSourceIDs(sourceIDs) {
		var sourceDistance []byte
		sourceDistance = appendStringField(sourceDistance, 1, string(sourceID))
		sourceDistance = appendVarintField(sourceDistance, 2, distances[sourceID])
		b = appendBytesField(b, 7, sourceDistance)
	}
	return b, nil
}

func deserializeCandidate(data []byte) (*externalapi.Candidate, error) {
	if len(data) == 0 {
		return nil, errors.New("empty candidate record")
	}
	if data[0] != serializationVersion {
		return nil, errors.Errorf("unknown serialization version %d", data[0])
	}
	fields, err := parseFields(data[1:])
	if err != nil {
		return nil, err
	}

	var (
		workSet   *externalapi.WorkSet
		nonce     uint64
		digest    string
		blockHash *externalapi.DomainHash
		distance  uint64
		workerID  int64
	)
	distances := make(map[externalapi.SourceID]uint64)
	for _, f := range fields {
		switch f.number {
		case 1:
			if err := f.expect(protowire.BytesType); err != nil {
				return nil, err
			}
			workSet, err = deserializeWorkSet(f.bytes)
		case 2:
			err = f.expect(protowire.VarintType)
			nonce = f.varint
		case 3:
			err = f.expect(protowire.BytesType)
			digest = string(f.bytes)
		case 4:
			if err := f.expect(protowire.BytesType); err != nil {
				return nil, err
			}
			blockHash, err = externalapi.NewDomainHashFromByteSlice(f.bytes)
		case 5:
			err = f.expect(protowire.VarintType)
			distance = f.varint
		case 6:
			err = f.expect(protowire.VarintType)
			workerID = protowire.DecodeZigZag(f.varint)
		case 7:
			if len(distances) >= maxCollectionSize {
				return nil, errors.Errorf("more than %d distances", maxCollectionSize)
			}
			if err := f.expect(protowire.BytesType); err != nil {
				return nil, err
			}
			err = deserializeSourceDistance(f.bytes, distances)
		}
		if err != nil {
			return nil, err
		}
	}
	if workSet == nil || blockHash == nil {
		return nil, errors.New("candidate record is missing its work set or block hash")
	}

	return externalapi.NewCandidate(workSet, nonce, digest, blockHash, distances, distance, int(workerID))
}

func deserializeSourceDistance(data []byte, distances map[externalapi.SourceID]uint64) error {
	fields, err := parseFields(data)
	if err != nil {
		return err
	}
	var sourceID externalapi.SourceID
	var distance uint64
	for _, f := range fields {
		switch f.number {
		case 1:
			err = f.expect(protowire.BytesType)
			sourceID = externalapi.SourceID(f.bytes)
		case 2:
			err = f.expect(protowire.VarintType)
			distance = f.varint
		}
		if err != nil {
			return err
		}
	}
	distances[sourceID] = distance
	return nil
}

func serializeWorkSet(workSet *externalapi.WorkSet) ([]byte, error) {
	state, err := serializeDifficultyState(workSet.DifficultyState())
	if err != nil {
		return nil, err
	}

	var b []byte
	b = appendVarintField(b, 1, workSet.ID())
	b = appendVarintField(b, 2, workSet.TargetHeight())
	b = appendBytesField(b, 3, workSet.PreviousHash().ByteSlice())
	b = appendStringField(b, 4, workSet.MinerAddress())
	b = appendVarintField(b, 5, workSet.DistanceThreshold())
	b = appendVarintField(b, 6, protowire.EncodeZigZag(workSet.Timestamp()))
	b = appendVarintField(b, 7, uint64(workSet.Algorithm()))
	b = appendVarintField(b, 8, uint64(workSet.Gating()))
	for _, sourceID := range workSet.SourceIDs() {
		record, _ := workSet.SourceRef(sourceID)
		b = appendBytesField(b, 9, serializeSourceRecord(record))
	}
	b = appendBytesField(b, 10, state)
	return b, nil
}

func deserializeWorkSet(data []byte) (*externalapi.WorkSet, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}

	var (
		id, targetHeight, threshold uint64
		previousHash                *externalapi.DomainHash
		minerAddress                string
		timestamp                   int64
		algorithm, gating           uint64
		state                       *externalapi.DifficultyState
	)
	refs := make(map[externalapi.SourceID]*externalapi.SourceRecord)
	for _, f := range fields {
		switch f.number {
		case 1:
			err = f.expect(protowire.VarintType)
			id = f.varint
		case 2:
			err = f.expect(protowire.VarintType)
			targetHeight = f.varint
		case 3:
			if err := f.expect(protowire.BytesType); err != nil {
				return nil, err
			}
			previousHash, err = externalapi.NewDomainHashFromByteSlice(f.bytes)
		case 4:
			err = f.expect(protowire.BytesType)
			minerAddress = string(f.bytes)
		case 5:
			err = f.expect(protowire.VarintType)
			threshold = f.varint
		case 6:
			err = f.expect(protowire.VarintType)
			timestamp = protowire.DecodeZigZag(f.varint)
		case 7:
			err = f.expect(protowire.VarintType)
			algorithm = f.varint
		case 8:
			err = f.expect(protowire.VarintType)
			gating = f.varint
		case 9:
			if len(refs) >= maxCollectionSize {
				return nil, errors.Errorf("more than %d source references", maxCollectionSize)
			}
			if err := f.expect(protowire.BytesType); err != nil {
				return nil, err
			}
			var record *externalapi.SourceRecord
			record, err = deserializeSourceRecord(f.bytes)
			if err == nil {
				refs[record.SourceID()] = record
			}
		case 10:
			if err := f.expect(protowire.BytesType); err != nil {
				return nil, err
			}
			state, err = deserializeDifficultyState(f.bytes)
		}
		if err != nil {
			return nil, err
		}
	}
	if previousHash == nil || state == nil {
		return nil, errors.New("work set record is missing its previous hash or difficulty state")
	}

	return externalapi.NewWorkSet(id, targetHeight, previousHash, minerAddress, refs, threshold, state,
		timestamp, externalapi.DistanceAlgorithm(algorithm), externalapi.GatingMode(gating))
}

func serializeSourceRecord(record *externalapi.SourceRecord) []byte {
	var b []byte
	b = appendStringField(b, 1, string(record.SourceID()))
	b = appendStringField(b, 2, record.Hash())
	b = appendStringField(b, 3, record.PrevHash())
	b = appendStringField(b, 4, record.MerkleRoot())
	b = appendVarintField(b, 5, record.Height())
	b = appendVarintField(b, 6, protowire.EncodeZigZag(record.Timestamp()))
	return b
}

func deserializeSourceRecord(data []byte) (*externalapi.SourceRecord, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}
	var strs [4]string
	var height uint64
	var timestamp int64
	for _, f := range fields {
		switch f.number {
		case 1, 2, 3, 4:
			err = f.expect(protowire.BytesType)
			strs[f.number-1] = string(f.bytes)
		case 5:
			err = f.expect(protowire.VarintType)
			height = f.varint
		case 6:
			err = f.expect(protowire.VarintType)
			timestamp = protowire.DecodeZigZag(f.varint)
		}
		if err != nil {
			return nil, err
		}
	}
	return externalapi.NewSourceRecord(externalapi.SourceID(strs[0]), height, strs[1], strs[2], strs[3], timestamp)
}

func serializeDifficultyState(state *externalapi.DifficultyState) ([]byte, error) {
	var b []byte
	var err error
	b, err = appendBigIntField(b, 1, state.Difficulty())
	if err != nil {
		return nil, err
	}
	b, err = appendBigIntField(b, 2, state.SelfDifficulty())
	if err != nil {
		return nil, err
	}
	b = appendVarintField(b, 3, protowire.EncodeZigZag(state.Timestamp()))
	if parentDifficulty := state.ParentDifficulty(); parentDifficulty != nil {
		b, err = appendBigIntField(b, 4, parentDifficulty)
		if err != nil {
			return nil, err
		}
	}
	b = appendVarintField(b, 5, protowire.EncodeZigZag(state.ParentTimestamp()))
	b, err = appendBigIntField(b, 6, state.MinimumDifficulty())
	if err != nil {
		return nil, err
	}

	shares := state.Shares()
	sourceIDs := make([]externalapi.SourceID, 0, len(shares))
	for sourceID := range shares {
		sourceIDs = append(sourceIDs, sourceID)
	}
	for _, sourceID := range externalapi.SortSourceIDs(sourceIDs) {
		share := shares[sourceID]
		var shareBytes []byte
		shareBytes = appendStringField(shareBytes, 1, string(sourceID))
		shareBytes, err = appendBigIntField(shareBytes, 2, share.Difficulty)
		if err != nil {
			return nil, err
		}
		shareBytes = appendVarintField(shareBytes, 3, protowire.EncodeZigZag(share.Timestamp))
		shareBytes = appendStringField(shareBytes, 4, share.Hash)
		b = appendBytesField(b, 7, shareBytes)
	}
	return b, nil
}

func deserializeDifficultyState(data []byte) (*externalapi.DifficultyState, error) {
	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}

	var (
		difficulty, selfDifficulty, minimumDifficulty = new(big.Int), new(big.Int), new(big.Int)
		parentDifficulty                              *big.Int
		timestamp, parentTimestamp                    int64
	)
	shares := make(map[externalapi.SourceID]externalapi.SourceShare)
	for _, f := range fields {
		switch f.number {
		case 1:
			err = f.expect(protowire.BytesType)
			difficulty.SetBytes(f.bytes)
		case 2:
			err = f.expect(protowire.BytesType)
			selfDifficulty.SetBytes(f.bytes)
		case 3:
			err = f.expect(protowire.VarintType)
			timestamp = protowire.DecodeZigZag(f.varint)
		case 4:
			err = f.expect(protowire.BytesType)
			parentDifficulty = new(big.Int).SetBytes(f.bytes)
		case 5:
			err = f.expect(protowire.VarintType)
			parentTimestamp = protowire.DecodeZigZag(f.varint)
		case 6:
			err = f.expect(protowire.BytesType)
			minimumDifficulty.SetBytes(f.bytes)
		case 7:
			if len(shares) >= maxCollectionSize {
				return nil, errors.Errorf("more than %d shares", maxCollectionSize)
			}
			if err := f.expect(protowire.BytesType); err != nil {
				return nil, err
			}
			err = deserializeSourceShare(f.bytes, shares)
		}
		if err != nil {
			return nil, err
		}
	}

	return externalapi.NewDifficultyState(difficulty, selfDifficulty, timestamp, parentDifficulty,
		parentTimestamp, minimumDifficulty, shares)
}

func deserializeSourceShare(data []byte, shares map[externalapi.SourceID]externalapi.SourceShare) error {
	fields, err := parseFields(data)
	if err != nil {
		return err
	}
	var sourceID externalapi.SourceID
	share := externalapi.SourceShare{Difficulty: new(big.Int)}
	for _, f := range fields {
		switch f.number {
		case 1:
			err = f.expect(protowire.BytesType)
			sourceID = externalapi.SourceID(f.bytes)
		case 2:
			err = f.expect(protowire.BytesType)
			share.Difficulty.SetBytes(f.bytes)
		case 3:
			err = f.expect(protowire.VarintType)
			share.Timestamp = protowire.DecodeZigZag(f.varint)
		case 4:
			err = f.expect(protowire.BytesType)
			share.Hash = string(f.bytes)
		}
		if err != nil {
			return err
		}
	}
	shares[sourceID] = share
	return nil
}

// field is one decoded protobuf field. Only varint and length-delimited
// values are kept; other wire types are skipped.
type field struct {
	number   protowire.Number
	wireType protowire.Type
	varint   uint64
	bytes    []byte
}

func (f *field) expect(wireType protowire.Type) error {
	if f.wireType != wireType {
		return errors.Errorf("field %d has wire type %d, expected %d", f.number, f.wireType, wireType)
	}
	return nil
}

// parseFields splits a protobuf message into its fields, in order
func parseFields(data []byte) ([]field, error) {
	var fields []field
	for len(data) > 0 {
		number, wireType, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.WithStack(protowire.ParseError(n))
		}
		data = data[n:]

		f := field{number: number, wireType: wireType}
		switch wireType {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(number, wireType, data)
		}
		if n < 0 {
			return nil, errors.WithStack(protowire.ParseError(n))
		}
		data = data[n:]
		fields = append(fields, f)
	}
	return fields, nil
}

func appendVarintField(b []byte, number protowire.Number, value uint64) []byte {
	b = protowire.AppendTag(b, number, protowire.VarintType)
	return protowire.AppendVarint(b, value)
}

func appendBytesField(b []byte, number protowire.Number, value []byte) []byte {
	b = protowire.AppendTag(b, number, protowire.BytesType)
	return protowire.AppendBytes(b, value)
}

func appendStringField(b []byte, number protowire.Number, value string) []byte {
	b = protowire.AppendTag(b, number, protowire.BytesType)
	return protowire.AppendString(b, value)
}

func appendBigIntField(b []byte, number protowire.Number, value *big.Int) ([]byte, error) {
	if value.Sign() < 0 {
		return nil, errors.Errorf("cannot serialize negative big int %s", value)
	}
	return appendBytesField(b, number, value.Bytes()), nil
}
