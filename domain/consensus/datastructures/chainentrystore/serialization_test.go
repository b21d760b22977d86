package chainentrystore

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestCandidateEncodingIsProtobuf(t *testing.T) {
	entry := testEntry(t, testGenesis(t), 1)
	data, err := serializeCandidate(entry.Candidate())
	if err != nil {
		t.Fatalf("serializeCandidate: %s", err)
	}
	if data[0] != serializationVersion {
		t.Fatalf("TestCandidateEncodingIsProtobuf: record starts with %d", data[0])
	}
	number, wireType, n := protowire.ConsumeTag(data[1:])
	if n < 0 || number != 1 || wireType != protowire.BytesType {
		t.Fatalf("TestCandidateEncodingIsProtobuf: the work set isn't the first field")
	}

	// Fields a newer version adds are skipped
	extended := protowire.AppendTag(append([]byte{}, data...), 99, protowire.VarintType)
	extended = protowire.AppendVarint(extended, 7)
	extended = protowire.AppendTag(extended, 100, protowire.Fixed32Type)
	extended = protowire.AppendFixed32(extended, 7)
	decoded, err := deserializeCandidate(extended)
	if err != nil {
		t.Fatalf("TestCandidateEncodingIsProtobuf: unknown fields were rejected: %s", err)
	}
	reencoded, err := serializeCandidate(decoded)
	if err != nil {
		t.Fatalf("serializeCandidate: %s", err)
	}
	if !bytes.Equal(reencoded, data) {
		t.Fatalf("TestCandidateEncodingIsProtobuf: decoding changed the candidate")
	}
}

func TestCandidateEncodingRejectsMalformedRecords(t *testing.T) {
	entry := testEntry(t, testGenesis(t), 1)
	data, err := serializeCandidate(entry.Candidate())
	if err != nil {
		t.Fatalf("serializeCandidate: %s", err)
	}

	wrongWireType := protowire.AppendTag([]byte{serializationVersion}, 2, protowire.BytesType)
	wrongWireType = protowire.AppendBytes(wrongWireType, []byte{1})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown version", append([]byte{serializationVersion + 1}, data[1:]...)},
		{"truncated", data[:len(data)-3]},
		{"wrong wire type", wrongWireType},
		{"no work set", appendVarintField([]byte{serializationVersion}, 2, 5)},
	}
	for _, test := range tests {
		_, err := deserializeCandidate(test.data)
		if err == nil {
			t.Fatalf("TestCandidateEncodingRejectsMalformedRecords: %s: expected an error", test.name)
		}
	}
}

func TestDifficultyStateEncodingKeepsMissingParent(t *testing.T) {
	state := testGenesis(t).DifficultyState()
	data, err := serializeDifficultyState(state)
	if err != nil {
		t.Fatalf("serializeDifficultyState: %s", err)
	}
	decoded, err := deserializeDifficultyState(data)
	if err != nil {
		t.Fatalf("deserializeDifficultyState: %s", err)
	}
	if decoded.ParentDifficulty() != nil {
		t.Fatalf("TestDifficultyStateEncodingKeepsMissingParent: decoded parent difficulty %s",
			decoded.ParentDifficulty())
	}
	if !decoded.Equal(state) {
		t.Fatalf("TestDifficultyStateEncodingKeepsMissingParent: decoded state differs")
	}
}
