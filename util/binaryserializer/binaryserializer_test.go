package binaryserializer

import (
	"bytes"
	"errors"
	"testing"
)

func TestPutUint64(t *testing.T) {
	buf := &bytes.Buffer{}
	err := PutUint64(buf, 0x0102030405060708)
	if err != nil {
		t.Fatalf("PutUint64: %s", err)
	}
	expected := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	if !bytes.Equal(buf.Bytes(), expected) {
		t.Fatalf("PutUint64: got %x, want %x", buf.Bytes(), expected)
	}
}

func TestPutString(t *testing.T) {
	tests := []struct {
		value    string
		expected []byte
	}{
		{"", []byte{0, 0, 0, 0, 0, 0, 0, 0}},
		{"ab", []byte{2, 0, 0, 0, 0, 0, 0, 0, 'a', 'b'}},
	}
	for _, test := range tests {
		buf := &bytes.Buffer{}
		err := PutString(buf, test.value)
		if err != nil {
			t.Fatalf("PutString(%q): %s", test.value, err)
		}
		if !bytes.Equal(buf.Bytes(), test.expected) {
			t.Fatalf("PutString(%q): got %x, want %x", test.value, buf.Bytes(), test.expected)
		}
	}

	// "a"+"bc" and "ab"+"c" must not serialize alike
	first, second := &bytes.Buffer{}, &bytes.Buffer{}
	_ = PutString(first, "a")
	_ = PutString(first, "bc")
	_ = PutString(second, "ab")
	_ = PutString(second, "c")
	if bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("PutString: adjacent strings are ambiguous")
	}
}

type failingWriter struct{}

var errWrite = errors.New("write failed")

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestPutVarBytesPropagatesErrors(t *testing.T) {
	err := PutVarBytes(failingWriter{}, []byte{1})
	if !errors.Is(err, errWrite) {
		t.Fatalf("PutVarBytes: expected the writer's error, got %v", err)
	}
}
