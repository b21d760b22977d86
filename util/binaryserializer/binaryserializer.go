// Package binaryserializer writes the primitive values that hashed
// consensus data is made of. All integers are little-endian.
package binaryserializer

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// PutUint64 serializes the provided uint64 and writes the resulting eight
// bytes to the given writer.
func PutUint64(w io.Writer, val uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	_, err := w.Write(buf[:])
	return errors.WithStack(err)
}

// PutVarBytes writes a uint64 length followed by the given bytes, so that
// adjacent fields can't be confused for one another.
func PutVarBytes(w io.Writer, data []byte) error {
	err := PutUint64(w, uint64(len(data)))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return errors.WithStack(err)
}

// PutString writes a length-prefixed string.
func PutString(w io.Writer, s string) error {
	return PutVarBytes(w, []byte(s))
}
