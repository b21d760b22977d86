package hashes

import (
	"encoding/hex"
	"hash"

	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
	"github.com/anchorchain/anchord/util/binaryserializer"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// HashWriter is used to incrementally hash data without concatenating all of the data to a single buffer
// it exposes an io.Writer api and a Finalize function to get the resulting hash.
// The used hash function is blake2b.
// This can only be created via one of the domain separated constructors
type HashWriter struct {
	hash.Hash
}

func newHashWriter(domain []byte) HashWriter {
	blake, err := blake2b.New256(domain)
	if err != nil {
		panic(errors.Wrapf(err, "this should never happen. %s is less than 64 bytes", domain))
	}
	return HashWriter{blake}
}

// InfallibleWrite is just like write but doesn't return anything
func (h HashWriter) InfallibleWrite(p []byte) {
	// This write can never return an error, this is part of the hash.Hash interface contract.
	_, err := h.Write(p)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. hash.Hash interface promises to not return errors."))
	}
}

// WriteUint64 writes n in little endian
func (h HashWriter) WriteUint64(n uint64) {
	err := binaryserializer.PutUint64(h, n)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. hash.Hash interface promises to not return errors."))
	}
}

// WriteString writes s prefixed by its length
func (h HashWriter) WriteString(s string) {
	err := binaryserializer.PutString(h, s)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. hash.Hash interface promises to not return errors."))
	}
}

// Finalize returns the resulting hash
func (h HashWriter) Finalize() *externalapi.DomainHash {
	var sum [externalapi.DomainHashSize]byte
	// This should prevent `Sum` for allocating an output buffer, by using the DomainHash buffer. we still copy because we don't want to rely on that.
	copy(sum[:], h.Sum(sum[:0]))
	return externalapi.NewDomainHashFromByteArray(&sum)
}

// FinalizeHex returns the resulting hash as a lowercase hex string
func (h HashWriter) FinalizeHex() string {
	return hex.EncodeToString(h.Sum(nil))
}

var (
	fingerprintDomain     = []byte("WorkSetFingerprint")
	nonceDigestDomain     = []byte("NonceDigest")
	blockHashDomain       = []byte("BlockHash")
	sourceReferenceDomain = []byte("SourceReference")
	selfReferenceDomain   = []byte("SelfReference")
)

// NewFingerprintWriter returns a new HashWriter used for work set fingerprints
func NewFingerprintWriter() HashWriter { return newHashWriter(fingerprintDomain) }

// NewNonceDigestWriter returns a new HashWriter used for nonce digests
func NewNonceDigestWriter() HashWriter { return newHashWriter(nonceDigestDomain) }

// NewBlockHashWriter returns a new HashWriter used for block hashes
func NewBlockHashWriter() HashWriter { return newHashWriter(blockHashDomain) }

// NewSourceReferenceWriter returns a new HashWriter used for source reference digests
func NewSourceReferenceWriter() HashWriter { return newHashWriter(sourceReferenceDomain) }

// NewSelfReferenceWriter returns a new HashWriter used for the self reference digest
func NewSelfReferenceWriter() HashWriter { return newHashWriter(selfReferenceDomain) }
