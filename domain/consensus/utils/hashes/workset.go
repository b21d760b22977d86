package hashes

import (
	"github.com/anchorchain/anchord/domain/consensus/model/externalapi"
)

// WorkSetFingerprint commits to everything a nonce is mined against: the
// entry being extended, the target height and every referenced record.
func WorkSetFingerprint(workSet *externalapi.WorkSet) *externalapi.DomainHash {
	writer := NewFingerprintWriter()
	writer.InfallibleWrite(workSet.PreviousHash().ByteSlice())
	writer.WriteUint64(workSet.TargetHeight())
	for _, sourceID := range workSet.SourceIDs() {
		record, _ := workSet.SourceRef(sourceID)
		writer.WriteString(string(sourceID))
		writer.WriteUint64(record.Height())
		writer.WriteString(record.Hash())
		writer.WriteString(record.MerkleRoot())
	}
	return writer.Finalize()
}

// NonceDigest returns the hex digest a nonce is scored by
func NonceDigest(minerAddress string, fingerprint *externalapi.DomainHash, nonce uint64) string {
	writer := NewNonceDigestWriter()
	writer.WriteString(minerAddress)
	writer.InfallibleWrite(fingerprint.ByteSlice())
	writer.WriteUint64(nonce)
	return writer.FinalizeHex()
}

// BlockHash returns the hash of the block a nonce digest produces
func BlockHash(fingerprint *externalapi.DomainHash, digest string) *externalapi.DomainHash {
	writer := NewBlockHashWriter()
	writer.InfallibleWrite(fingerprint.ByteSlice())
	writer.WriteString(digest)
	return writer.Finalize()
}

// SourceReference returns the hex digest nonce digests are compared against for a record.
// Records of different chains hash to equal-length references.
func SourceReference(record *externalapi.SourceRecord) string {
	writer := NewSourceReferenceWriter()
	writer.WriteString(string(record.SourceID()))
	writer.WriteString(record.Hash())
	writer.WriteString(record.MerkleRoot())
	return writer.FinalizeHex()
}

// SelfReference returns the hex digest standing for the local chain
func SelfReference(minerAddress string, previousHash *externalapi.DomainHash) string {
	writer := NewSelfReferenceWriter()
	writer.WriteString(minerAddress)
	writer.InfallibleWrite(previousHash.ByteSlice())
	return writer.FinalizeHex()
}

// References returns the reference digest of every source of the work set
// plus the self reference under externalapi.SelfSourceID.
func References(workSet *externalapi.WorkSet) map[externalapi.SourceID]string {
	references := make(map[externalapi.SourceID]string, len(workSet.SourceIDs())+1)
	for sourceID, record := range workSet.SourceRefs() {
		references[sourceID] = SourceReference(record)
	}
	references[externalapi.SelfSourceID] = SelfReference(workSet.MinerAddress(), workSet.PreviousHash())
	return references
}
