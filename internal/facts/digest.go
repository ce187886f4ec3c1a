package facts

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Domain prefixes for digests. Version suffix enables future algorithm
// migration without ambiguity.
const (
	DomainRecords = "aotverify/records/v1"
	DomainFixture = "aotverify/fixture/v1"
)

// Digest computes SHA-256 with domain separation over a sequence of
// payloads. Each payload is length-prefixed so stream boundaries are
// unambiguous. Format: SHA256(domain + 0x00 + len(p0) + p0 + ...).
func Digest(domain string, payloads ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	var lenBuf [binary.MaxVarintLen64]byte
	for _, p := range payloads {
		n := binary.PutUvarint(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:n])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
