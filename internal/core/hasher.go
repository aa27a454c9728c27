package core

import (
	"InsMarket/internal/event"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

const GenesisHashSeed = "InsMarket:genesis:v1"

// StateHasher chains the encoded log records into a single fingerprint. Two
// runs with the same seed and configuration end on the same tip.
type StateHasher struct {
	prevHash [32]byte
}

// NewStateHasher initializes with genesis hash
func NewStateHasher() *StateHasher {
	return &StateHasher{
		prevHash: sha256.Sum256([]byte(GenesisHashSeed)),
	}
}

// ComputeHash calculates hash[N] = SHA-256(prev_hash || sequence || record)
func (h *StateHasher) ComputeHash(sequence int64, record []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])

	hasher.Write(record)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	h.prevHash = hash
	return hash
}

// Tip returns the current chain tip.
func (h *StateHasher) Tip() [32]byte {
	return h.prevHash
}

// FingerprintRecords recomputes the chain tip of a stored log.
func FingerprintRecords(records []event.Record) ([32]byte, error) {
	h := NewStateHasher()
	for i, r := range records {
		data, err := event.MarshalRecord(r.Day, r.Event)
		if err != nil {
			return [32]byte{}, fmt.Errorf("encode record %d: %w", i, err)
		}
		h.ComputeHash(int64(i), data)
	}
	return h.Tip(), nil
}
