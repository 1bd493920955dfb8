package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Key is a deterministic 32-byte entity identifier. Keys are derived from
// stable identity tuples so that repeated derivation from the same inputs
// always yields the same storage location.
type Key [32]byte

// String returns the hex encoding used as the storage key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k == Key{}
}

// MarshalJSON encodes the key as its hex string form rather than the
// default array-of-bytes encoding.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a hex string key.
func (k *Key) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey decodes a hex-encoded key.
func ParseKey(s string) (Key, error) {
	var k Key
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("parse key: %w", err)
	}
	if len(raw) != len(k) {
		return k, fmt.Errorf("parse key: want %d bytes, got %d", len(k), len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

func deriveKey(parts ...[]byte) Key {
	h := sha256.New()
	for _, p := range parts {
		// Length-prefix each part so ("ab","c") and ("a","bc") differ.
		h.Write([]byte{byte(len(p))})
		h.Write(p)
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// MarketKey derives the key for the (creator, model) market.
func MarketKey(creator uuid.UUID, model Key) Key {
	return deriveKey([]byte("market"), creator[:], model[:])
}

// PositionKey derives the key for the (market, user) position.
func PositionKey(market Key, user uuid.UUID) Key {
	return deriveKey([]byte("position"), market[:], user[:])
}

// ModelKey derives the key for the (owner, model_id) registry entry.
func ModelKey(owner uuid.UUID, modelID string) Key {
	return deriveKey([]byte("model"), owner[:], []byte(modelID))
}

// PolicyKey derives the key for the (owner, model) insurance policy.
func PolicyKey(owner uuid.UUID, model Key) Key {
	return deriveKey([]byte("policy"), owner[:], model[:])
}
