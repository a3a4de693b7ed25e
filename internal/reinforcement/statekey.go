// Package reinforcement maintains the learned value table that biases loop
// selection toward historically rewarding choices. State is discretized into
// coarse buckets; values are nudged after every execution and never deleted.
package reinforcement

import (
	"fmt"
	"strings"

	"echojudge/internal/loops"
)

// Bucket is a coarse discretization of a [0,1] context scalar.
type Bucket string

const (
	BucketLow    Bucket = "low"
	BucketMedium Bucket = "medium"
	BucketHigh   Bucket = "high"
)

// Bucketize maps a [0,1] scalar into low/medium/high.
func Bucketize(v float64) Bucket {
	switch {
	case v <= 0.33:
		return BucketLow
	case v <= 0.66:
		return BucketMedium
	default:
		return BucketHigh
	}
}

// StateKey identifies a coarse situation class. It is a struct rather than a
// concatenated string so keys cannot collide or become ambiguous; the string
// form exists only for the flat snapshot layout.
type StateKey struct {
	SignatureID string `json:"signature_id"`
	Complexity  Bucket `json:"complexity"`
	Uncertainty Bucket `json:"uncertainty"`
	Emotion     Bucket `json:"emotion"`
}

// StateFor derives the state key for a signature and judgment context.
func StateFor(signatureID string, jc *loops.JudgmentContext) StateKey {
	return StateKey{
		SignatureID: signatureID,
		Complexity:  Bucketize(jc.Complexity),
		Uncertainty: Bucketize(jc.Uncertainty),
		Emotion:     Bucketize(jc.EmotionalIntensity),
	}
}

// snapshotKey encodes (state, action) as the flat composite key used in the
// persisted snapshot. Signature ids may not contain '|'.
func snapshotKey(s StateKey, loopID string) string {
	return strings.Join([]string{s.SignatureID, string(s.Complexity), string(s.Uncertainty), string(s.Emotion), loopID}, "|")
}

// parseSnapshotKey is the inverse of snapshotKey.
func parseSnapshotKey(key string) (StateKey, string, error) {
	parts := strings.Split(key, "|")
	if len(parts) != 5 {
		return StateKey{}, "", fmt.Errorf("malformed q-table key %q", key)
	}
	for _, b := range parts[1:4] {
		switch Bucket(b) {
		case BucketLow, BucketMedium, BucketHigh:
		default:
			return StateKey{}, "", fmt.Errorf("malformed bucket %q in q-table key %q", b, key)
		}
	}
	return StateKey{
		SignatureID: parts[0],
		Complexity:  Bucket(parts[1]),
		Uncertainty: Bucket(parts[2]),
		Emotion:     Bucket(parts[3]),
	}, parts[4], nil
}
