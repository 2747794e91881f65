// Package detector turns two content representations into a change verdict.
package detector

import (
	"fmt"

	"github.com/formwatch/formwatch/internal/watch"
)

// Verdict is the outcome of one comparison.
type Verdict struct {
	Changed     bool
	Description string
	// NewDigest is the digest to persist for the resource. On a failed fetch
	// it carries the old digest forward so the baseline is never lost.
	NewDigest string
	// Baseline is true when this cycle established the first digest for the
	// resource. Whether a baseline alerts is the caller's policy.
	Baseline bool
}

// Detector compares stored digests against fresh snapshots. It holds no state
// between calls; identical inputs always yield identical verdicts.
type Detector struct {
	hasher watch.Hasher
}

// New constructs a Detector.
func New(hasher watch.Hasher) *Detector {
	return &Detector{hasher: hasher}
}

// Detect compares oldDigest (empty string means the resource has never been
// observed) against the snapshot and returns a definite verdict.
func (d *Detector) Detect(oldDigest string, snap watch.Snapshot) (Verdict, error) {
	newDigest, err := d.digestOf(snap)
	if err != nil {
		return Verdict{}, err
	}

	if newDigest == "" {
		// A failed fetch is never a change and never erases the last
		// known-good digest.
		return Verdict{
			Changed:     false,
			Description: "new content unavailable",
			NewDigest:   oldDigest,
		}, nil
	}

	if oldDigest == "" {
		return Verdict{
			Changed:     false,
			Description: "initial content recorded",
			NewDigest:   newDigest,
			Baseline:    true,
		}, nil
	}

	if oldDigest == newDigest {
		return Verdict{
			Changed:     false,
			Description: "no change",
			NewDigest:   newDigest,
		}, nil
	}

	return Verdict{
		Changed:     true,
		Description: "content hash changed",
		NewDigest:   newDigest,
	}, nil
}

func (d *Detector) digestOf(snap watch.Snapshot) (string, error) {
	if snap.Digest != "" {
		return snap.Digest, nil
	}
	if snap.Text == "" {
		return "", nil
	}
	digest, err := d.hasher.Hash([]byte(snap.Text))
	if err != nil {
		return "", fmt.Errorf("hash snapshot text: %w", err)
	}
	return digest, nil
}
