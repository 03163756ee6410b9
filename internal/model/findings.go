package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// AggregatedFindings is the merged, classified evidence for one asset.
type AggregatedFindings struct {
	Asset Asset `json:"asset" yaml:"asset"`

	// CombinedText is the labeled concatenation of every usable adapter output.
	// Identical results in identical order always produce identical text.
	CombinedText string `json:"combined_text" yaml:"combined_text"`

	// Verdict is the classifier's free-form assessment.
	Verdict string `json:"verdict" yaml:"verdict"`

	// PriorityScore ranges from 0 to 10.
	PriorityScore int `json:"priority_score" yaml:"priority_score"`

	// BountyEstimate is nil when the classifier did not produce one.
	BountyEstimate *float64 `json:"bounty_estimate,omitempty" yaml:"bounty_estimate,omitempty"`

	// Adapters lists the adapters whose output made it into CombinedText.
	Adapters []string `json:"adapters" yaml:"adapters"`
}

// Fingerprint is the SHA-256 digest identifying a set of findings.
type Fingerprint [sha256.Size]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// ParseFingerprint decodes the hex form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("decode fingerprint: %w", err)
	}
	if len(b) != sha256.Size {
		return f, fmt.Errorf("fingerprint has %d bytes, want %d", len(b), sha256.Size)
	}
	copy(f[:], b)
	return f, nil
}
