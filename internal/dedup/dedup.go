// Package dedup decides whether aggregated findings are novel.
package dedup

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/model"
)

// Store is the durable, append-only fingerprint set.
type Store interface {
	LoadFingerprints(ctx context.Context) ([]model.Fingerprint, error)
	AppendFingerprint(ctx context.Context, fp model.Fingerprint) error
}

// Normalize lower-cases text and trims surrounding whitespace. Nothing else is
// stripped.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Compute returns the fingerprint of text.
func Compute(text string) model.Fingerprint {
	return sha256.Sum256([]byte(Normalize(text)))
}

// Gate admits findings whose fingerprint has never been seen. Admission is
// linearizable: of any number of concurrent calls with equal text exactly one
// returns true.
type Gate struct {
	store  Store
	logger logging.Logger

	mu       sync.Mutex
	seen     map[model.Fingerprint]struct{}
	degraded bool
}

// NewGate loads every stored fingerprint. If the store cannot be read the gate
// starts empty in degraded mode and treats everything as novel.
func NewGate(ctx context.Context, store Store, logger logging.Logger) *Gate {
	g := &Gate{
		store:  store,
		logger: logger.With(logging.Field{Key: "component", Value: "dedup"}),
		seen:   make(map[model.Fingerprint]struct{}),
	}
	if store == nil {
		return g
	}
	fps, err := store.LoadFingerprints(ctx)
	if err != nil {
		g.degraded = true
		g.logger.Error("FINGERPRINT STORE UNREADABLE: dedup running degraded, previously reported findings may be reported again",
			logging.Field{Key: "error", Value: err})
		return g
	}
	for _, fp := range fps {
		g.seen[fp] = struct{}{}
	}
	g.logger.Info("fingerprints loaded", logging.Field{Key: "count", Value: len(fps)})
	return g
}

// Admit returns true exactly once per distinct normalized text. The
// fingerprint is recorded in memory before Admit returns; persisting it to the
// store happens outside the lock and a failure there only gets logged.
func (g *Gate) Admit(ctx context.Context, findings *model.AggregatedFindings) bool {
	fp := Compute(findings.CombinedText)

	g.mu.Lock()
	if _, dup := g.seen[fp]; dup {
		g.mu.Unlock()
		return false
	}
	g.seen[fp] = struct{}{}
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.AppendFingerprint(ctx, fp); err != nil {
			g.logger.Error("persist fingerprint failed",
				logging.Field{Key: "fingerprint", Value: fp.String()},
				logging.Field{Key: "error", Value: err})
		}
	}
	return true
}

// Len is the number of known fingerprints.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// Degraded reports whether the store could not be loaded at startup.
func (g *Gate) Degraded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.degraded
}
