package emit

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/integration-os/core/internal/domain"
)

// Deduplication runs the cheap "possible collision" probe SPEC_FULL.md §12
// recovers from the original source's duplicates.rs: a bounded
// hash-prefix membership check distinct from (and far cheaper than) the
// authoritative IdempotencyStore.Insert. A negative result means "new
// beyond reasonable doubt"; a positive result only means "go ask the
// idempotency table", never "reject outright" -- the probe has false
// positives by design (bounded LRU of seen hashes) but no false
// negatives as long as the hash itself hasn't been evicted.
type Deduplication struct {
	seen *lru.Cache[string, struct{}]
}

// NewDeduplication builds a Deduplication probe retaining up to size
// recently seen fast hashes.
func NewDeduplication(size int) *Deduplication {
	cache, _ := lru.New[string, struct{}](size)

	return &Deduplication{seen: cache}
}

// Probe checks fastHash (the fnv-1a hash from domain.HashPayload) against
// the recently seen set, recording it either way.
func (d *Deduplication) Probe(fastHash string) domain.Duplicates {
	_, seen := d.seen.Get(fastHash)

	d.seen.Add(fastHash, struct{}{})

	return domain.Duplicates{PossibleCollision: seen}
}
