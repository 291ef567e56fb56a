package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"clipmill/internal/queue"
	"clipmill/internal/services/source"
	"clipmill/internal/textutil"
)

// Fingerprint returns the hex SHA-256 digest of title, author, and
// collection concatenated in that order without separators. Callers pass
// already normalized values.
func Fingerprint(title, author, collection string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte(author))
	h.Write([]byte(collection))
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprinter normalizes raw posts and builds items keyed by their digest.
type Fingerprinter struct {
	normalizer *textutil.Normalizer
}

// NewFingerprinter compiles the abbreviation table used during normalization.
func NewFingerprinter(slang map[string]string) *Fingerprinter {
	return &Fingerprinter{normalizer: textutil.NewNormalizer(slang)}
}

// Item normalizes raw and returns a fresh item with every readiness flag unset.
func (f *Fingerprinter) Item(raw source.RawItem, collection string, now time.Time) *queue.Item {
	title := f.normalizer.Text(raw.Title)
	author := f.normalizer.Author(raw.Author)
	return &queue.Item{
		ID:               Fingerprint(title, author, collection),
		Title:            title,
		Body:             f.normalizer.Text(raw.Body),
		Author:           author,
		SourceCollection: collection,
		IngestedAt:       now.UTC(),
	}
}
