// Package archive retains the raw text captured by each scrape so the
// extraction input can be inspected after the fact.
package archive

import "context"

// Store persists one artifact and returns a URI locating it.
type Store interface {
	Save(ctx context.Context, key string, contentType string, data []byte) (string, error)
}
