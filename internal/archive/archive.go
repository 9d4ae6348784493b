// Package archive keeps a copy of every raw payload fetched by an adapter run
// in object storage, so normalization bugs can be replayed against real data.
package archive

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/timmy/layoffwatch/internal/logger"
	"github.com/timmy/layoffwatch/internal/source"
)

// Archiver writes raw payloads to an ObjectStore.
type Archiver struct {
	store  ObjectStore
	prefix string
}

// New creates an Archiver writing below prefix.
func New(store ObjectStore, prefix string) *Archiver {
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key of page n of a run:
// <prefix>/<source_id>/<YYYY-MM-DD>/<run_id>-<n>.<ext>.
func (a *Archiver) Key(raw *source.RawPayload, runID string, n int) string {
	name := fmt.Sprintf("%s-%d.%s", runID, n, extension(raw.ContentType))
	return path.Join(a.prefix, raw.SourceID, raw.FetchedAt.UTC().Format("2006-01-02"), name)
}

// Store uploads every page of raw and returns the written keys. It stops at
// the first failed upload.
func (a *Archiver) Store(ctx context.Context, runID string, raw *source.RawPayload) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	contentType := raw.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	keys := make([]string, 0, len(raw.Pages))
	for i, page := range raw.Pages {
		key := a.Key(raw, runID, i)
		if err := a.store.Put(ctx, key, page.Body, contentType); err != nil {
			return keys, fmt.Errorf("archive %s: %w", key, err)
		}
		keys = append(keys, key)
	}

	logger.With(logger.Fields{
		logger.FieldCount: len(keys),
		"bytes":           raw.Size(),
	}).Debug(ctx, "Archived raw payload")
	return keys, nil
}

func extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case mediaType == "application/x-ndjson":
		return "jsonl"
	case strings.HasSuffix(mediaType, "json"):
		return "json"
	case strings.Contains(mediaType, "html"):
		return "html"
	case strings.HasPrefix(mediaType, "text/"):
		return "txt"
	default:
		return "bin"
	}
}
