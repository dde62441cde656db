package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avelar-dev/solarb/internal/domain"
)

// OpportunityArchiveStore provides read access to executed opportunities for
// archival. The Postgres store satisfies it through its ListBefore method.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
}

// BundleArchiveStore provides read access to resolved bundle outcomes for
// archival.
type BundleArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.BundleOutcome, error)
}

// Archiver queries the domain stores for old records, serializes them to
// JSONL, and uploads the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// not performed here; the pipeline runner prunes only after the archive
// upload has succeeded.
type Archiver struct {
	writer        domain.BlobWriter
	opportunities OpportunityArchiveStore
	bundles       BundleArchiveStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, opportunities OpportunityArchiveStore, bundles BundleArchiveStore) *Archiver {
	return &Archiver{
		writer:        writer,
		opportunities: opportunities,
		bundles:       bundles,
	}
}

// ArchiveOpportunities uploads all opportunities detected before the cutoff
// to archive/opportunities/YYYY-MM.jsonl and returns the count of archived
// records.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opportunities.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	return int64(len(opps)), nil
}

// ArchiveBundleOutcomes uploads all bundle outcomes resolved before the
// cutoff to archive/bundles/YYYY-MM.jsonl and returns the count of archived
// records.
func (a *Archiver) ArchiveBundleOutcomes(ctx context.Context, before time.Time) (int64, error) {
	outcomes, err := a.bundles.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bundles query: %w", err)
	}
	if len(outcomes) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(outcomes)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bundles marshal: %w", err)
	}

	path := archivePath("bundles", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive bundles upload: %w", err)
	}

	return int64(len(outcomes)), nil
}

func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
