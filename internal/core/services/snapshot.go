package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// LoadSnapshot reads every record from the metadata store in one logical read
// and builds the previous snapshot from it.
// Any failure returns domain.ErrSnapshotUnavailable; the caller must not
// mutate anything without a complete snapshot.
func LoadSnapshot(ctx context.Context, store driven.MetadataStore) (domain.Snapshot, error) {
	records, err := store.ListAll(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %w", domain.ErrSnapshotUnavailable, err)
	}

	snap := domain.NewSnapshot()
	for i := range records {
		rec := records[i]
		if rec.Key == "" {
			return domain.Snapshot{}, fmt.Errorf("%w: record %d has an empty key", domain.ErrSnapshotUnavailable, i)
		}
		if _, dup := snap.Records[rec.Key]; dup {
			logger.Warn("Duplicate metadata record for key %s, keeping the first", rec.Key)
			continue
		}
		snap.Fingerprints[rec.Key] = rec.Fingerprint
		snap.Records[rec.Key] = rec
	}

	logger.Debug("Loaded snapshot with %d records", snap.Len())
	return snap, nil
}

// snapshotOf builds the new snapshot from the staged new-document set.
// Later entries for the same key replace earlier ones.
func snapshotOf(docs []domain.StagedDocument) (domain.Snapshot, map[domain.DocumentKey]domain.StagedDocument) {
	snap := domain.Snapshot{Fingerprints: make(map[domain.DocumentKey]domain.Fingerprint, len(docs))}
	byKey := make(map[domain.DocumentKey]domain.StagedDocument, len(docs))
	for _, d := range docs {
		if _, dup := byKey[d.Key]; dup {
			logger.Warn("Duplicate corpus document for key %s, keeping the last", d.Key)
		}
		snap.Fingerprints[d.Key] = d.Fingerprint
		byKey[d.Key] = d
	}
	return snap, byKey
}
