package services

import "github.com/custodia-labs/kbsync/internal/core/domain"

// Classify diffs the previous snapshot against the new one.
//
// Every key of old ∪ new lands in exactly one list: keys only in old are
// Deleted; keys in new with an equal fingerprint are Unchanged; keys in both
// with different fingerprints are ToUpdate; keys only in new are ToAdd.
// There is no history beyond old, so a key that reappears is an add.
func Classify(old, current domain.Snapshot) domain.Classification {
	var c domain.Classification

	for key := range old.Fingerprints {
		if !current.Has(key) {
			c.Deleted = append(c.Deleted, key)
		}
	}

	for key, fp := range current.Fingerprints {
		prev, known := old.Fingerprints[key]
		switch {
		case known && prev == fp:
			c.Unchanged = append(c.Unchanged, key)
		case known:
			c.ToUpdate = append(c.ToUpdate, key)
		default:
			c.ToAdd = append(c.ToAdd, key)
		}
	}

	domain.SortKeys(c.Unchanged)
	domain.SortKeys(c.ToUpdate)
	domain.SortKeys(c.ToAdd)
	domain.SortKeys(c.Deleted)
	return c
}
