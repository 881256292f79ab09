package domain

import "time"

// DocumentKey uniquely identifies a logical source document across runs.
// It is derived from the document's identity in the corpus, never from its content.
type DocumentKey string

// String returns the key as a plain string.
func (k DocumentKey) String() string {
	return string(k)
}

// Fingerprint is the lowercase hex SHA-256 digest of a document's canonical content.
type Fingerprint string

// FingerprintLength is the number of hex characters in a Fingerprint.
const FingerprintLength = 64

// Valid reports whether the fingerprint has the expected shape.
func (f Fingerprint) Valid() bool {
	if len(f) != FingerprintLength {
		return false
	}
	for i := 0; i < len(f); i++ {
		c := f[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// DocumentRecord is the persisted state of one logical document.
// It is the row that the metadata store keeps per key.
type DocumentRecord struct {
	// Key identifies the document.
	Key DocumentKey

	// Fingerprint is the digest of the content last pushed to the index.
	Fingerprint Fingerprint

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time

	// ContentID is the opaque handle into the content index.
	// Empty until the first successful push.
	ContentID string
}

// HasContent reports whether the record points at indexed content.
func (r *DocumentRecord) HasContent() bool {
	return r != nil && r.ContentID != ""
}

// CanonicalDocument is a corpus article after conversion to canonical form.
// Content holds identifiers only through Key, so the fingerprint tracks content changes alone.
type CanonicalDocument struct {
	// Key identifies the document.
	Key DocumentKey

	// Name is the file name used when staging and uploading the content.
	Name string

	// Title is the human-readable title.
	Title string

	// SourceURL is the original location of the article.
	SourceURL string

	// Content is the canonical markdown body.
	Content []byte
}

// StagedDocument is one entry of the current run's new-document set.
// It exists only for the duration of a run.
type StagedDocument struct {
	// Key identifies the document.
	Key DocumentKey

	// Fingerprint is the digest of the staged content.
	Fingerprint Fingerprint

	// Handle locates the staged content for the ContentStager that produced it.
	Handle string

	// Name is the file name presented to the content index.
	Name string

	// Title is carried for logging.
	Title string
}
