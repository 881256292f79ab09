package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// fingerprintChunkSize bounds the working memory used per digest.
const fingerprintChunkSize = 4096

// Fingerprint streams r through SHA-256 in fixed-size chunks and returns the
// hex digest. On a read error no fingerprint is returned.
func Fingerprint(r io.Reader) (domain.Fingerprint, error) {
	h := sha256.New()
	buf := make([]byte, fingerprintChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read content: %w", err)
		}
	}
	return domain.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// FingerprintBytes is Fingerprint over an in-memory buffer.
func FingerprintBytes(content []byte) domain.Fingerprint {
	fp, _ := Fingerprint(bytes.NewReader(content)) // bytes.Reader never fails
	return fp
}

// fingerprintStaged computes the fingerprint of content held by a stager.
func fingerprintStaged(stager driven.ContentStager, handle string) (domain.Fingerprint, error) {
	rc, err := stager.Open(handle)
	if err != nil {
		return "", fmt.Errorf("open staged content: %w", err)
	}
	defer rc.Close()
	return Fingerprint(rc)
}
