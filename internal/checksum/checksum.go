// Package checksum fingerprints registry seed documents so unchanged files
// are not re-applied.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of a seed document. Line
// endings are normalized and trailing blank space is ignored, so an editor
// rewriting the same content does not count as a change.
func Sum(data []byte) string {
	norm := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	norm = bytes.TrimRight(norm, " \t\n")
	h := sha256.Sum256(norm)
	return hex.EncodeToString(h[:])
}
