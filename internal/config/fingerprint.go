package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// Fingerprint computes the BLAKE3 hash of a config file's raw bytes. Each
// run records it, so history can tell which configuration produced a
// result even after the file changes.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return FingerprintBytes(data), nil
}

// FingerprintBytes hashes in-memory content, for callers that already read
// the file.
func FingerprintBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
