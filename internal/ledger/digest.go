package ledger

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/zeebo/blake3"
)

// DigestFile computes the BLAKE3 hash of a file, hex-encoded. Stored on
// the run row so a re-run against changed inputs is distinguishable from a
// true idempotent repeat.
func DigestFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// DigestStrings hashes an ordered set of identifiers (e.g. the sample work
// list). Input order does not matter.
func DigestStrings(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)

	h := blake3.New()
	for _, s := range sorted {
		_, _ = h.WriteString(s)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
