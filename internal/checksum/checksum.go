// Package checksum hashes entry content and filesystem locations.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// Sum returns the hex SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Path resolves p to an absolute, cleaned path and returns it along with
// its Sum. Two spellings of the same location hash identically.
func Path(p string) (abs, sum string, err error) {
	abs, err = filepath.Abs(p)
	if err != nil {
		return "", "", fmt.Errorf("checksum: resolve %s: %w", p, err)
	}
	return abs, Sum([]byte(abs)), nil
}
