package detect

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// ComputeDigests computes the requested digests over content, returned
// as lowercase hex keyed by algorithm name. Unknown algorithm names are
// ignored; the configuration layer validates them up front.
func ComputeDigests(content []byte, algorithms []string) map[string]string {
	digests := make(map[string]string, len(algorithms))

	for _, algorithm := range algorithms {
		switch algorithm {
		case "md5":
			sum := md5.Sum(content)
			digests[algorithm] = hex.EncodeToString(sum[:])
		case "sha1":
			sum := sha1.Sum(content)
			digests[algorithm] = hex.EncodeToString(sum[:])
		case "sha256":
			sum := sha256.Sum256(content)
			digests[algorithm] = hex.EncodeToString(sum[:])
		case "blake3":
			sum := blake3.Sum256(content)
			digests[algorithm] = hex.EncodeToString(sum[:])
		}
	}

	return digests
}
