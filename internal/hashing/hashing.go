package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/hpungsan/ctx/internal/errors"
)

// ChunkSize is the read buffer used while streaming a file through the digest.
const ChunkSize = 1 << 20

// SHA256File streams path through SHA-256 and returns the lowercase hex digest.
// Open and mid-stream read failures return an IO_FAILURE error and no digest.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewIOFailure(path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, onlyReader{f}, buf); err != nil {
		return "", errors.NewIOFailure(path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// onlyReader hides *os.File's WriterTo so CopyBuffer really uses buf.
type onlyReader struct {
	io.Reader
}
