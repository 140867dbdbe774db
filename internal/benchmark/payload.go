package benchmark

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	payloadPrefix = "aws-snapshot-profiler-"
	blockSize     = 1 << 20 // 1 MiB
)

// PayloadName returns a fresh payload file name. Each snapshot gets its own
// file so every snapshot captures changed blocks.
func PayloadName() string {
	return payloadPrefix + uuid.New().String()[:8] + ".dat"
}

// PayloadPath joins dir with a fresh PayloadName.
func PayloadPath(dir string) string {
	return filepath.Join(dir, PayloadName())
}

// WritePayload creates path holding sizeGB GiB of random data and syncs it
// to disk. The file must not already exist; it is left in place afterwards.
func WritePayload(path string, sizeGB int) error {
	if sizeGB < 0 {
		return fmt.Errorf("payload size must be >= 0 GB (got %d)", sizeGB)
	}
	return writeRandom(path, int64(sizeGB)<<30, rand.Reader)
}

// writeRandom copies size bytes from src into a new file at path in
// blockSize chunks, then fsyncs.
func writeRandom(path string, size int64, src io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create payload: %w", err)
	}

	buf := make([]byte, blockSize)
	for remaining := size; remaining > 0; {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(src, buf[:n]); err != nil {
			f.Close()
			return fmt.Errorf("read random data: %w", err)
		}
		if _, err := f.Write(buf[:n]); err != nil {
			f.Close()
			return fmt.Errorf("write payload %s: %w", path, err)
		}
		remaining -= n
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync payload %s: %w", path, err)
	}
	return f.Close()
}
