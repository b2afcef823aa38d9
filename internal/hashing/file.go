package hashing

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// mmapThreshold is the file size at or above which HashFile reads the file
// through a read-only memory-mapped view instead of streaming it in chunks.
const mmapThreshold = 4096

// streamChunkSize is the buffer size used for files below mmapThreshold.
const streamChunkSize = 64 * 1024

// HashFile returns the BLAKE3 digest of the file at path. Files smaller than
// 4096 bytes are streamed in 64 KiB chunks; larger files are hashed through a
// read-only mmap.ReaderAt view.
//
// The mmap path opens a memory-mapped, read-only view of the file. If
// another process or goroutine mutates the file's contents while it is
// mapped, the digest this function returns is unspecified — the mapping
// itself never makes such a mutation unsafe for the host process, but the
// bytes it reads may be a torn mix of old and new content.
func HashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "hashing: stat %s", path)
	}

	h := newHasher()
	if info.Size() < mmapThreshold {
		if err := streamInto(h, path); err != nil {
			return "", err
		}
	} else if err := mmapInto(h, path, info.Size()); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func streamInto(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "hashing: open %s", path)
	}
	defer f.Close()

	buf := make([]byte, streamChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return errors.Wrapf(err, "hashing: read %s", path)
	}
	return nil
}

func mmapInto(h io.Writer, path string, size int64) error {
	r, err := mmap.Open(path)
	if err != nil {
		return errors.Wrapf(err, "hashing: mmap %s", path)
	}
	defer r.Close()

	buf := make([]byte, streamChunkSize)
	var off int64
	for off < size {
		n, err := r.ReadAt(buf, off)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return errors.Wrapf(werr, "hashing: digest %s", path)
			}
			off += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return errors.Wrapf(err, "hashing: read mmap %s", path)
		}
	}
	return nil
}
