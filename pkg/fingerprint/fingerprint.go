// Package fingerprint identifies crash log files by path and content so
// cached results can be validated against later edits.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
)

// Mode selects how much work a fingerprint costs.
type Mode int

const (
	// ModeStat uses size and modification time only.
	ModeStat Mode = iota
	// ModeContent additionally hashes the file content.
	ModeContent
)

// Fingerprint detects whether a file changed since it was last seen.
type Fingerprint struct {
	Size    int64
	ModTime int64
	Hash    string
}

func (f Fingerprint) String() string {
	if f.Hash != "" {
		return fmt.Sprintf("%d:%d:%s", f.Size, f.ModTime, f.Hash)
	}

	return fmt.Sprintf("%d:%d", f.Size, f.ModTime)
}

// IsZero reports whether the fingerprint was never computed.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// NewerThan reports whether f was taken after other, by modification time.
func (f Fingerprint) NewerThan(other Fingerprint) bool {
	return f.ModTime > other.ModTime
}

// FileID is a normalized path plus its fingerprint.
type FileID struct {
	Path        string
	Fingerprint Fingerprint
}

func (id FileID) String() string {
	return id.Path + "@" + id.Fingerprint.String()
}

// FromContent builds a fingerprint from already-read data and its FileInfo.
func FromContent(info fs.FileInfo, data []byte, mode Mode) Fingerprint {
	fp := Fingerprint{
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
	}

	if mode == ModeContent {
		sum := sha256.Sum256(data)
		fp.Hash = hex.EncodeToString(sum[:])
	}

	return fp
}

// NormalizePath returns an absolute, cleaned path. On case-insensitive
// platforms the result is lower-cased so duplicates compare equal.
func NormalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		abs = strings.ToLower(abs)
	}

	return abs
}
