// Package textutil holds byte-level checks applied to crash logs before
// they are parsed.
package textutil

import "bytes"

// SniffLength is how many leading bytes IsBinary inspects.
const SniffLength = 8000

// IsBinary reports whether data has a NUL byte within its first SniffLength
// bytes. Crash logs are plain text, so a NUL means a dump or a mislabelled
// file. Empty data is not binary.
func IsBinary(data []byte) bool {
	if len(data) > SniffLength {
		data = data[:SniffLength]
	}

	return bytes.IndexByte(data, 0) >= 0
}
