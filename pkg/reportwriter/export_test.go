package reportwriter

// SetWriteFile replaces the file write step and returns the atomic writer it
// replaced, so tests can wrap it.
func SetWriteFile(w *Writer, fn func(path string, data []byte) error) func(path string, data []byte) error {
	prev := w.writeFile
	w.writeFile = fn

	return prev
}
