// Package zip bundles exported chat transcripts into a single downloadable
// archive, one text file per document.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// Entry is one file inside the archive.
type Entry struct {
	Filename string
	Data     []byte
}

// Archive writes entries into a zip and returns its bytes. Duplicate
// filenames are suffixed so no transcript silently overwrites another.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int)
	for _, e := range entries {
		base := e.Filename
		if base == "" {
			base = "transcript.txt"
		}
		name := base
		if n := seen[base]; n > 0 {
			name = dedupe(base, n)
		}
		seen[base]++
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func dedupe(name string, n int) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return fmt.Sprintf("%s-%d%s", name[:i], n, name[i:])
	}
	return fmt.Sprintf("%s-%d", name, n)
}
