package zip

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestArchiveRoundtrip(t *testing.T) {
	data, err := Archive([]Entry{
		{Filename: "manual.txt", Data: []byte("Question 1: hi\nAnswer: hello\n")},
		{Filename: "report.txt", Data: []byte("Question 1: sum?\nAnswer: 42\n")},
	})
	if err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(zr.File))
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["manual.txt"] || !names["report.txt"] {
		t.Fatalf("unexpected entry names: %v", names)
	}
}

func TestArchiveDedupesFilenames(t *testing.T) {
	data, err := Archive([]Entry{
		{Filename: "manual.txt", Data: []byte("a")},
		{Filename: "manual.txt", Data: []byte("b")},
		{Filename: "", Data: []byte("c")},
	})
	if err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	want := map[string]bool{"manual.txt": true, "manual-1.txt": true, "transcript.txt": true}
	for _, f := range zr.File {
		if !want[f.Name] {
			t.Fatalf("unexpected entry %q", f.Name)
		}
		delete(want, f.Name)
	}
	if len(want) != 0 {
		t.Fatalf("missing entries: %v", want)
	}
}
