package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"snappdf/internal/chat"
	"snappdf/internal/files"
	"snappdf/internal/session"
	"snappdf/pkg/zip"
)

func (a *app) cmdFiles(ctx context.Context) error {
	if _, err := a.requireCapability(ctx, session.CapabilityAuthenticated); err != nil {
		return err
	}
	list, err := a.files.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no documents yet, try: snappdf upload -file manual.pdf")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUPLOADED")
	for _, f := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.ID, f.Title, f.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *app) cmdUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	path := fs.String("file", "", "PDF to upload")
	title := fs.String("title", "", "document title (defaults to the file name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.requireCapability(ctx, session.CapabilityAuthenticated)
	if err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-file is required")
	}
	data, err := os.ReadFile(*path)
	if err != nil {
		return err
	}
	name := *title
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(*path), filepath.Ext(*path))
	}

	f, err := a.files.Upload(ctx, name, filepath.Base(*path), data)
	if errors.Is(err, files.ErrNoCredits) {
		return fmt.Errorf("no credits left (%d of %d used), see: snappdf plans", s.UsedCredits, s.Credit)
	}
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %q (id %s)\n", f.Title, f.ID)
	if fresh, err := a.sessions.Get(ctx); err == nil && fresh != nil {
		fmt.Printf("credits: %d of %d remaining\n", fresh.CreditsLeft(), fresh.Credit)
	}
	return nil
}

func (a *app) cmdRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.requireCapability(ctx, session.CapabilityAuthenticated); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: snappdf rm <file-id>...")
	}
	for _, id := range fs.Args() {
		if err := a.files.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Println("deleted", id)
	}
	return nil
}

// cmdExport pulls every document's transcript and bundles them into one zip
// archive, one text file per document.
func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "transcripts.zip", "output archive path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.requireCapability(ctx, session.CapabilityAuthenticated); err != nil {
		return err
	}
	list, err := a.files.List(ctx)
	if err != nil {
		return err
	}

	var entries []zip.Entry
	for _, f := range list {
		history, err := a.chat.History(ctx, f.ID)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			continue
		}
		var buf strings.Builder
		if err := chat.WriteTranscript(&buf, history); err != nil {
			return err
		}
		entries = append(entries, zip.Entry{
			Filename: safeFilename(f.Title) + ".txt",
			Data:     []byte(buf.String()),
		})
	}
	if len(entries) == 0 {
		fmt.Println("no transcripts to export")
		return nil
	}
	archive, err := zip.Archive(entries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, archive, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %d transcript(s) to %s\n", len(entries), *out)
	return nil
}

func safeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "transcript"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
}
