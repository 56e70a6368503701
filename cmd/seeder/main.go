package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/notedex"
	"github.com/poiesic/notedex/ai/mock"
)

var (
	dbPath = flag.String("db", "./notes_db", "database directory")
	srcDir = flag.String("src", "", "directory of scans to ingest (generated when empty)")
	count  = flag.Int("count", 24, "number of synthetic scans when generating")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// scansFromDir returns an iterator over the note scans in a directory.
func scansFromDir(dir string) (iter.Seq[string], error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".png", ".jpg", ".jpeg":
			default:
				continue
			}
			if !yield(filepath.Join(dir, entry.Name())) {
				return
			}
		}
	}, nil
}

// generateScans writes n synthetic note pages and returns an iterator over
// their paths.
func generateScans(dir string, n int) (iter.Seq[string], error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("scan-%03d.png", i))
		if err := writePage(path, i); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	return func(yield func(string) bool) {
		for _, path := range paths {
			if !yield(path) {
				return
			}
		}
	}, nil
}

// writePage renders a flat-colored page so each scan has distinct bytes.
func writePage(path string, seed int) error {
	page := image.NewRGBA(image.Rect(0, 0, 128, 96))
	tone := color.RGBA{R: uint8(37 * seed), G: uint8(59 * seed), B: uint8(83 * seed), A: 255}
	for y := 0; y < 96; y++ {
		for x := 0; x < 128; x++ {
			page.Set(x, y, tone)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, page); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	// The mock gateway derives deterministic vectors from file paths, so
	// seeding needs no model services.
	db, err := notedex.Open(*dbPath, notedex.WithGateway(mock.NewMockGateway()))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx := context.Background()

	// Determine source of scans
	var source iter.Seq[string]
	if *srcDir != "" {
		source, err = scansFromDir(*srcDir)
	} else {
		source, err = generateScans("./seed_scans", *count)
	}
	if err != nil {
		panic(err)
	}

	var first string
	ingested := 0
	for path := range source {
		record, err := db.Ingest(ctx, path)
		if err != nil {
			slog.Error("ingest failed", "path", path, "err", err)
			continue
		}
		if first == "" {
			first = path
		}
		ingested++
		slog.Info("ingested", "path", path, "note", record.Id)
	}
	slog.Info("seeding complete", "notes", ingested)

	if first == "" {
		return
	}

	// Query back with the first seeded scan as a smoke check.
	matches, err := db.SearchImage(ctx, first)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits for %s\n", len(matches), first)
	for i, hit := range matches {
		fmt.Printf("%d: '%s' (%d)[%0.3f]\n", i, hit.Record.ImagePath, hit.Record.Id, hit.Score)
	}
}
