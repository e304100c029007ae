package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shenghan/artmap/internal/engine/storage"
)

func runExport(args []string) error {
	var dbPath, outputPath, format string

	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.StringVar(&dbPath, "db", "", "Path to .db file (required)")
	fs.StringVar(&outputPath, "output", "", "Output file path (default: same dir as db)")
	fs.StringVar(&format, "format", "csv", "Export format: csv")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: artmap export [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  artmap export -db ./sessions/artmap_20260831_140210.db\n")
		fmt.Fprintf(os.Stderr, "  artmap export -db data.db -output results.csv\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if dbPath == "" {
		return fmt.Errorf("-db is required")
	}

	if format != "csv" {
		return fmt.Errorf("unsupported format: %s (only csv supported)", format)
	}

	// Default output path
	if outputPath == "" {
		dir := filepath.Dir(dbPath)
		base := strings.TrimSuffix(filepath.Base(dbPath), ".db")
		outputPath = filepath.Join(dir, base+".csv")
	}

	store, err := storage.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening db: %w", err)
	}
	defer store.Close()

	artworks, err := store.List()
	if err != nil {
		return fmt.Errorf("loading db: %w", err)
	}
	if len(artworks) == 0 {
		return fmt.Errorf("no artworks found in database")
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{
		"artwork_id", "source", "title", "artist", "date",
		"date_start", "date_end", "medium", "dimensions",
		"place_of_origin", "department", "gallery", "credit_line",
		"public_domain", "image", "region",
	})

	for _, a := range artworks {
		w.Write([]string{
			fmt.Sprintf("%d", a.ID),
			a.Source,
			a.Title,
			a.ArtistDisplay,
			a.DateDisplay,
			fmt.Sprintf("%d", a.DateStart),
			fmt.Sprintf("%d", a.DateEnd),
			a.Medium,
			a.Dimensions,
			a.PlaceOfOrigin,
			a.Department,
			a.GalleryTitle,
			a.CreditLine,
			fmt.Sprintf("%t", a.IsPublicDomain),
			a.ValidImage,
			a.Region,
		})
	}

	fmt.Fprintf(os.Stderr, "Exported %d artworks to %s\n", len(artworks), outputPath)
	return nil
}
