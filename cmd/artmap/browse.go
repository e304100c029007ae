package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shenghan/artmap/internal/engine/geo"
	"github.com/shenghan/artmap/internal/engine/museum"
	"github.com/shenghan/artmap/internal/engine/sampler"
	"github.com/shenghan/artmap/internal/engine/storage"
	"github.com/shenghan/artmap/internal/model"
	"github.com/shenghan/artmap/internal/tui"
)

func runBrowse(args []string) error {
	var params model.SessionParams
	var outputDir, geodataPath string
	var maxPages int

	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	fs.StringVar(&outputDir, "output", "", "Output directory for session files (required)")
	fs.StringVar(&geodataPath, "geodata", "", "Countries geojson for offline country lookups (optional)")
	fs.StringVar(&params.Query, "place", "", "Place name to sample around")
	fs.Float64Var(&params.Lat, "lat", 0, "Place latitude")
	fs.Float64Var(&params.Lng, "lng", 0, "Place longitude")
	fs.IntVar(&params.PageSize, "page-size", 6, "Artworks per page")
	fs.IntVar(&params.MaxPoolSize, "max-pool", 96, "Id pool cap per region scope")
	fs.IntVar(&maxPages, "pages", 0, "Max pages to pull (0 = until exhausted)")
	fs.BoolVar(&params.LimitSize, "carousel", false, "Bounded rotating page instead of an ever-growing list")
	fs.BoolVar(&params.StreetView, "street-view", false, "Use the finer neighborhood-first scope ladder")
	fs.BoolVar(&params.ByDate, "by-date", false, "Filter by creation date range")
	fs.IntVar(&params.From, "from", 0, "Earliest creation year (with -by-date)")
	fs.IntVar(&params.To, "to", 0, "Latest creation year (with -by-date)")
	fs.BoolVar(&params.PublicDomainOnly, "public-domain", false, "Public-domain works only")
	fs.StringVar(&params.Source, "source", "aic", "Museum source: aic or met")
	fs.StringVar(&params.ProxyURL, "proxy", "", "HTTP/SOCKS5 proxy URL")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: artmap browse [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  artmap browse -place \"wicker park chicago\" -output ./sessions\n")
		fmt.Fprintf(os.Stderr, "  artmap browse -lat 41.9088 -lng -87.6796 -by-date -from 1850 -to 1900 -output ./sessions\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Validation
	if outputDir == "" {
		return fmt.Errorf("-output is required")
	}
	if params.Query == "" && !params.IsCoordMode() {
		return fmt.Errorf("either -place or -lat/-lng is required")
	}
	if params.ByDate && params.From > params.To {
		return fmt.Errorf("-from must not exceed -to")
	}
	if params.Source != "aic" && params.Source != "met" {
		return fmt.Errorf("unknown source %q (aic or met)", params.Source)
	}

	// API token from the environment, .env honored when present.
	godotenv.Load()
	params.APIToken = os.Getenv("ARTMAP_API_TOKEN")
	if params.APIToken == "" {
		params.APIToken = os.Getenv("ARTIC_API_TOKEN")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	// Generate timestamped filenames
	ts := time.Now().Format("20060102_150405")
	baseName := fmt.Sprintf("artmap_%s", ts)
	params.DBPath = filepath.Join(outputDir, baseName+".db")
	logPath := filepath.Join(outputDir, baseName+".log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer logFile.Close()
	logger := log.New(logFile, "", log.LstdFlags)
	logger.Printf("=== Session start: place=%q lat=%.4f lng=%.4f source=%s page_size=%d pool=%d street_view=%v ===",
		params.Query, params.Lat, params.Lng, params.Source, params.PageSize, params.MaxPoolSize, params.StreetView)

	fmt.Fprintf(os.Stderr, "Log: %s\n", logPath)

	// Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	startTime := time.Now()

	// Resolve the place
	geocoder := geo.NewGeocoder()
	if geodataPath != "" {
		bs, err := geo.NewBoundaryStore(geodataPath)
		if err != nil {
			return fmt.Errorf("loading geodata: %w", err)
		}
		geocoder.Boundaries = bs
	}
	var place *model.Place
	if params.IsCoordMode() {
		fmt.Fprintf(os.Stderr, "Mode: coordinate sampling (%.4f, %.4f)\n", params.Lat, params.Lng)
		place = &model.Place{Lat: params.Lat, Lng: params.Lng}
	} else {
		fmt.Fprintf(os.Stderr, "Mode: place sampling (%s)\n", params.Query)
		place, err = geocoder.Geocode(ctx, params.Query)
		if err != nil {
			return fmt.Errorf("geocoding %q: %w", params.Query, err)
		}
		fmt.Fprintf(os.Stderr, "Place: %s\n", place.DisplayName)
	}

	// Open storage
	store, err := storage.NewStore(params.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	// Build the session
	client := museum.NewClient(params.APIToken, params.ProxyURL)
	var source museum.Source
	if params.Source == "met" {
		source = museum.NewMet(client)
	} else {
		source = museum.NewAIC(client)
	}

	scopes := model.MapScopes()
	if params.StreetView {
		scopes = model.StreetViewScopes()
	}

	stats := &sampler.Stats{}
	session := sampler.NewSession(sampler.Config{
		Scopes:           scopes,
		PageSize:         params.PageSize,
		MaxPoolSize:      params.MaxPoolSize,
		LimitSize:        params.LimitSize,
		ByDate:           params.ByDate,
		From:             params.From,
		To:               params.To,
		PublicDomainOnly: params.PublicDomainOnly,
		Source:           source,
		Regions:          geocoder,
		Notifier: sampler.NotifierFunc(func(kind, msg string) {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", kind, msg)
		}),
		Logger: logger,
		Stats:  stats,
	})

	if err := session.Start(ctx, place); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	for scope, name := range session.RegionNames() {
		if name != "" {
			logger.Printf("Region: scope=%s name=%q", scope, name)
		}
	}

	// Pull pages until the ladder is exhausted
	pages := 0
	for !session.IsEnd() {
		if maxPages > 0 && pages >= maxPages {
			break
		}
		if ctx.Err() != nil {
			break
		}

		page, ok := session.NextPage(ctx)
		if !ok {
			break
		}
		pages++

		fmt.Fprintf(os.Stderr, "Page %d (%s):\n", pages, session.ActiveScope())
		for _, art := range page {
			fmt.Fprintf(os.Stderr, "  %d  %s — %s [%s]\n", art.ID, art.Title, art.DateDisplay, art.Region)
		}

		if _, err := store.InsertBatch(page); err != nil {
			logger.Printf("Store error: %v", err)
		}
	}

	duration := time.Since(startTime).Truncate(time.Second)
	total, _ := store.Count()

	logger.Printf("Done: pulls=%d resolved=%d skipped=%d escalations=%d index_errors=%d total_in_db=%d",
		stats.Pulls.Load(), stats.Resolved.Load(), stats.Skipped.Load(),
		stats.Escalations.Load(), stats.IndexErrors.Load(), total)

	// Print final summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  ArtMap Complete\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	if params.Query != "" {
		fmt.Fprintf(os.Stderr, "  Place:      %s\n", params.Query)
	} else {
		fmt.Fprintf(os.Stderr, "  Center:     %.4f, %.4f\n", params.Lat, params.Lng)
	}
	fmt.Fprintf(os.Stderr, "  Source:     %s\n", params.Source)
	fmt.Fprintf(os.Stderr, "  Pages:      %d\n", pages)
	fmt.Fprintf(os.Stderr, "  Resolved:   %d\n", stats.Resolved.Load())
	fmt.Fprintf(os.Stderr, "  Skipped:    %d\n", stats.Skipped.Load())
	fmt.Fprintf(os.Stderr, "  Stored:     %d (unique)\n", total)
	fmt.Fprintf(os.Stderr, "  Duration:   %s\n", duration)
	fmt.Fprintf(os.Stderr, "  Database:   %s\n", params.DBPath)
	fmt.Fprintf(os.Stderr, "  Log:        %s\n", logPath)
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")

	tui.SaveRecent(params.DBPath)

	return nil
}
