// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/notedex"
	"github.com/poiesic/notedex/ai"
	"github.com/poiesic/notedex/ai/openai"
	"github.com/poiesic/notedex/ai/vision"
	"github.com/poiesic/notedex/core"
	"github.com/poiesic/notedex/reingest"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "notedex",
		Usage: "Multi-embedding index and fused retrieval for scanned notes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest scanned note images into the database",
				ArgsUsage: "IMAGE...",
				Action:    ingestCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent model calls (0 = half the CPUs)",
					},
				}, serviceFlags()...),
			},
			{
				Name:   "search",
				Usage:  "Retrieve notes matching an image or a text query",
				Action: searchCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.StringFlag{
						Name:  "image",
						Usage: "Query by image file",
					},
					&cli.StringFlag{
						Name:  "text",
						Usage: "Query by free text",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Show at most N matches",
						Value: 10,
					},
				}, serviceFlags()...),
			},
			{
				Name:   "similar",
				Usage:  "Retrieve notes similar to an already-stored note",
				Action: similarCommand,
				Flags:  []cli.Flag{dbFlag(), idFlag()},
			},
			{
				Name:   "duplicates",
				Usage:  "Find probable re-scans of the same physical page",
				Action: duplicatesCommand,
				Flags: []cli.Flag{
					dbFlag(),
					idFlag(),
					&cli.IntFlag{
						Name:  "k",
						Usage: "Show at most K duplicates",
						Value: 10,
					},
				},
			},
			{
				Name:   "show",
				Usage:  "Print one stored note record",
				Action: showCommand,
				Flags:  []cli.Flag{dbFlag(), idFlag()},
			},
			{
				Name:   "stats",
				Usage:  "Print stored note and index counts",
				Action: statsCommand,
				Flags:  []cli.Flag{dbFlag()},
			},
			{
				Name:   "reingest-all",
				Usage:  "Recompute every stored note from its image",
				Action: reingestAllCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent model calls (0 = half the CPUs)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of notes to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N notes",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}, serviceFlags()...),
			},
		},
	}
}

func dbFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to the database directory",
		Required: true,
	}
}

func idFlag() *cli.Uint64Flag {
	return &cli.Uint64Flag{
		Name:     "id",
		Usage:    "Note id",
		Required: true,
	}
}

// serviceFlags returns the model-service flags shared by the commands that
// call out to the gateway. Defaults mirror ai.DefaultConfig.
func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "vision-host",
			Usage: "Vision sidecar host URL",
			Value: "http://localhost:9090",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Text embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "transcription-host",
			Usage: "Transcription service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Text embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "transcription-model",
			Usage: "Vision model used for secondary transcription",
			Value: "qwen2.5vl:7b",
		},
	}
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithVisionHost(c.String("vision-host")),
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithTranscriptionHost(c.String("transcription-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithTranscriptionModel(c.String("transcription-model")),
	)
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	// Validate flags
	if c.Args().Len() == 0 {
		return fmt.Errorf("at least one image path is required")
	}

	aiConfig := aiConfigFromFlags(c)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	images, err := vision.NewClient(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create vision client: %w", err)
	}

	// Pre-flight: the vision sidecar serves three of the five signals, so
	// an unreachable service should fail before the store is touched.
	if pinger, ok := images.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("vision service not reachable at %s: %w", aiConfig.VisionHost, err)
		}
	}

	texts, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	transcriber, err := openai.NewTranscriber(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	db, err := notedex.Open(c.String("db"),
		notedex.WithGateway(ai.NewGateway(images, texts, transcriber)),
		notedex.WithPoolSize(c.Int("pool-size")),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	failed := 0
	for _, path := range c.Args().Slice() {
		record, err := db.Ingest(ctx, path)
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(c.App.Writer, "Ingested %s as note %d (fields: %s)\n",
			path, record.Id, record.PresentFields())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, c.Args().Len())
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	// Validate flags
	imagePath := c.String("image")
	query := c.String("text")
	if (imagePath == "") == (query == "") {
		return fmt.Errorf("exactly one of --image or --text is required")
	}

	aiConfig := aiConfigFromFlags(c)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	db, err := notedex.Open(c.String("db"), notedex.WithAIConfig(aiConfig))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var matches []core.Match
	if imagePath != "" {
		matches, err = db.SearchImage(ctx, imagePath)
	} else {
		matches, err = db.SearchText(ctx, query)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	printMatches(c.App.Writer, matches, c.Int("limit"))
	return nil
}

func similarCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := notedex.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	matches, err := db.SimilarToNote(ctx, core.ID(c.Uint64("id")))
	if err != nil {
		return fmt.Errorf("similarity search failed: %w", err)
	}

	printMatches(c.App.Writer, matches, 0)
	return nil
}

func duplicatesCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := notedex.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	matches, err := db.NearDuplicates(ctx, core.ID(c.Uint64("id")), c.Int("k"))
	if err != nil {
		return fmt.Errorf("duplicate scan failed: %w", err)
	}

	printMatches(c.App.Writer, matches, 0)
	return nil
}

func showCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := notedex.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	record, err := db.GetNote(ctx, core.ID(c.Uint64("id")))
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Note %d\n", record.Id)
	fmt.Fprintf(w, "  Image:    %s\n", record.ImagePath)
	fmt.Fprintf(w, "  Ingested: %s\n", record.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "  Fields:   %s\n", record.PresentFields())
	if record.OcrTextA != "" {
		fmt.Fprintf(w, "  OCR A (%.2f): %s\n", record.OcrConfidenceA, truncate(record.OcrTextA, 120))
	}
	if record.OcrTextB != "" {
		fmt.Fprintf(w, "  OCR B (%.2f): %s\n", record.OcrConfidenceB, truncate(record.OcrTextB, 120))
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := notedex.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	stats, err := db.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Notes: %d\n", stats.Notes)
	for _, field := range core.Fields() {
		fmt.Fprintf(c.App.Writer, "  %-11s %d vectors\n", field, stats.Vectors[field])
	}
	return nil
}

func reingestAllCommand(c *cli.Context) error {
	ctx := context.Background()

	aiConfig := aiConfigFromFlags(c)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	config := &reingest.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := notedex.Open(c.String("db"),
		notedex.WithAIConfig(aiConfig),
		notedex.WithPoolSize(c.Int("pool-size")),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", c.String("db"))
	fmt.Fprintf(c.App.ErrWriter, "Vision host: %s\n", aiConfig.VisionHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", aiConfig.EmbeddingModel)
	fmt.Fprintf(c.App.ErrWriter, "Transcription model: %s\n", aiConfig.TranscriptionModel)
	fmt.Fprintln(c.App.ErrWriter)

	if err := db.ReingestAll(ctx, config, c.App.ErrWriter); err != nil {
		return fmt.Errorf("reingestion failed: %w", err)
	}
	return nil
}

func printMatches(w io.Writer, matches []core.Match, limit int) {
	fmt.Fprintf(w, "Found %d matches\n", len(matches))
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	for i, match := range matches {
		fmt.Fprintf(w, "%d: note %d %s [%.3f] %s\n",
			i+1, match.Record.Id, match.Record.ImagePath, match.Score,
			formatBreakdown(match.Breakdown))
	}
}

// formatBreakdown renders per-field distances in canonical field order.
func formatBreakdown(breakdown map[core.Field]float64) string {
	parts := make([]string, 0, len(breakdown))
	for _, field := range core.Fields() {
		if distance, ok := breakdown[field]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.3f", field, distance))
		}
	}
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
