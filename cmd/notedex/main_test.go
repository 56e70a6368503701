package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/poiesic/notedex"
	"github.com/poiesic/notedex/ai/mock"
	"github.com/poiesic/notedex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func findStringFlag(t *testing.T, cmd *cli.Command, name string) *cli.StringFlag {
	t.Helper()
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("string flag %q not found on %q", name, cmd.Name)
	return nil
}

func findIntFlag(t *testing.T, cmd *cli.Command, name string) *cli.IntFlag {
	t.Helper()
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.IntFlag); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("int flag %q not found on %q", name, cmd.Name)
	return nil
}

// writeScan writes a small PNG and returns its path.
func writeScan(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 48))))
	require.NoError(t, f.Close())
	return path
}

// seedDatabase ingests one scan with the mock gateway and returns the
// database path and the note id.
func seedDatabase(t *testing.T) (string, core.ID) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "db")
	scan := writeScan(t, t.TempDir(), "page.png")

	db, err := notedex.Open(dir,
		notedex.WithGateway(mock.NewMockGateway()),
		notedex.WithPoolSize(2),
	)
	require.NoError(t, err)
	record, err := db.Ingest(context.Background(), scan)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	return dir, record.Id
}

func TestAppCommands(t *testing.T) {
	app := newApp()

	for _, name := range []string{"ingest", "search", "similar", "duplicates", "show", "stats", "reingest-all"} {
		assert.NotNil(t, findCommand(t, app, name))
	}
}

func TestIngestCommandFlags(t *testing.T) {
	t.Run("db is required", func(t *testing.T) {
		err := newApp().Run([]string{"notedex", "ingest", "scan.png"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("at least one image is required", func(t *testing.T) {
		err := newApp().Run([]string{"notedex", "ingest", "--db", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "image")
	})

	t.Run("service flags have local defaults", func(t *testing.T) {
		cmd := findCommand(t, newApp(), "ingest")
		assert.Equal(t, "http://localhost:9090", findStringFlag(t, cmd, "vision-host").Value)
		assert.Equal(t, "http://localhost:11434/v1", findStringFlag(t, cmd, "embedding-host").Value)
		assert.Equal(t, "embeddinggemma", findStringFlag(t, cmd, "embedding-model").Value)
		assert.Equal(t, "qwen2.5vl:7b", findStringFlag(t, cmd, "transcription-model").Value)
	})
}

func TestSearchCommandValidation(t *testing.T) {
	t.Run("requires a query", func(t *testing.T) {
		err := newApp().Run([]string{"notedex", "search", "--db", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--image or --text")
	})

	t.Run("rejects both query kinds", func(t *testing.T) {
		err := newApp().Run([]string{
			"notedex", "search", "--db", t.TempDir(),
			"--image", "scan.png", "--text", "groceries",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--image or --text")
	})

	t.Run("limit has default value of 10", func(t *testing.T) {
		cmd := findCommand(t, newApp(), "search")
		assert.Equal(t, 10, findIntFlag(t, cmd, "limit").Value)
	})
}

func TestReingestAllCommandFlags(t *testing.T) {
	t.Run("batch defaults match the job defaults", func(t *testing.T) {
		cmd := findCommand(t, newApp(), "reingest-all")
		assert.Equal(t, 100, findIntFlag(t, cmd, "batch-size").Value)
		assert.Equal(t, 100, findIntFlag(t, cmd, "report-interval").Value)
		assert.Equal(t, 3, findIntFlag(t, cmd, "max-retries").Value)
	})

	t.Run("invalid batch-size fails before opening the store", func(t *testing.T) {
		err := newApp().Run([]string{
			"notedex", "reingest-all", "--db", t.TempDir(), "--batch-size", "0",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size must be greater than 0")
	})
}

func TestStatsCommand(t *testing.T) {
	dir, _ := seedDatabase(t)

	app := newApp()
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = &bytes.Buffer{}

	require.NoError(t, app.Run([]string{"notedex", "stats", "--db", dir}))

	assert.Contains(t, out.String(), "Notes: 1")
	assert.Contains(t, out.String(), "clip")
}

func TestShowCommand(t *testing.T) {
	dir, id := seedDatabase(t)

	app := newApp()
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = &bytes.Buffer{}

	args := []string{"notedex", "show", "--db", dir, "--id", strconv.FormatUint(uint64(id), 10)}
	require.NoError(t, app.Run(args))

	assert.Contains(t, out.String(), "page.png")
	assert.Contains(t, out.String(), "visual+clip+visualText+textA+textB")
	assert.Contains(t, out.String(), "OCR A")
}

func TestDuplicatesCommand(t *testing.T) {
	dir, id := seedDatabase(t)

	app := newApp()
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = &bytes.Buffer{}

	args := []string{"notedex", "duplicates", "--db", dir, "--id", strconv.FormatUint(uint64(id), 10)}
	require.NoError(t, app.Run(args))

	assert.Contains(t, out.String(), "Found 0 matches")
}

func TestSetupLogger(t *testing.T) {
	newLoggerApp := func() *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}
	}

	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				err := newLoggerApp().Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
				assert.True(t, slog.Default().Enabled(context.Background(), tc.expected))
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, tc := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(tc, func(t *testing.T) {
				err := newLoggerApp().Run([]string{"test", "--log-level", tc})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newLoggerApp().Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		err := newLoggerApp().Run([]string{"test", "-l", "debug"})
		require.NoError(t, err)
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
