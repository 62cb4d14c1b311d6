package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/tjfontaine/harassment-moderator/internal/auth"
	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/pkg/moderator"
)

func main() {
	app := cli.App{
		Name:  "moderator",
		Usage: "multi-stage harassment detection for user generated text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Value:   config.DefaultPath,
				EnvVars: []string{"MODERATOR_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before the config",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level (debug, info, warn, error)",
			},
		},
		Before: func(cctx *cli.Context) error {
			// A missing .env file is not an error.
			_ = godotenv.Load(cctx.String("env-file"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Flags:  []cli.Flag{&cli.IntFlag{Name: "port", Usage: "override server.port"}},
				Action: runServe,
			},
			{
				Name:      "classify",
				Usage:     "classify one text and print the verdict as JSON",
				ArgsUsage: "<text | ->",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Usage: "provenance tag stored with the record", Value: "Manual"},
				},
				Action: runClassify,
			},
			{
				Name:      "import",
				Usage:     "classify the comments of an Instagram post",
				ArgsUsage: "<post-url>",
				Action:    runImport,
			},
			{
				Name:  "history",
				Usage: "print stored verdicts, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20},
					&cli.IntFlag{Name: "offset"},
					&cli.StringFlag{Name: "source"},
					&cli.StringFlag{Name: "category"},
				},
				Action: runHistory,
			},
			{
				Name:      "keygen",
				Usage:     "hash an API key for auth.api_keys, generating one when omitted",
				ArgsUsage: "[api-key]",
				Action:    runKeygen,
			},
		},
	}
	app.RunAndExitOnError()
}

// loadConfig reads the config and returns a JSON logger at the configured
// level writing to w.
func loadConfig(cctx *cli.Context, w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if lvl := cctx.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newModerator(cctx *cli.Context, w io.Writer) (*moderator.Moderator, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cctx, w)
	if err != nil {
		return nil, nil, err
	}
	if port := cctx.Int("port"); port > 0 {
		cfg.Server.Port = port
	}
	m, err := moderator.New(moderator.WithConfig(cfg), moderator.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return m, logger, nil
}

func runServe(cctx *cli.Context) error {
	m, logger, err := newModerator(cctx, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-m.Done():
		logger.Error("server stopped", slog.Any("error", serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return serveErr
}

func runClassify(cctx *cli.Context) error {
	text := strings.Join(cctx.Args().Slice(), " ")
	if text == "-" {
		b, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(b)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("need to provide text as an argument or - for stdin")
	}

	m, _, err := newModerator(cctx, os.Stderr)
	if err != nil {
		return err
	}
	defer m.Shutdown(context.Background())

	verdict, err := m.Classify(cctx.Context, text, cctx.String("source"))
	if err != nil {
		return err
	}
	return printJSON(verdict)
}

func runImport(cctx *cli.Context) error {
	postURL := cctx.Args().First()
	if postURL == "" {
		return fmt.Errorf("need to provide a post URL as an argument")
	}
	m, _, err := newModerator(cctx, os.Stderr)
	if err != nil {
		return err
	}
	defer m.Shutdown(context.Background())

	res, err := m.Import(cctx.Context, postURL)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runHistory(cctx *cli.Context) error {
	m, _, err := newModerator(cctx, os.Stderr)
	if err != nil {
		return err
	}
	defer m.Shutdown(context.Background())

	records, err := m.History(cctx.Context, moderator.ListOptions{
		Limit:    cctx.Int("limit"),
		Offset:   cctx.Int("offset"),
		Source:   cctx.String("source"),
		Category: cctx.String("category"),
	})
	if err != nil {
		return err
	}
	return printJSON(records)
}

func runKeygen(cctx *cli.Context) error {
	key := cctx.Args().First()
	if key == "" {
		var err error
		if key, err = auth.GenerateAPIKey(); err != nil {
			return err
		}
	}
	hash := auth.HashAPIKey(key)

	fmt.Printf("API Key: %s\n", key)
	fmt.Printf("SHA-256 Hash: %s\n", hash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Println("auth:")
	fmt.Println("  api_keys:")
	fmt.Printf("    - key_hash: %q\n", hash)
	fmt.Println("      description: \"Generated key\"")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
