package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/metasearch/internal/logger"
	"github.com/kailas-cloud/metasearch/internal/transport/ebeye"
	sessionuc "github.com/kailas-cloud/metasearch/internal/usecase/session"
	"github.com/kailas-cloud/metasearch/internal/version"
)

const defaultTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:    "metaquery",
		Usage:   "Run an RNA search through the metasearch proxy and print the rendered page state",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Query text to submit; positional arg is a fallback",
			},
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "Open this address instead of submitting a query, e.g. /search?q=16S+rRNA",
			},
			&cli.StringFlag{
				Name:    "proxy",
				Usage:   "Search proxy endpoint",
				EnvVars: []string{"METASEARCH_PROXY_URL"},
				Value:   ebeye.DefaultProxyURL,
			},
			&cli.StringFlag{
				Name:    "index",
				Usage:   "Search index host",
				EnvVars: []string{"METASEARCH_INDEX_URL"},
				Value:   ebeye.DefaultIndexURL,
			},
			&cli.StringSliceFlag{
				Name:  "field",
				Usage: "Field to request per entry; repeatable",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the search to finish",
				Value: defaultTimeout,
			},
			&cli.BoolFlag{
				Name:  "latest-only",
				Usage: "Drop responses of superseded searches",
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Logger environment: local, dev or prod",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "metaquery:", err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	logger, err := logpkg.NewLogger(c.String("env"), c.String("log-level"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	address, query, err := resolveTarget(c.String("url"), c.String("query"), c.Args().Slice())
	if err != nil {
		return err
	}

	timeout := c.Duration("timeout")
	if timeout <= 0 {
		logger.Warn("timeout must be positive; using default",
			zap.Duration("timeout", timeout), zap.Duration("default", defaultTimeout))
		timeout = defaultTimeout
	}

	client := ebeye.NewClient(&ebeye.Config{
		ProxyURL: c.String("proxy"),
		IndexURL: c.String("index"),
		Fields:   c.StringSlice("field"),
		Logger:   logger,
	})
	sessions := sessionuc.New(client, sessionuc.Config{
		MaxSessions: 1,
		LatestOnly:  c.Bool("latest-only"),
	}, logger)

	ctx, cancel := context.WithTimeout(c.Context, timeout)
	defer cancel()

	tab, err := openTab(ctx, sessions, address, query)
	if err != nil {
		return err
	}
	defer func() { _ = sessions.Close(tab.ID()) }()

	logger.Info("waiting for search", zap.String("session_id", tab.ID()), zap.Duration("timeout", timeout))
	if err := tab.Wait(ctx); err != nil {
		return fmt.Errorf("search did not finish: %w", err)
	}
	if err := tab.LastError(); err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tab.View()); err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	return nil
}

// resolveTarget picks what to load: --url wins over --query, and the first
// positional arg stands in for a missing --query.
func resolveTarget(urlFlag, queryFlag string, args []string) (address, query string, err error) {
	address = strings.TrimSpace(urlFlag)
	query = queryFlag
	if query == "" && len(args) > 0 {
		query = args[0]
	}
	if query == "" && address == "" {
		return "", "", errors.New("either --query or --url is required")
	}
	return address, query, nil
}

// openTab opens address when set, otherwise submits query from the home page.
func openTab(ctx context.Context, sessions *sessionuc.Service, address, query string) (*sessionuc.Tab, error) {
	if address != "" {
		tab, err := sessions.Open(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", address, err)
		}
		return tab, nil
	}

	tab, err := sessions.Open(ctx, "/")
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if _, err := sessions.Submit(ctx, tab.ID(), query); err != nil {
		return nil, fmt.Errorf("submit %q: %w", query, err)
	}
	return tab, nil
}
