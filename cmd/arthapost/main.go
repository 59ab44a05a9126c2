package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/bkhanal/arthapost/pkg/config"
	"github.com/bkhanal/arthapost/pkg/content"
	"github.com/bkhanal/arthapost/pkg/pipeline"
	"github.com/bkhanal/arthapost/pkg/publish"
	"github.com/bkhanal/arthapost/pkg/rewrite"
	"github.com/bkhanal/arthapost/pkg/source"
	"github.com/bkhanal/arthapost/pkg/store"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Printf("[ERROR] failed to load config: %v", err)
		os.Exit(1)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	setupLog(opts.Debug, cfg.LLM.APIKey)

	log.Printf("[INFO] starting arthapost version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err = run(ctx, cfg)
	cancel()

	if err != nil {
		log.Printf("[ERROR] run failed: %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] run complete")
}

// run wires all components and executes a single pipeline pass
func run(ctx context.Context, cfg *config.Config) error {
	// the run performs no fetching or posting without a publishing credential
	token, err := publish.Authenticate(ctx,
		&publish.ServiceAccountStrategy{EnvVar: cfg.Auth.ServiceAccountEnv, Scope: publish.BloggerScope},
		&publish.CachedTokenStrategy{Path: cfg.Auth.TokenFile},
		&publish.StaticTokenStrategy{EnvVar: cfg.Auth.StaticTokenEnv},
	)
	if err != nil {
		if errors.Is(err, publish.ErrNoCredentials) {
			return fmt.Errorf("cannot continue without publishing credentials: %w", err)
		}
		return fmt.Errorf("authenticate: %w", err)
	}

	dedupStore, err := store.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create dedup store: %w", err)
	}

	sources := []pipeline.Source{
		source.NewAPISource(cfg.Sources.APIURL, "bajarkochirfar.com", cfg.Sources.Categories,
			cfg.Sources.Timeout, cfg.Sources.UserAgent),
		source.NewFeedSource(cfg.Sources.FeedURL, "nepsestock.com",
			cfg.Sources.Timeout, cfg.Sources.UserAgent),
	}

	var extractor pipeline.Extractor
	if cfg.Extraction.Enabled {
		extractor = content.NewHTTPExtractor(cfg.Extraction)
	}

	publisher := publish.NewBlogger(cfg.Blog.Endpoint, cfg.Blog.ID, token, cfg.Blog.Labels, cfg.Blog.Timeout)

	p := pipeline.New(pipeline.Params{
		Sources:   sources,
		Rewriter:  rewrite.NewRewriter(cfg.LLM),
		Publisher: publisher,
		Store:     dedupStore,
		Extractor: extractor,
		MaxPosts:  cfg.Run.MaxPosts,
		PostDelay: cfg.Run.PostDelay,
	})

	stats, err := p.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("[INFO] fetched %d, processed %d, published %d, skipped %d",
		stats.Fetched, stats.Processed, stats.Published, stats.Skipped)
	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(os.Stdout), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	// mask credentials in log output
	var secrets []string
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
