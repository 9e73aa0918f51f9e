package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ligustah/photofetch/internal/config"
	"github.com/ligustah/photofetch/internal/pipeline"
	"github.com/ligustah/photofetch/internal/progress"
	"github.com/ligustah/photofetch/internal/resolver"
	"github.com/ligustah/photofetch/internal/storage"
	"github.com/ligustah/photofetch/pkg/ledger"
)

func newFetchCmd(a *app) *cobra.Command {
	var flags config.Config
	var flickrEndpoint string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Search for images and download them into a folder",
		Long: `Resolve a search term into image URLs and download them into a folder.

Each saved image gets the next serial number of the folder and a record in
the folder's ledger. Interrupting the command stops queued downloads; images
already saved keep their records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg = cfg.Merge(flags)
			return a.fetch(cmd.Context(), cfg, flickrEndpoint)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.Folder, "folder", "f", "", "Target folder: local directory or bucket URL")
	f.StringVarP(&flags.Search, "search", "s", "", "Search term")
	f.IntVarP(&flags.Count, "count", "n", 0, "Number of images to resolve (default 20)")
	f.IntVarP(&flags.Workers, "workers", "w", 0, "Number of parallel download workers (default 5)")
	f.StringVar(&flags.Resolver, "resolver", "", "Image source: flickr or list (default flickr)")
	f.StringVar(&flags.ListFile, "list-file", "", "File of URLs for the list resolver")
	f.StringVar(&flags.Ledger, "ledger", "", "Ledger backend: json, bolt or sqlite (default json)")
	f.StringVar(&flags.FilePattern, "file-pattern", "", "Base file name pattern (default image_%d)")
	f.IntVar(&flags.Retry.MaxRetries, "retries", 0, "Attempts per image (default 3)")
	f.DurationVar(&flags.Retry.Delay, "retry-delay", 0, "Delay between attempts (default 3s)")
	f.DurationVar(&flags.RequestTimeout, "timeout", 0, "Per-request timeout (default 10s)")
	f.DurationVar(&flags.PollInterval, "poll-interval", 0, "Progress refresh interval (default 100ms)")
	f.StringVar(&flags.UserAgent, "user-agent", "", "User-Agent header for downloads")
	f.StringVar(&flags.Flickr.APIKey, "flickr-key", "", "Flickr API key")
	f.StringVar(&flags.Flickr.APISecret, "flickr-secret", "", "Flickr API secret")
	f.StringVar(&flags.Flickr.License, "license", "", "Flickr license IDs (default 1,2,3,4,5,6)")
	f.StringVar(&flickrEndpoint, "flickr-endpoint", "", "Flickr REST endpoint")
	f.MarkHidden("flickr-endpoint")

	return cmd
}

func (a *app) fetch(ctx context.Context, cfg config.Config, flickrEndpoint string) error {
	if err := cfg.Validate(); err != nil {
		return exitWith(ExitInvalidArgs, "%w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			a.logf("Received interrupt, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	folder, log, err := openFolder(ctx, cfg)
	if err != nil {
		return err
	}
	defer folder.Close()
	defer log.Close()

	res := a.newResolver(cfg, flickrEndpoint)
	tasks, err := res.Resolve(ctx, cfg.Search, cfg.Count)
	if err != nil {
		if ctx.Err() != nil {
			return exitWith(ExitInterrupted, "%w", err)
		}
		return exitWith(ExitResolverError, "%w", err)
	}

	opts := pipeline.Options{
		Workers:        cfg.Workers,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		RequestTimeout: cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
		FilePattern:    cfg.FilePattern,
		Folder:         folder,
		Ledger:         log,
	}
	if a.verbose {
		opts.Logf = a.logf
	}

	run, err := pipeline.Start(ctx, tasks, opts)
	if err != nil {
		return exitWith(ExitStorageError, "%w", err)
	}
	if a.verbose {
		a.logf("Run %s starts at serial %d", run.ID(), run.FirstSerial())
	}

	reporter := progress.NewReporter(progress.Options{
		Total:          run.Total(),
		Workers:        cfg.Workers,
		Output:         a.stderr,
		UpdateInterval: cfg.PollInterval,
		SearchTerm:     cfg.Search,
		Folder:         folder.Location(),
	})
	// Every task ends in exactly one event, so the reporter returns once the
	// run is fully accounted for, interrupted or not.
	reporter.Run(context.Background(), run)
	run.Wait()

	failures := run.Failures()
	if run.Cancelled() {
		a.logf("Interrupted: %d images saved, %d not downloaded", reporter.Tracker().Completed(), len(failures))
		return &exitError{code: ExitInterrupted, err: pipeline.ErrCancelled}
	}
	if len(failures) > 0 {
		a.logf("%d images failed:", len(failures))
		for _, f := range failures {
			a.logf("  %s: %v", f.URL, f.Err)
		}
		return exitWith(ExitPartialFailure, "%d of %d images failed", len(failures), run.Total())
	}
	return nil
}

func (a *app) newResolver(cfg config.Config, flickrEndpoint string) resolver.Resolver {
	if cfg.Resolver == config.ResolverList {
		return resolver.NewList(cfg.ListFile)
	}
	opts := resolver.FlickrOptions{
		APIKey:    cfg.Flickr.APIKey,
		APISecret: cfg.Flickr.APISecret,
		License:   cfg.Flickr.License,
		Endpoint:  flickrEndpoint,
	}
	if a.verbose {
		opts.Logf = a.logf
	}
	return resolver.NewFlickr(opts)
}

// openFolder opens the target folder and its ledger.
func openFolder(ctx context.Context, cfg config.Config) (*storage.Folder, ledger.Log, error) {
	backend, err := ledger.ParseBackend(cfg.Ledger)
	if err != nil {
		return nil, nil, exitWith(ExitInvalidArgs, "%w", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	folder, err := storage.Open(openCtx, cfg.Folder)
	if err != nil {
		return nil, nil, exitWith(ExitStorageError, "%w", err)
	}

	log, err := ledger.Open(openCtx, backend, folder.Bucket(), folder.Dir())
	if err != nil {
		folder.Close()
		return nil, nil, exitWith(ExitStorageError, "open ledger: %w", err)
	}
	return folder, log, nil
}
