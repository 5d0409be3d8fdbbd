package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joeychilson/sitemapgen/config"
	"github.com/joeychilson/sitemapgen/logger"
	"github.com/joeychilson/sitemapgen/retry"
	"github.com/joeychilson/sitemapgen/source"
	"github.com/joeychilson/sitemapgen/watch"
	"github.com/joeychilson/sitemapgen/writer"
)

type flags struct {
	configFile    string
	site          string
	input         string
	out           string
	baseURL       string
	trailingSlash string
	pretty        bool
	gzip          bool
	watch         bool
	logLevel      string
	set           map[string]bool
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("sitemapgen", flag.ContinueOnError)
	fs.StringVar(&f.configFile, "config", "", "path to a YAML config file")
	fs.StringVar(&f.site, "site", "", "site from the config file to generate (default: all sites)")
	fs.StringVar(&f.input, "input", "", "entries file (.txt, .csv, .ndjson, .jsonl, .json, .xml)")
	fs.StringVar(&f.out, "out", "", "output directory")
	fs.StringVar(&f.baseURL, "base-url", "", "base URL prepended to every location")
	fs.StringVar(&f.trailingSlash, "trailing-slash", "", "true adds a trailing slash, false removes it, empty keeps locations as given")
	fs.BoolVar(&f.pretty, "pretty", false, "indent the XML output")
	fs.BoolVar(&f.gzip, "gzip", false, "gzip every file and append .gz")
	fs.BoolVar(&f.watch, "watch", false, "regenerate when the input changes")
	fs.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides resolved settings with the flags given on the command line.
func (f *flags) apply(r *config.ResolvedConfig) error {
	if f.input != "" {
		r.Input = f.input
	}
	if f.out != "" {
		r.Output.Dir = f.out
	}
	if f.baseURL != "" {
		r.BaseURL = f.baseURL
	}
	if f.set["trailing-slash"] {
		if f.trailingSlash == "" {
			r.TrailingSlash = nil
		} else {
			b, err := strconv.ParseBool(f.trailingSlash)
			if err != nil {
				return fmt.Errorf("-trailing-slash must be true, false or empty: %w", err)
			}
			r.TrailingSlash = &b
		}
	}
	if f.set["pretty"] {
		r.Pretty = f.pretty
	}
	if f.set["gzip"] {
		r.Output.Gzip = &f.gzip
	}
	return nil
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level, err := logger.ParseLevel(f.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.NewText(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, log); err != nil {
		log.Error("sitemap generation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f *flags, log logger.Logger) error {
	cfg := config.New()
	if f.configFile != "" {
		loaded, err := config.LoadConfig(f.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	sites, err := resolveSites(cfg, f)
	if err != nil {
		return err
	}

	for _, site := range sites {
		if err := generate(ctx, site, log); err != nil {
			return err
		}
	}

	if !f.watch {
		return nil
	}

	inputs := make([]string, 0, len(sites))
	for _, site := range sites {
		inputs = append(inputs, site.Input)
	}
	w, err := watch.New(inputs)
	if err != nil {
		return err
	}
	return w.WithLogger(log).Run(ctx, func(ctx context.Context, e watch.Event) error {
		for _, site := range sites {
			if err := generate(ctx, site, log); err != nil {
				return err
			}
		}
		return nil
	})
}

// resolveSites returns the sites to generate: the one named by -site, every
// configured site, or the defaults alone when none are configured or -input
// is given.
func resolveSites(cfg *config.Config, f *flags) ([]config.ResolvedConfig, error) {
	names := []string{f.site}
	if f.site == "" && f.input == "" && len(cfg.Sites) > 0 {
		names = names[:0]
		for _, s := range cfg.Sites {
			names = append(names, s.Name)
		}
	}

	sites := make([]config.ResolvedConfig, 0, len(names))
	for _, name := range names {
		r, err := cfg.ForSite(name)
		if err != nil {
			return nil, err
		}
		if err := f.apply(&r); err != nil {
			return nil, err
		}
		if r.Input == "" {
			return nil, errors.New("no input file: pass -input or set sites[].input in the config")
		}
		sites = append(sites, r)
	}
	return sites, nil
}

func generate(ctx context.Context, site config.ResolvedConfig, log logger.Logger) error {
	if site.Name != "" {
		log = log.With("site", site.Name)
	}

	entries, err := source.ReadFile(site.Input)
	if err != nil {
		return err
	}

	store := writer.NewOSStore(site.Output.GetDir())
	var dest writer.Store = store
	if site.Output.Retry.IsEnabled() {
		dest = retry.NewStore(store, site.Output.Retry).WithLogger(log)
	}

	result, err := writer.New(dest, site.WriterOptions()).
		WithLogger(log).
		Write(ctx, entries, site.SitemapOptions())
	if err != nil {
		return fmt.Errorf("failed to write sitemaps to %s: %w", store.Dir(), err)
	}

	if result.Pages == 0 {
		log.Warn("input has no entries, nothing written", "input", site.Input)
		return nil
	}
	for _, file := range result.Files {
		log.Debug("file", "name", file.Name, "bytes", file.Bytes, "skipped", file.Skipped)
	}
	log.Info("generated sitemaps",
		"input", site.Input,
		"dir", store.Dir(),
		"entries", result.Entries,
		"files", len(result.Files),
		"written", result.Written())
	return nil
}
