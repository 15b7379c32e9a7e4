package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aeroshield/stormrisk-cli/internal/atcf"
	"github.com/aeroshield/stormrisk-cli/internal/fetcher"
	"github.com/aeroshield/stormrisk-cli/pkg/weatherlab"
)

var (
	fetchSource string
	fetchDate   string
	fetchDays   int
	fetchOut    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download forecast data for offline analysis",
	Long: "Downloads WeatherLab paired-track CSVs or NHC best-track files into the data " +
		"directory. WeatherLab fetches walk backward from --date and skip unpublished days; " +
		"cached files are revalidated with ETags so unchanged cycles are not re-downloaded.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		out := fetchOut
		if out == "" {
			out = cfg.Fetch.DataDir
		}

		switch fetchSource {
		case "weatherlab":
			return fetchWeatherLab(ctx, out)
		case "atcf":
			return fetchATCF(ctx, out)
		default:
			return eris.Errorf("unknown --source %q, want weatherlab or atcf", fetchSource)
		}
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSource, "source", "weatherlab", "data source (weatherlab or atcf)")
	fetchCmd.Flags().StringVar(&fetchDate, "date", "", "last cycle date to fetch (YYYY-MM-DD, default today UTC)")
	fetchCmd.Flags().IntVar(&fetchDays, "days", 1, "number of days to fetch, walking backward from --date")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "output directory (default: fetch.data_dir)")
	rootCmd.AddCommand(fetchCmd)
}

// newFetcher builds the shared HTTP fetcher from config. A configured rate
// replaces the per-host defaults for every known host.
func newFetcher() *fetcher.HTTPFetcher {
	opts := fetcher.HTTPOptions{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	}
	if cfg.Fetch.RatePerSec > 0 {
		burst := cfg.Fetch.Burst
		if burst <= 0 {
			burst = 1
		}
		for host := range opts.RateLimiters {
			opts.RateLimiters[host] = rate.NewLimiter(rate.Limit(cfg.Fetch.RatePerSec), burst)
		}
	}
	return fetcher.NewHTTPFetcher(opts)
}

func newATCFClient() *atcf.Client {
	return atcf.NewClient(
		atcf.WithHTTP(newFetcher()),
		atcf.WithFTP(fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.ATCF.TimeoutSecs) * time.Second,
		})),
		atcf.WithStormsURL(cfg.ATCF.StormsURL),
		atcf.WithMirrorURL(cfg.ATCF.MirrorURL),
	)
}

func fetchWeatherLab(ctx context.Context, outDir string) error {
	start, err := resolveFetchDate()
	if err != nil {
		return err
	}
	days := fetchDays
	if days <= 0 {
		days = 1
	}

	dir := filepath.Join(outDir, "weatherlab")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create %s", dir)
	}

	f := newFetcher()
	wl := newForecastClient()

	var fetched, unchanged, missing atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, -i)
		g.Go(func() error {
			status, err := fetchCycle(gctx, f, wl, dir, date)
			if errors.Is(err, fetcher.ErrNotFound) {
				zap.L().Info("forecast not published", zap.String("date", date.Format("2006-01-02")))
				missing.Add(1)
				return nil
			}
			if err != nil {
				return err
			}
			if status == cycleUnchanged {
				unchanged.Add(1)
			} else {
				fetched.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("fetched %d, unchanged %d, unpublished %d (of %d days) into %s\n",
		fetched.Load(), unchanged.Load(), missing.Load(), days, dir)
	return nil
}

const (
	cycleFetched   = "fetched"
	cycleUnchanged = "unchanged"
)

// fetchCycle downloads one day's paired CSV unless the cached copy is still
// current. The upstream ETag rides in a sidecar file next to the CSV.
func fetchCycle(ctx context.Context, f *fetcher.HTTPFetcher, wl weatherlab.Client, dir string, date time.Time) (string, error) {
	url := wl.ForecastURL(date)
	dest := filepath.Join(dir, path.Base(url))
	sidecar := dest + ".etag"

	etag := ""
	if _, err := os.Stat(dest); err == nil {
		if b, err := os.ReadFile(sidecar); err == nil {
			etag = strings.TrimSpace(string(b))
		}
	}

	body, newTag, changed, err := f.DownloadIfChanged(ctx, url, etag)
	if err != nil {
		return "", err
	}
	if !changed {
		return cycleUnchanged, nil
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "create %s", dest)
	}
	n, err := io.Copy(file, body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", eris.Wrapf(err, "write %s", dest)
	}

	if newTag != "" {
		if err := os.WriteFile(sidecar, []byte(newTag), 0o644); err != nil {
			zap.L().Warn("write etag sidecar", zap.String("path", sidecar), zap.Error(err))
		}
	}

	zap.L().Info("fetched forecast",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int64("bytes", n),
	)
	return cycleFetched, nil
}

func fetchATCF(ctx context.Context, outDir string) error {
	dir := filepath.Join(outDir, "atcf")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create %s", dir)
	}

	ac := newATCFClient()
	storms, err := ac.ActiveStorms(ctx)
	if err != nil {
		return err
	}
	if len(storms) == 0 {
		fmt.Println("no active storms")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, storm := range storms {
		g.Go(func() error {
			rc, err := ac.OpenBDeck(gctx, storm.ID)
			if err != nil {
				return err
			}
			defer rc.Close() //nolint:errcheck

			dest := filepath.Join(dir, fmt.Sprintf("b%s.dat", strings.ToLower(storm.ID)))
			file, err := os.Create(dest)
			if err != nil {
				return eris.Wrapf(err, "create %s", dest)
			}
			n, err := io.Copy(file, rc)
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return eris.Wrapf(err, "write %s", dest)
			}

			zap.L().Info("fetched best track",
				zap.String("storm", storm.ID),
				zap.String("name", storm.Name),
				zap.Int64("bytes", n),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("fetched %d best tracks into %s\n", len(storms), dir)
	return nil
}

func resolveFetchDate() (time.Time, error) {
	if fetchDate == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse("2006-01-02", fetchDate)
	if err != nil {
		return time.Time{}, eris.Errorf("bad --date %q, want YYYY-MM-DD", fetchDate)
	}
	return d, nil
}
