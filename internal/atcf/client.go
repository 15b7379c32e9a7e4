// Package atcf fetches and parses NOAA ATCF best-track data: the b-deck
// files on the NHC FTP mirror, discovered through the active-storm JSON
// feed or a directory listing of the mirror itself.
package atcf

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/aeroshield/stormrisk-cli/internal/fetcher"
)

// DefaultStormsURL is the NHC feed listing storms under active advisories.
const DefaultStormsURL = "https://www.nhc.noaa.gov/CurrentStorms.json"

// DefaultMirrorURL is the ATCF best-track directory.
const DefaultMirrorURL = "ftp://ftp.nhc.noaa.gov/atcf/btk"

// Getter fetches one URL. The HTTP fetcher satisfies it.
type Getter interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Lister additionally enumerates a remote directory. The FTP fetcher
// satisfies it.
type Lister interface {
	Getter
	List(ctx context.Context, dirURL string) ([]string, error)
}

// Storm is one entry in the NHC active-storm feed. Intensity and pressure
// arrive as strings in the live feed.
type Storm struct {
	ID             string    `json:"id"`
	BinNumber      string    `json:"binNumber"`
	Name           string    `json:"name"`
	Classification string    `json:"classification"`
	Intensity      string    `json:"intensity"`
	Pressure       string    `json:"pressure"`
	Latitude       float64   `json:"latitudeNumeric"`
	Longitude      float64   `json:"longitudeNumeric"`
	LastUpdate     time.Time `json:"lastUpdate"`
}

type currentStorms struct {
	ActiveStorms []Storm `json:"activeStorms"`
}

// Client discovers active storms from the NHC feed and pulls their
// best-track files off the ATCF mirror.
type Client struct {
	http      Getter
	ftp       Lister
	stormsURL string
	mirrorURL string
}

// Option configures the ATCF client.
type Option func(*Client)

// WithHTTP sets the fetcher used for the active-storm feed.
func WithHTTP(g Getter) Option {
	return func(c *Client) { c.http = g }
}

// WithFTP sets the fetcher used for the best-track mirror.
func WithFTP(l Lister) Option {
	return func(c *Client) { c.ftp = l }
}

// WithStormsURL overrides the active-storm feed URL (for testing).
func WithStormsURL(u string) Option {
	return func(c *Client) { c.stormsURL = u }
}

// WithMirrorURL overrides the best-track mirror root (for testing).
func WithMirrorURL(u string) Option {
	return func(c *Client) { c.mirrorURL = u }
}

// NewClient creates an ATCF client backed by the shared HTTP and FTP
// fetchers unless options supply others.
func NewClient(opts ...Option) *Client {
	c := &Client{
		stormsURL: DefaultStormsURL,
		mirrorURL: DefaultMirrorURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			RateLimiters: fetcher.DefaultRateLimiters(),
		})
	}
	if c.ftp == nil {
		c.ftp = fetcher.NewFTPFetcher(fetcher.FTPOptions{})
	}
	return c
}

// ActiveStorms returns the storms NHC currently carries advisories for.
func (c *Client) ActiveStorms(ctx context.Context) ([]Storm, error) {
	body, err := c.http.Download(ctx, c.stormsURL)
	if err != nil {
		return nil, eris.Wrap(err, "atcf: fetch active storms")
	}
	defer body.Close() //nolint:errcheck

	feed, err := fetcher.DecodeJSONObject[currentStorms](body)
	if err != nil {
		return nil, eris.Wrap(err, "atcf: decode active storms")
	}
	return feed.ActiveStorms, nil
}

// BDeckURL returns the mirror URL of a storm's best-track file.
func (c *Client) BDeckURL(stormID string) string {
	return fmt.Sprintf("%s/b%s.dat", c.mirrorURL, strings.ToLower(stormID))
}

// OpenBDeck streams a storm's raw best-track file. The caller closes it.
func (c *Client) OpenBDeck(ctx context.Context, stormID string) (io.ReadCloser, error) {
	rc, err := c.ftp.Download(ctx, c.BDeckURL(stormID))
	if err != nil {
		return nil, eris.Wrapf(err, "atcf: open b-deck for %s", stormID)
	}
	return rc, nil
}

// FetchBestTrack downloads and parses a storm's best track.
func (c *Client) FetchBestTrack(ctx context.Context, stormID string) (*BestTrack, error) {
	rc, err := c.OpenBDeck(ctx, stormID)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	return ParseBDeck(ctx, rc)
}

// ListSeason returns the storm IDs with a best-track file for one basin and
// season, in lowercase ATCF form ("al092025").
func (c *Client) ListSeason(ctx context.Context, basin string, year int) ([]string, error) {
	names, err := c.ftp.List(ctx, c.mirrorURL+"/")
	if err != nil {
		return nil, eris.Wrap(err, "atcf: list mirror")
	}

	prefix := "b" + strings.ToLower(basin)
	suffix := strconv.Itoa(year) + ".dat"
	var ids []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "b"), ".dat"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
