package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/termhub/termsync/errors"
	"github.com/termhub/termsync/internal/iocount"
)

const maxRedirects = 10

// Response is the result of fetching an export from the feed. Body is a
// spooled local copy of the document, so parsing never competes with the
// network for the run's byte accounting.
type Response struct {
	Body          io.ReadCloser
	ContentLength int64
	UpdatedTo     time.Time
}

// Client fetches terminology exports from a remote feed. It spools the
// download to a local file while counting bytes, so the importer can report
// download progress separately from parse progress.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	spoolDir string
	logger   *zap.SugaredLogger

	counter    atomic.Pointer[iocount.Reader]
	totalBytes atomic.Int64
	downloaded atomic.Bool
}

// NewClient creates a feed client. versionCallsPerMinute throttles
// release-version queries; spoolDir holds in-flight download spools.
func NewClient(timeout time.Duration, versionCallsPerMinute int, spoolDir string, logger *zap.SugaredLogger) *Client {
	if versionCallsPerMinute <= 0 {
		versionCallsPerMinute = 30
	}
	c := &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.Newf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
			Transport: &http.Transport{
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(versionCallsPerMinute)), 1),
		spoolDir: spoolDir,
		logger:   logger,
	}
	c.totalBytes.Store(-1)
	return c
}

// FetchFull fetches the full export of the latest release.
func (c *Client) FetchFull(ctx context.Context, feedURL, token string) (*Response, error) {
	return c.fetch(ctx, feedURL, token, nil)
}

// FetchFullForVersion fetches the full export pinned to a specific release.
func (c *Client) FetchFullForVersion(ctx context.Context, feedURL, token, version string) (*Response, error) {
	return c.fetch(ctx, feedURL, token, url.Values{"version": {version}})
}

// FetchSince fetches an incremental export of records updated since the given
// time (snapshot subscriptions).
func (c *Client) FetchSince(ctx context.Context, feedURL, token string, since time.Time) (*Response, error) {
	return c.fetch(ctx, feedURL, token, url.Values{"updatedSince": {since.Format(Layout)}})
}

// ReleaseVersion queries the feed's current release version. Calls are rate
// limited to stay polite toward the feed API.
func (c *Client) ReleaseVersion(ctx context.Context, feedURL, token string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "release version query throttled")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(feedURL, "/")+"/version", nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build version request")
	}
	setAuth(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to query release version")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("release version query returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", errors.Wrap(err, "failed to read version response")
	}

	// Feeds answer either {"version": "..."} or a bare string
	var versioned struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &versioned); err == nil && versioned.Version != "" {
		return versioned.Version, nil
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}

// BytesDownloaded returns bytes received for the fetch in progress (or the
// last completed fetch).
func (c *Client) BytesDownloaded() int64 {
	if counter := c.counter.Load(); counter != nil {
		return counter.Count()
	}
	return 0
}

// TotalBytesToDownload returns the expected download size, or -1 when the feed
// did not report a content length.
func (c *Client) TotalBytesToDownload() int64 {
	return c.totalBytes.Load()
}

// Downloaded reports whether the download phase has completed.
func (c *Client) Downloaded() bool {
	return c.downloaded.Load()
}

func (c *Client) fetch(ctx context.Context, feedURL, token string, query url.Values) (*Response, error) {
	c.counter.Store(nil)
	c.totalBytes.Store(-1)
	c.downloaded.Store(false)

	exportURL := strings.TrimSuffix(feedURL, "/") + "/export"
	if len(query) > 0 {
		exportURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build export request")
	}
	setAuth(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch export from %s", exportURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("export fetch returned %s for %s", resp.Status, exportURL)
	}

	c.totalBytes.Store(resp.ContentLength)

	counter := iocount.NewReader(resp.Body)
	c.counter.Store(counter)

	if err := os.MkdirAll(c.spoolDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create spool directory")
	}
	spool, err := os.CreateTemp(c.spoolDir, "feed-*.json")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create download spool")
	}

	written, err := io.Copy(spool, counter)
	if err != nil {
		spool.Close()
		os.Remove(spool.Name())
		return nil, errors.Wrap(err, "download interrupted")
	}
	c.downloaded.Store(true)

	if c.logger != nil {
		c.logger.Infow("Export downloaded",
			"url", exportURL,
			"bytes", written,
		)
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		spool.Close()
		os.Remove(spool.Name())
		return nil, errors.Wrap(err, "failed to rewind download spool")
	}

	return &Response{
		Body:          &spoolFile{File: spool},
		ContentLength: written,
		UpdatedTo:     updatedTo(resp),
	}, nil
}

// updatedTo derives the feed's "updated to" watermark for the export: an
// explicit header when the feed provides one, the response date otherwise.
func updatedTo(resp *http.Response) time.Time {
	if v := resp.Header.Get("X-Updated-To"); v != "" {
		if t, err := time.ParseInLocation(Layout, v, time.Local); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	if v := resp.Header.Get("Date"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
	}
	return time.Now()
}

func setAuth(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	req.Header.Set("Accept", "application/json")
}

// spoolFile removes the spooled download when closed.
type spoolFile struct {
	*os.File
}

func (s *spoolFile) Close() error {
	err := s.File.Close()
	os.Remove(s.File.Name())
	return err
}
