// Package batch downloads a list of pages through the intercepting transport
// and writes the restored images to a directory.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/crypto"
)

// ErrPageTooLarge is returned for a page body over the size limit.
var ErrPageTooLarge = errors.New("page body too large")

// Page is one entry of a page list.
type Page struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Result describes one written page.
type Result struct {
	Index int
	Path  string
	MIME  string
	Bytes int
}

// LoadPages reads a JSON page list. Both `["url", ...]` and `[{"url": ...}, ...]` are accepted.
func LoadPages(r io.Reader) ([]Page, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding page list: %w", err)
	}

	pages := make([]Page, 0, len(raw))
	for i, item := range raw {
		var p Page
		var plain string
		if err := json.Unmarshal(item, &plain); err == nil {
			p.URL = plain
		} else if err := json.Unmarshal(item, &p); err != nil {
			return nil, fmt.Errorf("decoding page %d: %w", i, err)
		}
		if p.URL == "" {
			return nil, fmt.Errorf("page %d: empty url", i)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// Downloader fetches pages with a bounded number of concurrent requests.
type Downloader struct {
	client      *http.Client
	outDir      string
	concurrency int
	userAgent   string
	maxBody     int64
}

// NewDownloader creates a Downloader writing into outDir.
// concurrency <= 0 means one page at a time.
func NewDownloader(client *http.Client, outDir string, concurrency int, userAgent string) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Downloader{
		client:      client,
		outDir:      outDir,
		concurrency: concurrency,
		userAgent:   userAgent,
		maxBody:     constants.MaxImageBytes,
	}
}

// Run downloads every page. A failed page does not stop the others,
// all failures are joined into the returned error.
func (d *Downloader) Run(ctx context.Context, pages []Page) ([]Result, error) {
	if err := os.MkdirAll(d.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	results := make([]Result, len(pages))
	errs := make([]error, len(pages))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, p := range pages {
		g.Go(func() error {
			res, err := d.download(ctx, i+1, p)
			if err != nil {
				errs[i] = fmt.Errorf("page %d: %w", i+1, err)
				slog.Warn("page failed", "index", i+1, "error", err)
				return nil
			}
			results[i] = res
			slog.Info("page written", "index", i+1, "path", res.Path, "content_type", res.MIME)
			return nil
		})
	}
	_ = g.Wait()

	written := results[:0]
	for i, r := range results {
		if errs[i] == nil {
			written = append(written, r)
		}
	}
	return written, errors.Join(errs...)
}

func (d *Downloader) download(ctx context.Context, index int, p Page) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("building request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBody+1))
	if err != nil {
		return Result{}, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > d.maxBody {
		return Result{}, fmt.Errorf("%w: over %d bytes", ErrPageTooLarge, d.maxBody)
	}

	mime := crypto.SniffMIME(body)
	path := filepath.Join(d.outDir, fmt.Sprintf("page_%03d.%s", index, crypto.ExtensionFor(mime)))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return Result{}, fmt.Errorf("writing %s: %w", path, err)
	}
	return Result{Index: index, Path: path, MIME: mime, Bytes: len(body)}, nil
}
