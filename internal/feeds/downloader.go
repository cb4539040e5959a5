// ABOUTME: Fetches feed and file bytes from HTTP(S) URLs, gs:// objects, or local paths
// ABOUTME: Enforces a size cap so an oversized response is an error, not a truncated feed

package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrTooLarge is returned when a source exceeds DownloaderConfig.MaxSize.
var ErrTooLarge = errors.New("source exceeds maximum size")

// DownloaderConfig holds configuration for the downloader.
type DownloaderConfig struct {
	// Timeout for HTTP requests.
	Timeout time.Duration

	// UserAgent for HTTP requests.
	UserAgent string

	// MaxSize limits the source size in bytes (0 = unlimited).
	MaxSize int64
}

// DefaultDownloaderConfig returns sensible default configuration.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Timeout:   2 * time.Minute,
		UserAgent: "hikmaai-bytescan/1.0",
		MaxSize:   100 * 1024 * 1024,
	}
}

// ObjectFetcher reads gs:// objects. Implemented by the gcs client.
type ObjectFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Downloader loads source bytes.
type Downloader struct {
	client  *http.Client
	config  DownloaderConfig
	objects ObjectFetcher
}

// NewDownloader creates a downloader. If config is nil, defaults are used.
func NewDownloader(config *DownloaderConfig) *Downloader {
	cfg := DefaultDownloaderConfig()
	if config != nil {
		cfg = *config
	}

	return &Downloader{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
	}
}

// WithObjectFetcher enables gs:// sources.
func (d *Downloader) WithObjectFetcher(f ObjectFetcher) *Downloader {
	d.objects = f
	return d
}

// Load reads a source by scheme: http(s)://, gs://, or a local path.
func (d *Downloader) Load(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return d.Download(ctx, source)
	case strings.HasPrefix(source, "gs://"):
		if d.objects == nil {
			return nil, fmt.Errorf("gs:// source %q requires GCS to be configured", source)
		}
		data, err := d.objects.Fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		if d.config.MaxSize > 0 && int64(len(data)) > d.config.MaxSize {
			return nil, ErrTooLarge
		}
		return data, nil
	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", source, err)
		}
		defer f.Close()
		return d.readLimited(f)
	}
}

// Download fetches data from the given URL.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", d.config.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return d.readLimited(resp.Body)
}

func (d *Downloader) readLimited(r io.Reader) ([]byte, error) {
	if d.config.MaxSize <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading source: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, d.config.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	if int64(len(data)) > d.config.MaxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
