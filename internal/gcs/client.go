// ABOUTME: GCS client that reads objects into memory for file and feed import
// ABOUTME: Supports ADC authentication, emulator mode, and an allowed-prefix guard

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrObjectTooLarge is returned when an object exceeds Config.MaxSize.
var ErrObjectTooLarge = errors.New("object exceeds maximum size")

// Config holds GCS client configuration.
type Config struct {
	// Bucket restricts reads to one bucket when set.
	Bucket string

	// AllowedPrefix restricts reads to objects under this path when set.
	AllowedPrefix string

	// CredentialsFile is the path to service account JSON (optional).
	// If empty, uses Application Default Credentials (ADC).
	CredentialsFile string

	// EmulatorHost is the GCS emulator host (e.g., "localhost:4443").
	// When set, the client uses HTTP directly instead of the Go SDK.
	// This works around googleapis/google-cloud-go#6139 where the SDK
	// uses path-style URLs that fake-gcs-server doesn't support.
	EmulatorHost string

	// MaxSize caps object size in bytes (0 = unlimited).
	MaxSize int64
}

// Object is a fetched object with its metadata.
type Object struct {
	Bucket string
	Name   string
	Data   []byte
}

// Client wraps the GCS storage client.
type Client struct {
	storageClient *storage.Client
	httpClient    *http.Client
	config        Config
	emulatorHost  string
}

// NewClient creates a new GCS client.
// When STORAGE_EMULATOR_HOST is set or EmulatorHost is configured,
// the client uses HTTP directly to work around Go SDK limitations.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	emulatorHost := cfg.EmulatorHost
	if emulatorHost == "" {
		emulatorHost = os.Getenv("STORAGE_EMULATOR_HOST")
	}

	if emulatorHost != "" {
		return &Client{
			httpClient:   &http.Client{},
			config:       cfg,
			emulatorHost: emulatorHost,
		}, nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &Client{
		storageClient: client,
		config:        cfg,
	}, nil
}

// Close closes the GCS client.
func (c *Client) Close() error {
	if c.storageClient != nil {
		return c.storageClient.Close()
	}
	return nil
}

// IsEmulatorMode returns true if the client is configured for emulator mode.
func (c *Client) IsEmulatorMode() bool {
	return c.emulatorHost != ""
}

// Fetch reads a gs:// object into memory.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	obj, err := c.FetchObject(ctx, uri)
	if err != nil {
		return nil, err
	}
	return obj.Data, nil
}

// FetchObject reads a gs:// object after checking bucket and prefix guards.
func (c *Client) FetchObject(ctx context.Context, uri string) (*Object, error) {
	bucket, name, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing URI: %w", err)
	}
	if name == "" {
		return nil, fmt.Errorf("URI %q names no object", uri)
	}
	if c.config.Bucket != "" && bucket != c.config.Bucket {
		return nil, fmt.Errorf("bucket mismatch: URI has %q, client configured for %q", bucket, c.config.Bucket)
	}
	if c.config.AllowedPrefix != "" && !ValidatePrefix(name, c.config.AllowedPrefix) {
		return nil, fmt.Errorf("object %q is outside allowed prefix %q", name, c.config.AllowedPrefix)
	}

	var r io.ReadCloser
	if c.emulatorHost != "" {
		r, err = c.openViaHTTP(ctx, bucket, name)
	} else {
		r, err = c.storageClient.Bucket(bucket).Object(name).NewReader(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("opening object %s/%s: %w", bucket, name, err)
	}
	defer r.Close()

	data, err := c.readLimited(r)
	if err != nil {
		return nil, fmt.Errorf("reading object %s/%s: %w", bucket, name, err)
	}

	return &Object{Bucket: bucket, Name: name, Data: data}, nil
}

// openViaHTTP opens an object using the JSON API media endpoint.
// This works around googleapis/google-cloud-go#6139 where the Go SDK
// uses path-style URLs that fake-gcs-server doesn't support for reads.
func (c *Client) openViaHTTP(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	downloadURL := fmt.Sprintf("http://%s/storage/v1/b/%s/o/%s?alt=media",
		c.emulatorHost, bucket, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request to %s: %w", downloadURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) readLimited(r io.Reader) ([]byte, error) {
	if c.config.MaxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, c.config.MaxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.config.MaxSize {
		return nil, ErrObjectTooLarge
	}
	return data, nil
}

// ParseGCSURI parses a gs:// URI into bucket and object path.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if uri == "" {
		return "", "", errors.New("empty URI")
	}

	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: must start with gs://")
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if parts[0] == "" {
		return "", "", errors.New("invalid GCS URI: missing bucket")
	}

	bucket = parts[0]
	if len(parts) > 1 {
		object = parts[1]
	}

	return bucket, object, nil
}

// ValidatePrefix reports whether object sits under prefix without traversal.
func ValidatePrefix(object, prefix string) bool {
	if path.Clean(object) != object {
		return false
	}
	return strings.HasPrefix(object, strings.TrimSuffix(prefix, "/")+"/")
}

// ObjectName returns the last path element of a gs:// URI, used as a file name.
func ObjectName(uri string) string {
	_, object, err := ParseGCSURI(uri)
	if err != nil || object == "" {
		return ""
	}
	return path.Base(object)
}
