package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDownloadFailed wraps failures fetching the remote result bytes
	ErrDownloadFailed = errors.New("downloading remote result failed")
	// ErrWriteFailed wraps failures persisting bytes to the local store
	ErrWriteFailed = errors.New("writing asset failed")
	// ErrBadIdentifier is returned for identifiers or categories that are
	// unsafe to resolve, before any filesystem access
	ErrBadIdentifier = errors.New("invalid asset identifier or category")
	// ErrNotFound is returned when no asset exists for the identifier
	ErrNotFound = errors.New("asset not found")
)

// Category is one of the two ephemeral storage partitions
type Category string

const (
	CategoryTemporary Category = "temporary"
	CategoryOutput    Category = "output"
)

// ParseCategory validates a caller-supplied category string
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryTemporary, CategoryOutput:
		return Category(s), nil
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrBadIdentifier, s)
}

// Asset is a materialized remote result held in the ephemeral store
type Asset struct {
	Identifier  string
	Category    Category
	ContentType string
	Size        int64
	LocalURL    string
}

// Config holds store configuration
type Config struct {
	Root            string
	PublicBaseURL   string
	StaticWritable  bool
	DownloadTimeout time.Duration
}

// Store owns the ephemeral asset roots. Assets are write-once files
// named by opaque identifier under one category root each.
type Store struct {
	config     Config
	httpClient *http.Client
}

func NewStore(cfg Config) (*Store, error) {
	for _, category := range []Category{CategoryTemporary, CategoryOutput} {
		if err := os.MkdirAll(filepath.Join(cfg.Root, string(category)), 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating %s root: %v", ErrWriteFailed, category, err)
		}
	}

	timeout := cfg.DownloadTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Store{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Materialize downloads the remote result and persists it under a fresh
// identifier in the given category root. The write goes to a temp file
// first and is renamed into place, so a failed or cancelled download
// never leaves a half-written asset.
func (s *Store) Materialize(ctx context.Context, remoteURL string, category Category) (*Asset, error) {
	data, err := s.download(ctx, remoteURL)
	if err != nil {
		return nil, err
	}

	contentType := http.DetectContentType(data)
	identifier := uuid.NewString() + extensionFor(contentType)

	dir := filepath.Join(s.config.Root, string(category))
	tmp, err := os.CreateTemp(dir, ".materialize-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	finalPath := filepath.Join(dir, identifier)
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	log.Printf("Materialized asset %s (%s, %d bytes) into %s", identifier, contentType, len(data), category)

	return &Asset{
		Identifier:  identifier,
		Category:    category,
		ContentType: contentType,
		Size:        int64(len(data)),
		LocalURL:    s.assetURL(identifier, category),
	}, nil
}

// Resolve maps (identifier, category) to a servable file path. It
// rejects traversal attempts before touching the filesystem and never
// resolves outside the category root.
func (s *Store) Resolve(identifier string, category Category) (string, error) {
	if identifier == "" ||
		strings.ContainsAny(identifier, `/\`) ||
		strings.Contains(identifier, "..") {
		return "", fmt.Errorf("%w: %q", ErrBadIdentifier, identifier)
	}

	root := filepath.Join(s.config.Root, string(category))
	path := filepath.Join(root, identifier)
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrBadIdentifier, identifier)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}

	return path, nil
}

// Sweep deletes assets older than maxAge from both category roots and
// returns the number of files removed. Leftover temp files from
// interrupted writes age out the same way.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, category := range []Category{CategoryTemporary, CategoryOutput} {
		dir := filepath.Join(s.config.Root, string(category))
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("reading %s root: %w", category, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
					removed++
				}
			}
		}
	}

	return removed, nil
}

func (s *Store) download(ctx context.Context, remoteURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrDownloadFailed, err)
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrDownloadFailed, res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrDownloadFailed, err)
	}

	return data, nil
}

// assetURL returns the resolvable URL for an asset: a direct static URL
// when the static root is writable and served, the proxy endpoint form
// otherwise.
func (s *Store) assetURL(identifier string, category Category) string {
	if s.config.StaticWritable {
		return fmt.Sprintf("%s/uploads/%s/%s", s.config.PublicBaseURL, category, identifier)
	}
	query := url.Values{}
	query.Set("identifier", identifier)
	query.Set("category", string(category))
	return fmt.Sprintf("%s/api/assets?%s", s.config.PublicBaseURL, query.Encode())
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
