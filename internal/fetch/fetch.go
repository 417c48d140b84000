// Package fetch implements the ingest pipeline's Fetch step for the
// two source kinds a FetchStep can name: a single HTTP(S) URL, or a
// glob of local files. Each is dispatched to the engine's built-in
// fetch/prepare/read/preprocess/merge call by internal/ingest, which
// only needs bytes written to dest and whether they're safe to cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
)

const (
	kindURL       = "url"
	kindFilesGlob = "filesGlob"

	propertyURL   = "url"
	propertyPath  = "path"
	propertyOrder = "order"

	orderByEventTime = "byEventTime"

	defaultRetries    = 3
	defaultRetryDelay = 2 * time.Second
	httpTimeout       = 60 * time.Second
)

// ErrUnsupportedFetchKind is returned for a FetchStep.Kind this
// Fetcher has no implementation for.
var ErrUnsupportedFetchKind = errors.New("unsupported fetch kind")

// ErrMissingProperty is returned when a fetch step is missing a
// property its kind requires.
var ErrMissingProperty = errors.New("fetch step missing required property")

// Fetcher implements ingest.Fetcher for url and filesGlob sources.
type Fetcher struct {
	HTTPClient *http.Client
}

// New constructs a Fetcher with a default HTTP client.
func New() *Fetcher {
	return &Fetcher{HTTPClient: &http.Client{Timeout: httpTimeout}}
}

// Fetch implements ingest.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, step metadata.FetchStep, dest io.Writer) (bool, error) {
	switch step.Kind {
	case kindURL:
		return f.fetchURL(ctx, step, dest)
	case kindFilesGlob:
		return fetchFilesGlob(step, dest)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedFetchKind, step.Kind)
	}
}

// fetchURL downloads step's url property, retrying transient failures
// with a fixed backoff (mirroring internal/engine/readiness.go's use
// of cenkalti/backoff for bounded-retry I/O). A successfully fetched
// URL is always cacheable: the bytes at a URL only change if the
// publisher republishes them, which a later poll will pick up anyway.
func (f *Fetcher) fetchURL(ctx context.Context, step metadata.FetchStep, dest io.Writer) (bool, error) {
	rawURL, ok := step.Properties[propertyURL].(string)
	if !ok || rawURL == "" {
		return false, fmt.Errorf("%w: %s", ErrMissingProperty, propertyURL)
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, f.downloadOnce(ctx, rawURL, dest)
	}, backoff.WithBackOff(backoff.NewConstantBackOff(defaultRetryDelay)), backoff.WithMaxTries(defaultRetries))
	if err != nil {
		return false, fmt.Errorf("fetch url %s: %w", rawURL, err)
	}

	return true, nil
}

func (f *Fetcher) downloadOnce(ctx context.Context, rawURL string, dest io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if _, err := io.Copy(dest, resp.Body); err != nil {
		return fmt.Errorf("copy body: %w", err)
	}

	return nil
}

// fetchFilesGlob concatenates every local file matching step's path
// glob, in the order named by the optional "order" property. Local
// files are never cached: they're already on disk, so there's nothing
// a cache would save.
func fetchFilesGlob(step metadata.FetchStep, dest io.Writer) (bool, error) {
	pattern, ok := step.Properties[propertyPath].(string)
	if !ok || pattern == "" {
		return false, fmt.Errorf("%w: %s", ErrMissingProperty, propertyPath)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return false, fmt.Errorf("glob %s: %w", pattern, err)
	}

	if order, _ := step.Properties[propertyOrder].(string); order == orderByEventTime {
		sortByEventTimeHint(matches)
	}

	for _, path := range matches {
		if err := appendFile(path, dest); err != nil {
			return false, fmt.Errorf("read %s: %w", path, err)
		}
	}

	return false, nil
}

// sortByEventTimeHint orders glob matches lexically, which is
// event-time order for the common "data-2024-01-01.csv"-style naming
// convention this ordering mode is meant for.
func sortByEventTimeHint(matches []string) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j-1] > matches[j]; j-- {
			matches[j-1], matches[j] = matches[j], matches[j-1]
		}
	}
}

func appendFile(path string, dest io.Writer) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(dest, src)

	return err
}
