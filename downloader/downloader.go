// Package downloader fetches snapshot bundles and disruption feeds
// over HTTP, with an optional cache in front (GetOptions.Cache) so a
// caller polling the same source repeatedly, such as
// disruption.FetchAndApply, doesn't always pay for a round trip.
// Manager's snapshot fetches do not set Cache and always hit the
// network.
package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/pkg/errors"
)

type GetOptions struct {
	MaxSize  int
	Timeout  time.Duration
	Cache    bool
	CacheTTL time.Duration
}

// A thing capable of downloading a file, optionally with caching
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

// Gets a file. Doesn't cache. Provided as convenience for
// implementing custom Downloaders.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	client := &http.Client{
		Timeout: options.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "making request")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("source returned status %d", resp.StatusCode)
	}

	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(options.MaxSize))
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "reading body")
	}

	return body, nil
}

// cacheKey identifies a fetch for caching purposes. Two sources behind
// the same URL but fetched with different headers (for example, two
// consumers of the same disruption feed authenticated with distinct
// API keys, per Manager.Headers/SnapshotConsumer) must not collide on
// one cache entry, so the key folds the headers in alongside the URL.
func cacheKey(url string, headers map[string]string) string {
	if len(headers) == 0 {
		return url
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(url))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(headers[k]))
	}

	return url + "#" + hex.EncodeToString(h.Sum(nil))
}
