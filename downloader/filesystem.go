package downloader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Filesystem persists cached fetch bodies to a JSON file on disk, so
// the cache survives across CLI invocations. cmd/disrupt.go uses this
// for its --feed-url poll, the one fetch in this domain frequent
// enough for an on-disk cache to matter (a disruption feed is polled
// on every invocation, unlike a snapshot bundle which is ingested once
// and thereafter served from content-addressed storage).
type Filesystem struct {
	Path    string
	Records map[string]fsRecord

	mutex sync.Mutex
}

type fsRecord struct {
	Body        string `json:"body"`
	RetrievedAt string `json:"retrieved_at"`
}

func NewFilesystem(path string) (*Filesystem, error) {
	fs := &Filesystem{
		Path:    path,
		Records: map[string]fsRecord{},
	}

	err := fs.load()
	if err != nil {
		return nil, err
	}

	return fs, nil
}

func (f *Filesystem) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {

	f.mutex.Lock()
	defer f.mutex.Unlock()

	key := cacheKey(url, headers)

	if options.Cache {
		if record, found := f.Records[key]; found {
			retrievedAt, err := time.Parse(time.RFC3339, record.RetrievedAt)
			if err != nil {
				return nil, errors.Wrap(err, "parsing cached retrieval time")
			}
			if retrievedAt.Add(options.CacheTTL).After(time.Now()) {
				body, err := base64.StdEncoding.DecodeString(record.Body)
				if err != nil {
					return nil, errors.Wrap(err, "decoding cached body")
				}
				return body, nil
			}
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, errors.Wrap(err, "fetching")
	}

	if options.Cache {
		f.Records[key] = fsRecord{
			Body:        base64.StdEncoding.EncodeToString(body),
			RetrievedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := f.save(); err != nil {
			return nil, errors.Wrap(err, "saving cache")
		}
	}

	return body, nil
}

func (f *Filesystem) load() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	_, err := os.Stat(f.Path)
	if os.IsNotExist(err) {
		return nil
	}

	buf, err := os.ReadFile(f.Path)
	if err != nil {
		return errors.Wrap(err, "reading cache file")
	}

	if err := json.Unmarshal(buf, &f.Records); err != nil {
		return errors.Wrap(err, "unmarshaling cache file")
	}

	return nil
}

func (f *Filesystem) save() error {
	buf, err := json.Marshal(f.Records)
	if err != nil {
		return errors.Wrap(err, "marshaling cache file")
	}

	if err := os.WriteFile(f.Path, buf, 0644); err != nil {
		return errors.Wrap(err, "writing cache file")
	}

	return nil
}
