package downloader

import (
	"context"
	"sync"
	"time"
)

// Memory caches downloaded snapshot/feed bodies in memory, keyed by
// URL and headers. This backs Manager's snapshot fetches (cmd/main.go's
// newDownloader) where a process restart losing the cache is fine,
// since the snapshot itself is already content-addressed in storage.
type Memory struct {
	mutex   sync.Mutex
	records map[string]memoryRecord

	TimeNow func() time.Time
}

type memoryRecord struct {
	data       []byte
	expiration time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: map[string]memoryRecord{},
		TimeNow: time.Now,
	}
}

func (d *Memory) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	key := cacheKey(url, headers)

	if options.Cache {
		d.mutex.Lock()
		defer d.mutex.Unlock()

		if record, ok := d.records[key]; ok {
			if record.expiration.After(d.TimeNow()) {
				return record.data, nil
			}
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	if options.Cache {
		d.records[key] = memoryRecord{
			data:       body,
			expiration: d.TimeNow().Add(options.CacheTTL),
		}
	}

	return body, nil
}
