package downloader

import (
	"context"
	"sync"
	"time"
)

// Caches downloaded files in memory
type MemoryDownloader struct {
	mutex sync.Mutex
	cache map[string]downloaderCacheEntry

	TimeNow func() time.Time
}

type downloaderCacheEntry struct {
	body        []byte
	retrievedAt time.Time
}

func NewMemoryDownloader() *MemoryDownloader {
	return &MemoryDownloader{
		cache:   map[string]downloaderCacheEntry{},
		TimeNow: time.Now,
	}
}

func (m *MemoryDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if options.Cache {
		if entry, found := m.cache[url]; found {
			if entry.retrievedAt.Add(options.CacheTTL).After(m.TimeNow()) {
				return entry.body, nil
			}
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	if options.Cache {
		m.cache[url] = downloaderCacheEntry{
			body:        body,
			retrievedAt: m.TimeNow(),
		}
	}

	return body, nil
}

// Forget drops any cached entry for the URL.
func (m *MemoryDownloader) Forget(url string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.cache, url)
}
