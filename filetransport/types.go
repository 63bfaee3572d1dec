/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package filetransport

import (
	"container/list"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	condNone condResult = iota
	condTrue
	condFalse
)

const (
	// DefaultMaxCacheSize bounds the byte sum of cached file contents.
	DefaultMaxCacheSize = 32 << 20

	// DefaultMaxCacheEntries bounds the cached entry count.
	DefaultMaxCacheEntries = 1024

	// DefaultCacheTTL is how long an entry is trusted before it is
	// revalidated against the filesystem.
	DefaultCacheTTL = 60 * time.Second

	// DefaultSendfileChunkSize bounds one streamed write.
	DefaultSendfileChunkSize = 256 << 10

	// DefaultSendfileTimeout bounds one streamed chunk.
	DefaultSendfileTimeout = 30 * time.Second

	// DefaultSendfileMaxRetry is how many times a timed-out chunk is
	// reissued before the response fails.
	DefaultSendfileMaxRetry = 3
)

var (
	// ErrNoRoot is returned by New when the configured root directory
	// does not exist or is not a directory.
	ErrNoRoot = errors.New("filetransport: root directory does not exist")

	htmlReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		// "&#34;" is shorter than "&quot;".
		`"`, "&#34;",
		// "&#39;" is shorter than "&apos;" and apos was not in HTML until HTML5.
		"'", "&#39;",
	)
)

type (
	// condResult is the result of an HTTP request precondition check.
	// See https://tools.ietf.org/html/rfc7232 section 3.
	condResult int

	// Config is the static-file service surface, mounted under a URL
	// prefix. Start from DefaultConfig; the zero value disables the
	// cache and every response feature.
	Config struct {
		// RootDirectory is the directory tree being served.
		RootDirectory string

		// MaxCacheSize and MaxCacheEntries cap the in-memory content
		// cache; whichever trips first evicts, least recently used
		// entries leaving first. Zero MaxCacheSize disables caching.
		MaxCacheSize    int64
		MaxCacheEntries int

		// CacheTTL is how long a cached entry is trusted. A hit on an
		// older entry revalidates it against the file's mtime: an
		// unchanged file is refreshed in place, a changed one reloaded.
		CacheTTL time.Duration

		// EnableETag and EnableLastModified control the conditional-GET
		// headers.
		EnableETag         bool
		EnableLastModified bool

		// EnableSendfile selects the zero-copy path for streamed files;
		// when false, streams copy through an intermediate buffer.
		EnableSendfile    bool
		SendfileChunkSize int
		SendfileTimeout   time.Duration
		SendfileMaxRetry  int

		// EnableDirectoryListing answers directory URLs with a listing
		// instead of 403.
		EnableDirectoryListing bool

		// Logger and Clock default to the package-level logrus logger
		// and the real clock.
		Logger logrus.FieldLogger
		Clock  clockwork.Clock
	}

	// A FileServer serves the files under one root, mounted at one URL
	// prefix, through one content cache.
	FileServer struct {
		prefix   string
		cfg      Config
		realRoot string
		cache    *cache
		clock    clockwork.Clock
		log      logrus.FieldLogger
	}

	// cacheEntry is one cached file: identity, validators, and the
	// content bytes when the file is small enough to hold. Content is
	// shared by reference with in-flight responses, so eviction never
	// pulls bytes out from under a response.
	cacheEntry struct {
		path        string
		size        int64
		mtime       time.Time
		contentType string
		etag        string
		content     []byte // nil means stream from disk
		loadedAt    time.Time
		elem        *list.Element
	}

	// cache is an LRU over cacheEntry, capped on both entry count and
	// byte sum. One lock guards it; entries are metadata-small and the
	// content bytes are immutable once inserted.
	cache struct {
		mu         sync.Mutex
		entries    map[string]*cacheEntry
		lru        *list.List // front is most recently used
		totalBytes int64
		maxBytes   int64
		maxEntries int
		ttl        time.Duration
	}
)

// DefaultConfig returns the service defaults for a root directory:
// caching, ETag, Last-Modified, and sendfile all enabled, listings
// disabled.
func DefaultConfig(root string) Config {
	return Config{
		RootDirectory:      root,
		MaxCacheSize:       DefaultMaxCacheSize,
		MaxCacheEntries:    DefaultMaxCacheEntries,
		CacheTTL:           DefaultCacheTTL,
		EnableETag:         true,
		EnableLastModified: true,
		EnableSendfile:     true,
		SendfileChunkSize:  DefaultSendfileChunkSize,
		SendfileTimeout:    DefaultSendfileTimeout,
		SendfileMaxRetry:   DefaultSendfileMaxRetry,
	}
}
