/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package filetransport

import (
	"fmt"
	"hash/fnv"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	uvhttp "github.com/adam-ikari/uvhttp"
	"github.com/adam-ikari/uvhttp/hdr"
	"github.com/adam-ikari/uvhttp/mux"
	"github.com/adam-ikari/uvhttp/sniff"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// New builds a FileServer serving cfg.RootDirectory under the URL
// prefix. The root must exist; symlinks in it are resolved once so
// later containment checks compare real paths.
func New(prefix string, cfg Config) (*FileServer, error) {
	if cfg.RootDirectory == "" {
		return nil, uvhttp.ErrInvalidParam
	}
	root, err := filepath.Abs(cfg.RootDirectory)
	if err != nil {
		return nil, err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, ErrNoRoot
	}
	if fi, err := os.Stat(realRoot); err != nil || !fi.IsDir() {
		return nil, ErrNoRoot
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	fs := &FileServer{
		prefix:   strings.TrimSuffix(prefix, "/"),
		cfg:      cfg,
		realRoot: realRoot,
		clock:    clock,
		log:      log,
	}
	if cfg.MaxCacheSize > 0 {
		fs.cache = newCache(cfg.MaxCacheSize, cfg.MaxCacheEntries, cfg.CacheTTL)
	}
	return fs, nil
}

// Mount builds a FileServer and registers it on r for GET and HEAD
// under prefix and prefix/*filepath.
func Mount(r *mux.Router, prefix string, cfg Config) (*FileServer, error) {
	fs, err := New(prefix, cfg)
	if err != nil {
		return nil, err
	}
	h := fs.Handler()
	pattern := fs.prefix + "/*filepath"
	if fs.prefix == "" {
		pattern = "/*filepath"
	}
	for _, method := range []string{uvhttp.GET, uvhttp.HEAD} {
		if err := r.AddRoute(method, pattern, h); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// CacheStats returns the live entry count and content byte sum.
func (fs *FileServer) CacheStats() (entries int, bytes int64) {
	return fs.cache.stats()
}

// Handler returns the request handler serving this file tree.
func (fs *FileServer) Handler() uvhttp.Handler {
	return func(req *uvhttp.Request, res *uvhttp.Response) {
		fs.serve(req, res)
	}
}

func (fs *FileServer) serve(req *uvhttp.Request, res *uvhttp.Response) {
	if req.Method != uvhttp.GET && req.Method != uvhttp.HEAD {
		fail(res, uvhttp.StatusMethodNotAllowed)
		return
	}

	name, ok := fs.resolve(req.Path())
	if !ok {
		fail(res, uvhttp.StatusForbidden)
		return
	}

	real, err := filepath.EvalSymlinks(name)
	if err != nil {
		if os.IsNotExist(err) {
			fail(res, uvhttp.StatusNotFound)
			return
		}
		fail(res, uvhttp.StatusInternalServerError)
		return
	}
	// Symlinks are followed, but the resolved path must still live
	// under the root.
	if !fs.contains(real) {
		fail(res, uvhttp.StatusForbidden)
		return
	}

	fi, err := os.Stat(real)
	if err != nil {
		fail(res, uvhttp.StatusNotFound)
		return
	}
	if fi.IsDir() {
		if !fs.cfg.EnableDirectoryListing {
			fail(res, uvhttp.StatusForbidden)
			return
		}
		fs.dirList(res, real)
		return
	}

	fs.serveFile(req, res, real, fi)
}

// resolve maps the request path to a filesystem path under the root,
// rejecting any traversal that escapes it before touching the disk.
// path.Clean alone would silently fold a root-escaping ".." back into
// the root, so escapes are detected on the raw segments first.
func (fs *FileServer) resolve(reqPath string) (string, bool) {
	suffix := strings.TrimPrefix(reqPath, fs.prefix)
	if suffix == "" {
		suffix = "/"
	}
	depth := 0
	for _, seg := range strings.Split(suffix, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", false
			}
		default:
			depth++
		}
	}
	cleaned := path.Clean("/" + suffix)
	return filepath.Join(fs.realRoot, filepath.FromSlash(cleaned)), true
}

func (fs *FileServer) contains(real string) bool {
	return real == fs.realRoot || strings.HasPrefix(real, fs.realRoot+string(filepath.Separator))
}

func (fs *FileServer) serveFile(req *uvhttp.Request, res *uvhttp.Response, name string, fi os.FileInfo) {
	now := fs.clock.Now()
	entry, cached, fresh := fs.cache.get(name, now)
	if cached && !fresh {
		// TTL expired: an unchanged mtime revalidates in place, a
		// changed one reloads.
		if fi.ModTime().Equal(entry.mtime) && fi.Size() == entry.size {
			fs.cache.refresh(entry, now)
		} else {
			fs.cache.remove(name)
			entry, cached = nil, false
		}
	}
	if cached && (!fi.ModTime().Equal(entry.mtime) || fi.Size() != entry.size) {
		// The file changed under a still-fresh entry; reload rather
		// than serve stale validators.
		fs.cache.remove(name)
		entry, cached = nil, false
	}

	if !cached {
		var err error
		entry, err = fs.load(name, fi, now)
		if err != nil {
			fs.log.WithField("path", name).Warnf("static load failed: %v", err)
			fail(res, uvhttp.StatusInternalServerError)
			return
		}
	}

	switch fs.checkConditional(req, entry) {
	case condFalse:
		if fs.cfg.EnableETag {
			res.SetHeader(hdr.Etag, entry.etag)
		}
		res.SetStatus(uvhttp.StatusNotModified)
		res.Send()
		return
	}

	res.SetStatus(uvhttp.StatusOK)
	res.SetHeader(hdr.ContentType, entry.contentType)
	res.SetHeader(hdr.ContentLength, strconv.FormatInt(entry.size, 10))
	if fs.cfg.EnableETag {
		res.SetHeader(hdr.Etag, entry.etag)
	}
	if fs.cfg.EnableLastModified {
		res.SetHeader(hdr.LastModified, entry.mtime.UTC().Format(hdr.TimeFormat))
	}

	if entry.content != nil {
		res.SetBody(entry.content)
		res.Send()
		return
	}

	f, err := os.Open(name)
	if err != nil {
		fail(res, uvhttp.StatusInternalServerError)
		return
	}
	defer f.Close()

	var src io.Reader = f
	if !fs.cfg.EnableSendfile {
		// Hiding the *os.File behind a plain Reader keeps the copy off
		// the zero-copy path.
		src = struct{ io.Reader }{f}
	}
	res.SendStream(src, entry.size, uvhttp.StreamOptions{
		ChunkSize: fs.cfg.SendfileChunkSize,
		Timeout:   fs.cfg.SendfileTimeout,
		MaxRetry:  fs.cfg.SendfileMaxRetry,
	})
}

// load stats, types, and (for small files) reads name into a fresh
// cache entry.
func (fs *FileServer) load(name string, fi os.FileInfo, now time.Time) (*cacheEntry, error) {
	e := &cacheEntry{
		path:     name,
		size:     fi.Size(),
		mtime:    fi.ModTime(),
		etag:     strongETag(name, fi),
		loadedAt: now,
	}

	cacheable := fs.cache != nil && fi.Size() <= fs.cache.maxFileSize()
	if cacheable {
		content, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		e.content = content
	}

	e.contentType = sniffType(name, e.content)
	if cacheable {
		fs.cache.put(e)
	}
	return e, nil
}

// checkConditional evaluates If-None-Match and If-Modified-Since
// against the entry's validators, in that precedence.
func (fs *FileServer) checkConditional(req *uvhttp.Request, e *cacheEntry) condResult {
	if fs.cfg.EnableETag {
		if inm := req.Header.Get(hdr.IfNoneMatch); inm != "" {
			if etagMatch(inm, e.etag) {
				return condFalse
			}
			return condTrue
		}
	}
	if fs.cfg.EnableLastModified {
		if ims := req.Header.Get(hdr.IfModifiedSince); ims != "" {
			t, err := hdr.ParseTime(ims)
			if err == nil && !e.mtime.Truncate(time.Second).After(t) {
				return condFalse
			}
			return condTrue
		}
	}
	return condNone
}

// etagMatch reports whether the If-None-Match value names etag. "*"
// matches anything.
func etagMatch(header, etag string) bool {
	if hdr.TrimString(header) == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = hdr.TrimString(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}

// strongETag derives the entity tag from the file's size, mtime, and
// path identity.
func strongETag(name string, fi os.FileInfo) string {
	h := fnv.New64a()
	io.WriteString(h, name)
	return fmt.Sprintf("\"%x-%x-%x\"", fi.Size(), fi.ModTime().UnixNano(), h.Sum64())
}

// sniffType infers the content type from the extension table first,
// then from the content bytes, then falls back to octet-stream.
func sniffType(name string, content []byte) string {
	if ct := sniff.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	if len(content) > 0 {
		return sniff.DetectContentType(content)
	}
	return uvhttp.OctetStream
}

func (fs *FileServer) dirList(res *uvhttp.Response, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		fail(res, uvhttp.StatusInternalServerError)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "<pre>\n")
	for _, name := range names {
		u := url.URL{Path: name}
		fmt.Fprintf(&b, "<a href=\"%s\">%s</a>\n", u.String(), htmlReplacer.Replace(name))
	}
	fmt.Fprintf(&b, "</pre>\n")

	res.SetStatus(uvhttp.StatusOK)
	res.SetHeader(hdr.ContentType, "text/html; charset=utf-8")
	res.SetBodyString(b.String())
	res.Send()
}

func fail(res *uvhttp.Response, status int) {
	res.SetStatus(status)
	res.SetHeader(hdr.ContentType, uvhttp.TextPlain)
	res.SetBodyString(uvhttp.StatusText(status))
	res.Send()
}
