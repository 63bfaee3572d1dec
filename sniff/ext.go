/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package sniff

import "strings"

// extTable maps a lowercase filename extension (with dot) to its MIME
// type. Unlisted extensions fall back to content sniffing.
var extTable = map[string]string{
	".avif": "image/avif",
	".css":  "text/css; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".gif":  "image/gif",
	".gz":   "application/x-gzip",
	".htm":  "text/html; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".ico":  "image/vnd.microsoft.icon",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".js":   "text/javascript; charset=utf-8",
	".json": "application/json",
	".md":   "text/markdown; charset=utf-8",
	".mjs":  "text/javascript; charset=utf-8",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".ogg":  "application/ogg",
	".otf":  "font/otf",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".tar":  "application/x-tar",
	".ttf":  "font/ttf",
	".txt":  "text/plain; charset=utf-8",
	".wasm": "application/wasm",
	".wav":  "audio/wave",
	".webm": "video/webm",
	".webp": "image/webp",
	".woff": "font/woff",
	".woff2": "font/woff2",
	".xml":  "text/xml; charset=utf-8",
	".zip":  "application/zip",
}

// TypeByExtension returns the MIME type associated with the filename
// extension ext, which must begin with a dot. The lookup is
// case-insensitive. Unknown extensions return "".
func TypeByExtension(ext string) string {
	return extTable[strings.ToLower(ext)]
}
