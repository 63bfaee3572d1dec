/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package sniff

type (
	// sniffSig is the interface implemented by content sniffers.
	sniffSig interface {
		// match returns the MIME type of the data, or "" if unknown.
		match(data []byte, firstNonWS int) string
	}

	htmlSig []byte

	maskedSig struct {
		mask, pat []byte
		skipWS    bool
		ct        string
	}

	exactSig struct {
		sig []byte
		ct  string
	}

	textSig struct{}
)

// Data matching the table in section 6 of
// https://mimesniff.spec.whatwg.org/
var sniffSignatures = []sniffSig{
	htmlSig("<!DOCTYPE HTML"),
	htmlSig("<HTML"),
	htmlSig("<HEAD"),
	htmlSig("<SCRIPT"),
	htmlSig("<IFRAME"),
	htmlSig("<H1"),
	htmlSig("<DIV"),
	htmlSig("<FONT"),
	htmlSig("<TABLE"),
	htmlSig("<A"),
	htmlSig("<STYLE"),
	htmlSig("<TITLE"),
	htmlSig("<B"),
	htmlSig("<BODY"),
	htmlSig("<BR"),
	htmlSig("<P"),
	htmlSig("<!--"),

	&maskedSig{mask: []byte("\xFF\xFF\xFF\xFF\xFF"), pat: []byte("<?xml"), skipWS: true, ct: "text/xml; charset=utf-8"},

	&exactSig{sig: []byte("%PDF-"), ct: "application/pdf"},
	&exactSig{sig: []byte("%!PS-Adobe-"), ct: "application/postscript"},

	// UTF BOMs.
	&maskedSig{mask: []byte("\xFF\xFF\x00\x00"), pat: []byte("\xFE\xFF\x00\x00"), ct: "text/plain; charset=utf-16be"},
	&maskedSig{mask: []byte("\xFF\xFF\x00\x00"), pat: []byte("\xFF\xFE\x00\x00"), ct: "text/plain; charset=utf-16le"},
	&maskedSig{mask: []byte("\xFF\xFF\xFF\x00"), pat: []byte("\xEF\xBB\xBF\x00"), ct: "text/plain; charset=utf-8"},

	&exactSig{sig: []byte("GIF87a"), ct: "image/gif"},
	&exactSig{sig: []byte("GIF89a"), ct: "image/gif"},
	&exactSig{sig: []byte("\x89\x50\x4E\x47\x0D\x0A\x1A\x0A"), ct: "image/png"},
	&exactSig{sig: []byte("\xFF\xD8\xFF"), ct: "image/jpeg"},
	&exactSig{sig: []byte("BM"), ct: "image/bmp"},
	&maskedSig{
		mask: []byte("\xFF\xFF\xFF\xFF\x00\x00\x00\x00\xFF\xFF\xFF\xFF\xFF\xFF"),
		pat:  []byte("RIFF\x00\x00\x00\x00WEBPVP"),
		ct:   "image/webp",
	},
	&exactSig{sig: []byte("\x00\x00\x01\x00"), ct: "image/vnd.microsoft.icon"},

	&maskedSig{
		mask: []byte("\xFF\xFF\xFF\xFF\x00\x00\x00\x00\xFF\xFF\xFF\xFF"),
		pat:  []byte("RIFF\x00\x00\x00\x00WAVE"),
		ct:   "audio/wave",
	},
	&exactSig{sig: []byte("OggS\x00"), ct: "application/ogg"},
	&exactSig{sig: []byte("ID3"), ct: "audio/mpeg"},

	&exactSig{sig: []byte("\x1A\x45\xDF\xA3"), ct: "video/webm"},
	&exactSig{sig: []byte("\x52\x61\x72\x20\x1A\x07\x00"), ct: "application/x-rar-compressed"},
	&exactSig{sig: []byte("\x50\x4B\x03\x04"), ct: "application/zip"},
	&exactSig{sig: []byte("\x1F\x8B\x08"), ct: "application/x-gzip"},

	textSig{}, // should be last
}
