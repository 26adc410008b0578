// Package archive reads pack containers: zip files addressed by entry name.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
)

var (
	ErrCorrupt       = errors.New("corrupt archive")
	ErrEntryTooLarge = errors.New("archive entry too large")
	ErrTooManyFiles  = errors.New("archive has too many entries")
)

// Limits bounds the resources a single archive may consume.
type Limits struct {
	MaxEntries    int
	MaxEntryBytes int64
}

var DefaultLimits = Limits{
	MaxEntries:    10_000,
	MaxEntryBytes: 256 << 20,
}

type Archive struct {
	files  map[string]*zip.File
	limits Limits
}

// Open parses data as a zip container. Entry bytes are not read until
// requested.
func Open(data []byte, limits Limits) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if limits.MaxEntries > 0 && len(zr.File) > limits.MaxEntries {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(zr.File), limits.MaxEntries)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// First entry wins on duplicate names, same as the XML walk.
		if _, ok := files[f.Name]; !ok {
			files[f.Name] = f
		}
	}
	return &Archive{files: files, limits: limits}, nil
}

// Len returns the number of file entries.
func (a *Archive) Len() int { return len(a.files) }

// Has reports whether an entry called name exists.
func (a *Archive) Has(name string) bool {
	_, ok := a.files[name]
	return ok
}

// Entry returns the bytes of the named entry. A missing entry is reported
// with ok=false and a nil error.
func (a *Archive) Entry(name string) (data []byte, ok bool, err error) {
	f, ok := a.files[name]
	if !ok {
		return nil, false, nil
	}

	limit := a.limits.MaxEntryBytes
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, true, fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, true, fmt.Errorf("%w: opening %s: %v", ErrCorrupt, name, err)
	}
	defer rc.Close()

	// The declared size can lie, so cap the read as well.
	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err = io.ReadAll(r)
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading %s: %v", ErrCorrupt, name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, true, fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}
	return data, true, nil
}

// Lookup returns the first candidate that names an existing entry. Pack
// editors store media names URL-escaped, so each candidate is also tried in
// its escaped form.
func (a *Archive) Lookup(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if a.Has(c) {
			return c, true
		}
		if esc := escapePath(c); esc != c && a.Has(esc) {
			return esc, true
		}
	}
	return "", false
}

// escapePath escapes the last path element only; folder separators stay.
func escapePath(p string) string {
	dir, file := "", p
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			dir, file = p[:i+1], p[i+1:]
			break
		}
	}
	return dir + url.PathEscape(file)
}
