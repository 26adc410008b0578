package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/packimport/internal/pack"
	"github.com/playperu/packimport/internal/store"
)

// handleGetFile serves stored media. Refs are never reused, so responses
// are cacheable forever and validated by checksum.
func handleGetFile(logger *slog.Logger, files FileStore, cache *FileCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := pack.FileRef(chi.URLParam(r, "ref"))

		f, ok := cache.Get(ref)
		if !ok {
			var err error
			f, err = files.Get(r.Context(), ref)
			if errors.Is(err, store.ErrFileNotFound) {
				writeError(w, http.StatusNotFound, errCodeNotFound, "file "+string(ref))
				return
			}
			if err != nil {
				logger.Error("loading file", "ref", ref, "error", err)
				writeError(w, http.StatusInternalServerError, errCodeInternal, "")
				return
			}
			cache.Add(f)
		}

		h := w.Header()
		h.Set("Content-Type", f.ContentType)
		h.Set("ETag", strconv.Quote(f.Checksum))
		h.Set("Cache-Control", "public, max-age=31536000, immutable")
		http.ServeContent(w, r, f.Name, f.AddedAt, bytes.NewReader(f.Data))
	}
}
