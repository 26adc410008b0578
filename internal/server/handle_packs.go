package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/packimport/internal/importer"
	"github.com/playperu/packimport/internal/pack"
	"github.com/playperu/packimport/internal/store"
)

// PackImporter turns an uploaded archive into a stored pack.
type PackImporter interface {
	Import(ctx context.Context, data []byte) (*importer.Result, error)
}

type PackStore interface {
	Load(ctx context.Context, uuid string) (*pack.Pack, error)
	List(ctx context.Context) ([]pack.Summary, error)
	Delete(ctx context.Context, uuid string) error
}

type FileStore interface {
	Get(ctx context.Context, ref pack.FileRef) (*store.File, error)
	ListByPack(ctx context.Context, packUUID string) ([]store.File, error)
	DeletePack(ctx context.Context, packUUID string) (int64, error)
}

type ImportResponse struct {
	Pack     pack.Summary       `json:"pack"`
	Warnings []importer.Warning `json:"warnings"`
	Skipped  int                `json:"skipped"`
}

type DeleteResponse struct {
	UUID         string `json:"uuid"`
	FilesDeleted int64  `json:"filesDeleted"`
}

const (
	errCodeNotFound      = "notFound"
	errCodeBadUpload     = "badUpload"
	errCodeInternal      = "internal"
	uploadFormField      = "file"
	multipartContentType = "multipart/form-data"
)

// importStatus maps fatal import failures to HTTP status codes.
func importStatus(code importer.Code) int {
	switch code {
	case importer.CodeCorruptArchive, importer.CodeNoContentXML, importer.CodeMalformedXML:
		return http.StatusBadRequest
	case importer.CodePackExists:
		return http.StatusConflict
	case importer.CodeLimitExceeded:
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func handleImportPack(logger *slog.Logger, imp PackImporter, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		data, err := readUpload(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, string(importer.CodeLimitExceeded),
					fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, errCodeBadUpload, err.Error())
			return
		}

		res, err := imp.Import(r.Context(), data)
		if err != nil {
			var ie *importer.Error
			if !errors.As(err, &ie) {
				logger.Error("importing pack", "error", err)
				writeError(w, http.StatusInternalServerError, string(importer.CodeImportFailed), "")
				return
			}
			writeError(w, importStatus(ie.Code), string(ie.Code), ie.Detail)
			return
		}

		warnings := res.Warnings
		if warnings == nil {
			warnings = []importer.Warning{}
		}
		writeJSON(w, http.StatusCreated, ImportResponse{
			Pack:     res.Pack.Summary(),
			Warnings: warnings,
			Skipped:  res.Skipped(),
		})
	}
}

// readUpload returns the archive bytes, either the raw request body or the
// "file" part of a multipart form.
func readUpload(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != multipartContentType {
		return io.ReadAll(r.Body)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("reading multipart body: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("multipart body has no %q field", uploadFormField)
		}
		if err != nil {
			return nil, fmt.Errorf("reading multipart body: %w", err)
		}
		if part.FormName() == uploadFormField {
			defer part.Close()
			return io.ReadAll(part)
		}
		part.Close()
	}
}

func handleListPacks(logger *slog.Logger, packs PackStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := packs.List(r.Context())
		if err != nil {
			logger.Error("listing packs", "error", err)
			writeError(w, http.StatusInternalServerError, errCodeInternal, "")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetPack(logger *slog.Logger, packs PackStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uuid := chi.URLParam(r, "uuid")
		p, err := packs.Load(r.Context(), uuid)
		if errors.Is(err, pack.ErrNotFound) {
			writeError(w, http.StatusNotFound, errCodeNotFound, "pack "+uuid)
			return
		}
		if err != nil {
			logger.Error("loading pack", "pack", uuid, "error", err)
			writeError(w, http.StatusInternalServerError, errCodeInternal, "")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeletePack(logger *slog.Logger, packs PackStore, files FileStore, cache *FileCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		uuid := chi.URLParam(r, "uuid")

		// The pack goes first: if removing its media fails, the startup
		// sweep collects the leftovers.
		err := packs.Delete(ctx, uuid)
		if errors.Is(err, pack.ErrNotFound) {
			writeError(w, http.StatusNotFound, errCodeNotFound, "pack "+uuid)
			return
		}
		if err != nil {
			logger.Error("deleting pack", "pack", uuid, "error", err)
			writeError(w, http.StatusInternalServerError, errCodeInternal, "")
			return
		}

		owned, err := files.ListByPack(ctx, uuid)
		if err != nil {
			logger.Error("listing pack media for cache eviction", "pack", uuid, "error", err)
		}
		for _, f := range owned {
			cache.Remove(f.Ref)
		}
		n, err := files.DeletePack(ctx, uuid)
		if err != nil {
			logger.Error("deleting pack media", "pack", uuid, "error", err)
		}

		logger.Info("pack deleted", "pack", uuid, "files", n)
		writeJSON(w, http.StatusOK, DeleteResponse{UUID: uuid, FilesDeleted: n})
	}
}

func handleListPackFiles(logger *slog.Logger, packs PackStore, files FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uuid := chi.URLParam(r, "uuid")
		if _, err := packs.Load(r.Context(), uuid); err != nil {
			if errors.Is(err, pack.ErrNotFound) {
				writeError(w, http.StatusNotFound, errCodeNotFound, "pack "+uuid)
				return
			}
			logger.Error("loading pack", "pack", uuid, "error", err)
			writeError(w, http.StatusInternalServerError, errCodeInternal, "")
			return
		}

		list, err := files.ListByPack(r.Context(), uuid)
		if err != nil {
			logger.Error("listing pack media", "pack", uuid, "error", err)
			writeError(w, http.StatusInternalServerError, errCodeInternal, "")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
