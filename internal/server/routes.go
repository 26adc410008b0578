package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Pack Import API", "/openapi.json", "/docs"))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/packs", func(r chi.Router) {
		r.Post("/", handleImportPack(logger, deps.Importer, deps.MaxUploadBytes))
		r.Get("/", handleListPacks(logger, deps.Packs))
		r.Get("/{uuid}", handleGetPack(logger, deps.Packs))
		r.Delete("/{uuid}", handleDeletePack(logger, deps.Packs, deps.Files, deps.Cache))
		r.Get("/{uuid}/files", handleListPackFiles(logger, deps.Packs, deps.Files))
	})
	r.Get("/api/files/{ref}", handleGetFile(logger, deps.Files, deps.Cache))
}
