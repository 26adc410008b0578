package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/packimport/internal/handler/health"
	"github.com/playperu/packimport/internal/pack"
	"github.com/playperu/packimport/internal/store"
)

type packPathParams struct {
	UUID string `path:"uuid" description:"Package id declared by the archive."`
}

type filePathParams struct {
	Ref string `path:"ref" description:"Opaque file reference from a pack."`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Pack Import API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Imports trivia pack archives and serves the stored packs and media.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(map[string]health.Result{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]health.Result{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/packs
	importPack, _ := r.NewOperationContext(http.MethodPost, "/api/packs")
	importPack.SetSummary("Import pack")
	importPack.SetDescription("Imports a pack archive sent as the raw body or as the multipart field \"file\". " +
		"Items that cannot be read are skipped and reported as warnings.")
	importPack.AddReqStructure(nil, openapi.WithContentType("application/zip"))
	importPack.AddRespStructure(ImportResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	importPack.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	importPack.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	importPack.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusRequestEntityTooLarge))
	importPack.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(importPack)

	// GET /api/packs
	listPacks, _ := r.NewOperationContext(http.MethodGet, "/api/packs")
	listPacks.SetSummary("List packs")
	listPacks.SetDescription("Returns pack summaries, newest first.")
	listPacks.AddRespStructure([]pack.Summary{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listPacks)

	// GET /api/packs/{uuid}
	getPack, _ := r.NewOperationContext(http.MethodGet, "/api/packs/{uuid}")
	getPack.SetSummary("Get pack")
	getPack.AddReqStructure(packPathParams{})
	getPack.AddRespStructure(pack.Pack{}, openapi.WithHTTPStatus(http.StatusOK))
	getPack.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getPack)

	// DELETE /api/packs/{uuid}
	deletePack, _ := r.NewOperationContext(http.MethodDelete, "/api/packs/{uuid}")
	deletePack.SetSummary("Delete pack")
	deletePack.SetDescription("Deletes a pack together with all of its media.")
	deletePack.AddReqStructure(packPathParams{})
	deletePack.AddRespStructure(DeleteResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	deletePack.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deletePack)

	// GET /api/packs/{uuid}/files
	listFiles, _ := r.NewOperationContext(http.MethodGet, "/api/packs/{uuid}/files")
	listFiles.SetSummary("List pack media")
	listFiles.AddReqStructure(packPathParams{})
	listFiles.AddRespStructure([]store.File{}, openapi.WithHTTPStatus(http.StatusOK))
	listFiles.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(listFiles)

	// GET /api/files/{ref}
	getFile, _ := r.NewOperationContext(http.MethodGet, "/api/files/{ref}")
	getFile.SetSummary("Download media")
	getFile.SetDescription("Returns the raw media with its sniffed content type.")
	getFile.AddReqStructure(filePathParams{})
	getFile.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("application/octet-stream"))
	getFile.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getFile)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
