package manual

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/pkg/logger"
	"github.com/futig/manual-assistant/internal/pkg/response"
)

// multipartOverhead is allowed on top of the file size for form fields.
const multipartOverhead = 1 << 20

type Handler struct {
	usecase ManualUsecase
	cfg     config.FileUploadConfig
}

func NewHandler(usecase ManualUsecase, cfg config.FileUploadConfig) *Handler {
	return &Handler{
		usecase: usecase,
		cfg:     cfg,
	}
}

// Upload handles POST /api/upload
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "UploadManual")

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.cfg.MaxFileSize); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid form data or size too large", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "no file part", err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "could not read uploaded file", err)
		return
	}

	meta := entity.ManualMetadata{
		Brand:       r.FormValue("brand"),
		Model:       r.FormValue("model"),
		ProductType: r.FormValue("product_type"),
		Year:        r.FormValue("year"),
		Language:    r.FormValue("language"),
	}

	ctxzap.Info(ctx, "uploading manual",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("brand", meta.Brand),
		zap.String("model", meta.Model),
	)

	res, err := h.usecase.Upload(ctx, header.Filename, content, meta)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.JSON(w, http.StatusOK, res)
}

// List handles GET /api/files
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, &entity.ListManualsResponse{Files: h.usecase.List()})
}

// Delete handles DELETE /api/files/{file_id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")
	ctx := logger.AddFields(r.Context(),
		zap.String("file_id", fileID),
		zap.String("action", "DeleteManual"),
	)

	res, err := h.usecase.Delete(ctx, fileID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "manual deleted", zap.Bool("database_empty", res.DatabaseEmpty))
	response.JSON(w, http.StatusOK, res)
}

// Download handles GET /api/files/{file_id}/download
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")
	ctx := logger.AddFields(r.Context(),
		zap.String("file_id", fileID),
		zap.String("action", "DownloadManual"),
	)

	file, err := h.usecase.Download(fileID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	http.ServeFile(w, r, file.Path)
}

// Brands handles GET /api/brands
func (h *Handler) Brands(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, &entity.BrandsResponse{Brands: h.usecase.Brands()})
}

// Models handles GET /api/models?brand=
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	brand := r.URL.Query().Get("brand")
	response.JSON(w, http.StatusOK, &entity.ModelsResponse{Models: h.usecase.Models(brand)})
}

// Stats handles GET /api/database/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.usecase.Stats())
}

// Verify handles GET /api/database/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "VerifyDatabase")
	response.JSON(w, http.StatusOK, h.usecase.Verify(ctx))
}

// Clear handles POST /api/database/clear
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ClearDatabase")

	if err := h.usecase.Clear(ctx); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.JSON(w, http.StatusOK, &entity.StatusResponse{
		Status:  "cleared",
		Message: "Database cleared successfully",
	})
}

// Rebuild handles POST /api/database/rebuild
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "RebuildIndex")

	if err := h.usecase.Rebuild(ctx); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.JSON(w, http.StatusOK, &entity.StatusResponse{
		Status:  "rebuilt",
		Message: "Index rebuilt from stored chunks",
	})
}

// DebugSearch handles POST /api/debug/search
func (h *Handler) DebugSearch(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "DebugSearch")

	var req entity.DebugSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	results, err := h.usecase.DebugSearch(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.JSON(w, http.StatusOK, &entity.DebugSearchResponse{Query: req.Query, Results: results})
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	response.FromUsecase(ctx, w, err)
}
