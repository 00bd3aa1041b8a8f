package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"cotpulse/internal/dataprocessing"
	apierrors "cotpulse/internal/errors"
	mw "cotpulse/internal/middleware"
	"cotpulse/internal/narrative"
	"cotpulse/internal/services"
	"cotpulse/pkg/contracts/domain"
)

// multipartMemory is the part of an upload kept in memory; the rest spills
// to temporary files.
const multipartMemory = 4 << 20

// CotHandler serves the /api/cot routes with RFC 7807 errors
type CotHandler struct {
	service      CotServiceInterface
	validation   *mw.ValidationMiddleware
	query        *mw.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewCotHandler creates a new COT handler
func NewCotHandler(service CotServiceInterface, validation *mw.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CotHandler {
	return &CotHandler{
		service:      service,
		validation:   validation,
		query:        mw.NewQueryParamValidator(errorHandler),
		logger:       logger.With(slog.String("component", "cot_handler")),
		errorHandler: errorHandler,
	}
}

// uploadRequest is the validated form of a multipart upload.
type uploadRequest struct {
	Dataset  domain.DatasetKind `json:"dataset" validate:"required,dataset"`
	Filename string             `json:"file" validate:"required,filename,upload"`
}

// analysisRequest is the body of POST /analysis.
type analysisRequest struct {
	Lang string `json:"lang" validate:"omitempty,oneof=en ar fr"`
}

// Routes returns the dataset routes
func (h *CotHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/datasets", h.GetDatasets)
	r.Get("/overview", h.GetOverview)
	r.Get("/rankings", h.GetRankings)
	r.Get("/assets", h.GetAssets)
	r.Get("/assets/{asset}", h.GetAsset)
	r.Get("/imports", h.GetImports)

	for _, kind := range domain.DatasetKinds {
		r.Route("/"+string(kind), func(r chi.Router) {
			r.Use(datasetCtx(kind))
			if kind == domain.DatasetPositions {
				r.Get("/", h.GetPositions)
			} else {
				r.Get("/", h.GetHistory)
			}
			r.Get("/export", h.Export)

			r.Group(func(r chi.Router) {
				r.Use(h.validation.LimitBody)
				r.With(mw.ContentTypeValidator(h.errorHandler, textTypes...)).Put("/", h.ReplaceDataset)
				r.With(mw.ContentTypeValidator(h.errorHandler, "multipart/form-data")).Post("/upload", h.UploadDataset)
			})
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(h.validation.LimitBody)
		r.With(mw.ContentTypeValidator(h.errorHandler, append(textTypes, "multipart/form-data")...)).
			Post("/parse/{kind}", h.ParsePreview)
		r.With(mw.ContentTypeValidator(h.errorHandler, "application/json")).
			Post("/analysis", h.Analyze)
	})

	return r
}

var textTypes = []string{"text/plain", "text/csv", "application/octet-stream"}

type datasetKey struct{}

// datasetCtx stores the dataset a route serves in the request context
func datasetCtx(kind domain.DatasetKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), datasetKey{}, kind)))
		})
	}
}

func datasetFrom(r *http.Request) domain.DatasetKind {
	kind, _ := r.Context().Value(datasetKey{}).(domain.DatasetKind)
	return kind
}

// handleServiceError maps service sentinels to API errors
func (h *CotHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	h.logger.DebugContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID))

	switch {
	case errors.Is(err, services.ErrDatasetNotFound):
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusNotFound, "DATASET_NOT_FOUND", "Dataset has not been loaded"))
	case errors.Is(err, services.ErrAssetNotFound):
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusNotFound, "ASSET_NOT_FOUND", "No positions or history for this asset"))
	case errors.Is(err, services.ErrEmptyDataset):
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusUnprocessableEntity, "DATASET_EMPTY", "No asset rows were found in the data"))
	case errors.Is(err, services.ErrUnsupportedFormat):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
			"Unsupported file format", map[string]interface{}{"supported": dataprocessing.SupportedExtensions}))
	case errors.Is(err, services.ErrUnknownDataset):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("dataset", "dataset must be positions or history"))
	case errors.Is(err, services.ErrInvalidSort):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sort", "sort must be one of: "+strings.Join(dataprocessing.SortKeys, ", ")))
	case errors.Is(err, services.ErrUnsupportedLanguage):
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("lang", "lang must be one of: en, ar, fr"))
	case errors.Is(err, services.ErrNarrativeUnavailable):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(http.StatusServiceUnavailable, "NARRATIVE_UNAVAILABLE",
			"Narrative analysis is not available", err.Error()))
	case errors.Is(err, narrative.ErrMalformedResponse):
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusBadGateway, "BAD_GATEWAY", "The model returned an unexpected response"))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// focusParam reads focus, defaulting to true
func (h *CotHandler) focusParam(w http.ResponseWriter, r *http.Request) (bool, bool) {
	return h.query.ValidateBool(w, r, "focus", true)
}

func (h *CotHandler) positionsQuery(w http.ResponseWriter, r *http.Request) (services.PositionsQuery, bool) {
	focus, ok := h.focusParam(w, r)
	if !ok {
		return services.PositionsQuery{}, false
	}
	sortKey, ok := h.query.ValidateEnum(w, r, "sort", dataprocessing.SortKeys, "")
	if !ok {
		return services.PositionsQuery{}, false
	}
	dir, ok := h.query.ValidateEnum(w, r, "dir", []string{"asc", "desc"}, "desc")
	if !ok {
		return services.PositionsQuery{}, false
	}
	return services.PositionsQuery{
		Q:     r.URL.Query().Get("q"),
		Sort:  sortKey,
		Desc:  dir == "desc",
		Focus: focus,
	}, true
}

func (h *CotHandler) historyQuery(w http.ResponseWriter, r *http.Request) (services.HistoryQuery, bool) {
	focus, ok := h.focusParam(w, r)
	if !ok {
		return services.HistoryQuery{}, false
	}
	return services.HistoryQuery{Q: r.URL.Query().Get("q"), Focus: focus}, true
}

// GetPositions handles GET /api/cot/positions
func (h *CotHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	q, ok := h.positionsQuery(w, r)
	if !ok {
		return
	}

	records, err := h.service.Positions(r.Context(), q)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   records,
		"count":  len(records),
	})
}

// GetHistory handles GET /api/cot/history
func (h *CotHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q, ok := h.historyQuery(w, r)
	if !ok {
		return
	}

	records, err := h.service.History(r.Context(), q)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   records,
		"count":  len(records),
	})
}

// GetDatasets handles GET /api/cot/datasets
func (h *CotHandler) GetDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.service.DatasetInfo(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   datasets,
		"count":  len(datasets),
	})
}

// GetOverview handles GET /api/cot/overview
func (h *CotHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	focus, ok := h.focusParam(w, r)
	if !ok {
		return
	}

	overview, err := h.service.Overview(r.Context(), focus)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   overview,
	})
}

// GetRankings handles GET /api/cot/rankings
func (h *CotHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	focus, ok := h.focusParam(w, r)
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 500, 10)
	if !ok {
		return
	}

	byNet, byExposure, err := h.service.Rankings(r.Context(), focus)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"by_net":      byNet[:min(limit, len(byNet))],
			"by_exposure": byExposure[:min(limit, len(byExposure))],
		},
	})
}

// GetAssets handles GET /api/cot/assets
func (h *CotHandler) GetAssets(w http.ResponseWriter, r *http.Request) {
	focus, ok := h.focusParam(w, r)
	if !ok {
		return
	}

	assets, err := h.service.Assets(r.Context(), focus)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   assets,
		"count":  len(assets),
	})
}

// GetAsset handles GET /api/cot/assets/{asset}
func (h *CotHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset := strings.TrimSpace(chi.URLParam(r, "asset"))
	if asset == "" || len([]rune(asset)) > 120 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("asset", "Asset name is required and at most 120 characters"))
		return
	}

	detail, err := h.service.Asset(r.Context(), asset)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   detail,
	})
}

// GetImports handles GET /api/cot/imports
func (h *CotHandler) GetImports(w http.ResponseWriter, r *http.Request) {
	dataset, ok := h.query.ValidateEnum(w, r, "dataset",
		[]string{string(domain.DatasetPositions), string(domain.DatasetHistory)}, "")
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 500, 0)
	if !ok {
		return
	}

	entries, err := h.service.Imports(r.Context(), domain.DatasetKind(dataset), limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   entries,
		"count":  len(entries),
	})
}

// Export handles GET /api/cot/{dataset}/export as a CSV download
func (h *CotHandler) Export(w http.ResponseWriter, r *http.Request) {
	kind := datasetFrom(r)

	var buf bytes.Buffer
	switch kind {
	case domain.DatasetPositions:
		q, ok := h.positionsQuery(w, r)
		if !ok {
			return
		}
		if err := h.service.ExportPositions(r.Context(), &buf, q); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
	default:
		q, ok := h.historyQuery(w, r)
		if !ok {
			return
		}
		if err := h.service.ExportHistory(r.Context(), &buf, q); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
	}

	filename := fmt.Sprintf("cot-%s-%s.csv", kind, time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write failed", slog.String("error", err.Error()))
	}
}

// ReplaceDataset handles PUT /api/cot/{dataset} with the raw export as body
func (h *CotHandler) ReplaceDataset(w http.ResponseWriter, r *http.Request) {
	kind := datasetFrom(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("body", "Request body must contain the exported table"))
		return
	}

	text, err := dataprocessing.DecodeUpload(string(kind)+".csv", body)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Replace(r.Context(), kind, text, services.SourceAPI)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// readUpload extracts and validates the multipart "file" part
func (h *CotHandler) readUpload(w http.ResponseWriter, r *http.Request, kind domain.DatasetKind) (string, []byte, bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, err)
			return "", nil, false
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "A file part named \"file\" is required"))
		return "", nil, false
	}
	defer file.Close()

	req := uploadRequest{Dataset: kind, Filename: header.Filename}
	if err := h.validation.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return "", nil, false
	}

	content, err := io.ReadAll(file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return "", nil, false
	}
	return header.Filename, content, true
}

// UploadDataset handles POST /api/cot/{dataset}/upload
func (h *CotHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	kind := datasetFrom(r)

	filename, content, ok := h.readUpload(w, r, kind)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "dataset upload",
		slog.String("dataset", string(kind)),
		slog.String("filename", filename),
		slog.Int("bytes", len(content)),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	result, err := h.service.Upload(r.Context(), kind, filename, content)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// ParsePreview handles POST /api/cot/parse/{kind}. The body is either the
// raw export or a multipart upload; nothing is persisted.
func (h *CotHandler) ParsePreview(w http.ResponseWriter, r *http.Request) {
	kind := domain.DatasetKind(strings.ToLower(chi.URLParam(r, "kind")))
	if !kind.Valid() {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("kind", "kind must be positions or history"))
		return
	}

	var (
		result *services.ImportResult
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		filename, content, ok := h.readUpload(w, r, kind)
		if !ok {
			return
		}
		result, err = h.service.PreviewUpload(r.Context(), kind, filename, content)
	} else {
		body, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			h.errorHandler.HandleError(w, r, readErr)
			return
		}
		result, err = h.service.PreviewUpload(r.Context(), kind, string(kind)+".csv", body)
	}
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// Analyze handles POST /api/cot/analysis
func (h *CotHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := h.validation.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	analysis, err := h.service.Analyze(r.Context(), req.Lang)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   analysis,
	})
}
