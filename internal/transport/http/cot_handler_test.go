package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cotpulse/internal/dataprocessing"
	apierrors "cotpulse/internal/errors"
	"cotpulse/internal/files"
	mw "cotpulse/internal/middleware"
	"cotpulse/internal/services"
	"cotpulse/pkg/contracts/domain"
)

// MockCotService is a mock implementation of CotServiceInterface
type MockCotService struct {
	mock.Mock
}

func (m *MockCotService) Positions(ctx context.Context, q services.PositionsQuery) ([]domain.SnapshotRecord, error) {
	args := m.Called(q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SnapshotRecord), args.Error(1)
}

func (m *MockCotService) History(ctx context.Context, q services.HistoryQuery) ([]domain.SeriesRecord, error) {
	args := m.Called(q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SeriesRecord), args.Error(1)
}

func (m *MockCotService) Assets(ctx context.Context, focus bool) ([]string, error) {
	args := m.Called(focus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCotService) Asset(ctx context.Context, name string) (*domain.AssetDetail, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssetDetail), args.Error(1)
}

func (m *MockCotService) Overview(ctx context.Context, focus bool) (domain.Overview, error) {
	args := m.Called(focus)
	return args.Get(0).(domain.Overview), args.Error(1)
}

func (m *MockCotService) Rankings(ctx context.Context, focus bool) ([]domain.SnapshotRecord, []domain.SnapshotRecord, error) {
	args := m.Called(focus)
	return args.Get(0).([]domain.SnapshotRecord), args.Get(1).([]domain.SnapshotRecord), args.Error(2)
}

func (m *MockCotService) DatasetInfo(ctx context.Context) ([]services.DatasetStatus, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.DatasetStatus), args.Error(1)
}

func (m *MockCotService) Replace(ctx context.Context, kind domain.DatasetKind, text, source string) (*services.ImportResult, error) {
	args := m.Called(kind, text, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ImportResult), args.Error(1)
}

func (m *MockCotService) Upload(ctx context.Context, kind domain.DatasetKind, filename string, content []byte) (*services.ImportResult, error) {
	args := m.Called(kind, filename, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ImportResult), args.Error(1)
}

func (m *MockCotService) PreviewUpload(ctx context.Context, kind domain.DatasetKind, filename string, content []byte) (*services.ImportResult, error) {
	args := m.Called(kind, filename, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ImportResult), args.Error(1)
}

func (m *MockCotService) Imports(ctx context.Context, dataset domain.DatasetKind, limit int) ([]domain.ImportEntry, error) {
	args := m.Called(dataset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ImportEntry), args.Error(1)
}

func (m *MockCotService) ExportPositions(ctx context.Context, w io.Writer, q services.PositionsQuery) error {
	args := m.Called(q)
	if err := args.Error(0); err != nil {
		return err
	}
	_, err := io.WriteString(w, "Commodity,NetPositions\nGold,100\n")
	return err
}

func (m *MockCotService) ExportHistory(ctx context.Context, w io.Writer, q services.HistoryQuery) error {
	return m.Called(q).Error(0)
}

func (m *MockCotService) Analyze(ctx context.Context, lang string) (*domain.Analysis, error) {
	args := m.Called(lang)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Analysis), args.Error(1)
}

func newTestRouter(svc CotServiceInterface, maxBody int64) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	validation := mw.NewValidationMiddleware(logger, errorHandler, maxBody)

	r := chi.NewRouter()
	r.Mount("/api/cot", NewCotHandler(svc, validation, logger, errorHandler).Routes())
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestCotHandler_GetPositions(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setupMock  func(*MockCotService)
		wantStatus int
		wantCode   string
	}{
		{
			name:  "defaults",
			query: "",
			setupMock: func(m *MockCotService) {
				m.On("Positions", services.PositionsQuery{Desc: true, Focus: true}).
					Return([]domain.SnapshotRecord{{Commodity: "Gold"}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "search and sort",
			query: "?q=gold&sort=NET&dir=asc&focus=false",
			setupMock: func(m *MockCotService) {
				m.On("Positions", services.PositionsQuery{Q: "gold", Sort: "net", Focus: false}).
					Return([]domain.SnapshotRecord{}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid sort",
			query:      "?sort=volume",
			setupMock:  func(m *MockCotService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "invalid focus",
			query:      "?focus=maybe",
			setupMock:  func(m *MockCotService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:  "dataset missing",
			query: "",
			setupMock: func(m *MockCotService) {
				m.On("Positions", mock.Anything).Return(nil, fmt.Errorf("positions: %w", services.ErrDatasetNotFound))
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "DATASET_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockCotService{}
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newTestRouter(svc, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cot/positions"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
				assert.Contains(t, rec.Header().Get("Content-Type"), "json")
			} else {
				assert.Equal(t, "success", body["status"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestCotHandler_ReplaceDataset(t *testing.T) {
	text := "Commodity,Net Positions\nGold,100\n"

	t.Run("replaces history", func(t *testing.T) {
		svc := &MockCotService{}
		svc.On("Replace", domain.DatasetHistory, text, services.SourceAPI).
			Return(&services.ImportResult{Dataset: domain.DatasetHistory, Count: 1}, nil)

		req := httptest.NewRequest(http.MethodPut, "/api/cot/history", strings.NewReader("\xef\xbb\xbf"+text))
		req.Header.Set("Content-Type", "text/csv")
		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decodeBody(t, rec)["data"].(map[string]interface{})
		assert.EqualValues(t, 1, data["count"])
		svc.AssertExpectations(t)
	})

	t.Run("empty dataset", func(t *testing.T) {
		svc := &MockCotService{}
		svc.On("Replace", domain.DatasetPositions, mock.Anything, services.SourceAPI).
			Return(nil, fmt.Errorf("positions: %w", services.ErrEmptyDataset))

		req := httptest.NewRequest(http.MethodPut, "/api/cot/positions", strings.NewReader("nothing useful\n"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "DATASET_EMPTY", decodeBody(t, rec)["error_code"])
	})

	t.Run("body too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/cot/positions", strings.NewReader(strings.Repeat("x", 64)))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		newTestRouter(&MockCotService{}, 16).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/cot/positions", strings.NewReader(text))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		newTestRouter(&MockCotService{}, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestCotHandler_UploadDataset(t *testing.T) {
	content := []byte("Commodity,Net Positions\nGold,100\n")

	t.Run("csv upload", func(t *testing.T) {
		svc := &MockCotService{}
		svc.On("Upload", domain.DatasetPositions, "positions.csv", content).
			Return(&services.ImportResult{Dataset: domain.DatasetPositions, Count: 1}, nil)

		body, contentType := multipartBody(t, "positions.csv", content)
		req := httptest.NewRequest(http.MethodPost, "/api/cot/positions/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("unsupported extension rejected before the service", func(t *testing.T) {
		body, contentType := multipartBody(t, "positions.pdf", content)
		req := httptest.NewRequest(http.MethodPost, "/api/cot/positions/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		newTestRouter(&MockCotService{}, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["error_code"])
	})

	t.Run("missing file part", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("note", "hi"))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/cot/history/upload", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		rec := httptest.NewRecorder()
		newTestRouter(&MockCotService{}, 1<<20).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCotHandler_ParsePreview(t *testing.T) {
	svc := &MockCotService{}
	svc.On("PreviewUpload", domain.DatasetHistory, "history.csv", []byte("Commodity,2024-03-05\nGold,1\n")).
		Return(&services.ImportResult{Dataset: domain.DatasetHistory, Count: 1}, nil)
	router := newTestRouter(svc, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/cot/parse/HISTORY", strings.NewReader("Commodity,2024-03-05\nGold,1\n"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/cot/parse/volumes", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertExpectations(t)
}

func TestCotHandler_ParsePreviewLayout(t *testing.T) {
	text := "Commodity,Long\nGold,1\n"
	svc := &MockCotService{}
	svc.On("PreviewUpload", domain.DatasetPositions, "positions.csv", []byte(text)).
		Return(&services.ImportResult{
			Dataset: domain.DatasetPositions,
			Count:   1,
			Layout: &dataprocessing.Layout{
				HeaderRow: 0,
				Headers:   []string{"Commodity", "Long"},
				Detected:  map[string]string{"commodity": "Commodity", "long_position": "Long"},
			},
		}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/cot/parse/positions", strings.NewReader(text))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	newTestRouter(svc, 1<<20).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	layout := data["layout"].(map[string]interface{})
	assert.EqualValues(t, 0, layout["header_row"])
	assert.Equal(t, "Long", layout["detected"].(map[string]interface{})["long_position"])
	svc.AssertExpectations(t)
}

func TestCotHandler_GetDatasets(t *testing.T) {
	t.Run("includes last import", func(t *testing.T) {
		svc := &MockCotService{}
		svc.On("DatasetInfo").Return([]services.DatasetStatus{
			{Dataset: files.Dataset{Kind: domain.DatasetPositions}, LastImport: &domain.ImportEntry{ID: "a", Records: 3}},
			{Dataset: files.Dataset{Kind: domain.DatasetHistory, Bundled: true}},
		}, nil)

		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cot/datasets", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decodeBody(t, rec)
		assert.EqualValues(t, 2, body["count"])
		data := body["data"].([]interface{})
		first := data[0].(map[string]interface{})
		assert.Equal(t, "positions", first["dataset"])
		assert.Equal(t, "a", first["last_import"].(map[string]interface{})["id"])
		assert.NotContains(t, data[1].(map[string]interface{}), "last_import")
	})

	t.Run("import log failure", func(t *testing.T) {
		svc := &MockCotService{}
		svc.On("DatasetInfo").Return(nil, errors.New("database is locked"))

		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cot/datasets", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestCotHandler_Asset(t *testing.T) {
	svc := &MockCotService{}
	svc.On("Asset", "Gold").Return(&domain.AssetDetail{Commodity: "Gold (GC)"}, nil)
	svc.On("Asset", "Wheat").Return(nil, fmt.Errorf("%q: %w", "Wheat", services.ErrAssetNotFound))
	router := newTestRouter(svc, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cot/assets/Gold", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cot/assets/Wheat", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.TypeAssetNotFound, decodeBody(t, rec)["type"])
}

func TestCotHandler_Export(t *testing.T) {
	svc := &MockCotService{}
	svc.On("ExportPositions", services.PositionsQuery{Q: "gold", Desc: true, Focus: true}).Return(nil)

	rec := httptest.NewRecorder()
	newTestRouter(svc, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cot/positions/export?q=gold", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cot-positions-")
	assert.Equal(t, "Commodity,NetPositions\nGold,100\n", rec.Body.String())
}

func TestCotHandler_Imports(t *testing.T) {
	svc := &MockCotService{}
	svc.On("Imports", domain.DatasetPositions, 5).Return([]domain.ImportEntry{{ID: "a"}}, nil)
	router := newTestRouter(svc, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cot/imports?dataset=positions&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cot/imports?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCotHandler_Analyze(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockCotService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "ok",
			body: `{"lang":"ar"}`,
			setupMock: func(m *MockCotService) {
				m.On("Analyze", "ar").Return(&domain.Analysis{Lang: "ar", MarketScore: 61}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "empty body defaults language",
			body: ``,
			setupMock: func(m *MockCotService) {
				m.On("Analyze", "").Return(&domain.Analysis{Lang: "en"}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unsupported language",
			body:       `{"lang":"de"}`,
			setupMock:  func(m *MockCotService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown field",
			body:       `{"language":"en"}`,
			setupMock:  func(m *MockCotService) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name: "no model",
			body: `{"lang":"en"}`,
			setupMock: func(m *MockCotService) {
				m.On("Analyze", "en").Return(nil, fmt.Errorf("analyze positions: %w", services.ErrNarrativeUnavailable))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "NARRATIVE_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockCotService{}
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/cot/analysis", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newTestRouter(svc, 1<<20).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeBody(t, rec)["error_code"])
			}
			svc.AssertExpectations(t)
		})
	}
}
