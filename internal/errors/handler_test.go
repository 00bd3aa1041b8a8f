package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(includeStack bool) *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), includeStack)
}

func TestErrorToProblem(t *testing.T) {
	h := newTestHandler(false)
	req := httptest.NewRequest(http.MethodGet, "/api/cot/assets/gold", nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, TypeTimeout},
		{"api error", NotFoundError("asset"), http.StatusNotFound, TypeNotFound},
		{"dataset code", New(http.StatusNotFound, "DATASET_NOT_FOUND", "no data"), http.StatusNotFound, TypeDatasetNotFound},
		{"unsupported", ErrUnsupportedMedia, http.StatusUnsupportedMediaType, TypeUnsupported},
		{"max bytes", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, TypePayloadTooLarge},
		{"app parsing", NewParsingError("bad workbook", io.ErrUnexpectedEOF), http.StatusUnprocessableEntity, TypeValidation},
		{"app storage", NewStorageError("write failed", io.ErrShortWrite), http.StatusInternalServerError, TypeInternal},
		{"string not found", fmt.Errorf("dataset history not found"), http.StatusNotFound, TypeNotFound},
		{"generic", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := h.ErrorToProblem(tt.err, req)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, "/api/cot/assets/gold", p.Instance)
		})
	}
}

func TestHandleErrorWritesProblemJSON(t *testing.T) {
	h := newTestHandler(false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cot/positions", nil)

	h.HandleError(rec, req, NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "bad sort", "sort"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TypeValidation, body["type"])
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
	assert.Equal(t, "sort", body["details"])
	assert.Contains(t, body, "trace_id")
	assert.NotContains(t, body, "stack")
}

func TestHandleErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, rec.Body.Len())
}

func TestMiddlewareRecoversPanic(t *testing.T) {
	h := newTestHandler(true)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "kaboom"))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestHandler(false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/cot/positions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "DELETE")
}

func TestProblemDetailsMarshalExtensions(t *testing.T) {
	p := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "/a").
		WithExtension("error_code", "X")

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "X", body["error_code"])
	assert.Equal(t, float64(404), body["status"])
	assert.NotContains(t, body, "detail")
}

func TestAppError(t *testing.T) {
	cause := io.EOF
	err := NewStorageError("persist dataset", cause).WithContext("dataset", "positions")

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "[STORAGE] persist dataset: EOF", err.Error())
	assert.Equal(t, "positions", err.Context["dataset"])
	assert.Equal(t, http.StatusNotFound, NewNotFoundError("asset").StatusCode)
	assert.Equal(t, "[NOT_FOUND] asset not found", NewNotFoundError("asset").Error())
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrValidation("lang", "must be en or ar"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"field":"lang"`)
}
