package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	chatapi "github.com/futig/manual-assistant/internal/api/chat"
	manualapi "github.com/futig/manual-assistant/internal/api/manual"
	"github.com/futig/manual-assistant/internal/config"
	"github.com/futig/manual-assistant/internal/entity"
)

type stubManuals struct {
	existing    *entity.ManualSummary
	modelsBrand string
}

func (s *stubManuals) Upload(_ context.Context, filename string, _ []byte, meta entity.ManualMetadata) (*entity.UploadResult, error) {
	if s.existing != nil && s.existing.Filename == filename {
		return nil, &entity.DuplicateManualError{Existing: *s.existing}
	}
	return &entity.UploadResult{
		Manual:  entity.ManualSummary{SourceID: "src-1", Filename: filename, Brand: meta.Brand, Model: meta.Model},
		Message: "ok",
	}, nil
}

func (s *stubManuals) Delete(_ context.Context, sourceID string) (*entity.DeleteResult, error) {
	if s.existing == nil || s.existing.SourceID != sourceID {
		return nil, entity.ErrManualNotFound
	}
	return &entity.DeleteResult{Deleted: *s.existing, DatabaseEmpty: true}, nil
}

func (s *stubManuals) List() []entity.ManualSummary {
	if s.existing == nil {
		return nil
	}
	return []entity.ManualSummary{*s.existing}
}

func (s *stubManuals) Brands() []string { return []string{"Bosch"} }

func (s *stubManuals) Models(brand string) []string {
	s.modelsBrand = brand
	return []string{"WAX32"}
}

func (s *stubManuals) Stats() entity.DatabaseStats {
	return entity.DatabaseStats{TotalManuals: 1, TotalChunks: 12}
}

func (s *stubManuals) Verify(context.Context) entity.VerifyReport {
	return entity.VerifyReport{IsConsistent: true}
}

func (s *stubManuals) Clear(context.Context) error   { return nil }
func (s *stubManuals) Rebuild(context.Context) error { return nil }

func (s *stubManuals) DebugSearch(_ context.Context, req *entity.DebugSearchRequest) ([]entity.SearchPreview, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, entity.ErrMissingField
	}
	return []entity.SearchPreview{{Rank: 1, Brand: "Bosch", Page: 3}}, nil
}

func (s *stubManuals) Download(string) (*entity.ManualFile, error) {
	return nil, entity.ErrManualNotFound
}

type stubChat struct {
	lastRequest *entity.ChatRequest
}

func (s *stubChat) Chat(_ context.Context, req *entity.ChatRequest) (*entity.ChatResponse, error) {
	s.lastRequest = req
	return &entity.ChatResponse{
		SessionID: req.SessionID,
		Response:  "Descale every 3 months.",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (s *stubChat) Summarize(context.Context, *entity.SummarizeRequest) (*entity.SummarizeResponse, error) {
	return &entity.SummarizeResponse{Summary: "short"}, nil
}

func (s *stubChat) History(_ context.Context, sessionID string, limit int) (*entity.SessionHistory, error) {
	if sessionID == "unknown" {
		return nil, entity.ErrSessionNotFound
	}
	return &entity.SessionHistory{SessionID: sessionID, Total: limit}, nil
}

func (s *stubChat) Stats(context.Context, string) (*entity.MemoryStats, error) {
	return &entity.MemoryStats{TotalTurns: 2}, nil
}

func (s *stubChat) Export(_ context.Context, sessionID string, format entity.ResultFormat) (*entity.ExportFile, error) {
	if format != entity.FormatMarkdown {
		return nil, entity.ErrInvalidFormat
	}
	return &entity.ExportFile{
		Filename:    sessionID + ".md",
		ContentType: "text/markdown; charset=utf-8",
		Content:     []byte("# Conversation"),
	}, nil
}

func (s *stubChat) ClearMemory(context.Context, string) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *stubManuals, *stubChat) {
	t.Helper()

	manuals := &stubManuals{existing: &entity.ManualSummary{SourceID: "src-0", Filename: "bosch.pdf", Brand: "Bosch"}}
	chat := &stubChat{}

	router := SetupRouter(
		manualapi.NewHandler(manuals, config.FileUploadConfig{MaxFileSize: 1 << 20}),
		chatapi.NewHandler(chat),
		manuals,
		zaptest.NewLogger(t),
	)
	return router, manuals, chat
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSetupRouter_Health(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 1, body.TotalManuals)
	assert.Equal(t, 12, body.TotalChunks)
}

func TestSetupRouter_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "chat", method: http.MethodPost, path: "/api/chat", body: `{"session_id":"s1","message":"hi"}`, want: http.StatusOK},
		{name: "chat invalid json", method: http.MethodPost, path: "/api/chat", body: `{`, want: http.StatusBadRequest},
		{name: "summarize", method: http.MethodPost, path: "/api/summarize", body: `{"session_id":"s1"}`, want: http.StatusOK},
		{name: "clear memory", method: http.MethodPost, path: "/api/clear-memory", body: `{"session_id":"s1"}`, want: http.StatusOK},
		{name: "history", method: http.MethodGet, path: "/api/sessions/s1/history?limit=5", want: http.StatusOK},
		{name: "history bad limit", method: http.MethodGet, path: "/api/sessions/s1/history?limit=abc", want: http.StatusBadRequest},
		{name: "history unknown session", method: http.MethodGet, path: "/api/sessions/unknown/history", want: http.StatusNotFound},
		{name: "session stats", method: http.MethodGet, path: "/api/sessions/s1/stats", want: http.StatusOK},
		{name: "export bad format", method: http.MethodGet, path: "/api/sessions/s1/export?format=rtf", want: http.StatusBadRequest},
		{name: "list files", method: http.MethodGet, path: "/api/files", want: http.StatusOK},
		{name: "delete file", method: http.MethodDelete, path: "/api/files/src-0", want: http.StatusOK},
		{name: "delete missing file", method: http.MethodDelete, path: "/api/files/nope", want: http.StatusNotFound},
		{name: "download missing file", method: http.MethodGet, path: "/api/files/nope/download", want: http.StatusNotFound},
		{name: "brands", method: http.MethodGet, path: "/api/brands", want: http.StatusOK},
		{name: "database stats", method: http.MethodGet, path: "/api/database/stats", want: http.StatusOK},
		{name: "database verify", method: http.MethodGet, path: "/api/database/verify", want: http.StatusOK},
		{name: "database clear", method: http.MethodPost, path: "/api/database/clear", want: http.StatusOK},
		{name: "database rebuild", method: http.MethodPost, path: "/api/database/rebuild", want: http.StatusOK},
		{name: "debug search", method: http.MethodPost, path: "/api/debug/search", body: `{"query":"descale"}`, want: http.StatusOK},
		{name: "debug search empty query", method: http.MethodPost, path: "/api/debug/search", body: `{"query":" "}`, want: http.StatusBadRequest},
		{name: "cors preflight", method: http.MethodOptions, path: "/api/chat", want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := newTestRouter(t)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			rec := serve(router, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestSetupRouter_ChatPassesRequest(t *testing.T) {
	router, _, chat := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"session_id":"s1","message":"how to descale","brand":"Bosch","responseLanguage":"de"}`))
	rec := serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, chat.lastRequest)
	assert.Equal(t, "how to descale", chat.lastRequest.Message)
	assert.Equal(t, "Bosch", chat.lastRequest.Brand)
	assert.Equal(t, "de", chat.lastRequest.ResponseLanguage)

	var resp entity.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "Descale every 3 months.", resp.Response)
}

func TestSetupRouter_ModelsBrandFilter(t *testing.T) {
	router, manuals, _ := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/models?brand=Bosch", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bosch", manuals.modelsBrand)
	assert.JSONEq(t, `{"models":["WAX32"]}`, rec.Body.String())
}

func TestSetupRouter_ExportMarkdown(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/sessions/s1/export?format=markdown", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="s1.md"`)
	assert.Equal(t, "# Conversation", rec.Body.String())
}

func TestSetupRouter_Upload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     int
	}{
		{name: "new manual", filename: "siemens.pdf", want: http.StatusOK},
		{name: "duplicate filename", filename: "bosch.pdf", want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := newTestRouter(t)

			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			fw, err := mw.CreateFormFile("file", tt.filename)
			require.NoError(t, err)
			_, err = fw.Write([]byte("%PDF-1.4 test"))
			require.NoError(t, err)
			require.NoError(t, mw.WriteField("brand", "Siemens"))
			require.NoError(t, mw.Close())

			req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())

			rec := serve(router, req)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())

			if tt.want == http.StatusConflict {
				var body entity.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Contains(t, body.Message, "bosch.pdf")
				assert.NotNil(t, body.Details)
			}
		})
	}
}

func TestSetupRouter_UploadWithoutFile(t *testing.T) {
	router, _, _ := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("brand", "Bosch"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := serve(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
