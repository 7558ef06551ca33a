package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsulhq/konsul/pkg/extraction"
	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/runtimecache"
	"github.com/konsulhq/konsul/pkg/store"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func (f *fakeExtractor) Extract(_ context.Context, in extraction.Input) (*models.Anketa, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.done != nil {
		defer close(f.done)
	}
	return &models.Anketa{CompanyName: "Ромашка", Industry: "flowers"}, nil
}

type testEnv struct {
	server     *Server
	store      *store.Store
	uploadsDir string
}

func newTestEnv(t *testing.T, extractor Extractor) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "konsul.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	uploadsDir := t.TempDir()
	srv := NewServer(Config{
		Store:      st,
		Runtime:    runtimecache.New(),
		Extractor:  extractor,
		UploadsDir: uploadsDir,
	})
	return &testEnv{server: srv, store: st, uploadsDir: uploadsDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T) CreateSessionResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/session/create", CreateSessionRequest{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateSessionWithoutLiveKit(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.createSession(t)

	assert.Len(t, resp.SessionID, 8)
	assert.Equal(t, "consultation-"+resp.SessionID, resp.RoomName)
	assert.Empty(t, resp.Token)
	require.NotNil(t, resp.Warning, "missing LiveKit degrades to a warning")
	assert.Contains(t, *resp.Warning, "API-only")
}

func TestCreateSessionValidatesVoiceSettings(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/session/create", CreateSessionRequest{
		VoiceSettings: map[string]any{"volume": 11},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown voice setting")

	rec = env.do(t, http.MethodPost, "/api/session/create", CreateSessionRequest{
		VoiceSettings: map[string]any{"speech_speed": 5.0},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSessionPatternSelectsConsultationType(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/session/create", CreateSessionRequest{Pattern: "interview"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	sess, err := env.store.GetSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess.VoiceConfig)
	assert.Equal(t, models.ConsultationTypeInterview, sess.VoiceConfig.ConsultationType)
}

func TestGetSessionAndByLink(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/session/"+created.SessionID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/session/by-link/"+created.UniqueLink, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/session/by-link/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/session/ffffffff", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionIDValidationMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{
		"/api/session/ZZZZZZZZ",
		"/api/session/A1B2C3D4",
		"/api/session/abc",
		"/api/session/a1b2c3d4e5",
	} {
		rec := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "invalid session id")
	}
}

func TestStatusTransitions(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	base := "/api/session/" + created.SessionID

	rec := env.do(t, http.MethodPost, base+"/pause", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// paused → paused is not a legal transition.
	rec = env.do(t, http.MethodPost, base+"/pause", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid transition: paused → paused")

	rec = env.do(t, http.MethodPost, base+"/resume", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// end behaves as pause.
	rec = env.do(t, http.MethodPost, base+"/end", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	sess, err := env.store.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, sess.Status)
}

func TestConfirmFromReviewing(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	ctx := context.Background()

	require.NoError(t, env.store.UpdateStatus(ctx, created.SessionID, models.StatusReviewing, true))
	env.server.cfg.Runtime.Set(created.SessionID, models.RuntimeCompleting)

	rec := env.do(t, http.MethodPost, "/api/session/"+created.SessionID+"/confirm", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	sess, err := env.store.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, sess.Status)
	assert.Equal(t, models.RuntimeIdle, env.server.cfg.Runtime.Get(created.SessionID),
		"runtime cache entry cleared")
}

func TestConfirmClosesReviewGate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Fresh (active) session confirms in one shot.
	created := env.createSession(t)
	rec := env.do(t, http.MethodPost, "/api/session/"+created.SessionID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sess, err := env.store.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, sess.Status)

	// Confirming again is a no-op.
	rec = env.do(t, http.MethodPost, "/api/session/"+created.SessionID+"/confirm", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Paused sessions confirm too.
	paused := env.createSession(t)
	require.NoError(t, env.store.UpdateStatus(ctx, paused.SessionID, models.StatusPaused, false))
	rec = env.do(t, http.MethodPost, "/api/session/"+paused.SessionID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Declined sessions do not.
	declined := env.createSession(t)
	require.NoError(t, env.store.UpdateStatus(ctx, declined.SessionID, models.StatusDeclined, true))
	rec = env.do(t, http.MethodPost, "/api/session/"+declined.SessionID+"/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid transition: declined → confirmed")
}

func TestCreateEditConfirmExportFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	base := "/api/session/" + created.SessionID

	rec := env.do(t, http.MethodPut, base+"/anketa", UpdateAnketaRequest{
		AnketaData: map[string]any{"company_name": "ООО Ромашка", "industry": "цветы"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.StatusConfirmed, status.Status)

	rec = env.do(t, http.MethodGet, base+"/export/md", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "ООО Ромашка")
}

func TestConfirmedSessionRejectsResume(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	base := "/api/session/" + created.SessionID

	rec := env.do(t, http.MethodPost, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/resume", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid transition: confirmed → active")
}

func TestKillForcesDeclined(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	ctx := context.Background()

	// Terminal state would normally block the transition; kill overrides.
	require.NoError(t, env.store.UpdateStatus(ctx, created.SessionID, models.StatusConfirmed, true))

	rec := env.do(t, http.MethodPost, "/api/session/"+created.SessionID+"/kill", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	sess, err := env.store.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, sess.Status)
}

func TestReconnectGETDoesNotMutateStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	ctx := context.Background()
	require.NoError(t, env.store.UpdateStatus(ctx, created.SessionID, models.StatusPaused, false))

	rec := env.do(t, http.MethodGet, "/api/session/"+created.SessionID+"/reconnect", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := env.store.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, sess.Status)
}

func TestReconnectPOSTResumesPaused(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	ctx := context.Background()
	require.NoError(t, env.store.UpdateStatus(ctx, created.SessionID, models.StatusPaused, false))

	rec := env.do(t, http.MethodPost, "/api/session/"+created.SessionID+"/reconnect", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := env.store.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, sess.Status)

	// Terminal status rejects reconnection.
	require.NoError(t, env.store.UpdateStatus(ctx, created.SessionID, models.StatusDeclined, true))
	rec = env.do(t, http.MethodPost, "/api/session/"+created.SessionID+"/reconnect", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAnketaRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	base := "/api/session/" + created.SessionID + "/anketa"

	rec := env.do(t, http.MethodPut, base, UpdateAnketaRequest{
		AnketaData: map[string]any{"company_name": "Ромашка", "industry": "flowers"},
		AnketaMD:   "# Анкета",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AnketaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.AnketaData)
	assert.Equal(t, "Ромашка", resp.AnketaData.CompanyName)
	assert.Equal(t, "# Анкета", resp.AnketaMD)
	assert.Equal(t, models.RuntimeIdle, resp.RuntimeStatus)
	assert.Greater(t, resp.CompletionRate, 0.0)
}

func TestAnketaValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	base := "/api/session/" + created.SessionID + "/anketa"

	rec := env.do(t, http.MethodPut, base, UpdateAnketaRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := make(map[string]any, 201)
	for i := 0; i < 201; i++ {
		big["k"+string(rune('a'+i%26))+string(rune('a'+i/26))] = i
	}
	rec = env.do(t, http.MethodPut, base, UpdateAnketaRequest{AnketaData: big})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, base, UpdateAnketaRequest{
		AnketaData: map[string]any{"company_name": "x"},
		AnketaMD:   strings.Repeat("a", 100_001),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnketaPOSTAliasForSendBeacon(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/session/"+created.SessionID+"/anketa", UpdateAnketaRequest{
		AnketaData: map[string]any{"company_name": "Ромашка"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDialogueUpdate(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	base := "/api/session/" + created.SessionID + "/dialogue"

	rec := env.do(t, http.MethodPut, base, UpdateDialogueRequest{
		DialogueHistory: []models.DialogueTurn{
			{Role: models.RoleUser, Content: "Здравствуйте"},
			{Role: models.RoleAssistant, Content: "Добрый день"},
		},
		DurationSeconds: 42,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sess, err := env.store.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Len(t, sess.DialogueHistory, 2)
	assert.Equal(t, 42.0, sess.DurationSeconds)

	rec = env.do(t, http.MethodPut, base, UpdateDialogueRequest{DurationSeconds: 90_000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	turns := make([]models.DialogueTurn, 501)
	for i := range turns {
		turns[i] = models.DialogueTurn{Role: models.RoleUser, Content: "x"}
	}
	rec = env.do(t, http.MethodPut, base, UpdateDialogueRequest{DialogueHistory: turns})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuntimeStatusUpdate(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	base := "/api/session/" + created.SessionID + "/runtime-status"

	rec := env.do(t, http.MethodPut, base, UpdateRuntimeStatusRequest{RuntimeStatus: models.RuntimeProcessing})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RuntimeProcessing, env.server.cfg.Runtime.Get(created.SessionID))

	rec = env.do(t, http.MethodPut, base, UpdateRuntimeStatusRequest{RuntimeStatus: "warming-up"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoiceConfigUpdate(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	base := "/api/session/" + created.SessionID + "/voice-config"

	rec := env.do(t, http.MethodPut, base, map[string]any{
		"voice_gender":        "male",
		"silence_duration_ms": 800,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sess, err := env.store.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess.VoiceConfig)
	assert.Equal(t, "male", sess.VoiceConfig.VoiceGender)
	assert.Equal(t, 800, sess.VoiceConfig.SilenceDurationMs)

	rec = env.do(t, http.MethodPut, base, map[string]any{"silence_duration_ms": 50})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, base, map[string]any{"favourite_color": "green"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportMarkdownAndPrintHTML(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)
	ctx := context.Background()

	// No anketa yet.
	rec := env.do(t, http.MethodGet, "/api/session/"+created.SessionID+"/export/md", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, env.store.UpdateAnketa(ctx, created.SessionID,
		&models.Anketa{CompanyName: "ООО Ромашка"}, ""))
	require.NoError(t, env.store.UpdateMetadata(ctx, created.SessionID, strPtr("ООО Ромашка"), nil))

	rec = env.do(t, http.MethodGet, "/api/session/"+created.SessionID+"/export/md", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filename*=UTF-8''")
	assert.NotContains(t, rec.Header().Get("Content-Disposition"), "\n")
	assert.Contains(t, rec.Body.String(), "## 1.")

	rec = env.do(t, http.MethodGet, "/api/session/"+created.SessionID+"/export/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")
	assert.Contains(t, rec.Body.String(), "window.print()")

	rec = env.do(t, http.MethodGet, "/api/session/"+created.SessionID+"/export/docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndDeleteSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.createSession(t)
	second := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.TotalCount)

	rec = env.do(t, http.MethodGet, "/api/sessions?limit=9000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sessions?status=flying", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bulk delete removes the uploaded files with the records.
	uploadDir := filepath.Join(env.uploadsDir, first.SessionID)
	require.NoError(t, os.MkdirAll(uploadDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "прайс.txt"), []byte("x"), 0o644))

	rec = env.do(t, http.MethodPost, "/api/sessions/delete", DeleteSessionsRequest{
		SessionIDs: []string{first.SessionID, second.SessionID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/session/"+first.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := os.Stat(uploadDir)
	assert.True(t, os.IsNotExist(err), "uploads directory removed")

	// The DELETE verb stays as an alias.
	third := env.createSession(t)
	rec = env.do(t, http.MethodDelete, "/api/sessions", DeleteSessionsRequest{
		SessionIDs: []string{third.SessionID},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadDocuments(t *testing.T) {
	extractor := &fakeExtractor{done: make(chan struct{})}
	env := newTestEnv(t, extractor)
	created := env.createSession(t)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="files"; filename="прайс.txt"`)
	hdr.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte("Наши услуги:\n- букеты от 2000 руб\n- доставка по городу"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost,
		"/api/session/"+created.SessionID+"/documents/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 1)
	assert.Contains(t, resp.Summary, "Загружено файлов: 1")

	sess, err := env.store.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess.DocumentContext)
	assert.Len(t, sess.DocumentContext.Documents, 1)

	// Background extraction was kicked.
	<-extractor.done
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.createSession(t)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("files", "malware.exe")
	require.NoError(t, err)
	_, err = part.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost,
		"/api/session/"+created.SessionID+"/documents/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomsEndpointsWithoutLiveKit(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/rooms", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/rooms", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLearningsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.store.RecordLearning(ctx, "flowers", "Клиенты спрашивают про доставку", "consultation"))

	rec := env.do(t, http.MethodGet, "/api/learnings?industry=flowers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "доставку")

	rec = env.do(t, http.MethodGet, "/api/learnings?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRequestIDMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 12)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "client-supplied", rr.Header().Get("X-Request-ID"))
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func strPtr(s string) *string { return &s }
