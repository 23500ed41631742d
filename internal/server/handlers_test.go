package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/promoreel/promoreel-api/internal/codec"
	"github.com/promoreel/promoreel-api/internal/history"
	"github.com/promoreel/promoreel-api/internal/pipeline"
	"github.com/promoreel/promoreel-api/internal/storage"
	"github.com/promoreel/promoreel-api/internal/veo"
)

// mockGenerator implements pipeline.VideoGenerator for testing.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateVideo(ctx context.Context, req veo.GenerateRequest) (*veo.Video, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*veo.Video), args.Error(1)
}

// mockSynthesizer implements pipeline.SpeechSynthesizer for testing.
type mockSynthesizer struct {
	mock.Mock
}

func (m *mockSynthesizer) SynthesizeSpeech(ctx context.Context, script, voice string) (*codec.AudioBuffer, error) {
	args := m.Called(ctx, script, voice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*codec.AudioBuffer), args.Error(1)
}

// mockDrafter implements ScriptDrafter for testing.
type mockDrafter struct {
	mock.Mock
}

func (m *mockDrafter) DraftScript(ctx context.Context, productName, productDescription string) (string, error) {
	args := m.Called(ctx, productName, productDescription)
	return args.String(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestHandlers(t *testing.T) (*Handlers, *mockGenerator, *mockSynthesizer, *mockDrafter, pipeline.Repository) {
	t.Helper()
	logger := testLogger()

	generator := &mockGenerator{}
	synthesizer := &mockSynthesizer{}
	drafter := &mockDrafter{}

	repo := pipeline.NewMemoryRepository()
	hist := history.NewStore(filepath.Join(t.TempDir(), "history.json"), logger)
	assets, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	orch := pipeline.NewOrchestrator(generator, synthesizer, repo, hist, assets, logger)

	// Run the pipeline inline so mock expectations hold during the request
	handlers := NewHandlers(orch, drafter, assets, logger, WithAsyncExecution(false))
	return handlers, generator, synthesizer, drafter, repo
}

func validBody() CreateGenerationRequest {
	return CreateGenerationRequest{
		ProductName: "Trail Shoes",
		Prompt:      "A runner at dawn",
		Model:       "fast",
		Resolution:  "720p",
		AspectRatio: "16:9",
	}
}

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestCreateGeneration_Success(t *testing.T) {
	h, generator, _, _, repo := newTestHandlers(t)

	generator.On("GenerateVideo", mock.Anything, mock.Anything).
		Return(&veo.Video{Data: []byte("video-bytes"), URI: "https://example.com/v.mp4"}, nil)

	rec := httptest.NewRecorder()
	h.CreateGeneration(rec, postJSON(t, "/generations", validBody()))

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateGenerationResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)

	run, err := repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateSucceeded, run.GetState())
	generator.AssertNumberOfCalls(t, "GenerateVideo", 1)
}

func TestCreateGeneration_InvalidJSON(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/generations", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateGeneration(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestCreateGeneration_ValidationError(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateGenerationRequest)
	}{
		{"missing prompt", func(r *CreateGenerationRequest) { r.Prompt = "" }},
		{"unknown model", func(r *CreateGenerationRequest) { r.Model = "ultra" }},
		{"unknown resolution", func(r *CreateGenerationRequest) { r.Resolution = "480p" }},
		{"unknown aspect ratio", func(r *CreateGenerationRequest) { r.AspectRatio = "4:3" }},
		{"unknown voiceover mode", func(r *CreateGenerationRequest) { r.VoiceoverMode = "whisper" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _, _, _ := newTestHandlers(t)

			body := validBody()
			tt.mutate(&body)

			rec := httptest.NewRecorder()
			h.CreateGeneration(rec, postJSON(t, "/generations", body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			err := json.NewDecoder(rec.Body).Decode(&resp)
			require.NoError(t, err)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		})
	}
}

func TestCreateGeneration_SynthesizeWithoutScript(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	body := validBody()
	body.VoiceoverMode = "synthesize"

	rec := httptest.NewRecorder()
	h.CreateGeneration(rec, postJSON(t, "/generations", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestCreateGeneration_BusyReturnsConflict(t *testing.T) {
	h, generator, _, _, _ := newTestHandlers(t)

	// Hold the execution slot by submitting without executing
	_, err := h.orchestrator.Submit(context.Background(), pipeline.Request{
		Prompt:      "occupier",
		Model:       pipeline.ModelTierFast,
		Resolution:  pipeline.Resolution720p,
		AspectRatio: pipeline.AspectLandscape,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.CreateGeneration(rec, postJSON(t, "/generations", validBody()))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	err = json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "PIPELINE_BUSY", resp.Code)
	generator.AssertNotCalled(t, "GenerateVideo")
}

func TestCreateGeneration_InvalidReferenceImage(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	body := validBody()
	body.ReferenceImages = []ReferenceImagePayload{
		{DataBase64: "%%%not-base64%%%", MimeType: "image/png"},
	}

	rec := httptest.NewRecorder()
	h.CreateGeneration(rec, postJSON(t, "/generations", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetGeneration_Success(t *testing.T) {
	h, generator, synthesizer, _, _ := newTestHandlers(t)

	generator.On("GenerateVideo", mock.Anything, mock.Anything).
		Return(&veo.Video{Data: []byte("video-bytes")}, nil)
	synthesizer.On("SynthesizeSpeech", mock.Anything, "Buy it now", "Kore").
		Return(&codec.AudioBuffer{SampleRate: 24000, Channels: [][]float32{{0, 0.5}}}, nil)

	body := validBody()
	body.VoiceoverMode = "synthesize"
	body.VoiceoverScript = "Buy it now"
	body.Voice = "Kore"

	rec := httptest.NewRecorder()
	h.CreateGeneration(rec, postJSON(t, "/generations", body))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created CreateGenerationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	req := httptest.NewRequest(http.MethodGet, "/generations/"+created.ID, nil)
	req.SetPathValue("id", created.ID)
	rec = httptest.NewRecorder()

	h.GetGeneration(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp RunResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "SUCCEEDED", resp.State)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "/assets/"+created.ID+".mp4", resp.Result.VideoURL)
	require.NotNil(t, resp.Voiceover)
	assert.Equal(t, 24000, resp.Voiceover.SampleRate)
	assert.Equal(t, 1, resp.Voiceover.Channels)
	assert.Equal(t, 2, resp.Voiceover.Frames)
}

func TestGetGeneration_NotFound(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/generations/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.GetGeneration(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "RUN_NOT_FOUND", resp.Code)
}

func TestGetGeneration_MissingID(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/generations/", nil)
	rec := httptest.NewRecorder()

	h.GetGeneration(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "MISSING_RUN_ID", resp.Code)
}

func TestGetGeneration_FailedRunCarriesCategory(t *testing.T) {
	h, generator, _, _, _ := newTestHandlers(t)

	generator.On("GenerateVideo", mock.Anything, mock.Anything).
		Return(nil, veo.ErrAPIKeyNotSet)

	rec := httptest.NewRecorder()
	h.CreateGeneration(rec, postJSON(t, "/generations", validBody()))

	var created CreateGenerationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	req := httptest.NewRequest(http.MethodGet, "/generations/"+created.ID, nil)
	req.SetPathValue("id", created.ID)
	rec = httptest.NewRecorder()

	h.GetGeneration(rec, req)

	var resp RunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "FAILED", resp.State)
	assert.Equal(t, string(pipeline.CategoryAuth), resp.ErrorCategory)
	assert.NotEmpty(t, resp.Error)
}

func TestGetHistory(t *testing.T) {
	h, generator, _, _, _ := newTestHandlers(t)

	generator.On("GenerateVideo", mock.Anything, mock.Anything).
		Return(&veo.Video{Data: []byte("video-bytes")}, nil)

	rec := httptest.NewRecorder()
	h.CreateGeneration(rec, postJSON(t, "/generations", validBody()))
	require.Equal(t, http.StatusAccepted, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec = httptest.NewRecorder()

	h.GetHistory(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HistoryResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Trail Shoes", resp.Entries[0].ProductName)
	assert.Equal(t, "A runner at dawn", resp.Entries[0].Prompt)
}

func TestDraftScript_Success(t *testing.T) {
	h, _, _, drafter, _ := newTestHandlers(t)

	drafter.On("DraftScript", mock.Anything, "Trail Shoes", "Grippy outsole").
		Return("Run further, sooner.", nil)

	body := DraftScriptRequest{ProductName: "Trail Shoes", ProductDescription: "Grippy outsole"}
	rec := httptest.NewRecorder()

	h.DraftScript(rec, postJSON(t, "/scripts/draft", body))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp DraftScriptResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "Run further, sooner.", resp.Script)
}

func TestDraftScript_UpstreamError(t *testing.T) {
	h, _, _, drafter, _ := newTestHandlers(t)

	drafter.On("DraftScript", mock.Anything, "Trail Shoes", "").
		Return("", assert.AnError)

	body := DraftScriptRequest{ProductName: "Trail Shoes"}
	rec := httptest.NewRecorder()

	h.DraftScript(rec, postJSON(t, "/scripts/draft", body))

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "DRAFT_FAILED", resp.Code)
}

func TestGetAsset_StreamsSavedVideo(t *testing.T) {
	h, generator, _, _, _ := newTestHandlers(t)

	generator.On("GenerateVideo", mock.Anything, mock.Anything).
		Return(&veo.Video{Data: []byte("mp4-bytes")}, nil)

	rec := httptest.NewRecorder()
	h.CreateGeneration(rec, postJSON(t, "/generations", validBody()))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created CreateGenerationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	req := httptest.NewRequest(http.MethodGet, "/assets/"+created.ID+".mp4", nil)
	req.SetPathValue("name", created.ID+".mp4")
	rec = httptest.NewRecorder()

	h.GetAsset(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp4-bytes", rec.Body.String())
}

func TestGetAsset_RejectsTraversal(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/assets/x", nil)
	req.SetPathValue("name", "../secrets")
	rec := httptest.NewRecorder()

	h.GetAsset(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAsset_NotFound(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/assets/missing.mp4", nil)
	req.SetPathValue("name", "missing.mp4")
	rec := httptest.NewRecorder()

	h.GetAsset(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteGenerationAsset(t *testing.T) {
	h, generator, _, _, _ := newTestHandlers(t)

	generator.On("GenerateVideo", mock.Anything, mock.Anything).
		Return(&veo.Video{Data: []byte("mp4-bytes")}, nil)

	rec := httptest.NewRecorder()
	h.CreateGeneration(rec, postJSON(t, "/generations", validBody()))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created CreateGenerationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	req := httptest.NewRequest(http.MethodPost, "/generations/"+created.ID+"/asset/delete", nil)
	req.SetPathValue("id", created.ID)
	rec = httptest.NewRecorder()

	h.DeleteGenerationAsset(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The asset is gone; deleting again is still a 204
	getReq := httptest.NewRequest(http.MethodGet, "/assets/"+created.ID+".mp4", nil)
	getReq.SetPathValue("name", created.ID+".mp4")
	getRec := httptest.NewRecorder()
	h.GetAsset(getRec, getReq)
	assert.Equal(t, http.StatusNotFound, getRec.Code)

	req = httptest.NewRequest(http.MethodPost, "/generations/"+created.ID+"/asset/delete", nil)
	req.SetPathValue("id", created.ID)
	rec = httptest.NewRecorder()
	h.DeleteGenerationAsset(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteGenerationAsset_RunNotFound(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/generations/nonexistent/asset/delete", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.DeleteGenerationAsset(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Integration(t *testing.T) {
	h, generator, _, _, _ := newTestHandlers(t)
	generator.On("GenerateVideo", mock.Anything, mock.Anything).
		Return(&veo.Video{Data: []byte("video-bytes")}, nil)

	router := NewRouter(h, testLogger(), DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	payload, _ := json.Marshal(validBody())
	req = httptest.NewRequest(http.MethodPost, "/generations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created CreateGenerationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	req = httptest.NewRequest(http.MethodGet, "/generations/"+created.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/history", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	cfg := Config{AllowedOrigins: []string{"https://studio.example.com"}, MaxBodyBytes: 1 << 20}
	router := NewRouter(h, testLogger(), cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://studio.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://studio.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/generations", nil)
	req.Header.Set("Origin", "https://studio.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(testLogger())(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}

func TestBodyLimitMiddleware(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)

	cfg := Config{AllowedOrigins: []string{"*"}, MaxBodyBytes: 64}
	router := NewRouter(h, testLogger(), cfg)

	body := validBody()
	body.RecordedAudioBase64 = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0}, 1024))
	payload, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/generations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
