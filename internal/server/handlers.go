package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/promoreel/promoreel-api/internal/codec"
	"github.com/promoreel/promoreel-api/internal/pipeline"
	"github.com/promoreel/promoreel-api/internal/storage"
)

// ScriptDrafter produces a one-line promotional script for a product.
type ScriptDrafter interface {
	DraftScript(ctx context.Context, productName, productDescription string) (string, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	orchestrator       *pipeline.Orchestrator
	drafter            ScriptDrafter
	assets             storage.Storage
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncExecute bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncExecution enables or disables background execution.
// When disabled, CreateGeneration drives the whole pipeline before
// responding, which is only useful in tests.
func WithAsyncExecution(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncExecute = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	orchestrator *pipeline.Orchestrator,
	drafter ScriptDrafter,
	assets storage.Storage,
	logger *slog.Logger,
	opts ...HandlerOption,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		orchestrator:       orchestrator,
		drafter:            drafter,
		assets:             assets,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncExecute: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateGeneration handles POST /generations requests.
func (h *Handlers) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req CreateGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	domainReq, err := toPipelineRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_PAYLOAD")
		return
	}

	run, err := h.orchestrator.Submit(r.Context(), domainReq)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			writeError(w, http.StatusConflict, "a generation is already in progress", "PIPELINE_BUSY")
		case errors.Is(err, pipeline.ErrScriptRequired),
			errors.Is(err, pipeline.ErrVoiceRequired),
			errors.Is(err, pipeline.ErrRecordingRequired):
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		default:
			h.logger.Error("failed to submit run",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to start generation", "RUN_CREATION_FAILED")
		}
		return
	}

	// Execute in background with a detached context so the remote job is
	// not abandoned when the request ends.
	if h.enableAsyncExecute {
		go func(ctx context.Context, r *pipeline.Run) {
			if _, err := h.orchestrator.Execute(ctx, r); err != nil {
				h.logger.Error("background execution failed",
					slog.String("run_id", r.ID),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), run)
	} else {
		_, _ = h.orchestrator.Execute(r.Context(), run)
	}

	h.logger.Info("run started",
		slog.String("run_id", run.ID),
	)

	writeJSON(w, http.StatusAccepted, CreateGenerationResponse{
		ID:    run.ID,
		State: string(run.GetState()),
	})
}

// GetGeneration handles GET /generations/{id} requests.
func (h *Handlers) GetGeneration(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run ID is required", "MISSING_RUN_ID")
		return
	}

	run, err := h.orchestrator.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found", "RUN_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run", "RUN_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(run))
}

// DeleteGenerationAsset handles POST /generations/{id}/asset/delete requests,
// removing the run's stored video from local disk. Idempotent.
func (h *Handlers) DeleteGenerationAsset(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run ID is required", "MISSING_RUN_ID")
		return
	}

	if _, err := h.orchestrator.GetRun(r.Context(), runID); err != nil {
		if errors.Is(err, pipeline.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found", "RUN_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get run", "RUN_FETCH_FAILED")
		return
	}

	if err := h.assets.RemoveAssets(r.Context(), []string{runID + ".mp4"}); err != nil {
		h.logger.Error("failed to remove asset",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to remove asset", "ASSET_DELETE_FAILED")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /history requests.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries := h.orchestrator.History(r.Context())
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

// DraftScript handles POST /scripts/draft requests.
func (h *Handlers) DraftScript(w http.ResponseWriter, r *http.Request) {
	var req DraftScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	script, err := h.drafter.DraftScript(r.Context(), req.ProductName, req.ProductDescription)
	if err != nil {
		h.logger.Error("script drafting failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "script drafting failed", "DRAFT_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, DraftScriptResponse{Script: script})
}

// GetAsset handles GET /assets/{name} requests, streaming a stored artifact.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	rc, err := h.assets.OpenAsset(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidAssetName) {
			writeError(w, http.StatusBadRequest, "invalid asset name", "INVALID_ASSET_NAME")
			return
		}
		writeError(w, http.StatusNotFound, "asset not found", "ASSET_NOT_FOUND")
		return
	}
	defer func() { _ = rc.Close() }()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("asset streaming interrupted",
			slog.String("asset", name),
			slog.String("error", err.Error()),
		)
	}
}

// toPipelineRequest maps the DTO onto the domain request, decoding the
// base64 payloads.
func toPipelineRequest(req CreateGenerationRequest) (pipeline.Request, error) {
	mode := req.VoiceoverMode
	if mode == "" {
		mode = string(pipeline.VoiceoverNone)
	}

	out := pipeline.Request{
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		Prompt:             req.Prompt,
		Model:              pipeline.ModelTier(req.Model),
		Resolution:         pipeline.Resolution(req.Resolution),
		AspectRatio:        pipeline.AspectRatio(req.AspectRatio),
		AutoExtend:         req.AutoExtend,
		VoiceoverMode:      pipeline.VoiceoverMode(mode),
		VoiceoverScript:    req.VoiceoverScript,
		Voice:              req.Voice,
	}

	for _, img := range req.ReferenceImages {
		data, err := codec.DecodeText(img.DataBase64)
		if err != nil {
			return pipeline.Request{}, err
		}
		out.ReferenceImages = append(out.ReferenceImages, pipeline.ReferenceImage{
			Data:     data,
			MIMEType: img.MimeType,
		})
	}

	if req.RecordedAudioBase64 != "" {
		data, err := codec.DecodeText(req.RecordedAudioBase64)
		if err != nil {
			return pipeline.Request{}, err
		}
		out.RecordedAudio = data
	}

	return out, nil
}

// toRunResponse maps a run onto its response DTO.
func toRunResponse(run *pipeline.Run) RunResponse {
	resp := RunResponse{
		ID:            run.ID,
		State:         string(run.State),
		Stage:         string(run.Stage),
		ErrorCategory: string(run.ErrorCategory),
		Error:         run.Error,
	}

	if run.Result != nil {
		resp.Result = &ResultPayload{
			VideoURL:     run.Result.LocalURL,
			PublishedURL: run.Result.PublishedURL,
			SourceURI:    run.Result.SourceURI,
		}
	}
	if run.Voiceover != nil {
		resp.Voiceover = &VoiceoverPayload{
			SampleRate: run.Voiceover.SampleRate,
			Channels:   run.Voiceover.NumChannels(),
			Frames:     run.Voiceover.Frames(),
			DurationMs: run.Voiceover.Duration().Milliseconds(),
		}
	}

	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
