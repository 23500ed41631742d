package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"sync"

	"github.com/promoreel/promoreel-api/internal/codec"
	"github.com/promoreel/promoreel-api/internal/history"
	"github.com/promoreel/promoreel-api/internal/storage"
	"github.com/promoreel/promoreel-api/internal/veo"
)

// VideoGenerator is the port to the remote video generation service.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req veo.GenerateRequest) (*veo.Video, error)
}

// SpeechSynthesizer is the port to the remote text-to-speech service.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, script, voice string) (*codec.AudioBuffer, error)
}

// AudioDecoder decodes a user-recorded voiceover clip into a playable buffer.
type AudioDecoder interface {
	DecodeRecording(data []byte) (*codec.AudioBuffer, error)
}

// WAVDecoder is the default AudioDecoder; recorded clips arrive as 16-bit
// PCM WAV files.
type WAVDecoder struct{}

// DecodeRecording implements AudioDecoder.
func (WAVDecoder) DecodeRecording(data []byte) (*codec.AudioBuffer, error) {
	return codec.DecodeWAV(data)
}

// ModelCatalog maps the two quality tiers to concrete model identifiers.
type ModelCatalog struct {
	Fast    string
	Quality string
}

// DefaultModelCatalog returns the default tier-to-model mapping.
func DefaultModelCatalog() ModelCatalog {
	return ModelCatalog{
		Fast:    "veo-3.0-fast-generate-001",
		Quality: "veo-3.0-generate-001",
	}
}

// Resolve returns the model identifier for a tier.
func (c ModelCatalog) Resolve(tier ModelTier) string {
	if tier == ModelTierQuality {
		return c.Quality
	}
	return c.Fast
}

// Orchestrator drives the multi-stage generation workflow: initial
// generation, optional auto-extension, optional voiceover, result
// consolidation and best-effort history persistence. Only one run executes
// at a time; concurrent submissions are rejected with ErrBusy.
type Orchestrator struct {
	generator   VideoGenerator
	synthesizer SpeechSynthesizer
	decoder     AudioDecoder
	runs        Repository
	history     *history.Store
	assets      storage.Storage
	models      ModelCatalog
	publish     bool
	logger      *slog.Logger

	mu        sync.Mutex
	activeRun string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAudioDecoder replaces the default WAV recording decoder.
func WithAudioDecoder(d AudioDecoder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.decoder = d
	}
}

// WithModelCatalog replaces the default tier-to-model mapping.
func WithModelCatalog(c ModelCatalog) OrchestratorOption {
	return func(o *Orchestrator) {
		o.models = c
	}
}

// WithS3Publication enables publishing successful results to S3.
func WithS3Publication(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.publish = enabled
	}
}

// NewOrchestrator creates a new pipeline orchestrator.
func NewOrchestrator(
	generator VideoGenerator,
	synthesizer SpeechSynthesizer,
	runs Repository,
	hist *history.Store,
	assets storage.Storage,
	logger *slog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		generator:   generator,
		synthesizer: synthesizer,
		decoder:     WAVDecoder{},
		runs:        runs,
		history:     hist,
		assets:      assets,
		models:      DefaultModelCatalog(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit validates and normalizes a request, reserves the single execution
// slot and creates a pending run. The caller is expected to follow up with
// Execute; the slot is released when that run reaches a terminal state.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Run, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	run := NewRun(req.Normalized())

	o.mu.Lock()
	if o.activeRun != "" {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.activeRun = run.ID
	o.mu.Unlock()

	if err := o.runs.Save(ctx, run); err != nil {
		o.release(run.ID)
		return nil, err
	}

	o.logger.Info("run accepted",
		slog.String("run_id", run.ID),
		slog.String("model", string(run.Request.Model)),
		slog.String("resolution", string(run.Request.Resolution)),
		slog.Bool("auto_extend", run.Request.AutoExtend),
		slog.String("voiceover_mode", string(run.Request.VoiceoverMode)),
	)

	return run, nil
}

// Execute drives a submitted run through all stages. It always leaves the
// run in a terminal state and releases the execution slot.
func (o *Orchestrator) Execute(ctx context.Context, run *Run) (*Run, error) {
	defer o.release(run.ID)

	req := run.Request

	if err := run.Start(StageInitialGeneration); err != nil {
		return run, err
	}
	o.saveRun(ctx, run)

	video, err := o.generator.GenerateVideo(ctx, wireRequest(req, o.models))
	if err != nil {
		return o.failRun(ctx, run, err)
	}

	final := video
	if req.AutoExtend {
		run.EnterStage(StageExtension)
		o.saveRun(ctx, run)

		extReq := ExtensionOf(req, video.Handle)
		extVideo, err := o.generator.GenerateVideo(ctx, wireRequest(extReq, o.models))
		if err != nil {
			return o.failRun(ctx, run, err)
		}
		final = extVideo
	}

	var voiceover *codec.AudioBuffer
	switch req.VoiceoverMode {
	case VoiceoverSynthesize:
		run.EnterStage(StageVoiceover)
		o.saveRun(ctx, run)
		voiceover, err = o.synthesizer.SynthesizeSpeech(ctx, req.VoiceoverScript, req.Voice)
		if err != nil {
			return o.failRun(ctx, run, err)
		}
	case VoiceoverRecord:
		run.EnterStage(StageVoiceover)
		o.saveRun(ctx, run)
		voiceover, err = o.decoder.DecodeRecording(req.RecordedAudio)
		if err != nil {
			return o.failRun(ctx, run, err)
		}
	}

	result, err := o.materialize(ctx, run.ID, final)
	if err != nil {
		return o.failRun(ctx, run, err)
	}

	if err := run.Succeed(result, voiceover); err != nil {
		return run, err
	}
	o.saveRun(ctx, run)

	// Best-effort: record the original (pre-extension) request so the
	// caller can repopulate a form from it. Failures never surface here.
	o.history.Save(ctx, req.HistoryEntry())

	o.logger.Info("run succeeded",
		slog.String("run_id", run.ID),
		slog.String("local_url", result.LocalURL),
		slog.Bool("extended", req.AutoExtend),
		slog.Bool("has_voiceover", voiceover != nil),
	)

	return run, nil
}

// GetRun retrieves a run by ID.
func (o *Orchestrator) GetRun(ctx context.Context, id string) (*Run, error) {
	return o.runs.FindByID(ctx, id)
}

// History returns the persisted history entries, most recent first.
func (o *Orchestrator) History(ctx context.Context) []history.Entry {
	return o.history.Load(ctx)
}

// materialize persists the fetched video through the asset store and builds
// the result bundle. S3 publication is best-effort when enabled.
func (o *Orchestrator) materialize(ctx context.Context, runID string, video *veo.Video) (*Result, error) {
	name := runID + ".mp4"
	assetPath, err := o.assets.SaveAsset(ctx, name, bytes.NewReader(video.Data))
	if err != nil {
		return nil, err
	}

	result := &Result{
		LocalURL:  "/assets/" + path.Base(assetPath),
		Data:      video.Data,
		Handle:    video.Handle,
		SourceURI: video.URI,
	}

	if o.publish {
		url, err := o.assets.PublishToS3(ctx, name, bytes.NewReader(video.Data))
		if err != nil {
			o.logger.Warn("S3 publication failed",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
		} else {
			result.PublishedURL = url
		}
	}

	return result, nil
}

// failRun records a classified failure on the run.
func (o *Orchestrator) failRun(ctx context.Context, run *Run, cause error) (*Run, error) {
	category := ClassifyError(cause)
	if err := run.Fail(category, cause.Error()); err != nil {
		o.logger.Error("failed to mark run as failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
	o.saveRun(ctx, run)

	o.logger.Error("run failed",
		slog.String("run_id", run.ID),
		slog.String("stage", string(run.Stage)),
		slog.String("category", string(category)),
		slog.String("error", cause.Error()),
	)

	return run, cause
}

// saveRun persists run progress; persistence of in-memory run records is
// not allowed to interrupt the pipeline.
func (o *Orchestrator) saveRun(ctx context.Context, run *Run) {
	if err := o.runs.Save(ctx, run); err != nil {
		o.logger.Warn("failed to save run",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

// release frees the single execution slot if runID still holds it.
func (o *Orchestrator) release(runID string) {
	o.mu.Lock()
	if o.activeRun == runID {
		o.activeRun = ""
	}
	o.mu.Unlock()
}

// validateRequest checks the voiceover stage prerequisites up front so a
// run never starts without the inputs its stages need.
func validateRequest(req Request) error {
	switch req.VoiceoverMode {
	case VoiceoverSynthesize:
		if req.VoiceoverScript == "" {
			return ErrScriptRequired
		}
		if req.Voice == "" {
			return ErrVoiceRequired
		}
	case VoiceoverRecord:
		if len(req.RecordedAudio) == 0 {
			return ErrRecordingRequired
		}
	}
	return nil
}

// wireRequest maps a normalized domain request onto the wire-level request.
func wireRequest(req Request, models ModelCatalog) veo.GenerateRequest {
	out := veo.GenerateRequest{
		Model:       models.Resolve(req.Model),
		Prompt:      req.Prompt,
		Resolution:  string(req.Resolution),
		AspectRatio: string(req.AspectRatio),
		InputVideo:  req.InputVideo,
	}
	for _, img := range req.ReferenceImages {
		out.ReferenceImages = append(out.ReferenceImages, veo.ReferenceImage{
			Data:     img.Data,
			MIMEType: img.MIMEType,
		})
	}
	return out
}
