// Package server provides the HTTP surface for the generation pipeline.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/promoreel/promoreel-api/internal/history"

// ReferenceImagePayload is one inline reference image.
type ReferenceImagePayload struct {
	// DataBase64 is the base64-encoded image payload.
	DataBase64 string `json:"data_base64" validate:"required,base64"`
	// MimeType is the image MIME type, e.g. "image/png".
	MimeType string `json:"mime_type" validate:"required"`
}

// CreateGenerationRequest is the HTTP request body for starting a pipeline run.
type CreateGenerationRequest struct {
	// ProductName names the advertised product.
	ProductName string `json:"product_name" validate:"required"`
	// ProductDescription describes the advertised product.
	ProductDescription string `json:"product_description"`
	// Prompt is the free-text generation prompt.
	Prompt string `json:"prompt" validate:"required"`
	// Model selects the quality tier: "fast" or "quality".
	Model string `json:"model" validate:"required,oneof=fast quality"`
	// Resolution selects the resolution tier: "720p" or "1080p".
	Resolution string `json:"resolution" validate:"required,oneof=720p 1080p"`
	// AspectRatio selects the aspect tier: "16:9" or "9:16".
	AspectRatio string `json:"aspect_ratio" validate:"required,oneof=16:9 9:16"`
	// ReferenceImages optionally ground the generation on product shots.
	ReferenceImages []ReferenceImagePayload `json:"reference_images,omitempty" validate:"omitempty,dive"`
	// AutoExtend requests a follow-up extension generation.
	AutoExtend bool `json:"auto_extend"`
	// VoiceoverMode is "none", "synthesize" or "record". Empty means none.
	VoiceoverMode string `json:"voiceover_mode" validate:"omitempty,oneof=none synthesize record"`
	// VoiceoverScript is the script for synthesized voiceovers.
	VoiceoverScript string `json:"voiceover_script,omitempty"`
	// RecordedAudioBase64 is the user-captured WAV clip for record mode.
	RecordedAudioBase64 string `json:"recorded_audio_base64,omitempty" validate:"omitempty,base64"`
	// Voice selects the prebuilt synthesis voice.
	Voice string `json:"voice,omitempty"`
}

// CreateGenerationResponse is the HTTP response after starting a run.
type CreateGenerationResponse struct {
	// ID is the unique identifier for the created run.
	ID string `json:"id"`
	// State is the initial run state.
	State string `json:"state"`
}

// ResultPayload describes the consolidated video result of a succeeded run.
type ResultPayload struct {
	// VideoURL is the locally-addressable playback URL.
	VideoURL string `json:"video_url"`
	// PublishedURL is the S3 location, when publication is configured.
	PublishedURL string `json:"published_url,omitempty"`
	// SourceURI is the remote location the video was fetched from.
	SourceURI string `json:"source_uri,omitempty"`
}

// VoiceoverPayload describes a decoded voiceover buffer.
type VoiceoverPayload struct {
	// SampleRate is the number of frames per second.
	SampleRate int `json:"sample_rate"`
	// Channels is the channel count.
	Channels int `json:"channels"`
	// Frames is the number of sample frames per channel.
	Frames int `json:"frames"`
	// DurationMs is the playable duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`
}

// RunResponse is the HTTP response for run details.
type RunResponse struct {
	// ID is the unique identifier for the run.
	ID string `json:"id"`
	// State is the current run state.
	State string `json:"state"`
	// Stage is the current (or failed) workflow stage, if any.
	Stage string `json:"stage,omitempty"`
	// ErrorCategory classifies the failure when the run failed.
	ErrorCategory string `json:"error_category,omitempty"`
	// Error contains the failure message when the run failed.
	Error string `json:"error,omitempty"`
	// Result is set when the run succeeded.
	Result *ResultPayload `json:"result,omitempty"`
	// Voiceover is set when the run produced a voiceover.
	Voiceover *VoiceoverPayload `json:"voiceover,omitempty"`
}

// HistoryResponse is the HTTP response for the history listing.
type HistoryResponse struct {
	// Entries are the persisted configurations, most recent first.
	Entries []history.Entry `json:"entries"`
}

// DraftScriptRequest is the HTTP request body for script drafting.
type DraftScriptRequest struct {
	// ProductName names the advertised product.
	ProductName string `json:"product_name" validate:"required"`
	// ProductDescription describes the advertised product.
	ProductDescription string `json:"product_description"`
}

// DraftScriptResponse carries the drafted promotional line.
type DraftScriptResponse struct {
	// Script is the model's line, trimmed, passed through verbatim.
	Script string `json:"script"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
