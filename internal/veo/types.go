// Package veo provides an HTTP client for the remote generative-video API:
// long-running video generation with polling, speech synthesis and voiceover
// script drafting.
package veo

import "encoding/json"

// GenerateRequest describes one video generation attempt at the wire level.
// Model names, resolution and aspect ratio are already resolved by the caller.
type GenerateRequest struct {
	// Model is the generative model identifier.
	Model string
	// Prompt is the free-text generation prompt.
	Prompt string
	// Resolution is the target resolution, e.g. "720p" or "1080p".
	Resolution string
	// AspectRatio is the target aspect ratio. Leave empty to omit the field,
	// which is required when extending a prior video.
	AspectRatio string
	// ReferenceImages ground the generation on a product's appearance.
	ReferenceImages []ReferenceImage
	// InputVideo is the opaque handle of a prior generation to extend.
	// Nil for an initial generation.
	InputVideo json.RawMessage
}

// ReferenceImage is an image supplied to bias generation.
type ReferenceImage struct {
	// Data is the raw image payload.
	Data []byte
	// MIMEType is the image MIME type, e.g. "image/png".
	MIMEType string
}

// Video is the fetched result of one completed generation.
type Video struct {
	// Data is the raw video payload.
	Data []byte
	// Handle is the opaque descriptor returned by the service, reusable as
	// GenerateRequest.InputVideo for an extension call.
	Handle json.RawMessage
	// URI is the remote location the payload was fetched from.
	URI string
}

// generateVideosRequest is the request body for the :generateVideos endpoint.
type generateVideosRequest struct {
	Prompt string          `json:"prompt"`
	Config videoConfig     `json:"config"`
	Video  json.RawMessage `json:"video,omitempty"`
}

// videoConfig carries the generation parameters.
type videoConfig struct {
	NumberOfVideos  int                     `json:"numberOfVideos"`
	Resolution      string                  `json:"resolution"`
	AspectRatio     string                  `json:"aspectRatio,omitempty"`
	ReferenceImages []referenceImagePayload `json:"referenceImages,omitempty"`
}

// referenceImagePayload tags an inline image as an asset reference.
type referenceImagePayload struct {
	Image         inlineImage `json:"image"`
	ReferenceType string      `json:"referenceType"`
}

// inlineImage is a base64-encoded image with its MIME type.
type inlineImage struct {
	ImageBytes string `json:"imageBytes"`
	MimeType   string `json:"mimeType"`
}

// operation is a remote long-running job handle.
type operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *operationError    `json:"error,omitempty"`
	Response *operationResponse `json:"response,omitempty"`
}

// operationError is the failure payload of a completed operation.
type operationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// operationResponse holds the generated video descriptors of a done operation.
type operationResponse struct {
	GeneratedVideos []generatedVideo `json:"generatedVideos"`
}

// generatedVideo wraps one opaque video descriptor.
type generatedVideo struct {
	Video json.RawMessage `json:"video"`
}

// videoDescriptor is the part of the opaque descriptor the client needs:
// the retrievable location of the payload.
type videoDescriptor struct {
	URI string `json:"uri"`
}

// generateContentRequest is the request body for the :generateContent endpoint,
// used for both speech synthesis and script drafting.
type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// generateContentResponse is the response body for the :generateContent endpoint.
type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

// apiError is the service's standard error envelope.
type apiError struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}
