// Package pipeline provides the generation-orchestration workflow: it turns a
// set of advertising-video parameters into a fetched, locally addressable
// video artifact with an optional voiceover, tracked as a Run aggregate.
package pipeline

import (
	"encoding/json"

	"github.com/promoreel/promoreel-api/internal/history"
)

// ModelTier selects one of the two model quality tiers.
type ModelTier string

const (
	// ModelTierFast is the cheaper, faster tier.
	ModelTierFast ModelTier = "fast"
	// ModelTierQuality is the high-quality tier. Required whenever
	// reference images are supplied.
	ModelTierQuality ModelTier = "quality"
)

// IsValid returns true if the tier is one of the two supported tiers.
func (m ModelTier) IsValid() bool {
	return m == ModelTierFast || m == ModelTierQuality
}

// Resolution is the target output resolution.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// IsValid returns true if the resolution is one of the two supported tiers.
func (r Resolution) IsValid() bool {
	return r == Resolution720p || r == Resolution1080p
}

// AspectRatio is the target output aspect ratio.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// IsValid returns true if the aspect ratio is one of the two supported tiers.
func (a AspectRatio) IsValid() bool {
	return a == AspectLandscape || a == AspectPortrait
}

// VoiceoverMode selects how the voiceover stage behaves.
type VoiceoverMode string

const (
	// VoiceoverNone skips the voiceover stage.
	VoiceoverNone VoiceoverMode = "none"
	// VoiceoverSynthesize produces the voiceover with text-to-speech.
	VoiceoverSynthesize VoiceoverMode = "synthesize"
	// VoiceoverRecord decodes a user-captured audio clip.
	VoiceoverRecord VoiceoverMode = "record"
)

// IsValid returns true if the mode is one of the supported modes.
func (m VoiceoverMode) IsValid() bool {
	return m == VoiceoverNone || m == VoiceoverSynthesize || m == VoiceoverRecord
}

// ReferenceImage is an image grounding the generation on a product's appearance.
type ReferenceImage struct {
	// Data is the raw image payload.
	Data []byte
	// MIMEType is the image MIME type, e.g. "image/png".
	MIMEType string
}

// Request is the immutable input to one generation attempt.
type Request struct {
	// ProductName names the advertised product.
	ProductName string
	// ProductDescription describes the advertised product.
	ProductDescription string
	// Prompt is the free-text generation prompt.
	Prompt string
	// Model selects the quality tier.
	Model ModelTier
	// Resolution is the target resolution tier.
	Resolution Resolution
	// AspectRatio is the target aspect ratio tier.
	AspectRatio AspectRatio
	// ReferenceImages optionally ground the generation.
	ReferenceImages []ReferenceImage
	// InputVideo is the opaque handle of a prior generation; when set the
	// request is an extension of that video.
	InputVideo json.RawMessage
	// AutoExtend requests a follow-up extension generation after the
	// initial one completes.
	AutoExtend bool
	// VoiceoverMode selects the voiceover stage behavior.
	VoiceoverMode VoiceoverMode
	// VoiceoverScript is the script for synthesized voiceovers.
	VoiceoverScript string
	// RecordedAudio is the user-captured clip for recorded voiceovers.
	RecordedAudio []byte
	// Voice selects the prebuilt synthesis voice.
	Voice string
}

// IsExtension returns true if the request continues a prior generation.
func (r Request) IsExtension() bool {
	return len(r.InputVideo) > 0
}

// continuationPrompt replaces the user prompt on auto-extension requests.
const continuationPrompt = "Continue the scene seamlessly, keeping the same product, style, camera language and lighting."

// Normalized returns a copy of the request with the remote contract's hard
// constraints applied. Supplying a reference image forces the quality model,
// 720p and landscape. Extending a prior video forces 720p and drops the
// aspect ratio, which must not be sent alongside an input video.
func (r Request) Normalized() Request {
	out := r
	if len(out.ReferenceImages) > 0 {
		out.Model = ModelTierQuality
		out.Resolution = Resolution720p
		out.AspectRatio = AspectLandscape
	}
	if out.IsExtension() {
		out.Resolution = Resolution720p
		out.AspectRatio = ""
	}
	return out
}

// ExtensionOf derives the auto-extend follow-up request: all original
// parameters are reused except the prompt, which becomes a fixed continuation
// instruction, and the resolution, which the extension contract pins to 720p.
// The prior stage's video handle becomes the input video.
func ExtensionOf(original Request, handle json.RawMessage) Request {
	derived := original
	derived.Prompt = continuationPrompt
	derived.Resolution = Resolution720p
	derived.AspectRatio = ""
	derived.InputVideo = handle
	derived.AutoExtend = false
	return derived
}

// HistoryEntry strips the request down to its serializable fields for the
// history store. Binary payloads and opaque handles are dropped.
func (r Request) HistoryEntry() history.Entry {
	return history.Entry{
		ProductName:        r.ProductName,
		ProductDescription: r.ProductDescription,
		Prompt:             r.Prompt,
		Model:              string(r.Model),
		Resolution:         string(r.Resolution),
		AspectRatio:        string(r.AspectRatio),
		AutoExtend:         r.AutoExtend,
		VoiceoverMode:      string(r.VoiceoverMode),
		VoiceoverScript:    r.VoiceoverScript,
		Voice:              r.Voice,
	}
}
