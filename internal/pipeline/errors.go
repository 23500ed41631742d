package pipeline

import (
	"errors"
	"strings"

	"github.com/promoreel/promoreel-api/internal/veo"
)

// Static errors for pipeline operations.
var (
	// ErrBusy is returned when a new submission arrives while a run is
	// already in flight. The pipeline serializes runs itself instead of
	// relying on the caller.
	ErrBusy = errors.New("pipeline: a generation run is already in progress")
	// ErrRunNotFound is returned when a run cannot be found by ID.
	ErrRunNotFound = errors.New("pipeline: run not found")
	// ErrScriptRequired is returned when voiceover mode is synthesize and
	// no script is supplied.
	ErrScriptRequired = errors.New("pipeline: voiceover script is required for synthesis")
	// ErrVoiceRequired is returned when voiceover mode is synthesize and
	// no voice is selected.
	ErrVoiceRequired = errors.New("pipeline: voice selection is required for synthesis")
	// ErrRecordingRequired is returned when voiceover mode is record and
	// no captured audio is supplied.
	ErrRecordingRequired = errors.New("pipeline: recorded audio is required for record mode")
)

// ErrorCategory maps a failure to a user-facing class.
type ErrorCategory string

const (
	// CategoryAuth covers invalid, missing or under-privileged credentials.
	// The caller should re-prompt for credential selection.
	CategoryAuth ErrorCategory = "auth"
	// CategoryGeneration covers all other pipeline failures; retry is manual.
	CategoryGeneration ErrorCategory = "generation"
)

// authErrorMarkers are the known remote error fragments indicating a
// credential problem rather than a generation failure.
var authErrorMarkers = []string{
	"api key not valid",
	"api_key_invalid",
	"permission_denied",
	"permission denied",
	"unauthorized",
	"status 401",
	"status 403",
}

// ClassifyError maps an error to its user-facing category. A missing API
// key is a credential problem even though its message carries none of the
// remote markers.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return CategoryGeneration
	}
	if errors.Is(err, veo.ErrAPIKeyNotSet) {
		return CategoryAuth
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range authErrorMarkers {
		if strings.Contains(msg, marker) {
			return CategoryAuth
		}
	}
	return CategoryGeneration
}
