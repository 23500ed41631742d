package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/promoreel/promoreel-api/internal/codec"
	"github.com/promoreel/promoreel-api/internal/pipeline/id"
)

// State represents the current state of a pipeline Run.
type State string

const (
	// StatePending indicates the run was accepted but has not started.
	StatePending State = "PENDING"
	// StateRunning indicates a stage of the run is executing.
	StateRunning State = "RUNNING"
	// StateSucceeded indicates the run completed with a result bundle.
	StateSucceeded State = "SUCCEEDED"
	// StateFailed indicates a stage failed; the run carries a classified error.
	StateFailed State = "FAILED"
)

// IsTerminal returns true if the state is a final state.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Stage identifies which part of the workflow a running pipeline is in.
type Stage string

const (
	// StageInitialGeneration is the first video generation call.
	StageInitialGeneration Stage = "initial_generation"
	// StageExtension is the optional follow-up generation continuing the
	// initial video.
	StageExtension Stage = "extension"
	// StageVoiceover is the optional speech synthesis or recording decode.
	StageVoiceover Stage = "voiceover"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("pipeline: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StatePending:   {StateRunning, StateFailed},
	StateRunning:   {StateSucceeded, StateFailed},
	StateSucceeded: {},
	StateFailed:    {},
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Result is the consolidated output of one pipeline run.
type Result struct {
	// LocalURL addresses the fetched video for playback on this host.
	LocalURL string
	// Data is the raw video payload, kept for download or re-upload.
	Data []byte
	// Handle is the opaque video descriptor reusable for extension.
	Handle []byte
	// SourceURI is the remote location the payload was fetched from.
	SourceURI string
	// PublishedURL is the S3 location, when publication is configured.
	PublishedURL string
}

// Run is the aggregate tracking one generation pipeline execution.
type Run struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string
	// State is the current workflow state.
	State State
	// Stage is the executing stage while State is RUNNING, and the stage
	// that failed when State is FAILED.
	Stage Stage
	// Request is the normalized original request driving the run.
	Request Request
	// Result is the consolidated output, set when the run succeeds.
	Result *Result
	// Voiceover is the decoded voiceover buffer, when the mode produced one.
	Voiceover *codec.AudioBuffer
	// ErrorCategory classifies the failure for the caller.
	ErrorCategory ErrorCategory
	// Error contains the failure message when the run failed.
	Error string
	// CreatedAt is when the run was accepted.
	CreatedAt time.Time
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time
	// StartedAt is when the first stage started.
	StartedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// NewRun creates a pending run for the given request with a generated ID.
func NewRun(req Request) *Run {
	now := time.Now()
	return &Run{
		ID:        id.Generate(),
		State:     StatePending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// transitionTo attempts to change the run state.
func (r *Run) transitionTo(state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.State, state) {
		return ErrInvalidTransition
	}

	r.State = state
	r.UpdatedAt = time.Now()

	switch state {
	case StateRunning:
		r.StartedAt = r.UpdatedAt
	case StateSucceeded, StateFailed:
		r.CompletedAt = r.UpdatedAt
	}

	return nil
}

// Start transitions the run from PENDING to RUNNING at the given stage.
func (r *Run) Start(stage Stage) error {
	if err := r.transitionTo(StateRunning); err != nil {
		return err
	}
	r.mu.Lock()
	r.Stage = stage
	r.mu.Unlock()
	return nil
}

// EnterStage records progression to a later stage of a running pipeline.
func (r *Run) EnterStage(stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State == StateRunning {
		r.Stage = stage
		r.UpdatedAt = time.Now()
	}
}

// Succeed transitions the run to SUCCEEDED with its result bundle.
func (r *Run) Succeed(result *Result, voiceover *codec.AudioBuffer) error {
	r.mu.Lock()
	r.Result = result
	r.Voiceover = voiceover
	r.mu.Unlock()
	return r.transitionTo(StateSucceeded)
}

// Fail transitions the run to FAILED with a classified error.
func (r *Run) Fail(category ErrorCategory, errMsg string) error {
	r.mu.Lock()
	r.ErrorCategory = category
	r.Error = errMsg
	r.mu.Unlock()
	return r.transitionTo(StateFailed)
}

// GetState returns the current run state (thread-safe).
func (r *Run) GetState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}

// IsTerminal returns true if the run reached a final state.
func (r *Run) IsTerminal() bool {
	return r.GetState().IsTerminal()
}

// Clone creates a deep copy of the run for safe reads.
func (r *Run) Clone() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := &Run{
		ID:            r.ID,
		State:         r.State,
		Stage:         r.Stage,
		Request:       r.Request,
		Voiceover:     r.Voiceover,
		ErrorCategory: r.ErrorCategory,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
	}
	if r.Result != nil {
		result := *r.Result
		clone.Result = &result
	}
	return clone
}
