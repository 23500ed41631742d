// Package playback binds a decoded voiceover buffer to a video surface so
// audio and video stay in lockstep across transport events. The video
// surface is always muted; audio is driven exclusively by one-shot nodes
// restarted from the video's reported position on every transport event.
package playback

import (
	"sync"

	"github.com/promoreel/promoreel-api/internal/codec"
)

// EventKind identifies a transport event emitted by a video surface.
type EventKind string

const (
	// EventPlay means playback started or resumed.
	EventPlay EventKind = "play"
	// EventPause means playback paused.
	EventPause EventKind = "pause"
	// EventSeek means the playback position jumped.
	EventSeek EventKind = "seek"
	// EventEnded means playback reached the end.
	EventEnded EventKind = "ended"
)

// Event is one transport event with the surface's playback offset in seconds
// at the time of the event.
type Event struct {
	Kind     EventKind
	Position float64
}

// Node is a one-shot audio playback node. A node is started once at an
// offset and stopped once; a new node is created for every (re)start.
type Node interface {
	// Start begins playback at the given offset in seconds.
	Start(offset float64)
	// Stop halts playback and releases the node.
	Stop()
}

// Engine creates playback nodes for a decoded buffer. The process-wide
// engine behind this interface is created once and never disposed between
// generations.
type Engine interface {
	// NewNode creates a fresh one-shot node for the buffer.
	NewNode(buf *codec.AudioBuffer) Node
}

// EngineProvider lazily yields the engine on first use.
type EngineProvider func() Engine

// Synchronizer drives audio nodes from the transport events of one displayed
// result. It is safe for concurrent use.
type Synchronizer struct {
	mu      sync.Mutex
	provide EngineProvider
	engine  Engine
	buffer  *codec.AudioBuffer
	node    Node
	playing bool
}

// NewSynchronizer creates a synchronizer that acquires its engine from
// provider on the first play event.
func NewSynchronizer(provider EngineProvider) *Synchronizer {
	return &Synchronizer{provide: provider}
}

// Bind attaches a decoded voiceover buffer, replacing any previous one.
// Any active node for the previous result is stopped.
func (s *Synchronizer) Bind(buf *codec.AudioBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.playing = false
	s.buffer = buf
}

// HandleEvent reacts to one transport event from the video surface.
func (s *Synchronizer) HandleEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case EventPlay:
		s.playing = true
		s.restartLocked(ev.Position)
	case EventPause, EventEnded:
		s.playing = false
		s.stopLocked()
	case EventSeek:
		// Restart-from-offset is the chosen approximation; a paused seek
		// only takes effect on the next play.
		if s.playing {
			s.restartLocked(ev.Position)
		}
	}
}

// Close stops any active node. The engine stays alive for the next result.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.playing = false
}

// restartLocked replaces the active node with a fresh one seeded at offset.
// The caller must hold the mutex.
func (s *Synchronizer) restartLocked(offset float64) {
	s.stopLocked()
	if s.buffer == nil {
		return
	}
	if s.engine == nil {
		s.engine = s.provide()
	}
	node := s.engine.NewNode(s.buffer)
	node.Start(offset)
	s.node = node
}

// stopLocked stops and discards the active node, if any.
// The caller must hold the mutex.
func (s *Synchronizer) stopLocked() {
	if s.node != nil {
		s.node.Stop()
		s.node = nil
	}
}
