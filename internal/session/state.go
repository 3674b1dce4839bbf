// Package session holds the per-browser application state of the web front
// end: the story under analysis, its result, the extracted characters and the
// role-play transcript.
//
// A [State] is only mutated through its typed setters and is read through
// [State.Snapshot]. Its lock is never held while a presenter waits on the
// backend, so one slow analysis cannot stall a chat render in another tab.
package session

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/storylens/internal/narrative"
	"github.com/MrWong99/storylens/internal/view"
)

// ErrUnknownCharacter is returned by [State.SelectCharacter] for a name that
// was not extracted from the current story.
var ErrUnknownCharacter = errors.New("session: unknown character")

// StatusKind classifies the status line.
type StatusKind string

const (
	StatusNone    StatusKind = ""
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is the single user-visible status message.
type Status struct {
	Kind StatusKind
	Text string
}

// Source is a citation of an excerpt.
type Source struct {
	Title string
	URI   string
}

// Excerpt is a search result held for review before it replaces the story.
type Excerpt struct {
	Query   string
	Text    string
	Sources []Source
}

// Flag is a busy guard. A zero Flag is free.
type Flag struct {
	held atomic.Bool
}

// TryAcquire takes the flag and reports whether it was free.
func (f *Flag) TryAcquire() bool { return f.held.CompareAndSwap(false, true) }

// Release frees the flag.
func (f *Flag) Release() { f.held.Store(false) }

// Held reports whether the flag is taken.
func (f *Flag) Held() bool { return f.held.Load() }

// State is the mutable state of one browser session. All methods are safe
// for concurrent use.
type State struct {
	// Busy guards for the three long-running operations. They are
	// independent: searching does not block chatting.
	Analyzing Flag
	Searching Flag
	Chatting  Flag

	// View tracks the visible screen.
	View view.Controller

	id string

	mu          sync.Mutex
	story       string
	analyzed    string
	analysis    *narrative.Analysis
	characters  []narrative.Character
	active      string
	transcript  []narrative.ChatMessage
	generation  uint64
	excerpt     *Excerpt
	status      Status
	chatEnabled bool
	lastSeen    time.Time
}

// NewState returns an empty State. Most callers obtain states from a [Store].
func NewState(id string) *State {
	return &State{id: id, lastSeen: time.Now()}
}

// ID returns the session identifier.
func (s *State) ID() string { return s.id }

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SetStory replaces the story input. The input is a draft: chat keeps using
// the story of the last successful analysis until a new one succeeds.
func (s *State) SetStory(text string) {
	s.mu.Lock()
	s.story = text
	s.mu.Unlock()
}

// Story returns the story input.
func (s *State) Story() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.story
}

// SetAnalysis stores a together with the story it was computed from, or
// clears both when a is nil. The analysis is treated as immutable once
// stored.
func (s *State) SetAnalysis(a *narrative.Analysis, story string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = a
	s.analyzed = ""
	if a != nil {
		s.analyzed = story
	}
}

// AnalyzedStory returns the story of the last successful analysis, or "".
func (s *State) AnalyzedStory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzed
}

// Analysis returns the last successful analysis, or nil.
func (s *State) Analysis() *narrative.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

// SetCharacters replaces the extracted characters and makes the first one
// active. An empty list leaves no active character.
func (s *State) SetCharacters(chars []narrative.Character) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters = slices.Clone(chars)
	s.active = ""
	s.generation++
	if len(chars) > 0 {
		s.active = chars[0].Name
	}
}

// SelectCharacter makes name the active character and clears the transcript.
func (s *State) SelectCharacter(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.characters, func(c narrative.Character) bool { return c.Name == name }) {
		return ErrUnknownCharacter
	}
	s.active = name
	s.transcript = nil
	s.generation++
	return nil
}

// ActiveCharacter returns the active character's name, or "" when none.
func (s *State) ActiveCharacter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// AppendMessage adds m to the transcript and returns the transcript
// generation it was added to.
func (s *State) AppendMessage(m narrative.ChatMessage) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, m)
	return s.generation
}

// AppendReply adds m to the transcript only while it is still generation
// gen. It reports whether m was appended. A reply that arrives after the
// transcript was reset, by a character switch or a new analysis, is dropped.
func (s *State) AppendReply(gen uint64, m narrative.ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.transcript = append(s.transcript, m)
	return true
}

// ResetTranscript empties the transcript and starts a new generation.
func (s *State) ResetTranscript() {
	s.mu.Lock()
	s.transcript = nil
	s.generation++
	s.mu.Unlock()
}

// Transcript returns a copy of the transcript.
func (s *State) Transcript() []narrative.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transcript)
}

// SetExcerpt puts e under review, or clears the review panel when nil.
func (s *State) SetExcerpt(e *Excerpt) {
	s.mu.Lock()
	s.excerpt = e
	s.mu.Unlock()
}

// Excerpt returns the excerpt under review, or nil.
func (s *State) Excerpt() *Excerpt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.excerpt
}

// SetStatus replaces the status line.
func (s *State) SetStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// EnableChat sets whether the chat input accepts messages.
func (s *State) EnableChat(enabled bool) {
	s.mu.Lock()
	s.chatEnabled = enabled
	s.mu.Unlock()
}

// ChatEnabled reports whether chat is enabled.
func (s *State) ChatEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatEnabled
}

// Snapshot is a point-in-time copy of a [State] for rendering.
type Snapshot struct {
	ID          string
	Story       string
	Analysis    *narrative.Analysis
	Characters  []narrative.Character
	Active      string
	Transcript  []narrative.ChatMessage
	Excerpt     *Excerpt
	Status      Status
	ChatEnabled bool

	Analyzing bool
	Searching bool
	Chatting  bool
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:          s.id,
		Story:       s.story,
		Analysis:    s.analysis,
		Characters:  slices.Clone(s.characters),
		Active:      s.active,
		Transcript:  slices.Clone(s.transcript),
		Status:      s.status,
		ChatEnabled: s.chatEnabled,
		Analyzing:   s.Analyzing.Held(),
		Searching:   s.Searching.Held(),
		Chatting:    s.Chatting.Held(),
	}
	if s.excerpt != nil {
		ex := *s.excerpt
		ex.Sources = slices.Clone(ex.Sources)
		snap.Excerpt = &ex
	}
	return snap
}
