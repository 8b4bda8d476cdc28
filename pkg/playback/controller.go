// Package playback owns the transport state of a beatbox session. It
// compiles the grid on start, drives a Backend and saves or loads the grid.
package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/persist"
	"github.com/james-see/beatbox/pkg/sequence"
)

// Tempo scaling steps
const (
	TempoUpFactor   = 1.03
	TempoDownFactor = 0.97
)

var (
	// ErrBackendUnavailable is returned when no backend could be opened
	ErrBackendUnavailable = errors.New("playback backend unavailable")
	// ErrPlaybackRejected is returned when the backend refuses a timeline
	ErrPlaybackRejected = errors.New("playback rejected")
)

// Backend schedules and loops a compiled timeline
type Backend interface {
	Load(tl sequence.Timeline) error
	SetLoop(infinite bool)
	SetTempoBPM(bpm float64)
	SetTempoFactor(factor float64)
	TempoFactor() float64
	Start() error
	Stop()
	Close() error
}

// Opener acquires a backend
type Opener func() (Backend, error)

// State is the transport state
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// MarshalText renders the state as "stopped" or "playing"
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the output of MarshalText
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stopped":
		*s = Stopped
	case "playing":
		*s = Playing
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// Status is a point in time view of a session
type Status struct {
	State       State   `json:"state"`
	TempoFactor float64 `json:"tempo_factor"`
	BPM         float64 `json:"bpm"`
	Events      int     `json:"events"`
	Active      int     `json:"active_cells"`
	Backend     bool    `json:"backend"`
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// Controller is the command surface shared by the TUI and the API. All
// methods are safe for concurrent use.
type Controller struct {
	grid *grid.Grid
	open Opener
	log  logrus.FieldLogger

	mu       sync.Mutex
	backend  Backend
	state    State
	timeline sequence.Timeline
}

// New creates a stopped controller over g. The backend is opened once here;
// when that fails the controller still edits, saves and loads, and every
// Start tries to open it again.
func New(g *grid.Grid, open Opener, opts ...Option) *Controller {
	c := &Controller{
		grid: g,
		open: open,
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "playback")

	if err := c.acquire(); err != nil {
		c.log.WithError(err).Warn("no playback backend, editing only")
	}
	return c
}

// acquire opens the backend if it is not open yet. Caller holds mu or is New.
func (c *Controller) acquire() error {
	if c.backend != nil {
		return nil
	}
	if c.open == nil {
		return ErrBackendUnavailable
	}
	b, err := c.open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if b == nil {
		return ErrBackendUnavailable
	}
	c.backend = b
	return nil
}

// Start compiles the current grid and plays it in a loop. The tempo is
// reset to the baseline, overwriting any earlier TempoUp or TempoDown. When
// the backend rejects the timeline the session ends up stopped.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acquire(); err != nil {
		return err
	}

	tl := sequence.Compile(c.grid.Matrix())
	if err := c.backend.Load(tl); err != nil {
		c.stopLocked()
		return fmt.Errorf("%w: %w", ErrPlaybackRejected, err)
	}

	c.backend.SetLoop(true)
	if err := c.backend.Start(); err != nil {
		c.stopLocked()
		return fmt.Errorf("%w: %w", ErrPlaybackRejected, err)
	}
	c.backend.SetTempoBPM(sequence.BaselineBPM)
	c.backend.SetTempoFactor(1.0)

	c.timeline = tl
	c.state = Playing
	c.log.WithFields(logrus.Fields{
		"events": len(tl),
		"active": tl.Count(sequence.NoteOn),
	}).Info("playback started")
	return nil
}

// Stop halts playback. Stopping a stopped session does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.state == Stopped {
		return
	}
	if c.backend != nil {
		c.backend.Stop()
	}
	c.state = Stopped
	c.log.Info("playback stopped")
}

// TempoUp speeds playback up by 3%
func (c *Controller) TempoUp() (float64, error) {
	return c.scaleTempo(TempoUpFactor)
}

// TempoDown slows playback down by 3%
func (c *Controller) TempoDown() (float64, error) {
	return c.scaleTempo(TempoDownFactor)
}

func (c *Controller) scaleTempo(by float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return 0, ErrBackendUnavailable
	}
	factor := c.backend.TempoFactor() * by
	c.backend.SetTempoFactor(factor)
	c.log.WithField("factor", factor).Debug("tempo changed")
	return factor, nil
}

// TempoReset restores a tempo factor of exactly 1.0
func (c *Controller) TempoReset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return ErrBackendUnavailable
	}
	c.backend.SetTempoFactor(1.0)
	return nil
}

// TempoFactor reports the current tempo factor, 1.0 without a backend
func (c *Controller) TempoFactor() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tempoFactorLocked()
}

func (c *Controller) tempoFactorLocked() float64 {
	if c.backend == nil {
		return 1.0
	}
	return c.backend.TempoFactor()
}

// State returns the transport state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ToggleCell flips one grid cell. A running loop keeps the timeline it was
// started with until the next Start.
func (c *Controller) ToggleCell(instrument, step int) error {
	return c.grid.Toggle(instrument, step)
}

// SetCell sets one grid cell
func (c *Controller) SetCell(instrument, step int, active bool) error {
	return c.grid.Set(instrument, step, active)
}

// Clear turns every cell off
func (c *Controller) Clear() {
	c.grid.Clear()
}

// Grid returns a snapshot of the grid
func (c *Controller) Grid() grid.Matrix {
	return c.grid.Matrix()
}

// Save encodes the grid with the default persistence codec
func (c *Controller) Save() ([]byte, error) {
	return persist.Encode(c.grid.Matrix())
}

// Load decodes saved data into the grid and stops playback. On failure the
// grid is left untouched.
func (c *Controller) Load(data []byte) error {
	m, err := persist.Decode(data)
	if err != nil {
		return err
	}
	c.LoadMatrix(m)
	return nil
}

// LoadMatrix replaces the grid and stops playback
func (c *Controller) LoadMatrix(m grid.Matrix) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.grid.Replace(m)
	c.stopLocked()
	c.log.WithField("active", m.ActiveCount()).Info("grid loaded")
}

// Timeline returns the timeline of the last successful Start
func (c *Controller) Timeline() sequence.Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(sequence.Timeline(nil), c.timeline...)
}

// Status returns a snapshot of the session
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	factor := c.tempoFactorLocked()
	return Status{
		State:       c.state,
		TempoFactor: factor,
		BPM:         sequence.BaselineBPM * factor,
		Events:      len(c.timeline),
		Active:      c.grid.ActiveCount(),
		Backend:     c.backend != nil,
	}
}

// Close stops playback and releases the backend
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if c.backend == nil {
		return nil
	}
	err := c.backend.Close()
	c.backend = nil
	return err
}
