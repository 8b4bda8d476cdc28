// Package backend plays compiled timelines on a MIDI output in real time
package backend

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/james-see/beatbox/pkg/playback"
	"github.com/james-see/beatbox/pkg/sequence"
)

var _ playback.Backend = (*Player)(nil)

var (
	// ErrUnavailable is returned when no MIDI output can be acquired
	ErrUnavailable = errors.New("backend unavailable")
	// ErrRejected is returned when a timeline cannot be scheduled
	ErrRejected = errors.New("timeline rejected")
	// ErrNoTimeline is returned by Start before anything was loaded
	ErrNoTimeline = errors.New("no timeline loaded")
)

// Sender delivers one MIDI message to an output
type Sender func(msg midi.Message) error

// Player loops a timeline at a tempo of bpm * factor quarter notes per
// minute, 4 ticks per quarter. It is safe for concurrent use.
type Player struct {
	send Sender
	out  drivers.Out
	log  logrus.FieldLogger

	mu      sync.Mutex
	ticks   [][]midi.Message // messages per tick, index 0..length
	length  int64
	loop    bool
	bpm     float64
	factor  float64
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// Option configures a Player
type Option func(*Player)

// WithLogger sets the logger used for send failures and transport changes
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Player) {
		p.log = l
	}
}

// New creates a player that writes to send
func New(send Sender, opts ...Option) *Player {
	p := &Player{
		send:   send,
		log:    logrus.StandardLogger(),
		bpm:    sequence.BaselineBPM,
		factor: 1.0,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithField("component", "backend")
	return p
}

// Open finds the named MIDI output, or the first output when name is
// empty, and returns a player for it
func Open(name string, opts ...Option) (*Player, error) {
	var (
		out drivers.Out
		err error
	)
	if name == "" {
		out, err = midi.OutPort(0)
	} else {
		out, err = midi.FindOutPort(name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrUnavailable, out, err)
	}

	p := New(send, opts...)
	p.out = out
	p.log.WithField("port", out.String()).Info("opened MIDI output")
	return p, nil
}

// Opener defers Open until the playback controller asks for a backend
func Opener(name string, opts ...Option) playback.Opener {
	return func() (playback.Backend, error) {
		p, err := Open(name, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Ports lists the names of the available MIDI outputs
func Ports() []string {
	var names []string
	for _, port := range midi.GetOutPorts() {
		names = append(names, port.String())
	}
	return names
}

// Load replaces the scheduled timeline. A running player switches to the
// new timeline on its next tick.
func (p *Player) Load(tl sequence.Timeline) error {
	ticks, err := tl.Messages()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if tl.Length() == 0 {
		return fmt.Errorf("%w: timeline has no length", ErrRejected)
	}

	p.mu.Lock()
	p.ticks = ticks
	p.length = tl.Length()
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{"events": len(tl), "ticks": tl.Length()}).Debug("timeline loaded")
	return nil
}

// SetLoop selects endless repetition or a single pass
func (p *Player) SetLoop(infinite bool) {
	p.mu.Lock()
	p.loop = infinite
	p.mu.Unlock()
}

// SetTempoBPM sets the base tempo
func (p *Player) SetTempoBPM(bpm float64) {
	if bpm <= 0 {
		return
	}
	p.mu.Lock()
	p.bpm = bpm
	p.mu.Unlock()
}

// TempoBPM returns the base tempo
func (p *Player) TempoBPM() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bpm
}

// SetTempoFactor scales the base tempo
func (p *Player) SetTempoFactor(factor float64) {
	if factor <= 0 {
		return
	}
	p.mu.Lock()
	p.factor = factor
	p.mu.Unlock()
}

// TempoFactor returns the tempo scale
func (p *Player) TempoFactor() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.factor
}

// Running reports whether the clock is running
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// TickInterval is the wall clock length of one tick at the current tempo
func (p *Player) TickInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tickInterval()
}

func (p *Player) tickInterval() time.Duration {
	perMinute := p.bpm * p.factor * sequence.TicksPerQuarter
	return time.Duration(float64(time.Minute) / perMinute)
}

// Start runs the clock from tick 0. Starting a running player does nothing.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticks == nil {
		return ErrNoTimeline
	}
	if p.running {
		return nil
	}

	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)

	p.log.WithField("interval", p.tickInterval()).Debug("playback started")
	return nil
}

// Stop halts the clock and silences the percussion channel. It is a no-op
// when the player is not running.
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	done := p.done
	p.mu.Unlock()

	<-done
	p.emit(midi.ControlChange(sequence.DrumChannel, allNotesOff, 0))
	p.log.Debug("playback stopped")
}

// Close stops playback and releases the output port
func (p *Player) Close() error {
	p.Stop()
	if p.out != nil {
		return p.out.Close()
	}
	return nil
}

const allNotesOff = 123

func (p *Player) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	var tick int64
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		p.mu.Lock()
		msgs, finished := p.messagesAt(tick)
		interval := p.tickInterval()
		if finished {
			p.running = false
		}
		p.mu.Unlock()

		for _, msg := range msgs {
			p.emit(msg)
		}
		if finished {
			p.log.Debug("single pass finished")
			return
		}

		tick++
		timer.Reset(interval)
	}
}

// messagesAt returns what to send at an absolute tick. At each loop
// boundary the events of the final tick go out before those of tick 0.
func (p *Player) messagesAt(tick int64) (msgs []midi.Message, finished bool) {
	if p.length == 0 {
		return nil, true
	}
	pos := tick % p.length
	if tick > 0 && pos == 0 {
		msgs = append(msgs, p.ticks[p.length]...)
		if !p.loop {
			return msgs, true
		}
	}
	return append(msgs, p.ticks[pos]...), false
}

func (p *Player) emit(msg midi.Message) {
	if err := p.send(msg); err != nil {
		p.log.WithError(err).WithField("msg", msg.String()).Warn("MIDI send failed")
	}
}
