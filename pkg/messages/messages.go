// Package messages delivers user-facing status messages to the console and
// the structured log. Delivery is fire-and-forget: sinks never return errors
// and never block the scan.
package messages

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Level classifies a message.
type Level int

// Message levels, least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelSuccess
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = [...]string{"debug", "info", "success", "warning", "error", "critical"}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}

	return fmt.Sprintf("level(%d)", int(l))
}

// Message is one status line.
type Message struct {
	Level Level
	Text  string

	// Attrs are optional key/value pairs for structured sinks.
	Attrs []any
}

// Sink receives messages. Implementations must be safe for concurrent use.
type Sink interface {
	Send(m Message)
}

// Messenger is a convenience front end over a Sink.
type Messenger struct {
	sink Sink
}

// New creates a Messenger. A nil sink discards everything.
func New(sink Sink) *Messenger {
	if sink == nil {
		sink = Discard
	}

	return &Messenger{sink: sink}
}

func (m *Messenger) send(level Level, format string, args []any) {
	m.sink.Send(Message{Level: level, Text: fmt.Sprintf(format, args...)})
}

// Debug sends a debug message.
func (m *Messenger) Debug(format string, args ...any) { m.send(LevelDebug, format, args) }

// Info sends an informational message.
func (m *Messenger) Info(format string, args ...any) { m.send(LevelInfo, format, args) }

// Success sends a success message.
func (m *Messenger) Success(format string, args ...any) { m.send(LevelSuccess, format, args) }

// Warning sends a warning.
func (m *Messenger) Warning(format string, args ...any) { m.send(LevelWarning, format, args) }

// Error sends an error message.
func (m *Messenger) Error(format string, args ...any) { m.send(LevelError, format, args) }

// Critical sends a critical message.
func (m *Messenger) Critical(format string, args ...any) { m.send(LevelCritical, format, args) }

// Sink returns the underlying sink.
func (m *Messenger) Sink() Sink { return m.sink }

type discard struct{}

func (discard) Send(Message) {}

// Discard drops every message.
var Discard Sink = discard{}

// Multi fans a message out to every sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))

	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}

	return out
}

type multi []Sink

func (m multi) Send(msg Message) {
	for _, s := range m {
		s.Send(msg)
	}
}

// Filter drops messages below min.
func Filter(sink Sink, minLevel Level) Sink {
	return filter{sink: sink, min: minLevel}
}

type filter struct {
	sink Sink
	min  Level
}

func (f filter) Send(m Message) {
	if m.Level >= f.min {
		f.sink.Send(m)
	}
}

// DefaultAsyncBuffer is the queue length of an Async sink.
const DefaultAsyncBuffer = 256

// Async delivers messages to a sink on a background goroutine. When the
// queue is full messages are dropped rather than blocking the sender.
type Async struct {
	sink    Sink
	queue   chan Message
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the delivery goroutine. Close must be called to stop it.
func NewAsync(sink Sink, buffer int) *Async {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}

	a := &Async{
		sink:  sink,
		queue: make(chan Message, buffer),
		done:  make(chan struct{}),
	}

	go a.loop()

	return a
}

func (a *Async) loop() {
	defer close(a.done)

	for m := range a.queue {
		a.sink.Send(m)
	}
}

// Send implements Sink.
func (a *Async) Send(m Message) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.dropped.Add(1)

		return
	}

	select {
	case a.queue <- m:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many messages were discarded.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Close flushes queued messages and stops the goroutine. Later sends are dropped.
func (a *Async) Close() {
	a.mu.Lock()

	if !a.closed {
		a.closed = true
		close(a.queue)
	}

	a.mu.Unlock()

	<-a.done
}
