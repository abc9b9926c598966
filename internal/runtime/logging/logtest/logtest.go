// Package logtest provides a recording ServiceLogger for tests.
package logtest

import (
	"strings"
	"sync"

	"github.com/budget-analyzer/service-common/internal/runtime/logging"
)

// Entry is a single recorded log call. Fields include those bound with With.
type Entry struct {
	Level  string
	Msg    string
	Fields logging.LogFields
	Err    error
}

type sink struct {
	mu      sync.Mutex
	entries []Entry
}

// Recorder is a concurrency-safe ServiceLogger that keeps every entry in memory.
type Recorder struct {
	sink  *sink
	bound logging.LogFields
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{sink: &sink{}}
}

// Entries returns a snapshot of everything recorded so far, including entries
// written through child loggers.
func (r *Recorder) Entries() []Entry {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	out := make([]Entry, len(r.sink.entries))
	copy(out, r.sink.entries)
	return out
}

// Level returns the entries recorded at level.
func (r *Recorder) Level(level string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Containing returns the entries whose message contains substr.
func (r *Recorder) Containing(substr string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if strings.Contains(e.Msg, substr) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) With(fields logging.LogFields) logging.ServiceLogger {
	merged := make(logging.LogFields, len(r.bound)+len(fields))
	for k, v := range r.bound {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Recorder{sink: r.sink, bound: merged}
}

func (r *Recorder) Debug(msg string, fields logging.LogFields) { r.record("debug", msg, nil, fields) }
func (r *Recorder) Info(msg string, fields logging.LogFields)  { r.record("info", msg, nil, fields) }
func (r *Recorder) Warn(msg string, fields logging.LogFields)  { r.record("warn", msg, nil, fields) }
func (r *Recorder) Trace(msg string, fields logging.LogFields) { r.record("trace", msg, nil, fields) }

func (r *Recorder) Error(msg string, err error, fields logging.LogFields) {
	r.record("error", msg, err, fields)
}

func (r *Recorder) record(level, msg string, err error, fields logging.LogFields) {
	merged := make(logging.LogFields, len(r.bound)+len(fields))
	for k, v := range r.bound {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	r.sink.mu.Lock()
	r.sink.entries = append(r.sink.entries, Entry{Level: level, Msg: msg, Fields: merged, Err: err})
	r.sink.mu.Unlock()
}
