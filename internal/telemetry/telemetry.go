// Package telemetry writes local JSONL events describing each conversation turn.
//
// Events never carry message text, only sizes and budget figures. Emission is
// off unless the Emitter is constructed enabled.
package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// EventsFile is the file name events are appended to inside the events directory.
const EventsFile = "events.jsonl"

// Emitter appends events to <dir>/events.jsonl.
type Emitter struct {
	fs      afero.Fs
	enabled bool
	dir     string
	logger  *zap.Logger
	now     func() time.Time
}

// NewEmitter returns an Emitter writing through fs (the OS filesystem when
// nil). A disabled Emitter drops every event.
func NewEmitter(fs afero.Fs, enabled bool, dir string, logger *zap.Logger) *Emitter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = ".agent"
	}
	return &Emitter{
		fs:      fs,
		enabled: enabled,
		dir:     dir,
		logger:  logger.With(zap.String("component", "telemetry")),
		now:     time.Now,
	}
}

// Enabled reports whether events are written.
func (e *Emitter) Enabled() bool { return e != nil && e.enabled }

// Path returns the events file location.
func (e *Emitter) Path() string { return filepath.Join(e.dir, EventsFile) }

// Emit writes a single JSON line with fields plus "time" (RFC3339Nano, UTC) and "event".
// Failures are logged and otherwise ignored.
func (e *Emitter) Emit(name string, fields map[string]any) {
	if !e.Enabled() {
		return
	}

	// Shallow copy so callers' maps aren't mutated.
	m := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = e.now().UTC().Format(time.RFC3339Nano)
	m["event"] = name

	b, err := json.Marshal(m)
	if err != nil {
		e.logger.Warn("marshal event", zap.String("event", name), zap.Error(err))
		return
	}

	if err := e.fs.MkdirAll(e.dir, 0o755); err != nil {
		e.logger.Warn("create events dir", zap.String("dir", e.dir), zap.Error(err))
		return
	}

	path := e.Path()
	f, err := e.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		e.logger.Warn("open events file", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		e.logger.Warn("write event", zap.String("path", path), zap.Error(err))
	}
}
