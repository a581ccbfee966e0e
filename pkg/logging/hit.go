package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// MatchSource defines where a reported match was found.
type MatchSource string

const (
	// SourceFixture is the test data embedded in a pattern document.
	SourceFixture MatchSource = "fixture"
	// SourceSample is a sample file next to a pattern document.
	SourceSample MatchSource = "sample"
	// SourceExtra is a file of a dry-run directory.
	SourceExtra MatchSource = "extra"
	// SourceRandom is generated random data.
	SourceRandom MatchSource = "random"
)

// HitLevel is what --log-level=hit maps to.
const HitLevel zerolog.Level = zerolog.WarnLevel

const hitMarker = "_hit"

// HitLevelWriter rewrites events carrying the hit marker to "level":"hit".
type HitLevelWriter struct {
	out io.Writer
	mu  sync.Mutex
}

func (w *HitLevelWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(p) > 0 && gjson.GetBytes(p, hitMarker).Bool() {
		var logEntry map[string]interface{}
		if err := json.Unmarshal(p, &logEntry); err == nil {
			logEntry["level"] = "hit"
			delete(logEntry, hitMarker)

			if newBytes, err := json.Marshal(logEntry); err == nil {
				newBytes = append(newBytes, '\n')
				if _, err := w.out.Write(newBytes); err != nil {
					return 0, err
				}
				return len(p), nil
			}
		}
	}

	return w.out.Write(p)
}

func NewHitLevelWriter(out io.Writer) *HitLevelWriter {
	return &HitLevelWriter{out: out}
}

// HitEvent wraps a zerolog.Event that is written with "level":"hit".
type HitEvent struct {
	event *zerolog.Event
}

func (h *HitEvent) Str(key, val string) *HitEvent {
	h.event.Str(key, val)
	return h
}

func (h *HitEvent) Int(key string, val int) *HitEvent {
	h.event.Int(key, val)
	return h
}

func (h *HitEvent) Bool(key string, val bool) *HitEvent {
	h.event.Bool(key, val)
	return h
}

func (h *HitEvent) Strs(key string, vals []string) *HitEvent {
	h.event.Strs(key, vals)
	return h
}

func (h *HitEvent) Err(err error) *HitEvent {
	h.event.Err(err)
	return h
}

func (h *HitEvent) Msg(msg string) {
	h.event.Bool(hitMarker, true).Msg(msg)
}

var (
	globalHitWriter     *HitLevelWriter
	globalHitWriterOnce sync.Once
)

func setupGlobalHitWriter() {
	globalHitWriterOnce.Do(func() {
		globalHitWriter = NewHitLevelWriter(os.Stderr)
		log.Logger = zerolog.New(globalHitWriter).With().Timestamp().Logger()
	})
}

// Hit creates a hit event for a reported match. Hits are written at error
// level so raising the log level to warn or error keeps them.
// Example: logging.Hit().Str("pattern", "aws_key").Msg("HIT")
func Hit() *HitEvent {
	if globalHitWriter == nil {
		setupGlobalHitWriter()
	}
	return &HitEvent{event: log.WithLevel(zerolog.ErrorLevel)}
}

// SetGlobalHitWriter records the writer log.Logger was configured with.
func SetGlobalHitWriter(writer *HitLevelWriter) {
	globalHitWriter = writer
}

// ParseLevel extends zerolog's ParseLevel to support "hit" level.
func ParseLevel(levelStr string) (zerolog.Level, error) {
	if levelStr == "hit" {
		return HitLevel, nil
	}
	return zerolog.ParseLevel(levelStr)
}
