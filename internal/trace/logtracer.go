package trace

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LogTracer forwards events to a charmbracelet logger at debug level. Span
// ends carry their duration.
type LogTracer struct {
	logger *log.Logger
	level  Level

	mu     sync.Mutex
	starts map[uint64]time.Time
}

// NewLogTracer uses log.Default() when logger is nil.
func NewLogTracer(logger *log.Logger, level Level) *LogTracer {
	if logger == nil {
		logger = log.Default()
	}
	return &LogTracer{
		logger: logger.WithPrefix("trace"),
		level:  level,
		starts: make(map[uint64]time.Time),
	}
}

func (t *LogTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	kv := []any{"scope", ev.Scope.String()}
	if ev.Detail != "" {
		kv = append(kv, "detail", ev.Detail)
	}
	switch ev.Kind {
	case KindSpanBegin:
		t.mu.Lock()
		t.starts[ev.SpanID] = ev.Time
		t.mu.Unlock()
	case KindSpanEnd:
		t.mu.Lock()
		started, ok := t.starts[ev.SpanID]
		delete(t.starts, ev.SpanID)
		t.mu.Unlock()
		if ok {
			kv = append(kv, "took", ev.Time.Sub(started))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(ev.Extra)) {
		kv = append(kv, k, ev.Extra[k])
	}
	t.logger.Debug(ev.Kind.String()+" "+ev.Name, kv...)
}

func (t *LogTracer) Flush() error  { return nil }
func (t *LogTracer) Close() error  { return nil }
func (t *LogTracer) Level() Level  { return t.level }
func (t *LogTracer) Enabled() bool { return t.level > LevelOff }
