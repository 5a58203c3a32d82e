package logging

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/kozaktomas/face-sorter/internal/events"
)

// queueCore is a zapcore.Core that renders each entry as a single line and
// puts it on a log queue.
type queueCore struct {
	zapcore.LevelEnabler
	queue  *events.Queue[events.LogLine]
	fields []zapcore.Field
}

// NewQueueCore returns a core forwarding entries at or above level to queue.
// Fields are appended to the message as key=value pairs; session_id is
// omitted since the consumer already knows its session.
func NewQueueCore(queue *events.Queue[events.LogLine], level zapcore.LevelEnabler) zapcore.Core {
	return &queueCore{LevelEnabler: level, queue: queue}
}

func (c *queueCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &queueCore{LevelEnabler: c.LevelEnabler, queue: c.queue, fields: merged}
}

func (c *queueCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *queueCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	delete(enc.Fields, "session_id")

	c.queue.Put(events.LogLine{
		Time:    ent.Time,
		Level:   ent.Level.String(),
		Message: ent.Message + formatFields(enc.Fields),
	})
	return nil
}

func (c *queueCore) Sync() error {
	return nil
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}
