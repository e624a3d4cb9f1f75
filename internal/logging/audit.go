package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// AuditField marks a log entry as part of the security audit stream.
const AuditField = "audit"

// Audit returns an entry whose records are captured by AuditHook.
func Audit(l logrus.FieldLogger) *logrus.Entry {
	return l.WithField(AuditField, true)
}

// AuditHook keeps the most recent audit entries as human-readable lines.
// It is observational only.
type AuditHook struct {
	mu     sync.Mutex
	lines  []string
	max    int
	onLine func(string)
}

// NewAuditHook retains up to max lines. onLine, if non-nil, is called with
// each new line outside the hook's lock.
func NewAuditHook(max int, onLine func(string)) *AuditHook {
	if max <= 0 {
		max = 100
	}
	return &AuditHook{max: max, onLine: onLine}
}

func (h *AuditHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *AuditHook) Fire(e *logrus.Entry) error {
	if v, ok := e.Data[AuditField].(bool); !ok || !v {
		return nil
	}
	line := formatAudit(e)

	h.mu.Lock()
	h.lines = append(h.lines, line)
	if len(h.lines) > h.max {
		h.lines = h.lines[len(h.lines)-h.max:]
	}
	h.mu.Unlock()

	if h.onLine != nil {
		h.onLine(line)
	}
	return nil
}

// Lines returns the retained lines, oldest first.
func (h *AuditHook) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines...)
}

func formatAudit(e *logrus.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Time.Format("15:04:05"), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k != AuditField && k != logrus.ErrorKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	if err, ok := e.Data[logrus.ErrorKey]; ok {
		fmt.Fprintf(&b, " error=%v", err)
	}
	return b.String()
}
