package audit

import (
	"github.com/rs/zerolog"
)

// Entry is a single security-relevant action.
type Entry struct {
	Action       string
	Actor        string
	ResourceType string
	ResourceID   string
	Status       string // "success" or "failure"
	Details      map[string]string
}

// Logger writes audit entries as structured zerolog events tagged audit=true.
// A nil *Logger discards entries.
type Logger struct {
	output zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{output: logger.With().Bool("audit", true).Logger()}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	event := l.output.Info()
	if entry.Status == "failure" {
		event = l.output.Warn()
	}
	event = event.Str("action", entry.Action).Str("status", entry.Status)
	if entry.Actor != "" {
		event = event.Str("actor", entry.Actor)
	}
	if entry.ResourceType != "" {
		event = event.Str("resource_type", entry.ResourceType)
	}
	if entry.ResourceID != "" {
		event = event.Str("resource_id", entry.ResourceID)
	}
	if len(entry.Details) > 0 {
		dict := zerolog.Dict()
		for key, value := range entry.Details {
			dict = dict.Str(key, value)
		}
		event = event.Dict("details", dict)
	}
	event.Msg("audit")
}

func (l *Logger) LogSuccess(action, actor, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Status:       "success",
		Details:      details,
	})
}

func (l *Logger) LogFailure(action, actor string, details map[string]string) {
	l.Log(Entry{
		Action:  action,
		Actor:   actor,
		Status:  "failure",
		Details: details,
	})
}
