package bootstrap

import (
	"sort"
	"time"

	"github.com/kbukum/iterpipe/logger"
)

// Summary collects what a task was wired with and logs it once at startup.
type Summary struct {
	name    string
	version string
	startup time.Duration
	entries map[string]string
}

// NewSummary creates an empty summary.
func NewSummary(name, version string) *Summary {
	return &Summary{name: name, version: version, entries: map[string]string{}}
}

// Track records a wired dependency, such as "sender" -> "s3://bucket/prefix".
func (s *Summary) Track(key, detail string) {
	s.entries[key] = detail
}

// Keys returns the tracked keys in sorted order.
func (s *Summary) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetStartupDuration records the time spent before the task started.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startup = d
}

// Fields returns the summary as structured log fields.
func (s *Summary) Fields() map[string]interface{} {
	fields := logger.MergeWithDuration(logger.Fields(
		"name", s.name,
		"version", s.version,
	), s.startup)
	for k, v := range s.entries {
		fields[k] = v
	}
	return fields
}

// Display logs the summary.
func (s *Summary) Display(log *logger.Logger) {
	log.Info("task ready", s.Fields())
}
