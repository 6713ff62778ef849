package logger

import (
	"sync"
)

// Component names used by the engine.
const (
	ComponentPipe     = "pipe"
	ComponentExecutor = "executor"
	ComponentScope    = "scope"
	ComponentMessage  = "message"
	ComponentSender   = "sender"
)

var registry = &loggerRegistry{
	loggers: make(map[string]*Logger),
}

type loggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

// Register stores a named logger in the registry.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Get retrieves a named logger. If the name is not registered it returns the
// global logger tagged with the requested component name.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults seeds the registry with the engine component loggers
// derived from the current global logger. Call after Init.
func RegisterDefaults() {
	for _, name := range []string{ComponentPipe, ComponentExecutor, ComponentScope, ComponentMessage, ComponentSender} {
		Register(name, GetGlobalLogger().WithComponent(name))
	}
}
