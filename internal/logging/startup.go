package logging

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the command's configuration and feature flags, then
// emits a single structured zerolog event summarising the process state.
// One event instead of a scatter of lines makes it easy to see exactly how a
// run was configured when reading a log after the fact.
type StartupLogger struct {
	command string

	config   map[string]string
	features map[string]bool
}

// NewStartupLogger creates a StartupLogger for the given command name
// (e.g. "upload", "watch").
func NewStartupLogger(command string) *StartupLogger {
	return &StartupLogger{
		command:  command,
		config:   make(map[string]string),
		features: make(map[string]bool),
	}
}

// Config registers a non-sensitive configuration key-value pair. Credentials
// never go through here.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// Feature registers a boolean flag (e.g. "retry").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Log emits a single structured INFO event with all collected information.
func (s *StartupLogger) Log() {
	evt := log.Info().Dict("process", zerolog.Dict().
		Str("command", s.command).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", os.Getenv("REPAIR_LOG_LEVEL")))

	if len(s.config) > 0 {
		d := zerolog.Dict()
		for k, v := range s.config {
			d = d.Str(k, v)
		}
		evt = evt.Dict("config", d)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	evt.Msg("Startup complete")
}
