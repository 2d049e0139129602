// Package logging configures the process-wide structured logger. All output
// goes to stderr; stdout is reserved for the UCI protocol stream.
package logging

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("tcheran")

var format = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{module} %{message}`,
)

func init() {
	Init("info")
}

// Init (re)configures the backend at the given level ("debug", "info",
// "notice", "warning", "error", "critical"). Unknown levels fall back to info.
func Init(level string) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(formatted)

	lvl, err := logging.LogLevel(level)
	if err != nil {
		lvl = logging.INFO
	}
	leveled.SetLevel(lvl, "")

	logging.SetBackend(leveled)
}

// For returns a module-scoped logger, e.g. logging.For("engine").
func For(module string) *logging.Logger {
	return logging.MustGetLogger(module)
}

// Fatal logs at the critical level and terminates the process, per the
// engine's invariant-violation policy: no recovery is attempted, only a
// clean, logged exit.
func Fatal(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}
