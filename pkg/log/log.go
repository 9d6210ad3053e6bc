// Package log configures the commissioner's leveled logger: level
// names from the configuration file mapped onto apex/log, writing to a
// log file or stderr.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/text"
)

// Level names accepted by the configuration file. "critical" keeps
// only fatal-severity records; "off" discards everything.
var levels = map[string]log.Level{
	"critical": log.FatalLevel,
	"error":    log.ErrorLevel,
	"warn":     log.WarnLevel,
	"info":     log.InfoLevel,
	"debug":    log.DebugLevel,
}

// Setup builds a logger for the given level and file. An empty file
// logs to stderr. The returned closer flushes and closes the log file;
// it is a no-op for stderr.
func Setup(level, file string) (log.Interface, io.Closer, error) {
	logger := &log.Logger{}

	if level == "off" || level == "" {
		logger.Handler = discard.New()
		logger.Level = log.FatalLevel
		return logger, nopCloser{}, nil
	}

	parsed, ok := levels[level]
	if !ok {
		return nil, nil, fmt.Errorf("unknown log level %q", level)
	}
	logger.Level = parsed

	if file == "" {
		logger.Handler = text.New(os.Stderr)
		return logger, nopCloser{}, nil
	}

	out, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", file, err)
	}
	logger.Handler = text.New(out)
	return logger, out, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
