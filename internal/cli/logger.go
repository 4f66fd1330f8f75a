package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrz1836/zkdrop/internal/config"
	"github.com/mrz1836/zkdrop/internal/constants"
	"github.com/mrz1836/zkdrop/internal/logging"
)

// logFileWriter holds the log file writer for cleanup during shutdown.
var logFileWriter io.WriteCloser //nolint:gochecknoglobals // Needed for cleanup

// logFileMu protects logFileWriter.
var logFileMu sync.Mutex //nolint:gochecknoglobals // Protects logFileWriter

// zerologGlobalMu protects concurrent writes to the zerolog global logger.
// This is separate from globalLoggerMu to avoid deadlocks.
var zerologGlobalMu sync.Mutex //nolint:gochecknoglobals // Protects zerolog global

// loggerSetup holds the common components needed to create a logger.
type loggerSetup struct {
	level      zerolog.Level
	hook       zerolog.Hook
	fileWriter io.WriteCloser
	console    io.Writer
}

// prepareLoggerSetup creates the common logger components.
// A file writer error is non-fatal: callers fall back to console-only logging.
func prepareLoggerSetup(verbose, quiet bool) (*loggerSetup, error) {
	setup := &loggerSetup{
		level:   selectLevel(verbose, quiet),
		hook:    logging.NewSensitiveDataHook(),
		console: selectOutput(),
	}

	fileWriter, err := createLogFileWriter()
	if err == nil {
		setup.fileWriter = fileWriter
	}
	return setup, err
}

// buildLogger creates a zerolog.Logger from the setup and writer.
func buildLogger(setup *loggerSetup, writer io.Writer) zerolog.Logger {
	return zerolog.New(writer).Level(setup.level).Hook(setup.hook).With().Timestamp().Logger()
}

// InitLogger creates and configures a zerolog.Logger based on verbosity flags.
//
// Log levels are set as follows:
//   - verbose=true: Debug level (most detailed)
//   - quiet=true: Warn level (errors and warnings only)
//   - default: Info level (normal operation)
//
// Output format is determined by the terminal:
//   - TTY with colors enabled: Console writer with timestamps
//   - Non-TTY or NO_COLOR set: JSON output to stderr
//
// The logger also writes to ~/.zkdrop/logs/zkdrop.log with rotation and
// secret redaction. If the log file cannot be created, the logger continues
// with console-only output.
func InitLogger(verbose, quiet bool) zerolog.Logger {
	setup, err := prepareLoggerSetup(verbose, quiet)

	var writer io.Writer
	if err != nil || setup.fileWriter == nil {
		writer = setup.console
	} else {
		logFileMu.Lock()
		logFileWriter = setup.fileWriter
		logFileMu.Unlock()
		writer = zerolog.MultiLevelWriter(setup.console, setup.fileWriter)
	}

	logger := buildLogger(setup, writer)
	setGlobalLogger(logger)
	return logger
}

// InitLoggerWithWriter creates and configures a zerolog.Logger with a custom
// writer and no file output. It is intended for tests.
func InitLoggerWithWriter(verbose, quiet bool, w io.Writer) zerolog.Logger {
	setup := &loggerSetup{
		level: selectLevel(verbose, quiet),
		hook:  logging.NewSensitiveDataHook(),
	}
	return buildLogger(setup, w)
}

// setGlobalLogger points the zerolog/log package logger at the CLI logger.
func setGlobalLogger(cliLogger zerolog.Logger) {
	zerologGlobalMu.Lock()
	defer zerologGlobalMu.Unlock()
	log.Logger = cliLogger
}

// CloseLogFile closes the log file writer if it was opened.
func CloseLogFile() {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFileWriter != nil {
		_ = logFileWriter.Close()
		logFileWriter = nil
	}
}

// selectLevel determines the appropriate log level based on flags.
func selectLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// selectOutput determines the console writer from terminal capabilities.
func selectOutput() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return os.Stderr
}

// filteringWriteCloser wraps a WriteCloser with sensitive data filtering.
type filteringWriteCloser struct {
	filter *logging.FilteringWriter
	closer io.Closer
}

// Write implements io.Writer by delegating to the filtering writer.
func (fwc *filteringWriteCloser) Write(p []byte) (n int, err error) {
	return fwc.filter.Write(p)
}

// Close implements io.Closer by delegating to the underlying closer.
func (fwc *filteringWriteCloser) Close() error {
	return fwc.closer.Close()
}

// createLogFileWriter creates the rotating, redacting file writer.
func createLogFileWriter() (io.WriteCloser, error) {
	logPath, err := LogFilePath()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    constants.LogMaxSizeMB,
		MaxBackups: constants.LogMaxBackups,
		MaxAge:     constants.LogMaxAgeDays,
		Compress:   constants.LogCompress,
	}

	return &filteringWriteCloser{
		filter: logging.NewFilteringWriter(lj),
		closer: lj,
	}, nil
}

// LogFilePath returns the path to the rotating log file.
func LogFilePath() (string, error) {
	dir, err := config.LogDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.CLILogFileName), nil
}
