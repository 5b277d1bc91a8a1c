package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/claudemon/config"
	"github.com/grovetools/claudemon/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	outputs   []*fanoutWriter
	sharedOut []io.Writer
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()

	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	levelStr := "info"
	if env := os.Getenv("CLAUDEMON_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("CLAUDEMON_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	out := &fanoutWriter{}

	if path := fileSinkPath(component, logCfg.File); path != "" {
		if f, err := openLogFile(path); err == nil {
			out.add(f)
		} else {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		}
	}

	if shouldLogToStderr(logCfg.Format.StructuredToStderr, logger.GetLevel()) {
		out.add(os.Stderr)
	}
	for _, w := range sharedOut {
		out.add(w)
	}

	logger.SetOutput(out)
	outputs = append(outputs, out)

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// AddFileSink appends every component's output to the file at path. The
// daemon calls this once at startup so foreground logs also land on disk.
func AddFileSink(path string) error {
	f, err := openLogFile(path)
	if err != nil {
		return err
	}
	AddSink(f)
	return nil
}

// AddSink attaches w to every existing and future logger.
func AddSink(w io.Writer) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	sharedOut = append(sharedOut, w)
	for _, out := range outputs {
		out.add(w)
	}
}

// DefaultLogFile returns <state>/logs/<name>-<date>.log.
func DefaultLogFile(name string) string {
	return filepath.Join(paths.LogDir(), fmt.Sprintf("%s-%s.log", name, time.Now().Format("2006-01-02")))
}

func fileSinkPath(component string, cfg FileSinkConfig) string {
	if env := os.Getenv("CLAUDEMON_LOG_FILE"); env != "" {
		return expandPath(env)
	}
	if !cfg.Enabled {
		return ""
	}
	if cfg.Path != "" {
		return expandPath(cfg.Path)
	}
	return DefaultLogFile(component)
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// shouldLogToStderr decides whether structured logs go to stderr.
// In "auto" mode they do when debugging or when stderr is not a terminal.
func shouldLogToStderr(mode string, level logrus.Level) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	isDebug := os.Getenv("CLAUDEMON_DEBUG") == "1" || level >= logrus.DebugLevel
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return isDebug || !isInteractive
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// fanoutWriter writes to a mutable set of writers. A logger with no writers
// discards its output.
type fanoutWriter struct {
	mu      sync.RWMutex
	writers []io.Writer
}

func (w *fanoutWriter) add(dst io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writers = append(w.writers, dst)
}

func (w *fanoutWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, dst := range w.writers {
		_, _ = dst.Write(p)
	}
	return len(p), nil
}
