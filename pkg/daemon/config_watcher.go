package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/claudemon/logging"
)

// ConfigWatcher watches the config directory and reports changed config
// files after a debounce.
type ConfigWatcher struct {
	watcher      *fsnotify.Watcher
	debounce     time.Duration
	lastChange   time.Time
	mu           sync.Mutex
	logger       *logrus.Entry
	onReload     func(file string)
	targetToLink map[string]string // symlink target path -> link name in configDir
	configDir    string
}

// NewConfigWatcher watches configDir. onReload receives the base name of
// each changed file. Symlinked config files are followed by also watching
// their targets' directories, since fsnotify does not follow links.
func NewConfigWatcher(configDir string, debounce time.Duration, onReload func(string)) (*ConfigWatcher, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("config")
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, err
	}

	watchedDirs := map[string]bool{configDir: true}
	targetToLink := make(map[string]string)

	entries, err := os.ReadDir(configDir)
	if err == nil {
		for _, entry := range entries {
			if !isConfigFile(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.Mode()&os.ModeSymlink == 0 {
				continue
			}
			target, err := filepath.EvalSymlinks(filepath.Join(configDir, entry.Name()))
			if err != nil {
				logger.WithError(err).Warnf("Failed to resolve symlink %s", entry.Name())
				continue
			}
			targetToLink[target] = entry.Name()

			targetDir := filepath.Dir(target)
			if watchedDirs[targetDir] {
				continue
			}
			if err := watcher.Add(targetDir); err != nil {
				logger.WithError(err).Warnf("Failed to watch symlink target dir %s", targetDir)
				continue
			}
			watchedDirs[targetDir] = true
			logger.Debugf("Watching symlink target directory: %s", targetDir)
		}
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &ConfigWatcher{
		watcher:      watcher,
		debounce:     debounce,
		logger:       logger,
		onReload:     onReload,
		targetToLink: targetToLink,
		configDir:    configDir,
	}, nil
}

// Start processes events until ctx is canceled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isConfigFile(event.Name) {
				continue
			}
			name := event.Name
			if link, ok := w.targetToLink[event.Name]; ok {
				name = filepath.Join(w.configDir, link)
			}
			w.handleChange(name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// handleChange reports one change unless another was reported within the
// debounce window.
func (w *ConfigWatcher) handleChange(file string) {
	w.mu.Lock()
	elapsed := time.Since(w.lastChange)
	if elapsed < w.debounce {
		w.mu.Unlock()
		w.logger.Debugf("Debounced: %s (only %v since last change)", filepath.Base(file), elapsed)
		return
	}
	w.lastChange = time.Now()
	w.mu.Unlock()

	w.logger.Infof("Config changed: %s", filepath.Base(file))
	if w.onReload != nil {
		w.onReload(filepath.Base(file))
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}

func isConfigFile(name string) bool {
	for _, ext := range []string{".yml", ".yaml", ".toml"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
