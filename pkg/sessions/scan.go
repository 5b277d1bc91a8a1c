package sessions

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/models"
)

const (
	// DefaultScanLines bounds how much of each transcript Scan reads.
	DefaultScanLines = 50
	// DefaultPreviewLength is the preview length in characters before "..." is appended.
	DefaultPreviewLength = 100
)

// Scanner discovers importable sessions in the agent's projects directory.
type Scanner struct {
	claudeHome    string
	maxLines      int
	previewLength int
	logger        *logrus.Entry
}

// NewScanner returns a Scanner rooted at claudeHome (usually ~/.claude).
func NewScanner(claudeHome string) *Scanner {
	return &Scanner{
		claudeHome:    claudeHome,
		maxLines:      DefaultScanLines,
		previewLength: DefaultPreviewLength,
		logger:        logging.NewLogger("scanner"),
	}
}

// ClaudeHome returns the root the scanner reads from.
func (s *Scanner) ClaudeHome() string {
	return s.claudeHome
}

// Scan returns the sessions recorded for cwd, most recently active first.
// A missing projects directory yields an empty list.
func (s *Scanner) Scan(cwd string) ([]models.SessionEntry, error) {
	projectDir := ProjectDir(s.claudeHome, cwd)
	info, err := os.Stat(projectDir)
	if err != nil || !info.IsDir() {
		return []models.SessionEntry{}, nil
	}
	return s.ScanDir(projectDir, cwd)
}

// ScanDir reads every *.jsonl transcript in projectDir. Transcripts whose
// recorded cwd does not match cwd are skipped.
func (s *Scanner) ScanDir(projectDir, cwd string) ([]models.SessionEntry, error) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read project directory: %w", err)
	}

	sessions := make([]models.SessionEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		sessionID := strings.TrimSuffix(entry.Name(), ".jsonl")
		if sessionID == "" {
			continue
		}
		path := filepath.Join(projectDir, entry.Name())
		session, err := s.readSession(path, sessionID, cwd, projectDir)
		if err != nil {
			s.logger.WithError(err).WithField("path", path).Debug("Skipping transcript")
			continue
		}
		sessions = append(sessions, session)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActivity > sessions[j].LastActivity
	})
	return sessions, nil
}

func (s *Scanner) readSession(path, sessionID, expectedCwd, projectDir string) (models.SessionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.SessionEntry{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return models.SessionEntry{}, err
	}

	var preview *string
	var actualCwd string
	lines := newLineReader(f)
	for i := 0; i < s.maxLines; i++ {
		line, err := lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.SessionEntry{}, err
		}
		entry, ok := parseLine(line)
		if !ok {
			continue
		}
		if actualCwd == "" && entry.Cwd != "" {
			actualCwd = entry.Cwd
		}
		if preview == nil && entry.Type == "user" && len(entry.Message) > 0 {
			if text, ok := firstText(entry.body()); ok {
				p := truncatePreview(text, s.previewLength)
				preview = &p
			}
		}
		if preview != nil && actualCwd != "" {
			break
		}
	}

	if actualCwd != "" && !SameCwd(actualCwd, expectedCwd) {
		return models.SessionEntry{}, fmt.Errorf("session cwd mismatch: expected %s, got %s", expectedCwd, actualCwd)
	}
	if actualCwd == "" {
		actualCwd = expectedCwd
	}

	return models.SessionEntry{
		SessionID:      sessionID,
		Cwd:            actualCwd,
		Preview:        preview,
		CreatedAt:      createdMillis(info),
		LastActivity:   info.ModTime().UnixMilli(),
		TranscriptPath: models.StringPtr(path),
		ProjectPath:    models.StringPtr(projectDir),
		Status:         models.SessionActive,
	}, nil
}

// truncatePreview cuts text to n characters and appends "..." when it was longer.
func truncatePreview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
