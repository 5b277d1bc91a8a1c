package sessions

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/claudemon/pkg/models"
)

// ParseHistory reads every user and assistant message from a transcript.
// Malformed lines and entries without text are skipped. The preview is the
// first user message, or the first message of any role when there is none.
func ParseHistory(sessionID, transcriptPath string) (*models.SessionHistory, error) {
	f, err := os.Open(transcriptPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	history := &models.SessionHistory{
		SessionID:    sessionID,
		Items:        []models.HistoryItem{},
		LastActivity: info.ModTime().UnixMilli(),
		Status:       models.SessionActive,
	}

	lines := newLineReader(f)
	for index := 0; ; index++ {
		line, err := lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read transcript: %w", err)
		}
		item, ok := historyItem(sessionID, index, line)
		if !ok {
			continue
		}
		if history.Preview == nil && item.Role == "user" {
			text := item.Text
			history.Preview = &text
		}
		history.Items = append(history.Items, item)
	}

	if history.Preview == nil && len(history.Items) > 0 {
		text := history.Items[0].Text
		history.Preview = &text
	}
	return history, nil
}

// historyItem converts one transcript line into a message item. index is the
// zero-based line number, used for the id when the entry carries no uuid.
func historyItem(sessionID string, index int, line string) (models.HistoryItem, bool) {
	entry, ok := parseLine(line)
	if !ok || (entry.Type != "user" && entry.Type != "assistant") {
		return models.HistoryItem{}, false
	}
	text := messageText(entry.body())
	if text == "" {
		return models.HistoryItem{}, false
	}
	id := entry.UUID
	if id == "" {
		id = fmt.Sprintf("%s:%d", sessionID, index)
	}
	return models.HistoryItem{
		ID:   id,
		Kind: "message",
		Role: entry.Type,
		Text: text,
	}, true
}
