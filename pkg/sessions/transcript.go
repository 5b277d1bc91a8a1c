package sessions

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// transcriptLine is the subset of a transcript entry this package reads.
type transcriptLine struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid"`
	SessionID string          `json:"sessionId"`
	Cwd       string          `json:"cwd"`
	Message   json.RawMessage `json:"message"`
	Content   json.RawMessage `json:"content"`
	Text      *string         `json:"text"`
}

type messageBody struct {
	Content json.RawMessage `json:"content"`
	Text    *string         `json:"text"`
}

type contentItem struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// body returns the message object of the entry, or the entry itself when it
// has none.
func (l *transcriptLine) body() messageBody {
	if len(l.Message) > 0 && string(l.Message) != "null" {
		var m messageBody
		if err := json.Unmarshal(l.Message, &m); err == nil {
			return m
		}
		return messageBody{}
	}
	return messageBody{Content: l.Content, Text: l.Text}
}

// messageText joins the text items of a message's content with newlines.
// String content is returned as is; otherwise message.text is used.
func messageText(m messageBody) string {
	if items, ok := contentItems(m.Content); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item.Type == "text" && item.Text != nil && *item.Text != "" {
				parts = append(parts, *item.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	if s, ok := contentString(m.Content); ok {
		return s
	}
	if m.Text != nil {
		return *m.Text
	}
	return ""
}

// firstText returns the first text item of a message, or its string content.
func firstText(m messageBody) (string, bool) {
	if items, ok := contentItems(m.Content); ok {
		for _, item := range items {
			if item.Type == "text" && item.Text != nil {
				return *item.Text, true
			}
		}
		return "", false
	}
	return contentString(m.Content)
}

func contentItems(raw json.RawMessage) ([]contentItem, bool) {
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var items []contentItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func contentString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// lineReader yields non-empty transcript lines without a length limit.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next line with its trailing newline removed. It returns
// io.EOF once the input is exhausted.
func (lr *lineReader) next() (string, error) {
	line, err := lr.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseLine decodes one transcript line. Malformed lines return false.
func parseLine(line string) (transcriptLine, bool) {
	var entry transcriptLine
	if strings.TrimSpace(line) == "" {
		return entry, false
	}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return entry, false
	}
	return entry, true
}
