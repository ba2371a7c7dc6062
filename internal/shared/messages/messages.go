package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Format substitutes {name} placeholders in the title and body.
func (m MessageText) Format(vars map[string]string) MessageText {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return MessageText{Title: r.Replace(m.Title), Body: r.Replace(m.Body)}
}

type Messages struct {
	AutomatchComplete MessageText `json:"automatch_complete"`
	AutomatchFailed   MessageText `json:"automatch_failed"`
}

var (
	loaded   *Messages
	loadOnce sync.Once
	loadErr  error
)

// Load reads the notifications JSON file and caches the result.
// Safe to call from multiple goroutines.
func Load(path string) (*Messages, error) {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read messages file: %w", err)
			return
		}
		loaded, loadErr = Parse(data)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return loaded, nil
}

// Parse decodes a messages document.
func Parse(data []byte) (*Messages, error) {
	var m Messages
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	return &m, nil
}
