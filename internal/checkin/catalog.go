// Package checkin implements the check-in question engine: catalog loading,
// free-form answer validation, and response phrase selection.
package checkin

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed questions.json responses.json
var defaultCatalogFS embed.FS

// QuestionType enumerates the supported answer formats.
type QuestionType string

const (
	TypeScale1To5    QuestionType = "scale_1_5"
	TypeYesNo        QuestionType = "yes_no"
	TypeNumber       QuestionType = "number"
	TypeOptionalText QuestionType = "optional_text"
)

// Validation holds the per-question bounds and the message shown on rejection.
type Validation struct {
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// Question is a single catalog entry. Catalogs are immutable after load.
type Question struct {
	Key              string       `json:"key"`
	Type             QuestionType `json:"type"`
	Text             string       `json:"text"`
	EnabledByDefault bool         `json:"enabled_by_default"`
	Category         string       `json:"category"`
	Validation       Validation   `json:"validation"`
	UIDisplayName    string       `json:"ui_display_name"`
}

// QuestionCatalog is the on-disk shape of questions.json.
type QuestionCatalog struct {
	Questions []Question `json:"questions"`
}

// ResponseBank is the on-disk shape of responses.json: acknowledgement phrases
// keyed by question then by stringified answer, plus connector phrases used
// between an acknowledgement and the next question.
type ResponseBank struct {
	Responses         map[string]map[string][]string `json:"responses"`
	TransitionPhrases []string                       `json:"transition_phrases"`
}

// LoadCatalog reads questions.json and responses.json from dir. When either
// file is missing the embedded defaults are used instead; a present but
// malformed file is an error.
func LoadCatalog(dir string) (QuestionCatalog, ResponseBank, error) {
	var catalog QuestionCatalog
	var bank ResponseBank

	if err := loadJSON(dir, "questions.json", &catalog); err != nil {
		return catalog, bank, err
	}
	if err := loadJSON(dir, "responses.json", &bank); err != nil {
		return catalog, bank, err
	}
	if len(catalog.Questions) == 0 {
		return catalog, bank, fmt.Errorf("question catalog is empty")
	}
	return catalog, bank, nil
}

func loadJSON(dir, name string, out any) error {
	var data []byte
	var err error

	if dir != "" {
		data, err = os.ReadFile(filepath.Join(dir, name))
	}
	if dir == "" || os.IsNotExist(err) {
		data, err = defaultCatalogFS.ReadFile(name)
	}
	if err != nil {
		return fmt.Errorf("failed to read catalog %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", name, err)
	}
	return nil
}
