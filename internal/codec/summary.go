package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// Summary is the printable form of a composition: notes and card names only.
type Summary struct {
	Steps   int           `yaml:"steps"`
	Entries int           `yaml:"entries"`
	Plan    []StepSummary `yaml:"plan"`
}

// StepSummary is one numbered step of a Summary.
type StepSummary struct {
	Step  int      `yaml:"step"`
	Note  string   `yaml:"note,omitempty"`
	Cards []string `yaml:"cards"`
}

// Summarize builds the printable summary of c. Steps are numbered from 1.
func Summarize(c models.Composition) Summary {
	s := Summary{
		Steps:   len(c),
		Entries: c.EntryCount(),
		Plan:    make([]StepSummary, 0, len(c)),
	}
	for i, step := range c {
		cards := make([]string, 0, len(step.Entries))
		for _, e := range step.Entries {
			cards = append(cards, e.Name)
		}
		s.Plan = append(s.Plan, StepSummary{Step: i + 1, Note: step.Note, Cards: cards})
	}
	return s
}

// WriteSummary writes the YAML summary of c to w.
func WriteSummary(w io.Writer, c models.Composition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Summarize(c)); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}

// SaveSummary writes the YAML summary of c to path, creating its directory.
func SaveSummary(path string, c models.Composition) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer f.Close()

	return WriteSummary(f, c)
}
