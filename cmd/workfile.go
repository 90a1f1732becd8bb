package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/codec"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/composition"
)

const defaultComposeFile = "combo_steps.json"

// workfile is a composition document on disk plus a sidecar holding the
// selected step, so that successive compose commands behave like one editor.
type workfile struct {
	path string
}

type workfileState struct {
	Selected *int `yaml:"selected"`
}

func (w workfile) statePath() string {
	return w.path + ".state.yaml"
}

// open loads the document into an editor. A missing document is an empty
// composition.
func (w workfile) open() (*composition.Editor, error) {
	editor := composition.NewEditor()

	data, err := os.ReadFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return editor, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.path, err)
	}
	c, err := codec.Import(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", w.path, err)
	}
	editor.Replace(c)

	var state workfileState
	raw, err := os.ReadFile(w.statePath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", w.statePath(), err)
	default:
		if err := yaml.Unmarshal(raw, &state); err != nil {
			slog.Warn("Ignoring unreadable selection state", "path", w.statePath(), "err", err)
		}
	}
	if state.Selected != nil {
		if err := editor.Select(*state.Selected); err != nil {
			slog.Debug("Dropping stale selection", "selected", *state.Selected)
		}
	}
	return editor, nil
}

// save writes the document and the selection sidecar.
func (w workfile) save(editor *composition.Editor) error {
	data, err := codec.Export(editor.Composition())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(w.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}

	var state workfileState
	if i, ok := editor.Selected(); ok {
		state.Selected = &i
	}
	raw, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal selection: %w", err)
	}
	if err := os.WriteFile(w.statePath(), raw, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.statePath(), err)
	}
	return nil
}

// apply runs ops against the document in order and saves once. Nothing is
// written when any op fails.
func (w workfile) apply(ops ...composition.Op) (*composition.Editor, error) {
	editor, err := w.open()
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if err := editor.Apply(op); err != nil {
			return nil, err
		}
	}
	if err := w.save(editor); err != nil {
		return nil, err
	}
	return editor, nil
}
