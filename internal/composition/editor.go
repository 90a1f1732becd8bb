package composition

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// Editor holds one composition and the index of the selected step. Methods
// are safe for concurrent use and apply in call order. A failed operation
// leaves both the composition and the selection unchanged.
type Editor struct {
	mu       sync.Mutex
	steps    models.Composition
	selected int // -1 when nothing is selected
}

// NewEditor returns an editor over an empty composition.
func NewEditor() *Editor {
	return &Editor{steps: models.Composition{}, selected: -1}
}

// State is a snapshot of an editor.
type State struct {
	Steps    models.Composition `json:"steps"`
	Selected *int               `json:"selected"`
}

// State returns a deep copy of the composition and the selection.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := State{Steps: e.steps.Clone()}
	if e.selected >= 0 {
		sel := e.selected
		s.Selected = &sel
	}
	return s
}

// Composition returns a deep copy of the current composition.
func (e *Editor) Composition() models.Composition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps.Clone()
}

// Selected returns the selected step index and whether one is set.
func (e *Editor) Selected() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected, e.selected >= 0
}

func (e *Editor) AddStep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps = AddStep(e.steps)
}

// AddEntry appends card to the selected step.
func (e *Editor) AddEntry(card models.Card) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected < 0 || e.selected >= len(e.steps) {
		return ErrNoTargetStep
	}
	steps, err := AddEntry(e.steps, e.selected, card)
	if err != nil {
		return err
	}
	e.steps = steps
	return nil
}

func (e *Editor) SetNote(i int, note string) error {
	return e.apply(func(c models.Composition) (models.Composition, error) {
		return SetNote(c, i, note)
	})
}

func (e *Editor) RemoveEntry(i, j int) error {
	return e.apply(func(c models.Composition) (models.Composition, error) {
		return RemoveEntry(c, i, j)
	})
}

func (e *Editor) MoveEntry(i, j int, dir Direction) error {
	return e.apply(func(c models.Composition) (models.Composition, error) {
		return MoveEntry(c, i, j, dir)
	})
}

// MoveStep swaps step i with its neighbour. The selection follows the step
// it pointed at.
func (e *Editor) MoveStep(i int, dir Direction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	steps, err := MoveStep(e.steps, i, dir)
	if err != nil {
		return err
	}
	if k := i + int(dir); k >= 0 && k < len(steps) {
		switch e.selected {
		case i:
			e.selected = k
		case k:
			e.selected = i
		}
	}
	e.steps = steps
	return nil
}

// DuplicateStep inserts a copy of step i after it.
func (e *Editor) DuplicateStep(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	steps, err := DuplicateStep(e.steps, i)
	if err != nil {
		return err
	}
	if e.selected > i {
		e.selected++
	}
	e.steps = steps
	return nil
}

// DeleteStep removes step i. Deleting the selected step clears the
// selection; deleting an earlier one shifts it down.
func (e *Editor) DeleteStep(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	steps, err := DeleteStep(e.steps, i)
	if err != nil {
		return err
	}
	switch {
	case e.selected == i:
		e.selected = -1
	case e.selected > i:
		e.selected--
	}
	e.steps = steps
	return nil
}

func (e *Editor) Select(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := checkStep(e.steps, i); err != nil {
		return err
	}
	e.selected = i
	return nil
}

func (e *Editor) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = -1
}

// Replace swaps in a whole composition, typically an imported one, and
// clears the selection.
func (e *Editor) Replace(c models.Composition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c == nil {
		c = models.Composition{}
	}
	e.steps = c.Clone()
	e.selected = -1
	slog.Debug("Composition replaced", "steps", len(c), "entries", c.EntryCount())
}

func (e *Editor) apply(op func(models.Composition) (models.Composition, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	steps, err := op(e.steps)
	if err != nil {
		return err
	}
	e.steps = steps
	return nil
}

// Op is a serialized editor operation, as posted by clients. Step and Entry
// are pointers so that a missing index is an error rather than index 0.
type Op struct {
	Kind  string       `json:"op"`
	Step  *int         `json:"step,omitempty"`
	Entry *int         `json:"entry,omitempty"`
	Dir   string       `json:"dir,omitempty"`
	Note  string       `json:"note,omitempty"`
	Card  *models.Card `json:"card,omitempty"`
}

// Index returns a pointer to i, for filling Op fields.
func Index(i int) *int {
	return &i
}

// Apply dispatches op to the matching editor method.
func (e *Editor) Apply(op Op) error {
	switch op.Kind {
	case "add_step":
		e.AddStep()
		return nil
	case "clear_selection":
		e.ClearSelection()
		return nil
	case "add_entry":
		if op.Card == nil {
			return fmt.Errorf("%w: add_entry needs a card", ErrBadOp)
		}
		return e.AddEntry(*op.Card)
	}

	step, err := op.index("step", op.Step)
	if err != nil {
		return err
	}
	switch op.Kind {
	case "select":
		return e.Select(step)
	case "set_note":
		return e.SetNote(step, op.Note)
	case "move_step":
		dir, err := op.direction()
		if err != nil {
			return err
		}
		return e.MoveStep(step, dir)
	case "duplicate_step":
		return e.DuplicateStep(step)
	case "delete_step":
		return e.DeleteStep(step)
	}

	entry, err := op.index("entry", op.Entry)
	if err != nil {
		return err
	}
	switch op.Kind {
	case "remove_entry":
		return e.RemoveEntry(step, entry)
	case "move_entry":
		dir, err := op.direction()
		if err != nil {
			return err
		}
		return e.MoveEntry(step, entry, dir)
	}
	return fmt.Errorf("%w: unknown operation %q", ErrBadOp, op.Kind)
}

func (op Op) index(name string, v *int) (int, error) {
	if !knownOps[op.Kind] {
		return 0, fmt.Errorf("%w: unknown operation %q", ErrBadOp, op.Kind)
	}
	if v == nil {
		return 0, fmt.Errorf("%w: %s needs %s", ErrBadOp, op.Kind, name)
	}
	return *v, nil
}

func (op Op) direction() (Direction, error) {
	dir, err := ParseDirection(op.Dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadOp, err)
	}
	return dir, nil
}

var knownOps = map[string]bool{
	"select":         true,
	"set_note":       true,
	"move_step":      true,
	"duplicate_step": true,
	"delete_step":    true,
	"remove_entry":   true,
	"move_entry":     true,
}
