// Package composition edits an ordered list of steps, each holding an
// ordered list of card entries.
//
// The package-level functions are pure: they return a new composition and
// never modify their input. Editor wraps them with the current selection.
package composition

import (
	"errors"
	"fmt"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

var (
	// ErrNoTargetStep means an entry was added while no valid step is selected.
	ErrNoTargetStep = errors.New("no step selected")
	// ErrIndexOutOfRange means a step or entry index does not exist.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrBadOp means a serialized operation could not be decoded.
	ErrBadOp = errors.New("invalid operation")
)

// Direction is the neighbour a move swaps with.
type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

// ParseDirection accepts "up" or "left" for Up and "down" or "right" for
// Down. Entries lay out left to right, steps top to bottom.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up", "left":
		return Up, nil
	case "down", "right":
		return Down, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// AddStep appends an empty step.
func AddStep(c models.Composition) models.Composition {
	out := c.Clone()
	return append(out, models.Step{Entries: []models.Card{}})
}

// AddEntry appends card to step i.
func AddEntry(c models.Composition, i int, card models.Card) (models.Composition, error) {
	if err := checkStep(c, i); err != nil {
		return c, err
	}
	out := c.Clone()
	out[i].Entries = append(out[i].Entries, card)
	return out, nil
}

// SetNote replaces the note of step i.
func SetNote(c models.Composition, i int, note string) (models.Composition, error) {
	if err := checkStep(c, i); err != nil {
		return c, err
	}
	out := c.Clone()
	out[i].Note = note
	return out, nil
}

// RemoveEntry removes entry j of step i; later entries shift left.
func RemoveEntry(c models.Composition, i, j int) (models.Composition, error) {
	if err := checkEntry(c, i, j); err != nil {
		return c, err
	}
	out := c.Clone()
	entries := out[i].Entries
	out[i].Entries = append(entries[:j], entries[j+1:]...)
	return out, nil
}

// MoveEntry swaps entry j of step i with its neighbour in dir. Moving past
// either end of the step is a no-op.
func MoveEntry(c models.Composition, i, j int, dir Direction) (models.Composition, error) {
	if err := checkEntry(c, i, j); err != nil {
		return c, err
	}
	out := c.Clone()
	k := j + int(dir)
	if k < 0 || k >= len(out[i].Entries) {
		return out, nil
	}
	out[i].Entries[j], out[i].Entries[k] = out[i].Entries[k], out[i].Entries[j]
	return out, nil
}

// MoveStep swaps step i with its neighbour in dir. Moving past either end is
// a no-op.
func MoveStep(c models.Composition, i int, dir Direction) (models.Composition, error) {
	if err := checkStep(c, i); err != nil {
		return c, err
	}
	out := c.Clone()
	k := i + int(dir)
	if k < 0 || k >= len(out) {
		return out, nil
	}
	out[i], out[k] = out[k], out[i]
	return out, nil
}

// DuplicateStep inserts a deep copy of step i directly after it.
func DuplicateStep(c models.Composition, i int) (models.Composition, error) {
	if err := checkStep(c, i); err != nil {
		return c, err
	}
	out := make(models.Composition, 0, len(c)+1)
	for k, step := range c {
		out = append(out, step.Clone())
		if k == i {
			out = append(out, step.Clone())
		}
	}
	return out, nil
}

// DeleteStep removes step i.
func DeleteStep(c models.Composition, i int) (models.Composition, error) {
	if err := checkStep(c, i); err != nil {
		return c, err
	}
	out := make(models.Composition, 0, len(c)-1)
	for k, step := range c {
		if k != i {
			out = append(out, step.Clone())
		}
	}
	return out, nil
}

func checkStep(c models.Composition, i int) error {
	if i < 0 || i >= len(c) {
		return fmt.Errorf("step %d of %d: %w", i, len(c), ErrIndexOutOfRange)
	}
	return nil
}

func checkEntry(c models.Composition, i, j int) error {
	if err := checkStep(c, i); err != nil {
		return err
	}
	if j < 0 || j >= len(c[i].Entries) {
		return fmt.Errorf("entry %d of %d in step %d: %w", j, len(c[i].Entries), i, ErrIndexOutOfRange)
	}
	return nil
}
