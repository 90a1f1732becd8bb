package composition

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

func card(id int64) models.Card {
	return models.Card{ID: id, Name: "card"}
}

func entryIDs(step models.Step) []int64 {
	out := []int64{}
	for _, e := range step.Entries {
		out = append(out, e.ID)
	}
	return out
}

func sample() models.Composition {
	return models.Composition{
		{Note: "A", Entries: []models.Card{card(1), card(2), card(3)}},
		{Note: "B", Entries: []models.Card{card(4)}},
		{Note: "C", Entries: []models.Card{}},
	}
}

func TestPureOperationsDoNotMutateInput(t *testing.T) {
	in := sample()
	before := in.Clone()

	_ = AddStep(in)
	_, _ = AddEntry(in, 0, card(9))
	_, _ = SetNote(in, 1, "changed")
	_, _ = RemoveEntry(in, 0, 1)
	_, _ = MoveEntry(in, 0, 0, Down)
	_, _ = MoveStep(in, 0, Down)
	_, _ = DuplicateStep(in, 0)
	_, _ = DeleteStep(in, 2)

	if diff := cmp.Diff(before, in); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestRemoveEntryShiftsLeft(t *testing.T) {
	out, err := RemoveEntry(sample(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, entryIDs(out[0]))
}

func TestMoveEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry int
		dir   Direction
		want  []int64
	}{
		{name: "down", entry: 0, dir: Down, want: []int64{2, 1, 3}},
		{name: "up", entry: 2, dir: Up, want: []int64{1, 3, 2}},
		{name: "first up is a no-op", entry: 0, dir: Up, want: []int64{1, 2, 3}},
		{name: "last down is a no-op", entry: 2, dir: Down, want: []int64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := MoveEntry(sample(), 0, tt.entry, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entryIDs(out[0]))
		})
	}
}

func TestMoveStepBoundaries(t *testing.T) {
	out, err := MoveStep(sample(), 0, Up)
	require.NoError(t, err)
	assert.Equal(t, "A", out[0].Note)

	out, err = MoveStep(sample(), 2, Down)
	require.NoError(t, err)
	assert.Equal(t, "C", out[2].Note)

	out, err = MoveStep(sample(), 1, Up)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, []string{out[0].Note, out[1].Note, out[2].Note})
}

func TestDuplicateStepExample(t *testing.T) {
	in := models.Composition{{Note: "A", Entries: []models.Card{card(1)}}}

	out, err := DuplicateStep(in, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, out[0], out[1])
	assert.Len(t, out[0].Entries, 1)

	out[1].Entries[0].Name = "edited"
	out[1].Entries = append(out[1].Entries, card(2))
	out[1].Note = "A'"

	assert.Equal(t, "card", out[0].Entries[0].Name, "entries are independent copies")
	assert.Len(t, out[0].Entries, 1)
	assert.Equal(t, "A", out[0].Note)
	assert.Equal(t, "card", in[0].Entries[0].Name)
}

func TestInvalidIndices(t *testing.T) {
	c := sample()
	tests := []struct {
		name string
		op   func() (models.Composition, error)
	}{
		{name: "set note", op: func() (models.Composition, error) { return SetNote(c, 3, "x") }},
		{name: "remove entry step", op: func() (models.Composition, error) { return RemoveEntry(c, -1, 0) }},
		{name: "remove entry entry", op: func() (models.Composition, error) { return RemoveEntry(c, 2, 0) }},
		{name: "move entry", op: func() (models.Composition, error) { return MoveEntry(c, 1, 1, Up) }},
		{name: "move step", op: func() (models.Composition, error) { return MoveStep(c, 5, Up) }},
		{name: "duplicate", op: func() (models.Composition, error) { return DuplicateStep(c, 3) }},
		{name: "delete", op: func() (models.Composition, error) { return DeleteStep(c, -2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op()
			assert.ErrorIs(t, err, ErrIndexOutOfRange)
		})
	}
}

// Any sequence of moves is a permutation: it never adds, drops or alters
// entries or steps.
func TestMovesArePermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := models.Composition{
		{Note: "1", Entries: []models.Card{card(1), card(2), card(3), card(2)}},
		{Note: "2", Entries: []models.Card{card(5)}},
		{Note: "3", Entries: []models.Card{card(6), card(7)}},
	}
	wantSteps := stepMultiset(c)

	for n := 0; n < 500; n++ {
		dir := Up
		if rng.Intn(2) == 0 {
			dir = Down
		}
		var err error
		if rng.Intn(2) == 0 {
			c, err = MoveStep(c, rng.Intn(len(c)), dir)
		} else {
			i := rng.Intn(len(c))
			c, err = MoveEntry(c, i, rng.Intn(len(c[i].Entries)), dir)
		}
		require.NoError(t, err)
	}

	assert.Equal(t, wantSteps, stepMultiset(c))
}

func stepMultiset(c models.Composition) map[string][]int64 {
	out := make(map[string][]int64)
	for _, step := range c {
		ids := entryIDs(step)
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		out[step.Note] = ids
	}
	return out
}

func TestEditorAddEntryNeedsSelection(t *testing.T) {
	e := NewEditor()
	assert.ErrorIs(t, e.AddEntry(card(1)), ErrNoTargetStep)

	e.AddStep()
	assert.ErrorIs(t, e.AddEntry(card(1)), ErrNoTargetStep)

	require.NoError(t, e.Select(0))
	require.NoError(t, e.AddEntry(card(1)))
	require.NoError(t, e.AddEntry(card(1)))
	assert.Equal(t, []int64{1, 1}, entryIDs(e.Composition()[0]), "duplicates are allowed")

	assert.ErrorIs(t, e.Select(4), ErrIndexOutOfRange)
	sel, ok := e.Selected()
	assert.True(t, ok)
	assert.Equal(t, 0, sel, "failed select keeps the old selection")
}

func TestEditorDeleteStepSelection(t *testing.T) {
	tests := []struct {
		name     string
		selected int
		del      int
		want     int
		wantOK   bool
	}{
		{name: "deleting the selected step clears it", selected: 1, del: 1, wantOK: false},
		{name: "deleting an earlier step shifts it", selected: 2, del: 0, want: 1, wantOK: true},
		{name: "deleting a later step keeps it", selected: 0, del: 2, want: 0, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEditor()
			e.Replace(sample())
			require.NoError(t, e.Select(tt.selected))
			require.NoError(t, e.DeleteStep(tt.del))

			sel, ok := e.Selected()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, sel)
			}
		})
	}
}

func TestEditorSelectionFollowsStep(t *testing.T) {
	e := NewEditor()
	e.Replace(sample())
	require.NoError(t, e.Select(1)) // "B"

	require.NoError(t, e.MoveStep(1, Up))
	sel, _ := e.Selected()
	assert.Equal(t, "B", e.Composition()[sel].Note)

	require.NoError(t, e.MoveStep(1, Up)) // swaps "A" back above "B"
	sel, _ = e.Selected()
	assert.Equal(t, "B", e.Composition()[sel].Note)

	require.NoError(t, e.DuplicateStep(0))
	sel, _ = e.Selected()
	assert.Equal(t, 2, sel)
	assert.Equal(t, "B", e.Composition()[sel].Note)
}

func TestEditorReplaceClearsSelection(t *testing.T) {
	e := NewEditor()
	e.Replace(sample())
	require.NoError(t, e.Select(0))

	e.Replace(nil)
	_, ok := e.Selected()
	assert.False(t, ok)
	assert.NotNil(t, e.Composition())
	assert.Empty(t, e.Composition())
}

func TestEditorFailedOperationKeepsState(t *testing.T) {
	e := NewEditor()
	e.Replace(sample())
	before := e.State()

	assert.Error(t, e.RemoveEntry(1, 3))
	assert.Error(t, e.MoveStep(-1, Down))

	if diff := cmp.Diff(before, e.State(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("state changed (-before +after):\n%s", diff)
	}
}

func TestEditorApply(t *testing.T) {
	e := NewEditor()
	ops := []Op{
		{Kind: "add_step"},
		{Kind: "add_step"},
		{Kind: "select", Step: Index(0)},
		{Kind: "add_entry", Card: &models.Card{ID: 10, Name: "Dark Magician"}},
		{Kind: "add_entry", Card: &models.Card{ID: 11, Name: "Kuriboh"}},
		{Kind: "move_entry", Step: Index(0), Entry: Index(1), Dir: "up"},
		{Kind: "set_note", Step: Index(0), Note: "Normal summon"},
		{Kind: "move_step", Step: Index(0), Dir: "down"},
	}
	for _, op := range ops {
		require.NoError(t, e.Apply(op), op.Kind)
	}

	state := e.State()
	require.Len(t, state.Steps, 2)
	assert.Equal(t, "Normal summon", state.Steps[1].Note)
	assert.Equal(t, []int64{11, 10}, entryIDs(state.Steps[1]))
	require.NotNil(t, state.Selected)
	assert.Equal(t, 1, *state.Selected)

	bad := []Op{
		{Kind: "explode"},
		{Kind: "add_entry"},
		{Kind: "move_step", Step: Index(0), Dir: "sideways"},
		{Kind: "delete_step"},
		{Kind: "select"},
		{Kind: "remove_entry", Step: Index(1)},
		{Kind: "move_entry", Entry: Index(0), Dir: "up"},
	}
	for _, op := range bad {
		err := e.Apply(op)
		assert.True(t, errors.Is(err, ErrBadOp), "%s: %v", op.Kind, err)
	}
	if diff := cmp.Diff(state, e.State(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("rejected ops changed state (-want +got):\n%s", diff)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{in: "up", want: Up},
		{in: "left", want: Up},
		{in: "down", want: Down},
		{in: "right", want: Down},
		{in: "Up", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEditorApplyLeftRight(t *testing.T) {
	e := NewEditor()
	e.Replace(sample())

	require.NoError(t, e.Apply(Op{Kind: "move_entry", Step: Index(0), Entry: Index(0), Dir: "right"}))
	require.NoError(t, e.Apply(Op{Kind: "move_step", Step: Index(0), Dir: "right"}))

	state := e.State()
	assert.Equal(t, sample()[0].Note, state.Steps[1].Note)
	assert.Equal(t, []int64{sample()[0].Entries[1].ID, sample()[0].Entries[0].ID}, entryIDs(state.Steps[1])[:2])
}
