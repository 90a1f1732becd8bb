package codec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

var darkMagician = models.Card{
	ID:          46986414,
	Name:        "Dark Magician",
	Category:    "Normal Monster",
	Description: "The ultimate wizard in terms of attack and defense.",
	RawData:     `{"id":46986414,"name":"Dark Magician","atk":2500}`,
	ImageURL:    "https://images.ygoprodeck.com/images/cards/46986414.jpg",
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   models.Composition
	}{
		{name: "empty", in: models.Composition{}},
		{name: "nil", in: nil},
		{name: "nil entries", in: models.Composition{{Note: "start"}}},
		{
			name: "mixed",
			in: models.Composition{
				{Note: "Normal summon", Entries: []models.Card{darkMagician, darkMagician}},
				{Note: "", Entries: []models.Card{}},
				{Note: "Unicode ✨ \"quoted\"\nnewline", Entries: []models.Card{{ID: 1, RawData: "{}"}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Export(tt.in)
			require.NoError(t, err)

			out, err := Import(data)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.in, out, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExportShape(t *testing.T) {
	data, err := Export(models.Composition{{Note: "a"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"note":"a","entries":[]}]`, string(data))
	assert.Contains(t, string(data), "\n  ", "document is indented")

	data, err = Export(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestImportRejectsMalformed(t *testing.T) {
	entry := `{"id":1,"name":"n","category":"c","description":"d","raw_data":"{}","image_url":""}`
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty input", doc: ``},
		{name: "not json", doc: `steps`},
		{name: "object at top level", doc: `{"note":"a","entries":[]}`},
		{name: "null document", doc: `null`},
		{name: "legacy cards key", doc: `[{"note":"a","cards":[]}]`},
		{name: "missing note", doc: `[{"entries":[]}]`},
		{name: "missing entries", doc: `[{"note":"a"}]`},
		{name: "null step", doc: `[null]`},
		{name: "note is a number", doc: `[{"note":3,"entries":[]}]`},
		{name: "entries is an object", doc: `[{"note":"a","entries":{}}]`},
		{name: "entry missing field", doc: `[{"note":"a","entries":[{"id":1,"name":"n"}]}]`},
		{name: "entry id is a string", doc: `[{"note":"a","entries":[{"id":"1","name":"n","category":"c","description":"d","raw_data":"{}","image_url":""}]}]`},
		{name: "unknown entry field", doc: `[{"note":"a","entries":[{"id":1,"name":"n","category":"c","description":"d","raw_data":"{}","image_url":"","atk":1}]}]`},
		{name: "trailing data", doc: `[{"note":"a","entries":[` + entry + `]}] []`},
		{name: "truncated", doc: `[{"note":"a","entries":[` + entry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Import([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedDocument), "got %v", err)
			assert.Nil(t, out)
		})
	}
}

func TestImportAcceptsHandWrittenDocument(t *testing.T) {
	doc := `
[
  {"entries": [{"image_url":"u","raw_data":"{}","description":"d","category":"c","name":"n","id":7}], "note": "first"}
]
`
	out, err := Import([]byte(doc))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Note)
	assert.Equal(t, int64(7), out[0].Entries[0].ID)
}

func TestWriteSummary(t *testing.T) {
	c := models.Composition{
		{Note: "Summon", Entries: []models.Card{darkMagician}},
		{Entries: []models.Card{}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, c))

	var got Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got.Steps)
	assert.Equal(t, 1, got.Entries)
	require.Len(t, got.Plan, 2)
	assert.Equal(t, []string{"Dark Magician"}, got.Plan[0].Cards)
	assert.Equal(t, 2, got.Plan[1].Step)
	assert.False(t, strings.Contains(buf.String(), "raw_data"))
}

func TestSaveSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans", "combo.yaml")
	require.NoError(t, SaveSummary(path, models.Composition{{Note: "x", Entries: []models.Card{darkMagician}}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Dark Magician")
}
