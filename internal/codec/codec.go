// Package codec converts a composition to and from its portable JSON
// document: an array of {"note", "entries"} objects.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// ErrMalformedDocument is returned by Import for anything that is not a
// well-formed composition document.
var ErrMalformedDocument = errors.New("malformed composition document")

// Export renders c as an indented JSON document. Nil entry lists are written
// as empty arrays.
func Export(c models.Composition) ([]byte, error) {
	doc := make([]models.Step, 0, len(c))
	for _, step := range c {
		entries := step.Entries
		if entries == nil {
			entries = []models.Card{}
		}
		doc = append(doc, models.Step{Note: step.Note, Entries: entries})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode composition: %w", err)
	}
	return data, nil
}

// The document types mirror models with pointer fields so that a missing key
// can be told apart from a zero value.
type stepDoc struct {
	Note    *string     `json:"note"`
	Entries *[]entryDoc `json:"entries"`
}

type entryDoc struct {
	ID          *int64  `json:"id"`
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	RawData     *string `json:"raw_data"`
	ImageURL    *string `json:"image_url"`
}

// Import parses a document produced by Export. Every step needs a string note
// and an entries array; every entry needs all six record fields. Unknown
// fields and trailing data are rejected.
func Import(data []byte) (models.Composition, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: top level must be an array", ErrMalformedDocument)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var steps []*stepDoc
	if err := dec.Decode(&steps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedDocument)
	}

	out := make(models.Composition, 0, len(steps))
	for i, s := range steps {
		step, err := s.toStep()
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrMalformedDocument, i, err)
		}
		out = append(out, step)
	}
	return out, nil
}

func (s *stepDoc) toStep() (models.Step, error) {
	if s == nil {
		return models.Step{}, errors.New("step is null")
	}
	if s.Note == nil {
		return models.Step{}, errors.New(`missing "note"`)
	}
	if s.Entries == nil {
		return models.Step{}, errors.New(`missing "entries"`)
	}

	entries := make([]models.Card, 0, len(*s.Entries))
	for j, e := range *s.Entries {
		card, err := e.toCard()
		if err != nil {
			return models.Step{}, fmt.Errorf("entry %d: %w", j, err)
		}
		entries = append(entries, card)
	}
	return models.Step{Note: *s.Note, Entries: entries}, nil
}

func (e entryDoc) toCard() (models.Card, error) {
	var missing []string
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	check("id", e.ID != nil)
	check("name", e.Name != nil)
	check("category", e.Category != nil)
	check("description", e.Description != nil)
	check("raw_data", e.RawData != nil)
	check("image_url", e.ImageURL != nil)
	if len(missing) > 0 {
		return models.Card{}, fmt.Errorf("missing fields %v", missing)
	}

	return models.Card{
		ID:          *e.ID,
		Name:        *e.Name,
		Category:    *e.Category,
		Description: *e.Description,
		RawData:     *e.RawData,
		ImageURL:    *e.ImageURL,
	}, nil
}
