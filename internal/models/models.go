package models

// Card is one normalized catalog item. Cards are treated as immutable values:
// an update replaces the whole record.
type Card struct {
	ID          int64  `json:"id" parquet:"id"`
	Name        string `json:"name" parquet:"name"`
	Category    string `json:"category" parquet:"category"`
	Description string `json:"description" parquet:"description"`
	RawData     string `json:"raw_data" parquet:"raw_data"`   // JSON of the remote item, kept opaque
	ImageURL    string `json:"image_url" parquet:"image_url"` // nominal image from the catalog
}

// Step is one stage of a combo: a note and its ordered entries.
type Step struct {
	Note    string `json:"note"`
	Entries []Card `json:"entries"`
}

// Composition is the ordered list of steps. A step has no identity beyond its index.
type Composition []Step

// Clone returns a copy that shares no slices with s.
func (s Step) Clone() Step {
	entries := make([]Card, len(s.Entries))
	copy(entries, s.Entries)
	return Step{Note: s.Note, Entries: entries}
}

// Clone returns a deep copy of the composition.
func (c Composition) Clone() Composition {
	out := make(Composition, len(c))
	for i, step := range c {
		out[i] = step.Clone()
	}
	return out
}

// EntryCount returns the total number of entries across all steps.
func (c Composition) EntryCount() int {
	n := 0
	for _, step := range c {
		n += len(step.Entries)
	}
	return n
}
