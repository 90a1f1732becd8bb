// Package snapshot reads and writes offline copies of the card catalog as
// Parquet or JSONL files.
package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// Loader reads a snapshot file; the format follows the file extension.
type Loader struct {
	path string
}

// NewLoader creates a loader for path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

func format(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return "parquet", nil
	case ".jsonl", ".json":
		return "jsonl", nil
	default:
		return "", fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

// Load reads every card in the snapshot.
func (l *Loader) Load() ([]models.Card, error) {
	return l.LoadSample(-1)
}

// LoadSample reads at most limit cards; a negative limit reads them all.
func (l *Loader) LoadSample(limit int) ([]models.Card, error) {
	f, err := format(l.path)
	if err != nil {
		return nil, err
	}
	if f == "parquet" {
		return l.loadParquet(limit)
	}
	return l.loadJSONL(limit)
}

func (l *Loader) loadJSONL(limit int) ([]models.Card, error) {
	slog.Debug("Opening JSONL snapshot", "path", l.path)

	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	var cards []models.Card
	scanner := bufio.NewScanner(file)

	// Raw card payloads can be long
	const maxCapacity = 10 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for scanner.Scan() && (limit < 0 || len(cards) < limit) {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var card models.Card
		if err := json.Unmarshal(line, &card); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		cards = append(cards, card)

		if lineNum%1000 == 0 {
			slog.Debug("Reading JSONL", "lines_read", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	slog.Debug("Finished reading JSONL snapshot", "cards", len(cards), "lines", lineNum)
	return cards, nil
}

func (l *Loader) loadParquet(limit int) ([]models.Card, error) {
	slog.Debug("Opening Parquet snapshot", "path", l.path)

	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}
	slog.Debug("Parquet file opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[models.Card](pf)
	defer reader.Close()

	var cards []models.Card
	rows := make([]models.Card, 128)
	for limit < 0 || len(cards) < limit {
		n, err := reader.Read(rows)
		if n > 0 {
			if limit >= 0 && n > limit-len(cards) {
				n = limit - len(cards)
			}
			cards = append(cards, rows[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet snapshot", "cards", len(cards))
	return cards, nil
}

// Write stores cards at path in the format its extension names.
func Write(path string, cards []models.Card) error {
	f, err := format(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	if f == "parquet" {
		if err := parquet.WriteFile(path, cards); err != nil {
			return fmt.Errorf("failed to write parquet: %w", err)
		}
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, card := range cards {
		if err := enc.Encode(card); err != nil {
			return fmt.Errorf("failed to encode card %d: %w", card.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return file.Close()
}
