package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/codec"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/composition"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/config"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/images"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/sessions"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/snapshot"
)

var sampleCards = []models.Card{
	{ID: 89631139, Name: "Blue-Eyes White Dragon", Category: "Normal Monster", Description: "This legendary dragon.", RawData: "{}"},
	{ID: 46986414, Name: "Dark Magician", Category: "Normal Monster", Description: "The ultimate wizard.", RawData: "{}"},
	{ID: 40640057, Name: "Kuriboh", Category: "Effect Monster", Description: "Discard this card.", RawData: "{}"},
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cards.jsonl")
	require.NoError(t, snapshot.Write(path, sampleCards))
	return path
}

func TestComposeWorkflow(t *testing.T) {
	snap := writeSnapshot(t)
	doc := filepath.Join(t.TempDir(), "combo_steps.json")
	compose := func(args ...string) (string, error) {
		return run(t, append([]string{"compose", "--file", doc}, args...)...)
	}

	_, err := compose("new")
	require.NoError(t, err)
	_, err = compose("new")
	assert.Error(t, err, "new refuses to overwrite")

	_, err = compose("add-step")
	require.NoError(t, err)
	_, err = compose("add", "89631139", "--snapshot", snap)
	assert.ErrorIs(t, err, composition.ErrNoTargetStep)

	out, err := compose("select", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Selected step 1")

	_, err = compose("add", "89631139", "--snapshot", snap)
	require.NoError(t, err)
	_, err = compose("add", "46986414", "--snapshot", snap)
	require.NoError(t, err)
	_, err = compose("note", "1", "Opening")
	require.NoError(t, err)
	_, err = compose("move", "1", "2", "up")
	require.NoError(t, err)
	_, err = compose("dup", "1")
	require.NoError(t, err)
	_, err = compose("rm", "2", "1")
	require.NoError(t, err)

	_, err = compose("rm", "9", "1")
	assert.ErrorIs(t, err, composition.ErrIndexOutOfRange)
	_, err = compose("add", "1", "--snapshot", snap)
	assert.Error(t, err, "unknown card")

	data, err := os.ReadFile(doc)
	require.NoError(t, err)
	c, err := codec.Import(data)
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, "Opening", c[0].Note)
	assert.Equal(t, []string{"Dark Magician", "Blue-Eyes White Dragon"}, names(c[0].Entries))
	assert.Equal(t, []string{"Blue-Eyes White Dragon"}, names(c[1].Entries))

	out, err = compose("show")
	require.NoError(t, err)
	assert.Contains(t, out, "# selected step: 1")
	assert.Contains(t, out, "note: Opening")

	_, err = compose("delete-step", "1")
	require.NoError(t, err)
	out, err = compose("show")
	require.NoError(t, err)
	assert.NotContains(t, out, "selected step", "deleting the selected step clears the selection")
	assert.Contains(t, out, "steps: 1")
}

func TestComposeRejectsBadArguments(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "combo_steps.json")
	tests := []struct {
		name string
		args []string
	}{
		{name: "zero step", args: []string{"dup", "0"}},
		{name: "word step", args: []string{"note", "first", "x"}},
		{name: "bad direction", args: []string{"move-step", "1", "left"}},
		{name: "missing args", args: []string{"rm", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"compose", "--file", doc}, tt.args...)...)
			assert.Error(t, err)
		})
	}
	_, err := os.Stat(doc)
	assert.True(t, os.IsNotExist(err), "failed commands write nothing")
}

func TestWorkfileRejectsMalformedDocument(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "combo_steps.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"steps":[]}`), 0644))

	_, err := workfile{path: doc}.open()
	assert.ErrorIs(t, err, codec.ErrMalformedDocument)
}

func TestBrowseSnapshot(t *testing.T) {
	snap := writeSnapshot(t)
	out, err := run(t, "browse", "--snapshot", snap, "--pages", "-1", "--page-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "-- page 1 --")
	assert.Contains(t, out, "-- page 2 --")
	assert.Contains(t, out, "Kuriboh")
}

func TestSearchSnapshot(t *testing.T) {
	snap := writeSnapshot(t)
	out, err := run(t, "search", "WIZARD", "--snapshot", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "Dark Magician")
	assert.NotContains(t, out, "Kuriboh")
}

func TestInteractiveSearchPrintsLatestOnly(t *testing.T) {
	src := snapshot.NewIndex(sampleCards)
	var out bytes.Buffer
	err := runInteractiveSearch(bytes.NewBufferString("blue\nkuri\n"), &out, src, 20e6, false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `1 cards match "kuri"`)
	assert.NotContains(t, out.String(), `"blue"`)
}

func TestInteractiveSearchWaitsForBlankLastLine(t *testing.T) {
	src := snapshot.NewIndex(sampleCards)
	var out bytes.Buffer
	err := runInteractiveSearch(bytes.NewBufferString("kuri\n\n"), &out, src, 20e6, false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `0 cards match ""`, "the blank query is answered before returning")
}

func TestNewScheduler(t *testing.T) {
	store := sessions.New(snapshot.NewIndex(nil), 2)
	noop := func(context.Context) error { return nil }

	c, err := newScheduler(context.Background(), "", store, noop)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1, "session sweep only")

	c, err = newScheduler(context.Background(), "0 3 * * *", store, noop)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)

	_, err = newScheduler(context.Background(), "whenever", store, noop)
	assert.Error(t, err)
}

func TestNeedsStore(t *testing.T) {
	tests := []struct {
		name                                       string
		browse, search, snapshot, imageStore, sync string
		want                                       bool
	}{
		{name: "defaults page the store", browse: sourceStore, search: sourceCatalog, imageStore: imageStoreDir, want: true},
		{name: "catalog only", browse: sourceCatalog, search: sourceCatalog, imageStore: imageStoreDir},
		{name: "snapshot replaces store sources", browse: sourceStore, search: sourceStore, snapshot: "cards.jsonl", imageStore: imageStoreDir},
		{name: "object images", browse: sourceCatalog, search: sourceCatalog, imageStore: imageStoreObject},
		{name: "db images", browse: sourceCatalog, search: sourceCatalog, snapshot: "cards.jsonl", imageStore: imageStoreDB, want: true},
		{name: "scheduled sync", browse: sourceCatalog, search: sourceCatalog, imageStore: imageStoreDir, sync: "@daily", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, needsStore(tt.browse, tt.search, tt.snapshot, tt.imageStore, tt.sync))
		})
	}
}

func TestPickBlobStoreObject(t *testing.T) {
	var cfg config.Config
	_, err := pickBlobStore(imageStoreObject, cfg, nil)
	assert.Error(t, err, "no bucket configured")

	cfg.Storage.URL = "https://storage.example"
	cfg.Storage.Key = "service-key"
	cfg.Storage.Bucket = "card-images"
	blobs, err := pickBlobStore(imageStoreObject, cfg, nil)
	require.NoError(t, err)
	obj, ok := blobs.(*images.ObjectStore)
	require.True(t, ok)
	assert.Equal(t, "card-images", obj.Bucket)

	_, err = pickBlobStore(imageStoreDB, cfg, nil)
	assert.Error(t, err)
}

func TestServeSnapshotWithoutBackend(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("STORAGE_DSN", "")
	t.Setenv("SYNC_SCHEDULE", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"serve", "--snapshot", writeSnapshot(t), "--port", "0", "--no-watch"})
	assert.NoError(t, root.ExecuteContext(ctx))
}

func TestParseIndex(t *testing.T) {
	i, err := parseIndex("step", "3")
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	for _, bad := range []string{"0", "-1", "x", ""} {
		_, err := parseIndex("step", bad)
		assert.Error(t, err, bad)
	}
}

func names(cards []models.Card) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Name)
	}
	return out
}
