package deck

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/slides"
	"portfolio-slides/slide-service/pkg/pdf"
	"portfolio-slides/slide-service/pkg/storage"
)

func page(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(192, 108, c)))
	return buf.Bytes()
}

func TestUpsertAppendsThenReplaces(t *testing.T) {
	ctx := context.Background()
	files := storage.NewMemoryStore()
	store := NewStore(files, nil, Config{}, zap.NewNop())

	first, err := store.Upsert(ctx, "Acme Robotics", page(t, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)
	assert.False(t, first.Replaced)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, first.Pages)

	second, err := store.Upsert(ctx, "Globex", page(t, color.NRGBA{G: 255, A: 255}))
	require.NoError(t, err)
	assert.False(t, second.Replaced)
	assert.Equal(t, 1, second.Position)
	assert.Equal(t, 2, pdf.PageCount(second.PDF))

	// same company under a different spelling replaces its page in place
	again, err := store.Upsert(ctx, "  acme robotics ", page(t, color.NRGBA{B: 255, A: 255}))
	require.NoError(t, err)
	assert.True(t, again.Replaced)
	assert.Equal(t, 0, again.Position)
	assert.Equal(t, 2, pdf.PageCount(again.PDF))

	// the deck file is overwritten, not duplicated
	assert.Equal(t, first.Deck.ID, again.Deck.ID)
	// two pages plus one deck
	assert.Equal(t, 3, files.Len())

	stored, err := files.Download(ctx, again.Deck.ID)
	require.NoError(t, err)
	assert.Equal(t, again.PDF, stored)

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "acme-robotics", entries[0].Slug)
	assert.Equal(t, "globex", entries[1].Slug)
	assert.NotEmpty(t, entries[0].ID)
}

func TestManifestPersistsAcrossStores(t *testing.T) {
	ctx := context.Background()
	files := storage.NewMemoryStore()
	cfg := Config{ManifestPath: filepath.Join(t.TempDir(), "deck", "manifest.json")}

	_, err := NewStore(files, nil, cfg, zap.NewNop()).Upsert(ctx, "Acme", page(t, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)

	reopened := NewStore(files, nil, cfg, zap.NewNop())
	res, err := reopened.Upsert(ctx, "Acme", page(t, color.NRGBA{G: 255, A: 255}))
	require.NoError(t, err)
	assert.True(t, res.Replaced)
	assert.Equal(t, 1, res.Pages)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryStore(), nil, Config{}, zap.NewNop())

	_, err := store.Upsert(ctx, "Acme", page(t, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "Globex", page(t, color.NRGBA{G: 255, A: 255}))
	require.NoError(t, err)

	res, err := store.Remove(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)

	_, err = store.Remove(ctx, "acme")
	assert.True(t, errors.Is(err, ErrEntryNotFound))
}

func TestRemoveLastEntryDropsDeck(t *testing.T) {
	ctx := context.Background()
	files := storage.NewMemoryStore()
	cfg := Config{ManifestPath: filepath.Join(t.TempDir(), "manifest.json")}
	store := NewStore(files, nil, cfg, zap.NewNop())

	added, err := store.Upsert(ctx, "Acme", page(t, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)
	require.Equal(t, 2, files.Len())

	res, err := store.Remove(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Pages)

	// neither the page nor a deck still showing the company is left behind
	assert.Equal(t, 0, files.Len())
	_, err = files.Download(ctx, added.Deck.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	reopened := NewStore(files, nil, cfg, zap.NewNop())
	m, err := reopened.load()
	require.NoError(t, err)
	assert.Empty(t, m.DeckFileID)
	assert.Empty(t, m.DeckLink)
	assert.Empty(t, m.Entries)

	// the next company starts a fresh deck
	next, err := reopened.Upsert(ctx, "Globex", page(t, color.NRGBA{G: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, 1, next.Pages)
	assert.NotEqual(t, added.Deck.ID, next.Deck.ID)
}

func TestNonASCIINamesKeepSeparatePages(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryStore(), nil, Config{}, zap.NewNop())

	_, err := store.Upsert(ctx, "Über Labs", page(t, color.NRGBA{R: 255, A: 255}))
	require.NoError(t, err)
	res, err := store.Upsert(ctx, "Ber Labs", page(t, color.NRGBA{G: 255, A: 255}))
	require.NoError(t, err)
	assert.False(t, res.Replaced)
	assert.Equal(t, 2, res.Pages)

	res, err = store.Upsert(ctx, "日本テック", page(t, color.NRGBA{B: 255, A: 255}))
	require.NoError(t, err)
	assert.False(t, res.Replaced)
	assert.Equal(t, 3, res.Pages)

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "über-labs", entries[0].Slug)
	assert.Equal(t, "ber-labs", entries[1].Slug)
	assert.Equal(t, "日本テック", entries[2].Slug)
}

func TestUpsertRejectsEmptyInput(t *testing.T) {
	store := NewStore(storage.NewMemoryStore(), nil, Config{}, zap.NewNop())

	_, err := store.Upsert(context.Background(), "Acme", nil)
	assert.True(t, errors.Is(err, ErrEmptyPage))

	_, err = store.Upsert(context.Background(), "   ", []byte{1})
	assert.True(t, errors.Is(err, slides.ErrMissingName))
}

func TestFailedUpsertLeavesManifestUnchanged(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemoryStore(), nil, Config{}, zap.NewNop())

	_, err := store.Upsert(ctx, "Acme", []byte("not a png"))
	require.Error(t, err)

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
