package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/config"
	"portfolio-slides/slide-service/pkg/storage"
)

func TestNewCompositorStrategies(t *testing.T) {
	cfg := config.Default()

	c, err := NewCompositor(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"template"}, c.Strategies())

	cfg.Canva.APIKey = "key"
	cfg.Canva.TemplateID = "tmpl"
	c, err = NewCompositor(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"hosted", "template"}, c.Strategies())

	cfg.Slides.Format = "gif"
	_, err = NewCompositor(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewInMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Deck.ManifestPath = ""

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Service)
	assert.Nil(t, a.DB)
	assert.IsType(t, &storage.MemoryStore{}, a.Files)
}

func TestNewRejectsIncompleteStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendS3

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, config.ErrMissingConfig)
}

func TestEnabled(t *testing.T) {
	assert.Equal(t, []string{"template"}, enabled([]string{"hosted", "template"}, []string{"template"}))
	assert.Empty(t, enabled(nil, []string{"template"}))
}
