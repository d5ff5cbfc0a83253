package deck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/slides"
	"portfolio-slides/slide-service/pkg/pdf"
	"portfolio-slides/slide-service/pkg/storage"
)

// DefaultDeckName is the file name of the master deck in the file store
const DefaultDeckName = "portfolio_master.pdf"

var (
	// ErrEntryNotFound is returned when no page is stored for a company
	ErrEntryNotFound = errors.New("company not in master deck")
	// ErrEmptyPage is returned for an upsert without a page image
	ErrEmptyPage = errors.New("page image is empty")
)

// Entry is one company page of the master deck
type Entry struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Company   string    `json:"company"`
	PageFile  string    `json:"page_file"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manifest is the ordered list of pages plus the rendered deck's file ID
type Manifest struct {
	DeckFileID string  `json:"deck_file_id,omitempty"`
	DeckLink   string  `json:"deck_link,omitempty"`
	Entries    []Entry `json:"entries"`
}

func (m *Manifest) find(slug string) int {
	for i, e := range m.Entries {
		if e.Slug == slug {
			return i
		}
	}
	return -1
}

// Config configures the master deck
type Config struct {
	// ManifestPath is where the manifest is persisted; empty keeps it in memory
	ManifestPath string `json:"manifest_path"`
	DeckName     string `json:"deck_name"`
}

// Result describes one upsert
type Result struct {
	Replaced bool         `json:"replaced"`
	Position int          `json:"position"`
	Pages    int          `json:"pages"`
	Deck     storage.File `json:"deck"`
	PDF      []byte       `json:"-"`
}

// Store keeps one page per company, keyed by the normalized company name, and
// re-renders the master PDF after every change
type Store struct {
	mu        sync.Mutex
	files     storage.FileStore
	generator *pdf.Generator
	config    Config
	manifest  *Manifest
	logger    *zap.Logger
	now       func() time.Time
}

// NewStore creates a master deck store over a file store
func NewStore(files storage.FileStore, generator *pdf.Generator, cfg Config, logger *zap.Logger) *Store {
	if cfg.DeckName == "" {
		cfg.DeckName = DefaultDeckName
	}
	if generator == nil {
		generator = pdf.NewGenerator(pdf.DefaultOptions())
	}
	return &Store{
		files:     files,
		generator: generator,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Upsert replaces the company's page when it is already in the deck, otherwise
// appends it, then renders and stores the master PDF
func (s *Store) Upsert(ctx context.Context, company string, page []byte) (*Result, error) {
	if len(page) == 0 {
		return nil, ErrEmptyPage
	}
	slug := slides.Slug(company)
	if slug == "" {
		return nil, slides.ErrMissingName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	res := &Result{}
	if i := m.find(slug); i >= 0 {
		if _, err := s.files.Overwrite(ctx, m.Entries[i].PageFile, page); err != nil {
			return nil, fmt.Errorf("failed to replace page for %s: %w", company, err)
		}
		m.Entries[i].Company = company
		m.Entries[i].UpdatedAt = now
		res.Replaced = true
		res.Position = i
	} else {
		f, err := s.files.Upload(ctx, slug+"_page.png", page)
		if err != nil {
			return nil, fmt.Errorf("failed to store page for %s: %w", company, err)
		}
		m.Entries = append(m.Entries, Entry{
			ID:        uuid.New().String(),
			Slug:      slug,
			Company:   company,
			PageFile:  f.ID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		res.Position = len(m.Entries) - 1
	}

	if err := s.publish(ctx, m, res); err != nil {
		return nil, err
	}

	s.logger.Info("Updated master deck",
		zap.String("company", company),
		zap.Bool("replaced", res.Replaced),
		zap.Int("position", res.Position),
		zap.Int("pages", res.Pages))
	return res, nil
}

// Remove drops a company's page and re-renders the deck
func (s *Store) Remove(ctx context.Context, company string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}
	i := m.find(slides.Slug(company))
	if i < 0 {
		return nil, ErrEntryNotFound
	}
	removed := m.Entries[i]
	m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)

	res := &Result{Position: i}
	if len(m.Entries) == 0 {
		// an empty deck has no PDF
		if m.DeckFileID != "" {
			if err := s.files.Delete(ctx, m.DeckFileID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("failed to delete master deck: %w", err)
			}
		}
		m.DeckFileID = ""
		m.DeckLink = ""
		if err := s.save(m); err != nil {
			return nil, err
		}
	} else if err := s.publish(ctx, m, res); err != nil {
		return nil, err
	}

	if err := s.files.Delete(ctx, removed.PageFile); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("Failed to delete master deck page",
			zap.String("company", removed.Company),
			zap.Error(err))
	}
	return res, nil
}

// Entries returns the pages in deck order
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]Entry(nil), m.Entries...), nil
}

// publish renders all pages, writes the deck file and persists the manifest
func (s *Store) publish(ctx context.Context, m *Manifest, res *Result) error {
	pages := make([]image.Image, 0, len(m.Entries))
	for _, e := range m.Entries {
		data, err := s.files.Download(ctx, e.PageFile)
		if err != nil {
			return fmt.Errorf("failed to load page for %s: %w", e.Company, err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to decode page for %s: %w", e.Company, err)
		}
		pages = append(pages, img)
	}

	deck, err := s.generator.MultiPage(pages)
	if err != nil {
		return fmt.Errorf("failed to render master deck: %w", err)
	}

	var f storage.File
	if m.DeckFileID != "" {
		f, err = s.files.Overwrite(ctx, m.DeckFileID, deck)
	} else {
		f, err = s.files.Upload(ctx, s.config.DeckName, deck)
	}
	if err != nil {
		return fmt.Errorf("failed to store master deck: %w", err)
	}
	m.DeckFileID = f.ID
	if f.Link != "" {
		m.DeckLink = f.Link
	}

	res.Pages = len(pages)
	res.Deck = f
	res.PDF = deck
	return s.save(m)
}

// load returns a copy of the manifest; changes take effect on save
func (s *Store) load() (*Manifest, error) {
	if s.manifest != nil {
		m := *s.manifest
		m.Entries = append([]Entry(nil), s.manifest.Entries...)
		return &m, nil
	}
	m := &Manifest{}
	if s.config.ManifestPath != "" {
		data, err := os.ReadFile(s.config.ManifestPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read deck manifest: %w", err)
		default:
			if err := json.Unmarshal(data, m); err != nil {
				return nil, fmt.Errorf("failed to parse deck manifest: %w", err)
			}
		}
	}
	s.manifest = m
	return s.load()
}

func (s *Store) save(m *Manifest) error {
	s.manifest = m
	if s.config.ManifestPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode deck manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.config.ManifestPath), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	tmp := s.config.ManifestPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write deck manifest: %w", err)
	}
	if err := os.Rename(tmp, s.config.ManifestPath); err != nil {
		return fmt.Errorf("failed to write deck manifest: %w", err)
	}
	return nil
}
