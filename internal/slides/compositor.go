package slides

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Strategy turns one composition request into an encoded slide
type Strategy interface {
	Name() string
	Compose(ctx context.Context, in Input) (*RenderedSlide, error)
}

// Compositor selects a strategy for each slide
type Compositor struct {
	strategies map[string]Strategy
	fallback   string
	format     Format
	logger     *zap.Logger
}

// NewCompositor creates a compositor whose default strategy is the first one given
func NewCompositor(format Format, logger *zap.Logger, strategies ...Strategy) *Compositor {
	c := &Compositor{
		strategies: make(map[string]Strategy, len(strategies)),
		format:     format,
		logger:     logger,
	}
	if c.format == "" {
		c.format = FormatPDF
	}
	for _, s := range strategies {
		if c.fallback == "" {
			c.fallback = s.Name()
		}
		c.strategies[s.Name()] = s
	}
	return c
}

// Strategies lists the registered strategy names
func (c *Compositor) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for name := range c.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compose renders a slide with the default strategy and format
func (c *Compositor) Compose(ctx context.Context, company CompanyRecord, headshots [][]byte, logo, mapImage []byte) (*RenderedSlide, error) {
	return c.ComposeWith(ctx, "", Input{
		Company:   company,
		Headshots: headshots,
		Logo:      logo,
		MapImage:  mapImage,
	})
}

// ComposeWith renders a slide with the named strategy. An empty name selects the
// default and an empty format the compositor's format.
func (c *Compositor) ComposeWith(ctx context.Context, strategy string, in Input) (*RenderedSlide, error) {
	if err := in.Company.Validate(); err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = c.fallback
	}
	s, ok := c.strategies[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	if in.Format == "" {
		in.Format = c.format
	}

	c.logger.Debug("Composing slide",
		zap.String("company", in.Company.Name),
		zap.String("strategy", strategy),
		zap.String("format", string(in.Format)),
		zap.Int("headshots", len(in.Headshots)))

	slide, err := s.Compose(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to compose slide with %s strategy: %w", strategy, err)
	}
	return slide, nil
}
