package bgremove

import (
	"context"
	"errors"
	"image"

	"go.uber.org/zap"
)

// TierOriginal names the result when every tier failed and the input was kept
const TierOriginal = "original"

// Tier is one background-removal strategy
type Tier interface {
	Name() string
	Remove(ctx context.Context, img image.Image) (*image.NRGBA, error)
}

// Result is a cutout and the tier that produced it
type Result struct {
	Image *image.NRGBA
	Tier  string
}

// Remover tries each tier in order and keeps the first plausible cutout
type Remover struct {
	tiers  []Tier
	logger *zap.Logger
}

// NewRemover creates a remover over the given tiers, best first
func NewRemover(logger *zap.Logger, tiers ...Tier) *Remover {
	return &Remover{
		tiers:  tiers,
		logger: logger,
	}
}

// NewDefaultRemover wires the API, local, and flood fill tiers. The API tier is
// skipped when api is nil.
func NewDefaultRemover(api *APIClient, logger *zap.Logger) *Remover {
	tiers := make([]Tier, 0, 3)
	if api != nil {
		tiers = append(tiers, api)
	}
	tiers = append(tiers, NewSegmenter(), NewFloodFill(DefaultFloodFillOptions()))
	return NewRemover(logger, tiers...)
}

// Remove never fails: if every tier errors or produces an implausible mask the
// original image is returned fully opaque.
func (r *Remover) Remove(ctx context.Context, img image.Image) Result {
	for _, tier := range r.tiers {
		out, err := tier.Remove(ctx, img)
		if err != nil {
			if !errors.Is(err, ErrNoAPIKey) {
				r.logger.Warn("Background removal tier failed",
					zap.String("tier", tier.Name()),
					zap.Error(err))
			}
			continue
		}
		if !Plausible(out) {
			opaque, transparent := AlphaStats(out)
			r.logger.Warn("Background removal tier produced implausible mask",
				zap.String("tier", tier.Name()),
				zap.Float64("opaque", opaque),
				zap.Float64("transparent", transparent))
			continue
		}
		return Result{Image: out, Tier: tier.Name()}
	}

	r.logger.Warn("All background removal tiers failed, using original image")
	return Result{Image: Opaque(img), Tier: TierOriginal}
}

// ProcessHeadshot removes the background and converts the subject to grayscale
func (r *Remover) ProcessHeadshot(ctx context.Context, img image.Image) Result {
	res := r.Remove(ctx, img)
	res.Image = Grayscale(res.Image)
	return res
}
