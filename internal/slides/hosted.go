package slides

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/integrations"
	"portfolio-slides/slide-service/pkg/bgremove"
)

// HostedTemplate is the hosted-template service, satisfied by *integrations.CanvaClient
type HostedTemplate interface {
	UploadAsset(ctx context.Context, name string, data []byte) (string, error)
	Autofill(ctx context.Context, title string, data map[string]integrations.AutofillField) (string, error)
	ExportPDF(ctx context.Context, designID string) ([]byte, error)
}

// Data field names of the brand template
const (
	FieldCompanyName = "company_name"
	FieldFounders    = "founders"
	FieldCoInvestors = "co_investors"
	FieldBackground  = "background"
	FieldLocation    = "location"
	FieldStage       = "investment_stage"
	FieldLogo        = "logo"
	FieldHeadshot    = "headshot"
)

// HostedStrategy fills a hosted brand template and exports it to PDF
type HostedStrategy struct {
	service HostedTemplate
	remover *bgremove.Remover
	logger  *zap.Logger
}

// NewHostedStrategy creates the hosted-template strategy. remover may be nil to
// upload headshots unprocessed.
func NewHostedStrategy(service HostedTemplate, remover *bgremove.Remover, logger *zap.Logger) *HostedStrategy {
	return &HostedStrategy{
		service: service,
		remover: remover,
		logger:  logger,
	}
}

// Name implements Strategy
func (s *HostedStrategy) Name() string { return "hosted" }

// Compose implements Strategy. Only PDF output is available.
func (s *HostedStrategy) Compose(ctx context.Context, in Input) (*RenderedSlide, error) {
	if in.Format != "" && in.Format != FormatPDF {
		return nil, fmt.Errorf("hosted template: %w: %q", ErrUnsupportedFormat, in.Format)
	}
	company := in.Company
	slug := Slug(company.Name)

	fields := map[string]integrations.AutofillField{
		FieldCompanyName: integrations.TextField(company.DisplayName()),
		FieldFounders:    integrations.TextField(strings.Join(company.Founders, "\n")),
		FieldCoInvestors: integrations.TextField(strings.Join(company.CoInvestors, "\n")),
		FieldBackground:  integrations.TextField(company.Text()),
		FieldLocation:    integrations.TextField(company.City()),
		FieldStage:       integrations.TextField(company.Stage()),
	}

	var degraded []string
	if len(in.Logo) > 0 {
		id, err := s.service.UploadAsset(ctx, slug+"-logo", in.Logo)
		if err != nil {
			s.logger.Warn("Failed to upload logo asset", zap.String("company", company.Name), zap.Error(err))
			degraded = append(degraded, StepLogo)
		} else {
			fields[FieldLogo] = integrations.ImageField(id)
		}
	}
	if len(in.Headshots) > 0 && len(in.Headshots[0]) > 0 {
		id, err := s.uploadHeadshot(ctx, slug, in.Headshots[0])
		if err != nil {
			s.logger.Warn("Failed to upload headshot asset", zap.String("company", company.Name), zap.Error(err))
			degraded = append(degraded, StepHeadshots)
		} else {
			fields[FieldHeadshot] = integrations.ImageField(id)
		}
	}

	designID, err := s.service.Autofill(ctx, company.Name+" portfolio slide", fields)
	if err != nil {
		return nil, fmt.Errorf("failed to fill hosted template: %w", err)
	}
	data, err := s.service.ExportPDF(ctx, designID)
	if err != nil {
		return nil, fmt.Errorf("failed to export hosted design %s: %w", designID, err)
	}

	s.logger.Info("Composed slide from hosted template",
		zap.String("company", company.Name),
		zap.String("design_id", designID),
		zap.Int("bytes", len(data)))
	return &RenderedSlide{
		Format:   FormatPDF,
		Data:     data,
		Width:    SlideWidth,
		Height:   SlideHeight,
		Degraded: degraded,
	}, nil
}

func (s *HostedStrategy) uploadHeadshot(ctx context.Context, slug string, data []byte) (string, error) {
	if s.remover != nil {
		img, err := decodeImage(data)
		if err != nil {
			return "", err
		}
		res := s.remover.ProcessHeadshot(ctx, img)
		if data, err = encodePNG(res.Image); err != nil {
			return "", err
		}
	}
	return s.service.UploadAsset(ctx, slug+"-headshot", data)
}
