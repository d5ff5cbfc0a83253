package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/deck"
	"portfolio-slides/slide-service/internal/integrations"
	"portfolio-slides/slide-service/internal/slides"
	"portfolio-slides/slide-service/pkg/storage"
)

// Pipeline step names reported in PipelineResult.Errors
const (
	StepImages   = "images"
	StepNotion   = "notion"
	StepFolder   = "notion_folder"
	StepCompose  = "compose"
	StepStorage  = "storage"
	StepDocSend  = "docsend"
	StepDeck     = "master_deck"
	StepPersist  = "persist"
	statusNotion = "completed"
)

// SlideComposer renders a slide with a named strategy
type SlideComposer interface {
	ComposeWith(ctx context.Context, strategy string, in slides.Input) (*slides.RenderedSlide, error)
}

// Workspace is the company database
type Workspace interface {
	FindCompanyByName(ctx context.Context, name string) (string, error)
	CreateCompanyPage(ctx context.Context, company integrations.CompanyPage) (string, error)
	UpdateCompanyRecord(ctx context.Context, pageID, driveLink, docsendLink, status string) error
}

// CompanyFolders creates a company's working page
type CompanyFolders interface {
	CreateCompanyFolder(ctx context.Context, companyName string) (string, error)
}

// Notebook appends notes to a company page
type Notebook interface {
	AppendNote(ctx context.Context, pageID, title, content string) error
}

// DeckSharing publishes PDFs as tracked links
type DeckSharing interface {
	UploadDocument(ctx context.Context, name string, pdf []byte) (integrations.Document, error)
	UpdateDocument(ctx context.Context, id string, pdf []byte) (integrations.Document, error)
	MasterDeckID() string
}

// MasterDeck keeps one page per company in a combined PDF
type MasterDeck interface {
	Upsert(ctx context.Context, company string, page []byte) (*deck.Result, error)
}

// Deps are the pipeline collaborators. Nil collaborators are skipped and reported.
type Deps struct {
	Repository Repository
	Composer   SlideComposer
	Files      storage.FileStore
	Workspace  Workspace
	Folders    CompanyFolders
	Notes      Notebook
	Sharing    DeckSharing
	Deck       MasterDeck
	Fetcher    ImageFetcher
	// MapImage is an optional pre-rendered map pasted into the map region
	MapImage []byte
	// Strategies are tried in order when a request does not name one
	Strategies []string
}

// Service runs the onboarding pipeline
type Service struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a pipeline service
func NewService(deps Deps, logger *zap.Logger) *Service {
	if deps.Repository == nil {
		deps.Repository = NewMemoryRepository()
	}
	return &Service{deps: deps, logger: logger, now: time.Now}
}

// Process parses and stores a webhook payload, then runs the pipeline.
// It returns ErrInvalidPayload for unparseable bodies and otherwise a result
// whose Success flag reports whether a slide was produced and stored.
func (s *Service) Process(ctx context.Context, payload []byte) (*PipelineResult, error) {
	req, err := ParsePayload(payload)
	if err != nil {
		return nil, err
	}

	sub := newSubmission(req.Company.Name, payload, s.now())
	if err := s.deps.Repository.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	s.logger.Info("Received onboarding submission",
		zap.String("submission_id", sub.ID.String()),
		zap.String("company", req.Company.Name))

	claimed, err := s.deps.Repository.ClaimSubmission(ctx, sub.ID, runnableFrom(), s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to start submission: %w", err)
	}
	return s.run(ctx, claimed, req), nil
}

// Retry re-runs the pipeline for a stored submission
func (s *Service) Retry(ctx context.Context, id uuid.UUID) (*PipelineResult, error) {
	stored, err := s.deps.Repository.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	req, err := ParsePayload(stored.Payload)
	if err != nil {
		return nil, err
	}
	// the claim is the only check; a concurrent retry loses it
	sub, err := s.deps.Repository.ClaimSubmission(ctx, id, runnableFrom(), s.now())
	if err != nil {
		return nil, err
	}
	if req.NotionPageID == "" && sub.NotionPageID != "" {
		req.NotionPageID = sub.NotionPageID
	}
	return s.run(ctx, sub, req), nil
}

// GetSubmission returns a stored submission
func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return s.deps.Repository.GetSubmission(ctx, id)
}

// RetryableSubmissions lists failed submissions with attempts left
func (s *Service) RetryableSubmissions(ctx context.Context, maxAttempts, limit int) ([]*Submission, error) {
	status := StatusFailed
	return s.deps.Repository.ListSubmissions(ctx, SubmissionFilters{
		Status:      &status,
		MaxAttempts: maxAttempts,
		Limit:       limit,
	})
}

func (s *Service) run(ctx context.Context, sub *Submission, req *Request) *PipelineResult {
	result := &PipelineResult{SubmissionID: sub.ID, Errors: []string{}}
	logger := s.logger.With(
		zap.String("submission_id", sub.ID.String()),
		zap.String("company", req.Company.Name))

	headshots, logo := s.images(ctx, req, result, logger)

	pageID := s.workspacePage(ctx, req, result, logger)
	result.NotionPageID = optional(pageID)

	// folders are created once, on the first attempt
	if s.deps.Folders != nil && sub.Attempts == 1 {
		folderID, err := s.deps.Folders.CreateCompanyFolder(ctx, req.Company.Name)
		if err != nil {
			result.fail(StepFolder, err)
		} else {
			result.NotionFolderID = optional(folderID)
		}
	}

	slide, err := s.compose(ctx, req, headshots, logo, logger)
	if err != nil {
		result.fail(StepCompose, err)
		s.note(ctx, pageID, result, logger)
		s.finish(ctx, sub, result, logger)
		return result
	}
	result.Degraded = slide.Degraded

	if s.deps.Files == nil {
		result.fail(StepStorage, integrations.ErrNotConfigured)
	} else {
		file, err := s.deps.Files.Upload(ctx, slides.SlideFilename(req.Company.Name, slide.Format), slide.Data)
		if err != nil {
			result.fail(StepStorage, err)
		} else {
			result.GoogleDriveLink = optional(file.Link)
		}
	}

	if slide.Format == slides.FormatPDF {
		s.share(ctx, req.Company.Name, slide, result, logger)
	}

	if pageID != "" && s.deps.Workspace != nil {
		err := s.deps.Workspace.UpdateCompanyRecord(ctx, pageID, deref(result.GoogleDriveLink), deref(result.DocSendLink), statusNotion)
		if err != nil {
			result.fail(StepNotion, err)
		}
	}

	result.Success = result.GoogleDriveLink != nil
	s.note(ctx, pageID, result, logger)
	s.finish(ctx, sub, result, logger)
	return result
}

// note records a failed or degraded run on the company page
func (s *Service) note(ctx context.Context, pageID string, result *PipelineResult, logger *zap.Logger) {
	if pageID == "" || s.deps.Notes == nil {
		return
	}
	if len(result.Errors) == 0 && len(result.Degraded) == 0 {
		return
	}

	var b strings.Builder
	if len(result.Degraded) > 0 {
		fmt.Fprintf(&b, "Degraded: %s\n", strings.Join(result.Degraded, ", "))
	}
	for _, e := range result.Errors {
		fmt.Fprintf(&b, "Error: %s\n", e)
	}
	title := "Slide generated with warnings"
	if !result.Success {
		title = "Slide generation failed"
	}
	if err := s.deps.Notes.AppendNote(ctx, pageID, title, strings.TrimSpace(b.String())); err != nil {
		logger.Warn("Failed to append pipeline note", zap.Error(err))
	}
}

// images resolves the request's images, substituting placeholders for missing ones
func (s *Service) images(ctx context.Context, req *Request, result *PipelineResult, logger *zap.Logger) ([][]byte, []byte) {
	headshots := make([][]byte, 0, len(req.Headshots))
	for i, ref := range req.Headshots {
		data, err := s.load(ctx, ref)
		if err != nil {
			logger.Warn("Failed to load headshot", zap.Int("index", i), zap.Error(err))
			result.fail(StepImages, fmt.Errorf("headshot %d: %w", i, err))
			continue
		}
		headshots = append(headshots, data)
	}
	if len(headshots) == 0 {
		headshots = append(headshots, Placeholder())
	}

	logo := Placeholder()
	if req.Logo != nil {
		data, err := s.load(ctx, *req.Logo)
		if err != nil {
			logger.Warn("Failed to load logo", zap.Error(err))
			result.fail(StepImages, fmt.Errorf("logo: %w", err))
		} else {
			logo = data
		}
	}
	return headshots, logo
}

func (s *Service) load(ctx context.Context, ref ImageRef) ([]byte, error) {
	if len(ref.Data) > 0 {
		return ref.Data, nil
	}
	if s.deps.Fetcher == nil {
		return nil, fmt.Errorf("image fetcher: %w", integrations.ErrNotConfigured)
	}
	return s.deps.Fetcher.Fetch(ctx, ref.URL)
}

// workspacePage returns the company's page ID, finding or creating the row
func (s *Service) workspacePage(ctx context.Context, req *Request, result *PipelineResult, logger *zap.Logger) string {
	if req.NotionPageID != "" {
		return req.NotionPageID
	}
	if s.deps.Workspace == nil {
		return ""
	}

	id, err := s.deps.Workspace.FindCompanyByName(ctx, req.Company.Name)
	if err == nil {
		return id
	}
	if !errors.Is(err, integrations.ErrCompanyNotFound) {
		logger.Warn("Failed to look up company page", zap.Error(err))
	}

	id, err = s.deps.Workspace.CreateCompanyPage(ctx, companyPage(req.Company))
	if err != nil {
		result.fail(StepNotion, err)
		return ""
	}
	return id
}

// compose tries the requested strategy, or each configured one in order
func (s *Service) compose(ctx context.Context, req *Request, headshots [][]byte, logo []byte, logger *zap.Logger) (*slides.RenderedSlide, error) {
	if s.deps.Composer == nil {
		return nil, fmt.Errorf("slide composer: %w", integrations.ErrNotConfigured)
	}

	in := slides.Input{
		Company:   req.Company,
		Headshots: headshots,
		Logo:      logo,
		MapImage:  s.deps.MapImage,
		Format:    req.Format,
	}
	order := s.deps.Strategies
	if req.Strategy != "" {
		order = []string{req.Strategy}
	}
	if len(order) == 0 {
		order = []string{""}
	}

	var errs []error
	for _, name := range order {
		slide, err := s.deps.Composer.ComposeWith(ctx, name, in)
		if err == nil {
			return slide, nil
		}
		logger.Warn("Slide strategy failed", zap.String("strategy", name), zap.Error(err))
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("failed to compose slide: %w", errors.Join(errs...))
}

// share publishes the slide on DocSend and refreshes the master deck
func (s *Service) share(ctx context.Context, company string, slide *slides.RenderedSlide, result *PipelineResult, logger *zap.Logger) {
	if s.deps.Sharing != nil {
		doc, err := s.deps.Sharing.UploadDocument(ctx, company, slide.Data)
		if err != nil {
			result.fail(StepDocSend, err)
		} else {
			result.DocSendLink = optional(doc.Link)
		}
	}

	if s.deps.Deck == nil || len(slide.Preview) == 0 {
		return
	}
	res, err := s.deps.Deck.Upsert(ctx, company, slide.Preview)
	if err != nil {
		result.fail(StepDeck, err)
		return
	}
	result.MasterDeckLink = optional(res.Deck.Link)
	logger.Info("Updated master deck",
		zap.Bool("replaced", res.Replaced),
		zap.Int("position", res.Position),
		zap.Int("pages", res.Pages))

	if s.deps.Sharing == nil || s.deps.Sharing.MasterDeckID() == "" {
		return
	}
	doc, err := s.deps.Sharing.UpdateDocument(ctx, s.deps.Sharing.MasterDeckID(), res.PDF)
	if err != nil {
		result.fail(StepDeck, err)
		return
	}
	if doc.Link != "" {
		result.MasterDeckLink = optional(doc.Link)
	}
}

func (s *Service) finish(ctx context.Context, sub *Submission, result *PipelineResult, logger *zap.Logger) {
	next, lastError := StatusCompleted, ""
	if !result.Success {
		next = StatusFailed
		if n := len(result.Errors); n > 0 {
			lastError = result.Errors[n-1]
		}
	}
	if err := sub.Status.ValidateTransition(next); err != nil {
		logger.Warn("Unexpected submission status at finish", zap.Error(err))
	}
	sub.Status = next
	sub.LastError = lastError
	sub.DriveLink = deref(result.GoogleDriveLink)
	sub.DocSendLink = deref(result.DocSendLink)
	sub.NotionPageID = deref(result.NotionPageID)
	sub.UpdatedAt = s.now()

	if err := s.deps.Repository.UpdateSubmission(ctx, sub); err != nil {
		logger.Error("Failed to persist submission", zap.Error(err))
		result.fail(StepPersist, err)
	}

	if result.Success {
		logger.Info("Onboarding pipeline completed",
			zap.Int("errors", len(result.Errors)),
			zap.Strings("degraded", result.Degraded))
	} else {
		logger.Error("Onboarding pipeline failed", zap.Strings("errors", result.Errors))
	}
}

func companyPage(c slides.CompanyRecord) integrations.CompanyPage {
	description := c.Description
	if description == "" {
		description = c.Text()
	}
	return integrations.CompanyPage{
		Name:              c.Name,
		Website:           c.Website,
		Description:       description,
		Address:           c.Place(),
		Birthday:          c.Birthday,
		InvestmentDate:    c.InvestmentDate,
		CoInvestors:       c.CoInvestors,
		NumberOfEmployees: c.NumberOfEmployees,
		FirstTimeFounder:  c.FirstTimeFounder,
		InvestmentMemo:    c.InvestmentMemo,
	}
}
