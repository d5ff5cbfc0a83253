package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// NotionVersion is the API version sent with every request
const NotionVersion = "2022-06-28"

// ErrCompanyNotFound is returned when no database row matches a company name
var ErrCompanyNotFound = errors.New("company not found in notion")

// NotionConfig configures the workspace client
type NotionConfig struct {
	APIKey         string        `json:"api_key"`
	DatabaseID     string        `json:"database_id"`
	TemplatePageID string        `json:"template_page_id"`
	BaseURL        string        `json:"base_url"`
	Timeout        time.Duration `json:"timeout"`
}

// CompanyPage is the portfolio database row for one company
type CompanyPage struct {
	Name              string
	Website           string
	Description       string
	Address           string
	Birthday          string
	InvestmentDate    string
	CoInvestors       []string
	NumberOfEmployees *int
	FirstTimeFounder  *bool
	InvestmentMemo    string
}

// NotionClient talks to the Notion v1 REST API
type NotionClient struct {
	apiClient
	databaseID     string
	templatePageID string
}

// NewNotionClient creates a Notion client
func NewNotionClient(cfg NotionConfig, logger *zap.Logger) *NotionClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.notion.com"
	}
	c := &NotionClient{
		apiClient:      newAPIClient("notion", cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger),
		databaseID:     cfg.DatabaseID,
		templatePageID: cfg.TemplatePageID,
	}
	c.headers["Notion-Version"] = NotionVersion
	return c
}

type notionPage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func text(s string) []map[string]any {
	return []map[string]any{{"text": map[string]string{"content": s}}}
}

// Properties converts a company into database property values. Empty fields are omitted.
func (p CompanyPage) Properties() map[string]any {
	props := map[string]any{
		"Name": map[string]any{"title": text(p.Name)},
	}
	if p.Website != "" {
		props["Website"] = map[string]any{"url": p.Website}
	}
	if p.Description != "" {
		props["Description"] = map[string]any{"rich_text": text(p.Description)}
	}
	if p.Address != "" {
		props["Address"] = map[string]any{"rich_text": text(p.Address)}
	}
	if p.Birthday != "" {
		props["Birthday"] = map[string]any{"date": map[string]string{"start": p.Birthday}}
	}
	if p.InvestmentDate != "" {
		props["Investment Date"] = map[string]any{"date": map[string]string{"start": p.InvestmentDate}}
	}
	if len(p.CoInvestors) > 0 {
		opts := make([]map[string]string, 0, len(p.CoInvestors))
		for _, name := range p.CoInvestors {
			opts = append(opts, map[string]string{"name": name})
		}
		props["Co-Investors"] = map[string]any{"multi_select": opts}
	}
	if p.NumberOfEmployees != nil {
		props["Number of Employees"] = map[string]any{"number": *p.NumberOfEmployees}
	}
	if p.FirstTimeFounder != nil {
		props["First Time Founder"] = map[string]any{"checkbox": *p.FirstTimeFounder}
	}
	if p.InvestmentMemo != "" {
		props["Investment Memo"] = map[string]any{"url": p.InvestmentMemo}
	}
	return props
}

// CreateCompanyPage adds a row to the portfolio database and returns its page ID
func (c *NotionClient) CreateCompanyPage(ctx context.Context, company CompanyPage) (string, error) {
	if c.databaseID == "" {
		return "", fmt.Errorf("notion database id: %w", ErrNotConfigured)
	}

	req := map[string]any{
		"parent":     map[string]string{"database_id": c.databaseID},
		"properties": company.Properties(),
	}
	var page notionPage
	if err := c.doJSON(ctx, "create page", http.MethodPost, "/v1/pages", req, &page); err != nil {
		return "", fmt.Errorf("failed to create notion page: %w", err)
	}

	c.logger.Info("Created Notion company page",
		zap.String("company", company.Name),
		zap.String("page_id", page.ID))
	return page.ID, nil
}

// CreateCompanyFolder creates the company's working page, under the template page
// when one is configured, otherwise with empty Notes, Updates and Contacts sections
func (c *NotionClient) CreateCompanyFolder(ctx context.Context, companyName string) (string, error) {
	parent := c.templatePageID
	if parent == "" {
		parent = c.databaseID
	}
	if parent == "" {
		return "", fmt.Errorf("notion parent page: %w", ErrNotConfigured)
	}

	req := map[string]any{
		"parent": map[string]string{"page_id": parent},
		"properties": map[string]any{
			"title": map[string]any{"title": text(companyName)},
		},
	}
	if c.templatePageID == "" {
		children := make([]map[string]any, 0, 3)
		for _, heading := range []string{"Notes", "Updates", "Contacts"} {
			children = append(children, map[string]any{
				"object":    "block",
				"type":      "heading_1",
				"heading_1": map[string]any{"rich_text": text(heading)},
			})
		}
		req["children"] = children
	}

	var page notionPage
	if err := c.doJSON(ctx, "create folder", http.MethodPost, "/v1/pages", req, &page); err != nil {
		return "", fmt.Errorf("failed to create notion folder: %w", err)
	}
	return page.ID, nil
}

// UpdateCompanyRecord writes the generated links and pipeline status back to the row
func (c *NotionClient) UpdateCompanyRecord(ctx context.Context, pageID, driveLink, docsendLink, status string) error {
	props := map[string]any{}
	if driveLink != "" {
		props["Google Drive Link"] = map[string]any{"url": driveLink}
	}
	if docsendLink != "" {
		props["DocSend Link"] = map[string]any{"url": docsendLink}
	}
	if status != "" {
		props["Status"] = map[string]any{"select": map[string]string{"name": status}}
	}
	if len(props) == 0 {
		return nil
	}

	req := map[string]any{"properties": props}
	if err := c.doJSON(ctx, "update page", http.MethodPatch, "/v1/pages/"+pageID, req, nil); err != nil {
		return fmt.Errorf("failed to update notion page %s: %w", pageID, err)
	}
	return nil
}

// FindCompanyByName returns the page ID of the row whose title equals name
func (c *NotionClient) FindCompanyByName(ctx context.Context, name string) (string, error) {
	if c.databaseID == "" {
		return "", fmt.Errorf("notion database id: %w", ErrNotConfigured)
	}

	req := map[string]any{
		"filter": map[string]any{
			"property": "Name",
			"title":    map[string]string{"equals": name},
		},
		"page_size": 1,
	}
	var resp struct {
		Results []notionPage `json:"results"`
	}
	if err := c.doJSON(ctx, "query database", http.MethodPost, "/v1/databases/"+c.databaseID+"/query", req, &resp); err != nil {
		return "", fmt.Errorf("failed to query notion database: %w", err)
	}
	if len(resp.Results) == 0 {
		return "", ErrCompanyNotFound
	}
	return resp.Results[0].ID, nil
}

// AppendNote adds a meeting note (heading plus paragraph) to a company page
func (c *NotionClient) AppendNote(ctx context.Context, pageID, title, content string) error {
	req := map[string]any{
		"children": []map[string]any{
			{"object": "block", "type": "heading_2", "heading_2": map[string]any{"rich_text": text(title)}},
			{"object": "block", "type": "paragraph", "paragraph": map[string]any{"rich_text": text(content)}},
		},
	}
	if err := c.doJSON(ctx, "append note", http.MethodPatch, "/v1/blocks/"+pageID+"/children", req, nil); err != nil {
		return fmt.Errorf("failed to append note to %s: %w", pageID, err)
	}
	return nil
}
