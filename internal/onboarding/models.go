package onboarding

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"portfolio-slides/slide-service/pkg/workflows"
)

var (
	// ErrSubmissionNotFound is returned when no submission has the requested ID
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrInvalidPayload is returned for webhook bodies that cannot be parsed
	ErrInvalidPayload = errors.New("invalid onboarding payload")
)

// SubmissionStatus is the lifecycle state of a pipeline run
type SubmissionStatus string

const (
	StatusPending    SubmissionStatus = "pending"
	StatusProcessing SubmissionStatus = "processing"
	StatusCompleted  SubmissionStatus = "completed"
	StatusFailed     SubmissionStatus = "failed"
)

// lifecycle allows re-running finished submissions but never one in flight
var lifecycle = workflows.NewStateMachine(map[string][]string{
	string(StatusPending):    {string(StatusProcessing)},
	string(StatusProcessing): {string(StatusCompleted), string(StatusFailed)},
	string(StatusFailed):     {string(StatusProcessing)},
	string(StatusCompleted):  {string(StatusProcessing)},
})

// ValidateTransition returns an error unless the status may move to next
func (s SubmissionStatus) ValidateTransition(next SubmissionStatus) error {
	return lifecycle.Transition(string(s), string(next))
}

// runnableFrom lists the statuses a pipeline run may start from
func runnableFrom() []SubmissionStatus {
	var out []SubmissionStatus
	for _, st := range []SubmissionStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if lifecycle.CanTransition(string(st), string(StatusProcessing)) {
			out = append(out, st)
		}
	}
	return out
}

// RawJSON is a JSONB column kept as raw bytes
type RawJSON []byte

// Value implements driver.Valuer
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner
func (j *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = RawJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into RawJSON", value)
	}
	return nil
}

// MarshalJSON embeds the payload as JSON rather than base64
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Submission is one persisted onboarding run
type Submission struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	CompanyName  string           `json:"company_name" db:"company_name"`
	Payload      RawJSON          `json:"-" db:"payload"`
	Status       SubmissionStatus `json:"status" db:"status"`
	Attempts     int              `json:"attempts" db:"attempts"`
	LastError    string           `json:"last_error,omitempty" db:"last_error"`
	DriveLink    string           `json:"google_drive_link,omitempty" db:"drive_link"`
	DocSendLink  string           `json:"docsend_link,omitempty" db:"docsend_link"`
	NotionPageID string           `json:"notion_page_id,omitempty" db:"notion_page_id"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// PipelineResult is the webhook response
type PipelineResult struct {
	Success         bool      `json:"success"`
	SubmissionID    uuid.UUID `json:"submission_id"`
	GoogleDriveLink *string   `json:"google_drive_link"`
	DocSendLink     *string   `json:"docsend_link"`
	NotionPageID    *string   `json:"notion_page_id"`
	NotionFolderID  *string   `json:"notion_folder_id,omitempty"`
	MasterDeckLink  *string   `json:"master_deck_link,omitempty"`
	Errors          []string  `json:"errors"`
	Degraded        []string  `json:"degraded,omitempty"`
}

func (r *PipelineResult) fail(step string, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", step, err))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SubmissionFilters narrows ListSubmissions
type SubmissionFilters struct {
	Status      *SubmissionStatus
	MaxAttempts int
	Limit       int
}
