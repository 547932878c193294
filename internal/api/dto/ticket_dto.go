package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	TemplateID string         `json:"template_id"`
	FormData   map[string]any `json:"form_data"`
	Priority   string         `json:"priority"`
}

// UpdateTicketRequest carries any subset of the mutable fields.
type UpdateTicketRequest struct {
	Status   *string        `json:"status"`
	Priority *string        `json:"priority"`
	FormData map[string]any `json:"form_data"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	HelpdeskID string `json:"helpdesk_id"`
}

// ToInput validates enums at the boundary.
func (r CreateTicketRequest) ToInput() (service.CreateTicketInput, []domain.FieldIssue) {
	input := service.CreateTicketInput{TemplateID: r.TemplateID, FormData: domain.FormData(r.FormData)}
	var issues []domain.FieldIssue
	if r.Priority != "" {
		p, err := domain.ParseTicketPriority(r.Priority)
		if err != nil {
			issues = append(issues, domain.FieldIssue{Field: "priority", Reason: err.Error()})
		}
		input.Priority = p
	}
	return input, issues
}

// ToPatch validates enums at the boundary.
func (r UpdateTicketRequest) ToPatch() (service.TicketPatch, []domain.FieldIssue) {
	var (
		patch  service.TicketPatch
		issues []domain.FieldIssue
	)
	if r.Status != nil {
		s, err := domain.ParseTicketStatus(*r.Status)
		if err != nil {
			issues = append(issues, domain.FieldIssue{Field: "status", Reason: err.Error()})
		} else {
			patch.Status = &s
		}
	}
	if r.Priority != nil {
		p, err := domain.ParseTicketPriority(*r.Priority)
		if err != nil {
			issues = append(issues, domain.FieldIssue{Field: "priority", Reason: err.Error()})
		} else {
			patch.Priority = &p
		}
	}
	if r.FormData != nil {
		patch.FormData = domain.FormData(r.FormData)
	}
	return patch, issues
}

// TicketSummary response.
type TicketSummary struct {
	ID             string                `json:"id"`
	FormTemplateID string                `json:"form_template_id"`
	SubmittedBy    string                `json:"submitted_by"`
	FormData       map[string]any        `json:"form_data"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// AssignmentResponse describes who handles a ticket.
type AssignmentResponse struct {
	HelpdeskID string    `json:"helpdesk_id"`
	AssignedBy string    `json:"assigned_by"`
	Helpdesk   *UserRef  `json:"helpdesk"`
	AssignedAt time.Time `json:"assigned_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Template   *TemplateResponse   `json:"template"`
	Submitter  *UserRef            `json:"submitter"`
	Assignment *AssignmentResponse `json:"assignment"`
}

// NewTicketSummary converts a domain ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	data := map[string]any(t.FormData)
	if data == nil {
		data = map[string]any{}
	}
	return TicketSummary{
		ID:             t.ID,
		FormTemplateID: t.FormTemplateID,
		SubmittedBy:    t.SubmittedBy,
		FormData:       data,
		Status:         t.Status,
		Priority:       t.Priority,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// NewTicketDetail converts a hydrated ticket.
func NewTicketDetail(d *domain.TicketDetail) TicketDetailResponse {
	out := TicketDetailResponse{
		TicketSummary: NewTicketSummary(&d.Ticket),
		Submitter:     NewUserRef(d.Submitter),
	}
	if d.Template != nil {
		tpl := NewTemplateResponse(d.Template)
		out.Template = &tpl
	}
	if d.Assignment != nil {
		out.Assignment = &AssignmentResponse{
			HelpdeskID: d.Assignment.HelpdeskID,
			AssignedBy: d.Assignment.AssignedBy,
			Helpdesk:   NewUserRef(d.Helpdesk),
			AssignedAt: d.Assignment.UpdatedAt,
		}
	}
	return out
}

// AuditEntryResponse is one audit trail row. Its camelCase keys are the
// contract existing clients read.
type AuditEntryResponse struct {
	ID            string             `json:"id"`
	Action        domain.AuditAction `json:"action"`
	PreviousValue *string            `json:"previousValue"`
	NewValue      *string            `json:"newValue"`
	Details       string             `json:"details"`
	CreatedAt     time.Time          `json:"createdAt"`
	User          *UserRef           `json:"user"`
}

// AuditTrailResponse wraps the trail.
type AuditTrailResponse struct {
	AuditTrail []AuditEntryResponse  `json:"auditTrail"`
	Replay     *service.ReplayResult `json:"replay,omitempty"`
}

// NewAuditTrailResponse converts trail items.
func NewAuditTrailResponse(items []domain.AuditTrailItem) AuditTrailResponse {
	out := AuditTrailResponse{AuditTrail: make([]AuditEntryResponse, 0, len(items))}
	for _, item := range items {
		out.AuditTrail = append(out.AuditTrail, AuditEntryResponse{
			ID:            item.Entry.ID,
			Action:        item.Entry.Action,
			PreviousValue: item.Entry.PreviousValue,
			NewValue:      item.Entry.NewValue,
			Details:       item.Entry.Details,
			CreatedAt:     item.Entry.CreatedAt,
			User:          NewUserRef(item.Actor),
		})
	}
	return out
}
