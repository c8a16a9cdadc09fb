package complaint

import (
	"strings"
	"time"

	"github.com/paridhisingla/unisync/core"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Statuses
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
	StatusRejected   = "rejected"
)

// Categories
const (
	CategoryHostel         = "hostel"
	CategoryLibrary        = "library"
	CategoryTransport      = "transport"
	CategoryAcademic       = "academic"
	CategoryFees           = "fees"
	CategoryInfrastructure = "infrastructure"
	CategoryOther          = "other"
)

var (
	resolutionDays = map[string]int{
		PriorityUrgent: 1,
		PriorityHigh:   3,
		PriorityMedium: 7,
		PriorityLow:    14,
	}
	defaultResolutionDays = 7

	transitions = map[string][]string{
		StatusOpen:       {StatusInProgress, StatusResolved, StatusRejected},
		StatusInProgress: {StatusResolved, StatusRejected},
		StatusResolved:   {StatusClosed, StatusInProgress},
		StatusRejected:   {StatusClosed},
		StatusClosed:     {},
	}
)

// ResolutionDays maps a priority to the number of days allowed to resolve a complaint.
// Unknown priorities get the medium delay.
func ResolutionDays(priority string) int {
	if days, ok := resolutionDays[priority]; ok {
		return days
	}
	return defaultResolutionDays
}

// ExpectedResolution returns the resolution deadline of a complaint created at createdAt.
func ExpectedResolution(createdAt time.Time, priority string) time.Time {
	return createdAt.AddDate(0, 0, ResolutionDays(priority))
}

// NormalizePriority lowers p and falls back to medium for unknown values.
func NormalizePriority(p string) string {
	p = core.CleanString(p, true /* lower */)
	if _, ok := resolutionDays[p]; ok {
		return p
	}
	return PriorityMedium
}

// CanTransition reports whether a complaint can move from one status to the other.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func isTerminal(status string) bool {
	return status == StatusResolved || status == StatusClosed || status == StatusRejected
}

type Complaint struct {
	ID                   string     `json:"id"`
	TicketID             string     `json:"ticket_id"`
	ComplainantID        string     `json:"complainant_id"`
	Category             string     `json:"category"`
	Subject              string     `json:"subject"`
	Description          string     `json:"description"`
	Priority             string     `json:"priority"`
	Status               string     `json:"status"`
	ResolutionNote       string     `json:"resolution_note"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	ExpectedResolutionAt time.Time  `json:"expected_resolution_at"`
	ResolvedAt           *time.Time `json:"resolved_at"`
	Overdue              bool       `json:"overdue"`
}

// IsOverdue reports whether c is still pending after its expected resolution date.
func (c Complaint) IsOverdue(now time.Time) bool {
	return !isTerminal(c.Status) && now.After(c.ExpectedResolutionAt)
}

// NewComplaint contains information needed to file a new Complaint.
type NewComplaint struct {
	Category    string `json:"category" validate:"required,oneof=hostel library transport academic fees infrastructure other"`
	Subject     string `json:"subject" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"required,notblank"`
	Priority    string `json:"priority"`
}

func (nc *NewComplaint) Clean() {
	nc.Category = core.CleanString(nc.Category, true /* lower */)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Description = strings.TrimSpace(nc.Description)
	nc.Priority = NormalizePriority(nc.Priority)
}

// UpdateStatus moves a Complaint along its workflow.
type UpdateStatus struct {
	Status         string `json:"status" validate:"required,oneof=open in_progress resolved closed rejected"`
	ResolutionNote string `json:"resolution_note"`
}

// UpdateComplaint holds the fields the complainant may edit while the complaint is open.
type UpdateComplaint struct {
	Subject     string `json:"subject" validate:"omitempty,notblank,max=200"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type QueryFilter struct {
	ComplainantID string `query:"-"`
	Status        string `query:"status"`
	Priority      string `query:"priority"`
	Category      string `query:"category"`
	TicketID      string `query:"ticket_id"`
	Search        string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Priority = core.CleanString(qf.Priority, true /* lower */)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.TicketID = core.CleanString(qf.TicketID)
	qf.Search = core.CleanString(qf.Search)
}
