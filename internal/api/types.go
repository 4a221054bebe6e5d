package api

import "time"

// Alert status values, aligned with the service's incident-finding statuses.
const (
	StatusUnknown    = "unknown"
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusOnHold     = "on_hold"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
	StatusOther      = "other"
)

// Priority values.
const (
	PriorityUnknown  = "unknown"
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
	PriorityOther    = "other"
)

// Severity values.
const (
	SeverityUnknown       = "unknown"
	SeverityInformational = "informational"
	SeverityLow           = "low"
	SeverityMedium        = "medium"
	SeverityHigh          = "high"
	SeverityCritical      = "critical"
	SeverityFatal         = "fatal"
	SeverityOther         = "other"
)

// Statuses lists the selectable alert statuses in display order.
var Statuses = []string{StatusNew, StatusInProgress, StatusOnHold, StatusResolved, StatusClosed}

// Priorities lists the selectable priorities in display order.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Severities lists the selectable severities in display order.
var Severities = []string{SeverityInformational, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityFatal}

// Tag is a workspace label attached to alerts and cases.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Alert is the minimal read model the list endpoints return. Detail panels
// fetch the full record separately; list views only need what fits in a row.
type Alert struct {
	ID        string    `json:"id"`
	ShortID   string    `json:"short_id"`
	Summary   string    `json:"summary"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	Severity  string    `json:"severity"`
	Tags      []Tag     `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Case is the minimal read model for case list views.
type Case struct {
	ID        string    `json:"id"`
	ShortID   string    `json:"short_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Priority  string    `json:"priority"`
	Severity  string    `json:"severity"`
	Tags      []Tag     `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AlertUpdate carries the mutable alert fields; nil means "leave unchanged".
type AlertUpdate struct {
	Summary     *string `json:"summary,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Severity    *string `json:"severity,omitempty"`
}

// CaseUpdate carries the mutable case fields; nil means "leave unchanged".
type CaseUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Severity    *string `json:"severity,omitempty"`
}

// String returns a pointer to s, for building sparse update payloads.
func String(s string) *string {
	return &s
}
