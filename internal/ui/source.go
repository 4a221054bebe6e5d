package ui

import (
	"context"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/pagination"
	"github.com/halcyonsec/triage-console/internal/store"
)

// Source is what the console needs from a backend: paged list reads plus the
// row-level mutations bound to keys. *api.Client satisfies it directly;
// StoreSource adapts the local database for offline browsing.
type Source interface {
	ListAlerts(ctx context.Context, req pagination.PageRequest) (pagination.Page[api.Alert], error)
	ListCases(ctx context.Context, req pagination.PageRequest) (pagination.Page[api.Case], error)
	UpdateAlert(ctx context.Context, alertID string, update api.AlertUpdate) error
	UpdateCase(ctx context.Context, caseID string, update api.CaseUpdate) error
	DeleteAlert(ctx context.Context, alertID string) error
	DeleteCase(ctx context.Context, caseID string) error
	ListTags(ctx context.Context) ([]api.Tag, error)
	AddAlertTag(ctx context.Context, alertID, tagID string) error
}

// TagCreator is implemented by sources that can create tags on the fly. The
// console falls back to existing tags only when the source lacks it.
type TagCreator interface {
	EnsureTag(ctx context.Context, name, color string) (api.Tag, error)
}

// StoreSource adapts the local SQLite store to the console's Source contract.
type StoreSource struct {
	Store *store.Store
}

func (s StoreSource) ListAlerts(ctx context.Context, req pagination.PageRequest) (pagination.Page[api.Alert], error) {
	return s.Store.ListAlerts(ctx, req)
}

func (s StoreSource) ListCases(ctx context.Context, req pagination.PageRequest) (pagination.Page[api.Case], error) {
	return s.Store.ListCases(ctx, req)
}

func (s StoreSource) UpdateAlert(ctx context.Context, alertID string, update api.AlertUpdate) error {
	return s.Store.UpdateAlert(ctx, alertID, update)
}

func (s StoreSource) UpdateCase(ctx context.Context, caseID string, update api.CaseUpdate) error {
	return s.Store.UpdateCase(ctx, caseID, update)
}

func (s StoreSource) DeleteAlert(ctx context.Context, alertID string) error {
	return s.Store.DeleteAlerts(ctx, []string{alertID})
}

func (s StoreSource) DeleteCase(ctx context.Context, caseID string) error {
	return s.Store.DeleteCases(ctx, []string{caseID})
}

func (s StoreSource) ListTags(ctx context.Context) ([]api.Tag, error) {
	return s.Store.ListTags(ctx)
}

func (s StoreSource) AddAlertTag(ctx context.Context, alertID, tagID string) error {
	return s.Store.TagAlert(ctx, alertID, tagID)
}

func (s StoreSource) EnsureTag(ctx context.Context, name, color string) (api.Tag, error) {
	return s.Store.EnsureTag(ctx, name, color)
}
