package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for item identifiers.
	FieldItemID = "item_id"
	// FieldRunID is the standardized structured logging key for coordination run identifiers.
	FieldRunID = "run_id"
	// FieldSite is the standardized structured logging key for site identifiers.
	FieldSite = "site"
	// FieldTrigger is the standardized structured logging key for transition trigger names.
	FieldTrigger = "trigger"
	// FieldState is the standardized structured logging key for workflow state names.
	FieldState = "state"
	// FieldJobID is the standardized structured logging key for bulk job identifiers.
	FieldJobID = "job_id"
	// FieldUser is the standardized structured logging key for acting user names.
	FieldUser = "user"
)

type contextKey int

const (
	ctxKeyItemID contextKey = iota
	ctxKeyRunID
	ctxKeySite
)

// WithItemID records an item identifier on the context for log enrichment.
func WithItemID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyItemID, id)
}

// WithRunID records a coordination run identifier on the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRunID, id)
}

// WithSite records a site identifier on the context.
func WithSite(ctx context.Context, site string) context.Context {
	return context.WithValue(ctx, ctxKeySite, site)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ctx.Value(ctxKeyItemID).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldItemID, id))
	}
	if id, ok := ctx.Value(ctxKeyRunID).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if site, ok := ctx.Value(ctxKeySite).(string); ok && site != "" {
		fields = append(fields, slog.String(FieldSite, site))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
