// Package audit emits structured audit events for grant lifecycle
// decisions. Events go to the service log today; the sink can move to
// durable storage without touching call sites.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/camly-social/camly-idp/internal/observability/logger"
)

// Event names recorded by the provider.
const (
	ConsentGranted    = "consent.granted"
	ConsentDenied     = "consent.denied"
	CodeIssued        = "code.issued"
	TokenIssued       = "token.issued"
	RefreshReplayed   = "token.refresh_replayed"
	FamilyRevoked     = "token.family_revoked"
	ClientAuthFailure = "client.auth_failed"
)

// Log writes one audit event with the request-scoped logger.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	logger.From(ctx).With(zap.String("audit_event", event)).Info("audit", fields...)
}
