// Package audit forwards security events to a pluggable sink without ever
// blocking or failing the request that produced them.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event is one recorded security-relevant action.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      string            `json:"kind"`
	UserID    string            `json:"user_id,omitempty"`
	ClientID  string            `json:"client_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Event kinds emitted by the core.
const (
	KindSignin        = "signin"
	KindAuthorize     = "authorize"
	KindTokenRevoke   = "token_revoke"
	KindDeviceApprove = "device_approve"
)

// Sink receives dispatched events.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Record(context.Context, Event) {}

// SlogSink logs each event at info level. The default sink in development.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Record(_ context.Context, event Event) {
	if s.Logger == nil {
		return
	}
	s.Logger.Info("audit event",
		slog.String("kind", event.Kind),
		slog.String("user_id", event.UserID),
		slog.String("client_id", event.ClientID),
		slog.String("ip", event.IP),
		slog.Bool("success", event.Success),
	)
}
