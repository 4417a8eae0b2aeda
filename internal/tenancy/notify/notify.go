// Package notify defines the out-of-band notification contract the
// invitation engine depends on. Delivery (SMTP, SES, SMS gateways) lives
// with the embedder; the engine only hands over a fully-built payload and
// surfaces delivery failures to its caller.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/tenantkit/tenantkit/pkg/slogx"
)

// InvitationEmail carries everything a delivery backend needs to render and
// send an invitation, including a pre-built accept link.
type InvitationEmail struct {
	InvitationID     string
	Email            string
	InviterID        string
	OrganizationID   string
	OrganizationName string
	Roles            []string
	AcceptLink       string
	ExpiresAt        time.Time
}

// Sender delivers invitation emails out-of-band.
type Sender interface {
	SendInvitationEmail(ctx context.Context, email InvitationEmail) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, email InvitationEmail) error

func (f SenderFunc) SendInvitationEmail(ctx context.Context, email InvitationEmail) error {
	return f(ctx, email)
}

// LogSender writes the notification to the log instead of delivering it.
// Useful for dev environments and as a wiring default.
type LogSender struct{}

func (LogSender) SendInvitationEmail(ctx context.Context, email InvitationEmail) error {
	slogx.FromContext(ctx).Info("invitation email",
		slog.String("invitation_id", email.InvitationID),
		slog.String("email", email.Email),
		slog.String("organization_id", email.OrganizationID),
		slog.String("accept_link", email.AcceptLink),
		slog.Time("expires_at", email.ExpiresAt),
	)
	return nil
}
