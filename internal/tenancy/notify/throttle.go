package notify

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled wraps a Sender with a process-wide rate limit so a burst of
// invitations (bulk onboarding, resend storms) cannot flood the delivery
// backend. Waits respect the caller's context deadline.
type Throttled struct {
	next    Sender
	limiter *rate.Limiter
}

// NewThrottled allows sustained perSecond sends with the given burst.
func NewThrottled(next Sender, perSecond float64, burst int) *Throttled {
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *Throttled) SendInvitationEmail(ctx context.Context, email InvitationEmail) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.SendInvitationEmail(ctx, email)
}
