// Package billing processes Stripe payment events into premium
// entitlements. The webhook processor verifies event signatures,
// extracts the paying user, and records the grant idempotently.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luminapp/lumin/internal/metrics"
	"github.com/luminapp/lumin/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrInvalidSignature is returned when the webhook signature check fails.
	// The payload is never parsed in that case.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMissingUserReference is returned when a checkout completion carries
	// no userId metadata, so the grant cannot be attributed to an account.
	ErrMissingUserReference = errors.New("event missing user reference")

	// ErrStoreUnavailable wraps storage failures during entitlement writes.
	// Callers should surface a retryable error so Stripe redelivers.
	ErrStoreUnavailable = errors.New("entitlement store unavailable")
)

// metadataUserKey is the checkout session metadata key carrying the user ID.
const metadataUserKey = "userId"

// Processor turns verified Stripe webhook events into entitlement grants.
type Processor struct {
	endpointSecret string
	entitlements   storage.EntitlementStore
	logger         zerolog.Logger
	listeners      []func(storage.UserEntitlement)
}

// NewProcessor creates a webhook processor backed by the given entitlement store.
func NewProcessor(endpointSecret string, entitlements storage.EntitlementStore, logger zerolog.Logger) *Processor {
	return &Processor{
		endpointSecret: endpointSecret,
		entitlements:   entitlements,
		logger:         logger.With().Str("component", "billing").Logger(),
	}
}

// OnEntitlementChange registers a listener invoked after every successful
// grant, including replays. Listeners must not block.
func (p *Processor) OnEntitlementChange(fn func(storage.UserEntitlement)) {
	p.listeners = append(p.listeners, fn)
}

// ProcessEvent verifies and handles a raw webhook delivery.
//
// Signature verification happens before anything else; a payload that fails
// it is never parsed and never touches storage. Unknown event types are
// acknowledged without action so Stripe does not retry them.
func (p *Processor) ProcessEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.endpointSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unverified", "invalid_signature").Inc()
		p.logger.Warn().Err(err).Msg("Webhook signature verification failed")
		return ErrInvalidSignature
	}

	eventType := string(event.Type)

	switch event.Type {
	case "checkout.session.completed":
		if err := p.handleCheckoutCompleted(ctx, event); err != nil {
			outcome := "error"
			if errors.Is(err, ErrMissingUserReference) {
				outcome = "missing_user"
			} else if errors.Is(err, ErrStoreUnavailable) {
				outcome = "store_unavailable"
			}
			metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
			return err
		}
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "granted").Inc()
		return nil

	case "invoice.paid", "invoice.payment_failed":
		// One-time purchases don't generate these, but log them in case a
		// subscription product is ever added to the same endpoint.
		p.logger.Info().Str("event_type", eventType).Str("event_id", event.ID).Msg("Ignoring invoice event")
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
		return nil

	default:
		p.logger.Debug().Str("event_type", eventType).Str("event_id", event.ID).Msg("Ignoring unknown event type")
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
		return nil
	}
}

func (p *Processor) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}

	userID := cs.Metadata[metadataUserKey]
	if userID == "" {
		p.logger.Error().Str("event_id", event.ID).Msg("Checkout session has no userId metadata")
		return ErrMissingUserReference
	}

	email := cs.CustomerEmail
	if email == "" && cs.CustomerDetails != nil {
		email = cs.CustomerDetails.Email
	}

	customerID := ""
	if cs.Customer != nil {
		customerID = cs.Customer.ID
	}

	ent := storage.UserEntitlement{
		UserID:           userID,
		Email:            email,
		Premium:          true,
		StripeCustomerID: customerID,
	}
	if err := p.entitlements.Upsert(ctx, ent); err != nil {
		p.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to store entitlement")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	metrics.PremiumGrants.Inc()
	p.logger.Info().
		Str("user_id", userID).
		Str("event_id", event.ID).
		Msg("Premium entitlement granted")

	stored, err := p.entitlements.Get(ctx, userID)
	if err != nil {
		// Grant succeeded; notify with what we wrote.
		stored = &ent
	}
	for _, fn := range p.listeners {
		fn(*stored)
	}

	return nil
}
