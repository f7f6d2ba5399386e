package billing

import (
	"context"
	"fmt"

	"github.com/luminapp/lumin/internal/config"
	"github.com/luminapp/lumin/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// productType tags every checkout session so webhook handlers can tell
// what was purchased.
const productType = "lumin_plus"

// Checkout creates Stripe Checkout sessions for the one-time premium upgrade.
type Checkout struct {
	cfg     config.StripeConfig
	baseURL string
	logger  zerolog.Logger

	// create is swapped out in tests to avoid calling the live API.
	create func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewCheckout configures the Stripe client and returns a session factory.
// baseURL is the public origin the user is redirected back to.
func NewCheckout(cfg config.StripeConfig, baseURL string, logger zerolog.Logger) *Checkout {
	stripe.Key = cfg.SecretKey

	return &Checkout{
		cfg:     cfg,
		baseURL: baseURL,
		logger:  logger.With().Str("component", "checkout").Logger(),
		create:  session.New,
	}
}

// CreateSession starts a checkout for the given user and returns the
// hosted payment page URL.
func (c *Checkout) CreateSession(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(c.cfg.UnitAmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(c.cfg.ProductName),
						Description: stripe.String(c.cfg.ProductDescription),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(c.baseURL + "/?success=true&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(c.baseURL + "/?canceled=true"),
		CustomerEmail: stripe.String(email),
	}
	if c.cfg.AllowPromotionCodes {
		params.AllowPromotionCodes = stripe.Bool(true)
	}
	params.AddMetadata(metadataUserKey, userID)
	params.AddMetadata("productType", productType)

	sess, err := c.create(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	metrics.CheckoutSessionsCreated.Inc()
	c.logger.Info().Str("user_id", userID).Str("session_id", sess.ID).Msg("Checkout session created")

	return sess.URL, nil
}
