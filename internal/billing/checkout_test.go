package billing

import (
	"context"
	"testing"

	"github.com/luminapp/lumin/internal/config"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

func TestCheckoutCreateSession(t *testing.T) {
	cfg := config.StripeConfig{
		SecretKey:           "sk_test_123",
		ProductName:         "Lumin+ Premium",
		ProductDescription:  "Unlock everything",
		UnitAmountCents:     99,
		AllowPromotionCodes: true,
	}

	checkout := NewCheckout(cfg, "https://lumin.example.com", zerolog.Nop())

	var captured *stripe.CheckoutSessionParams
	checkout.create = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = params
		return &stripe.CheckoutSession{
			ID:  "cs_test_1",
			URL: "https://checkout.stripe.com/pay/cs_test_1",
		}, nil
	}

	url, err := checkout.CreateSession(context.Background(), "user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if url != "https://checkout.stripe.com/pay/cs_test_1" {
		t.Errorf("Unexpected checkout URL: %s", url)
	}

	if captured == nil {
		t.Fatal("Expected session params to be captured")
	}
	if got := captured.Metadata["userId"]; got != "user-1" {
		t.Errorf("Expected userId metadata, got %q", got)
	}
	if got := captured.Metadata["productType"]; got != "lumin_plus" {
		t.Errorf("Expected productType metadata, got %q", got)
	}
	if got := stripe.StringValue(captured.CustomerEmail); got != "alice@example.com" {
		t.Errorf("Expected customer email, got %q", got)
	}
	if got := stripe.StringValue(captured.SuccessURL); got != "https://lumin.example.com/?success=true&session_id={CHECKOUT_SESSION_ID}" {
		t.Errorf("Unexpected success URL: %s", got)
	}
	if got := stripe.StringValue(captured.CancelURL); got != "https://lumin.example.com/?canceled=true" {
		t.Errorf("Unexpected cancel URL: %s", got)
	}
	if len(captured.LineItems) != 1 {
		t.Fatalf("Expected one line item, got %d", len(captured.LineItems))
	}
	item := captured.LineItems[0]
	if got := stripe.Int64Value(item.PriceData.UnitAmount); got != 99 {
		t.Errorf("Expected 99 cent price, got %d", got)
	}
	if got := stripe.StringValue(item.PriceData.ProductData.Name); got != "Lumin+ Premium" {
		t.Errorf("Unexpected product name: %s", got)
	}
	if !stripe.BoolValue(captured.AllowPromotionCodes) {
		t.Error("Expected promotion codes allowed")
	}
}
