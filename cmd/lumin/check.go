package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/luminapp/lumin/internal/config"
	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v82/webhook"
)

var checkSignatureHeader string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check billing state and webhook payloads",
	Long:  `Inspect entitlement records in the configured store and verify webhook payloads offline.`,
}

var checkWebhookCmd = &cobra.Command{
	Use:   "webhook [flags] PAYLOAD_FILE",
	Short: "Verify a webhook payload signature offline",
	Long:  `Verify a saved Stripe webhook payload against the configured endpoint secret without touching storage.`,
	Example: `  lumin -c config.yaml check webhook --signature "t=...,v1=..." delivery.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckWebhook,
}

var checkEntitlementCmd = &cobra.Command{
	Use:   "entitlement USER_ID",
	Short: "Check a user's premium entitlement",
	Long:  `Look up the entitlement record for a user in the configured storage backend.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckEntitlement,
}

func init() {
	checkWebhookCmd.Flags().StringVar(&checkSignatureHeader, "signature", "", "Stripe-Signature header value (required)")
	checkWebhookCmd.MarkFlagRequired("signature")

	checkCmd.AddCommand(checkWebhookCmd)
	checkCmd.AddCommand(checkEntitlementCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckWebhook(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	payload, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	red := color.New(color.FgRed, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	event, err := webhook.ConstructEventWithOptions(payload, checkSignatureHeader, cfg.Stripe.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		red.Fprintf(os.Stdout, "❌ Signature verification failed: %v\n", err)
		return fmt.Errorf("invalid signature")
	}

	green.Fprintln(os.Stdout, "✅ Signature is valid")
	fmt.Fprintf(os.Stdout, "Event ID:   %s\n", event.ID)
	fmt.Fprintf(os.Stdout, "Event type: %s\n", event.Type)

	var object struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err == nil {
		if userID := object.Metadata["userId"]; userID != "" {
			fmt.Fprintf(os.Stdout, "User ID:    %s\n", userID)
		} else {
			color.New(color.FgYellow).Fprintln(os.Stdout, "Warning: no userId metadata; this delivery would be rejected.")
		}
	}

	return nil
}

func runCheckEntitlement(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	userID := args[0]
	ent, err := store.Entitlements().Get(ctx, userID)
	if err != nil {
		color.New(color.FgYellow).Fprintf(os.Stdout, "No entitlement record for user %s\n", userID)
		return nil
	}

	status := color.New(color.FgYellow)
	label := "free"
	if ent.Premium {
		status = color.New(color.FgGreen, color.Bold)
		label = "premium"
	}

	status.Fprintf(os.Stdout, "User %s is %s\n", userID, label)
	fmt.Fprintf(os.Stdout, "Email:       %s\n", ent.Email)
	if ent.StripeCustomerID != "" {
		fmt.Fprintf(os.Stdout, "Customer ID: %s\n", ent.StripeCustomerID)
	}
	fmt.Fprintf(os.Stdout, "Granted:     %s\n", ent.CreatedAt.Format(time.RFC3339))

	return nil
}
