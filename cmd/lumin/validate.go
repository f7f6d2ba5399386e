package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/luminapp/lumin/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Lumin configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	green := color.New(color.FgGreen)
	green.Fprintf(os.Stdout, "\nStorage backend: %s\n", cfg.Storage.Type)
	if cfg.Stripe.WebhookSecret == "" {
		yellow := color.New(color.FgYellow)
		yellow.Fprintln(os.Stdout, "Note: stripe.webhook_secret is empty; webhook deliveries will be rejected.")
	}
	if cfg.TLS.Enabled {
		green.Fprintf(os.Stdout, "TLS: enabled (lets_encrypt=%v)\n", cfg.TLS.UseLetsEncrypt)
	}

	return nil
}

// findUnknownKeys compares the keys present in the config file against
// the keys the application knows about.
func findUnknownKeys(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, nil
		}
		return nil, err
	}

	known := map[string]bool{}
	kv := viper.New()
	config.SetDefaults(kv)
	for _, key := range kv.AllKeys() {
		known[key] = true
	}
	// Keys without defaults still belong to the schema.
	for _, key := range []string{
		"server.name", "server.base_url",
		"storage.redis.password",
		"auth.jwt_secret",
		"stripe.secret_key", "stripe.webhook_secret",
		"tls.lego_email", "tls.lego_dns_provider",
	} {
		known[key] = true
	}

	var unknown []string
	for _, key := range v.AllKeys() {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	return unknown, nil
}
