// Package acme obtains TLS certificates from Let's Encrypt using the
// DNS-01 challenge. The Stripe webhook endpoint must be served over
// HTTPS with a certificate Stripe trusts, so deployments without a
// reverse proxy use this to provision one.
package acme

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/providers/dns"
	"github.com/go-acme/lego/v4/registration"
	"github.com/rs/zerolog"
)

// Config holds ACME client configuration.
type Config struct {
	Email       string // Let's Encrypt account email
	DNSProvider string // DNS provider name, e.g. "cloudflare"
	CertPath    string // where to store the certificate
	KeyPath     string // where to store the private key
	CADirURL    string // ACME directory URL
	Domain      string // domain to obtain a certificate for
}

// User implements the ACME user interface.
type User struct {
	Email        string
	Registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *User) GetEmail() string {
	return u.Email
}

func (u *User) GetRegistration() *registration.Resource {
	return u.Registration
}

func (u *User) GetPrivateKey() crypto.PrivateKey {
	return u.key
}

// Client manages ACME certificate acquisition.
type Client struct {
	config Config
	logger zerolog.Logger
}

// NewClient creates a new ACME client.
func NewClient(config Config, logger zerolog.Logger) *Client {
	return &Client{
		config: config,
		logger: logger.With().Str("component", "acme").Logger(),
	}
}

// ObtainCertificate acquires a certificate via DNS-01 and writes the
// cert and key to the configured paths.
func (c *Client) ObtainCertificate() error {
	// lego logs through the standard log package; route it to zerolog.
	log.SetOutput(&legoLogWriter{logger: c.logger})
	log.SetFlags(log.LstdFlags)

	c.logger.Info().
		Str("domain", c.config.Domain).
		Str("dns_provider", c.config.DNSProvider).
		Str("ca_url", c.config.CADirURL).
		Msg("Starting ACME certificate acquisition")

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate account key: %w", err)
	}

	user := &User{
		Email: c.config.Email,
		key:   privateKey,
	}

	legoConfig := lego.NewConfig(user)
	legoConfig.CADirURL = c.config.CADirURL
	legoConfig.Certificate.KeyType = certcrypto.RSA2048

	client, err := lego.NewClient(legoConfig)
	if err != nil {
		return fmt.Errorf("create ACME client: %w", err)
	}

	provider, err := c.getDNSProvider()
	if err != nil {
		return err
	}

	if err := client.Challenge.SetDNS01Provider(provider); err != nil {
		return fmt.Errorf("set DNS provider: %w", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return fmt.Errorf("register ACME account: %w", err)
	}
	user.Registration = reg

	request := certificate.ObtainRequest{
		Domains: []string{c.config.Domain},
		Bundle:  true,
	}

	certificates, err := client.Certificate.Obtain(request)
	if err != nil {
		return fmt.Errorf("obtain certificate: %w", err)
	}

	c.logger.Info().
		Str("domain", certificates.Domain).
		Str("cert_url", certificates.CertURL).
		Msg("Certificate obtained")

	if err := c.saveCertificates(certificates); err != nil {
		return fmt.Errorf("save certificates: %w", err)
	}

	c.logger.Info().
		Str("cert_path", c.config.CertPath).
		Str("key_path", c.config.KeyPath).
		Msg("Certificates saved")

	return nil
}

// getDNSProvider creates a DNS provider from environment variables.
func (c *Client) getDNSProvider() (challenge.Provider, error) {
	provider, err := dns.NewDNSChallengeProviderByName(c.config.DNSProvider)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("provider", c.config.DNSProvider).
			Msg("Failed to create DNS provider - ensure its environment variables are set")
		return nil, fmt.Errorf("create DNS provider %q: %w", c.config.DNSProvider, err)
	}

	return provider, nil
}

// legoLogWriter redirects lego's standard log output to zerolog.
type legoLogWriter struct {
	logger zerolog.Logger
}

func (w *legoLogWriter) Write(p []byte) (n int, err error) {
	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}

	w.logger.Info().Str("source", "lego").Msg(msg)

	return len(p), nil
}

func (c *Client) saveCertificates(certs *certificate.Resource) error {
	certDir := filepath.Dir(c.config.CertPath)
	keyDir := filepath.Dir(c.config.KeyPath)

	if err := os.MkdirAll(certDir, 0755); err != nil {
		return fmt.Errorf("create cert directory: %w", err)
	}
	if certDir != keyDir {
		if err := os.MkdirAll(keyDir, 0755); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}

	if err := os.WriteFile(c.config.CertPath, certs.Certificate, 0644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(c.config.KeyPath, certs.PrivateKey, 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	return nil
}
