package ingest

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"cef-relay/internal/errors"
)

var (
	// ErrCertRequired is returned when a TLS or DTLS listener has no
	// certificate and key.
	ErrCertRequired = errors.New("certificate and key required")
	// ErrClientCertRequired is returned when mutual TLS has no CA file.
	ErrClientCertRequired = errors.New("mutual TLS requires CA certificate")
)

// TLSConfig names the certificate material for a TLS or DTLS endpoint.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	// CAFile verifies the peer: client certificates on listeners, the
	// server certificate on dialers.
	CAFile string
	// RequireClientCert enables mutual TLS on listeners.
	RequireClientCert bool
	// ServerName overrides the name checked against the server
	// certificate when dialing.
	ServerName string
	// InsecureSkipVerify disables server verification when dialing.
	InsecureSkipVerify bool
}

func loadCertPool(file string) (*x509.CertPool, error) {
	caData, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caData) {
		return nil, fmt.Errorf("failed to parse CA certificate %s", file)
	}
	return pool, nil
}

// serverTLS builds the listener side configuration.
func serverTLS(cfg TLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, ErrCertRequired
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.RequireClientCert {
		if cfg.CAFile == "" {
			return nil, ErrClientCertRequired
		}
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsConfig, nil
}

// clientTLS builds the dialer side configuration.
func clientTLS(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
