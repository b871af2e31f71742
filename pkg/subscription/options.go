package subscription

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Options configures a subscription receiver
type Options struct {
	// Port to listen on. 0 picks a free port; see Manager.Addr.
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	Path string `yaml:"path"`

	// HTTPS serves TLS using TLSConfig or CertFile/KeyFile
	HTTPS     bool        `yaml:"https"`
	TLSConfig *tls.Config `yaml:"-"`
	CertFile  string      `yaml:"cert_file"`
	KeyFile   string      `yaml:"key_file"`

	AutoRegister bool              `yaml:"auto_register"`
	Namespace    string            `yaml:"namespace"`
	Events       []string          `yaml:"events"`
	BufferSize   int               `yaml:"buffer_size"`
	Headers      map[string]string `yaml:"headers"`

	VerifySignature bool   `yaml:"verify_signature"`
	SecretKey       string `yaml:"secret_key"`

	// PublicURL overrides the registration URL derived from Host, Port, and Path
	PublicURL string `yaml:"public_url"`
	// ReregisterInterval retries registration while none is held. 0 disables.
	ReregisterInterval time.Duration `yaml:"reregister_interval"`

	// DedupeWindow enables delivery id deduplication when > 0
	DedupeWindow time.Duration `yaml:"dedupe_window"`
	DedupeSize   int           `yaml:"dedupe_size"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// DefaultOptions returns options with sensible defaults
func DefaultOptions() Options {
	return Options{
		Port:            3001,
		Host:            "0.0.0.0",
		Path:            "/webhooks",
		AutoRegister:    true,
		Namespace:       "default",
		Events:          []string{"*"},
		BufferSize:      1000,
		DedupeSize:      10000,
		ShutdownTimeout: 5 * time.Second,
		MaxBodyBytes:    10 << 20,
	}
}

// Validate checks the options for errors
func (o Options) Validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfiguration, o.Port)
	}
	if !strings.HasPrefix(o.Path, "/") {
		return fmt.Errorf("%w: path %q must start with /", ErrConfiguration, o.Path)
	}
	if o.BufferSize < 0 {
		return fmt.Errorf("%w: buffer size must not be negative", ErrConfiguration)
	}
	if o.VerifySignature && o.SecretKey == "" {
		return fmt.Errorf("%w: verify_signature requires a secret key", ErrConfiguration)
	}
	if (o.CertFile == "") != (o.KeyFile == "") {
		return fmt.Errorf("%w: cert_file and key_file must be set together", ErrConfiguration)
	}
	if o.HTTPS && o.TLSConfig == nil && o.CertFile == "" {
		return fmt.Errorf("%w: https requires a TLS config or cert_file/key_file", ErrConfiguration)
	}
	if o.ReregisterInterval != 0 && o.ReregisterInterval < time.Second {
		return fmt.Errorf("%w: reregister interval must be at least 1s", ErrConfiguration)
	}
	if o.DedupeWindow < 0 {
		return fmt.Errorf("%w: dedupe window must not be negative", ErrConfiguration)
	}
	if o.DedupeWindow > 0 && o.DedupeSize <= 0 {
		return fmt.Errorf("%w: dedupe size must be positive when dedupe is enabled", ErrConfiguration)
	}
	return nil
}

func (o Options) tlsEnabled() bool {
	return o.HTTPS || o.TLSConfig != nil || o.CertFile != ""
}

func (o Options) listenAddr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// registrationURL builds the URL the remote service should deliver to.
// Wildcard bind hosts are replaced by localhost.
func (o Options) registrationURL(port int) string {
	if o.PublicURL != "" {
		return o.PublicURL
	}

	host := o.Host
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "localhost"
	}

	scheme := "http"
	if o.tlsEnabled() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)), o.Path)
}
