package commissioner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/meshcop/commissioner-go/pkg/security"
)

// Configuration defaults.
const (
	DefaultKeepAliveInterval = 40 * time.Second
	DefaultMaxConnectionNum  = 100
	DefaultLogLevel          = "info"

	// MaxCommissionerIdLength bounds the operator-chosen Commissioner
	// ID TLV value.
	MaxCommissionerIdLength = 64
)

// Config is the commissioner configuration file schema. Unknown keys
// are rejected during load.
type Config struct {
	// Id is the operator-chosen commissioner identifier, at most 64
	// bytes long.
	Id string

	// EnableCcm selects Commercial Commissioning Mode; the commissioner
	// then authenticates with X.509 credentials instead of the PSKc.
	EnableCcm bool

	// DomainName is the Thread domain this commissioner manages (CCM).
	DomainName string

	// PSKc is the pre-shared commissioner key as a 32-character hex
	// string.
	PSKc string

	// PrivateKeyFile, CertificateFile and TrustAnchorFile locate the
	// PEM credentials used in CCM mode.
	PrivateKeyFile  string
	CertificateFile string
	TrustAnchorFile string

	// KeepAliveInterval is the LEAD_KA.req period in seconds.
	KeepAliveInterval uint32

	// MaxConnectionNum bounds concurrent DTLS connections.
	MaxConnectionNum uint32

	// LogLevel is one of off|critical|error|warn|info|debug.
	LogLevel string

	// LogFile receives the commissioner log.
	LogFile string
}

// Credentials is the loaded key material derived from a Config.
type Credentials struct {
	// PSKc is the decoded pre-shared key (16 bytes when set).
	PSKc []byte

	// PrivateKey, Certificate and TrustAnchor are NUL-terminated PEM
	// blobs for CCM mode; empty when the file was not configured.
	PrivateKey  []byte
	Certificate []byte
	TrustAnchor []byte
}

// LoadConfig reads and validates a configuration file. A document with
// keys the schema does not define is rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: reading config %s: %v", ErrIO, path, err)
	}

	cfg := Config{
		KeepAliveInterval: uint32(DefaultKeepAliveInterval / time.Second),
		MaxConnectionNum:  DefaultMaxConnectionNum,
		LogLevel:          DefaultLogLevel,
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parsing config %s: %v", ErrInvalidArgs, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the field invariants.
func (c Config) Validate() error {
	if c.Id == "" {
		return fmt.Errorf("%w: commissioner Id must not be empty", ErrInvalidArgs)
	}
	if len(c.Id) > MaxCommissionerIdLength {
		return fmt.Errorf("%w: commissioner Id %q exceeds %d bytes", ErrInvalidArgs, c.Id, MaxCommissionerIdLength)
	}
	switch c.LogLevel {
	case "", "off", "critical", "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidArgs, c.LogLevel)
	}
	if c.EnableCcm && c.DomainName == "" {
		return fmt.Errorf("%w: CCM mode needs a DomainName", ErrInvalidArgs)
	}
	return nil
}

// KeepAlive returns the keepalive period as a duration.
func (c Config) KeepAlive() time.Duration {
	if c.KeepAliveInterval == 0 {
		return DefaultKeepAliveInterval
	}
	return time.Duration(c.KeepAliveInterval) * time.Second
}

// LoadCredentials resolves the key material the configuration names.
// Failures here are fatal to session creation.
func (c Config) LoadCredentials() (Credentials, error) {
	var creds Credentials

	if c.PSKc != "" {
		pskc, err := security.DecodeHexString(c.PSKc)
		if err != nil {
			return Credentials{}, fmt.Errorf("%w: PSKc: %v", ErrSecurity, err)
		}
		creds.PSKc = pskc
	}

	load := func(path, what string) ([]byte, error) {
		if path == "" {
			return nil, nil
		}
		data, err := security.ReadPemFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSecurity, what, err)
		}
		return data, nil
	}

	var err error
	if creds.PrivateKey, err = load(c.PrivateKeyFile, "private key"); err != nil {
		return Credentials{}, err
	}
	if creds.Certificate, err = load(c.CertificateFile, "certificate"); err != nil {
		return Credentials{}, err
	}
	if creds.TrustAnchor, err = load(c.TrustAnchorFile, "trust anchor"); err != nil {
		return Credentials{}, err
	}

	if c.EnableCcm && (creds.PrivateKey == nil || creds.Certificate == nil || creds.TrustAnchor == nil) {
		return Credentials{}, fmt.Errorf("%w: CCM mode needs private key, certificate and trust anchor", ErrSecurity)
	}
	if !c.EnableCcm && creds.PSKc == nil {
		return Credentials{}, fmt.Errorf("%w: non-CCM mode needs a PSKc", ErrSecurity)
	}
	return creds, nil
}
