package commissioner_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcop/commissioner-go/pkg/commissioner"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Minimal(t *testing.T) {
	path := writeConfig(t, `{
		"Id": "TestComm",
		"PSKc": "00112233445566778899aabbccddeeff"
	}`)

	cfg, err := commissioner.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "TestComm", cfg.Id)
	assert.Equal(t, 40*time.Second, cfg.KeepAlive())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint32(commissioner.DefaultMaxConnectionNum), cfg.MaxConnectionNum)
}

func TestLoadConfig_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `{
		"Id": "TestComm",
		"PSKc": "00112233445566778899aabbccddeeff",
		"Bogus": true
	}`)

	_, err := commissioner.LoadConfig(path)
	assert.ErrorIs(t, err, commissioner.ErrInvalidArgs)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := commissioner.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, commissioner.ErrIO)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*commissioner.Config)
		ok   bool
	}{
		{"valid", func(*commissioner.Config) {}, true},
		{"empty id", func(c *commissioner.Config) { c.Id = "" }, false},
		{"id too long", func(c *commissioner.Config) {
			c.Id = string(make([]byte, 65))
		}, false},
		{"bad log level", func(c *commissioner.Config) { c.LogLevel = "verbose" }, false},
		{"ccm without domain", func(c *commissioner.Config) { c.EnableCcm = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mut(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, commissioner.ErrInvalidArgs)
			}
		})
	}
}

func TestLoadCredentials_PSKc(t *testing.T) {
	cfg := testConfig()
	creds, err := cfg.LoadCredentials()
	require.NoError(t, err)
	assert.Len(t, creds.PSKc, 16)
}

func TestLoadCredentials_BadPSKcIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.PSKc = "zz"
	_, err := cfg.LoadCredentials()
	assert.ErrorIs(t, err, commissioner.ErrSecurity)
}

func TestLoadCredentials_MissingPSKcIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.PSKc = ""
	_, err := cfg.LoadCredentials()
	assert.ErrorIs(t, err, commissioner.ErrSecurity)
}

func TestLoadCredentials_CcmNeedsAllCredentialFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("-----BEGIN X-----\n"), 0600))
		return path
	}

	cfg := commissioner.Config{
		Id:              "CcmComm",
		EnableCcm:       true,
		DomainName:      "TestDomain",
		PrivateKeyFile:  write("key.pem"),
		CertificateFile: write("cert.pem"),
	}

	// Trust anchor missing.
	_, err := cfg.LoadCredentials()
	assert.ErrorIs(t, err, commissioner.ErrSecurity)

	cfg.TrustAnchorFile = write("ca.pem")
	creds, err := cfg.LoadCredentials()
	require.NoError(t, err)
	// NUL-terminated PEM blobs.
	assert.Equal(t, byte(0), creds.Certificate[len(creds.Certificate)-1])
}

func TestNew_CredentialFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.PSKc = "not-hex"
	_, err := commissioner.New(cfg, &fakeDialer{transport: newFakeTransport()}, nil)
	assert.Error(t, err)
}
