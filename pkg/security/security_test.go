package security_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcop/commissioner-go/pkg/security"
)

func TestDerivePSKc_Deterministic(t *testing.T) {
	extPanId := []byte{0xDE, 0xAD, 0x00, 0xBE, 0xEF, 0x00, 0xCA, 0xFE}

	a := security.DerivePSKc("J01NME", "openthread", extPanId)
	b := security.DerivePSKc("J01NME", "openthread", extPanId)

	require.Len(t, a, 16)
	assert.Equal(t, a, b)
}

func TestDerivePSKc_SaltSensitivity(t *testing.T) {
	extPanId := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	base := security.DerivePSKc("secret", "net-a", extPanId)
	assert.NotEqual(t, base, security.DerivePSKc("secret", "net-b", extPanId))
	assert.NotEqual(t, base, security.DerivePSKc("other", "net-a", extPanId))
}

func TestDecodeHexString(t *testing.T) {
	got, err := security.DecodeHexString(" 3a\n4F\t00 ")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x3A, 0x4F, 0x00}, got)
}

func TestDecodeHexString_OddLength(t *testing.T) {
	_, err := security.DecodeHexString("ABC")
	assert.ErrorIs(t, err, security.ErrOddHexLength)
}

func TestReadPemFile_NulTerminated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(path, []byte("-----BEGIN X-----\n"), 0600))

	data, err := security.ReadPemFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[len(data)-1])
}

func TestReadHexStringFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pskc.hex")
	require.NoError(t, os.WriteFile(path, []byte("00112233445566778899AABBCCDDEEFF\n"), 0600))

	data, err := security.ReadHexStringFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 16)
}

// signerForTest generates a self-signed ECDSA certificate and returns
// it PEM-encoded along with its private key.
func signerForTest(t *testing.T) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "registrar"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), key
}

// signTokenForTest builds a COSE_Sign1 token over payload.
func signTokenForTest(t *testing.T, key *ecdsa.PrivateKey, payload []byte) []byte {
	t.Helper()

	type sign1 struct {
		_           struct{} `cbor:",toarray"`
		Protected   []byte
		Unprotected cbor.RawMessage
		Payload     []byte
		Signature   []byte
	}
	type sigStructure struct {
		_           struct{} `cbor:",toarray"`
		Context     string
		Protected   []byte
		ExternalAad []byte
		Payload     []byte
	}

	protected := []byte{0xA0} // empty header map
	toBeSigned, err := cbor.Marshal(sigStructure{
		Context:     "Signature1",
		Protected:   protected,
		ExternalAad: []byte{},
		Payload:     payload,
	})
	require.NoError(t, err)

	digest := sha256.Sum256(toBeSigned)
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	require.NoError(t, err)

	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])

	empty, err := cbor.Marshal(map[int]int{})
	require.NoError(t, err)

	token, err := cbor.Marshal(cbor.RawTag{
		Number: 18,
		Content: mustMarshal(t, sign1{
			Protected:   protected,
			Unprotected: empty,
			Payload:     payload,
			Signature:   signature,
		}),
	})
	require.NoError(t, err)
	return token
}

func mustMarshal(t *testing.T, v any) cbor.RawMessage {
	t.Helper()
	data, err := cbor.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestVerifyToken_Valid(t *testing.T) {
	certPem, key := signerForTest(t)
	payload := []byte("commissioner token body")
	token := signTokenForTest(t, key, payload)

	got, err := security.VerifyToken(token, certPem)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestVerifyToken_WrongSigner(t *testing.T) {
	_, key := signerForTest(t)
	otherCert, _ := signerForTest(t)
	token := signTokenForTest(t, key, []byte("body"))

	_, err := security.VerifyToken(token, otherCert)
	assert.ErrorIs(t, err, security.ErrBadSignature)
}

func TestVerifyToken_Garbage(t *testing.T) {
	certPem, _ := signerForTest(t)
	_, err := security.VerifyToken([]byte{0x01, 0x02}, certPem)
	assert.Error(t, err)
}

func TestParseCertificatePem_ToleratesNul(t *testing.T) {
	certPem, _ := signerForTest(t)
	cert, err := security.ParseCertificatePem(append(certPem, 0))
	require.NoError(t, err)
	assert.Equal(t, "registrar", cert.Subject.CommonName)
}
