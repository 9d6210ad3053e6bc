package security

import (
	"crypto/sha256"
	"hash"
)

// Crypto is the primitive set the commissioner core consumes. The
// default implementation wraps the standard library and x/crypto; tests
// may substitute their own.
type Crypto interface {
	// NewSha256 returns a streaming SHA-256 hash.
	NewSha256() hash.Hash

	// DerivePSKc derives the 16-byte PSKc from the commissioning
	// passphrase, the network name and the extended PAN ID.
	DerivePSKc(passphrase, networkName string, extPanId []byte) []byte

	// VerifyToken checks a COSE_Sign1 commissioner token against the
	// PEM-encoded signer certificate and returns the token payload.
	VerifyToken(signedToken, signerCertPem []byte) ([]byte, error)
}

// DefaultCrypto returns the standard implementation.
func DefaultCrypto() Crypto {
	return defaultCrypto{}
}

type defaultCrypto struct{}

func (defaultCrypto) NewSha256() hash.Hash {
	return sha256.New()
}

func (defaultCrypto) DerivePSKc(passphrase, networkName string, extPanId []byte) []byte {
	return DerivePSKc(passphrase, networkName, extPanId)
}

func (defaultCrypto) VerifyToken(signedToken, signerCertPem []byte) ([]byte, error) {
	return VerifyToken(signedToken, signerCertPem)
}
