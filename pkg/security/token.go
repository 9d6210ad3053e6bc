package security

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Commissioner token (COM_TOK) errors.
var (
	ErrInvalidToken     = errors.New("invalid COSE_Sign1 token")
	ErrInvalidSignerKey = errors.New("signer certificate does not carry an ECDSA public key")
	ErrBadSignature     = errors.New("token signature verification failed")
	ErrInvalidCertPem   = errors.New("invalid PEM certificate")
)

// coseSign1Tag is the CBOR tag of a COSE_Sign1 structure.
const coseSign1Tag = 18

// coseSign1 is the four-element COSE_Sign1 array.
type coseSign1 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected cbor.RawMessage
	Payload     []byte
	Signature   []byte
}

// sigStructure is the COSE Sig_structure signed by the registrar.
type sigStructure struct {
	_           struct{} `cbor:",toarray"`
	Context     string
	Protected   []byte
	ExternalAad []byte
	Payload     []byte
}

// ParseCertificatePem decodes the first CERTIFICATE block of a PEM
// credential. A trailing NUL from ReadPemFile is tolerated.
func ParseCertificatePem(data []byte) (*x509.Certificate, error) {
	data = bytes.TrimRight(data, "\x00")
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrInvalidCertPem
	}
	return x509.ParseCertificate(block.Bytes)
}

// VerifyToken checks a COSE_Sign1 commissioner token against the
// PEM-encoded signer certificate and returns the signed payload.
func VerifyToken(signedToken, signerCertPem []byte) ([]byte, error) {
	cert, err := ParseCertificatePem(signerCertPem)
	if err != nil {
		return nil, fmt.Errorf("parsing signer certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, ErrInvalidSignerKey
	}

	sign1, err := decodeSign1(signedToken)
	if err != nil {
		return nil, err
	}

	toBeSigned, err := cbor.Marshal(sigStructure{
		Context:     "Signature1",
		Protected:   sign1.Protected,
		ExternalAad: []byte{},
		Payload:     sign1.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding Sig_structure: %w", err)
	}

	if !verifyRawEcdsa(pub, toBeSigned, sign1.Signature) {
		return nil, ErrBadSignature
	}
	return sign1.Payload, nil
}

// decodeSign1 accepts both the tagged and the bare COSE_Sign1 form.
func decodeSign1(data []byte) (coseSign1, error) {
	var tagged cbor.RawTag
	if err := cbor.Unmarshal(data, &tagged); err == nil && tagged.Number == coseSign1Tag {
		data = tagged.Content
	}

	var sign1 coseSign1
	if err := cbor.Unmarshal(data, &sign1); err != nil {
		return coseSign1{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(sign1.Signature) == 0 {
		return coseSign1{}, fmt.Errorf("%w: empty signature", ErrInvalidToken)
	}
	return sign1, nil
}

// verifyRawEcdsa verifies a COSE raw (r || s) ECDSA signature over the
// SHA-256 digest of the message.
func verifyRawEcdsa(pub *ecdsa.PublicKey, message, signature []byte) bool {
	if len(signature)%2 != 0 {
		return false
	}
	half := len(signature) / 2
	r := new(big.Int).SetBytes(signature[:half])
	s := new(big.Int).SetBytes(signature[half:])
	digest := sha256.Sum256(message)
	return ecdsa.Verify(pub, digest[:], r, s)
}
