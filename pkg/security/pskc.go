package security

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// PSKc derivation parameters. The salt is the literal "Thread" followed
// by the extended PAN ID and the network name.
const (
	pskcIterations = 16384
	pskcLength     = 16
	pskcSaltPrefix = "Thread"
)

// MaxPassphraseLength bounds the commissioning passphrase; the minimum
// useful length is 6.
const (
	MinPassphraseLength = 6
	MaxPassphraseLength = 255
)

// DerivePSKc derives the 16-byte PSKc from the commissioning
// passphrase, network name and extended PAN ID with PBKDF2.
func DerivePSKc(passphrase, networkName string, extPanId []byte) []byte {
	salt := make([]byte, 0, len(pskcSaltPrefix)+len(extPanId)+len(networkName))
	salt = append(salt, pskcSaltPrefix...)
	salt = append(salt, extPanId...)
	salt = append(salt, networkName...)

	return pbkdf2.Key([]byte(passphrase), salt, pskcIterations, pskcLength, sha256.New)
}
