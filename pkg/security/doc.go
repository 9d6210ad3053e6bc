// Package security supplies the cryptographic collaborators of the
// commissioner core: joiner-ID hashing, PSKc derivation, credential
// file loading, and verification of COSE-signed commissioner tokens.
package security
