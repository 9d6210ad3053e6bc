// Package transport provides the default TransportSession: MeshCoP
// management traffic carried over CoAP inside a DTLS 1.2 session to a
// Border Agent, secured either with the network PSKc
// (TLS_PSK_WITH_AES_128_CCM_8) or with X.509 credentials in Commercial
// Commissioning Mode (TLS_ECDHE_ECDSA_WITH_AES_128_CCM_8).
//
// The commissioner core depends only on the commissioner.TransportSession
// interface; this package is one implementation of it.
package transport
