// Package coap implements the small slice of RFC 7252 the commissioner
// needs to talk MeshCoP over a DTLS connection: message encoding with
// Uri-Path options, confirmable exchanges with retransmission, token
// matching of separate responses, and dispatch of inbound requests.
package coap
