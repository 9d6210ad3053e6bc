// Package meshcop implements the MeshCoP TLV wire encoding used by the
// Thread commissioning protocol, together with the management URI and
// TLV type registries.
//
// A MeshCoP message payload is a flat sequence of TLVs:
//
//	| Type (1) | Length (1) | Value (Length) |
//
// A length octet of 0xFF escapes to the extended form with a 16-bit
// big-endian length:
//
//	| Type (1) | 0xFF | Length (2) | Value (Length) |
//
// TLV types this package does not know are carried opaquely; decoding
// never drops an unknown TLV.
package meshcop
