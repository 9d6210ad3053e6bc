// Package dataset models the four Thread commissioning datasets as
// sparse records: every field has a present-flag bit, and a field's
// value is meaningful only while its bit is set.
//
// The package provides the field-wise merge operators the commissioner
// relies on, the MeshCoP TLV encoding of each dataset, and a JSON form
// that omits absent fields so saved network data round-trips exactly.
package dataset
