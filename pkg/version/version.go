// Package version provides the tool version and Thread protocol
// version parsing and comparison.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the commissioner tool version.
const Version = "0.2.0"

// MinCcmThreadVersion is the lowest Thread version with Commercial
// Commissioning Mode.
const MinCcmThreadVersion = "1.2.0"

// ThreadVersion is a parsed "major.minor[.patch]" Thread stack version,
// as advertised in the Border Agent "tv" TXT key.
type ThreadVersion struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Parse parses a "major.minor" or "major.minor.patch" version string.
func Parse(s string) (ThreadVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 && len(parts) != 3 {
		return ThreadVersion{}, fmt.Errorf("invalid version %q: expected major.minor[.patch]", s)
	}

	var fields [3]uint16
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 16)
		if err != nil || part == "" {
			return ThreadVersion{}, fmt.Errorf("invalid version %q: bad component %q", s, part)
		}
		fields[i] = uint16(v)
	}
	return ThreadVersion{Major: fields[0], Minor: fields[1], Patch: fields[2]}, nil
}

// String returns the version as "major.minor.patch".
func (v ThreadVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is other or newer.
func (v ThreadVersion) AtLeast(other ThreadVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Patch >= other.Patch
}

// SupportsCcm reports whether the advertised version carries the
// Commercial Commissioning Mode extensions.
func SupportsCcm(advertised string) bool {
	v, err := Parse(advertised)
	if err != nil {
		return false
	}
	min, err := Parse(MinCcmThreadVersion)
	if err != nil {
		return false
	}
	return v.AtLeast(min)
}
