// Package version parses the host's ORG_VER environment variable and
// derives the _OC_VER preprocessor define cpptools is handed, per
// OCLSP.py's send_cpptools_didChangeCppProperties. ORG_VER is a bespoke
// decimal scheme, not semantic versioning, so it is not parsed with a
// semver library (see DESIGN.md).
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Default is used when ORG_VER is absent or unparsable.
const Default = 10.0

// GateVersion is the threshold spec §4.5 gates completion-documentation
// flattening and symbol-tree flattening on.
const GateVersion = 10.35

// Version wraps the host version as a bare float, as the original does.
type Version struct {
	raw float64
}

// Parse reads s as a decimal float, falling back to Default on any error.
func Parse(s string) Version {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		f = Default
	}
	return Version{raw: f}
}

// Float returns the raw version number.
func (v Version) Float() float64 {
	return v.raw
}

// LessThan reports whether v is strictly less than threshold.
func (v Version) LessThan(threshold float64) bool {
	return v.raw < threshold
}

// OCVerHex derives the _OC_VER hex define: the integer part in two
// uppercase hex digits, followed by the first two decimal digits of the
// fractional part verbatim (e.g. 10.35 -> "0x0A35", 10.23 -> "0x0A23").
func (v Version) OCVerHex() string {
	// Match the original's f"{v:.6f}" truncation before taking the first
	// two fractional digits, so e.g. 10.3 -> "300000" -> "30", not "3".
	s := strconv.FormatFloat(v.raw, 'f', 6, 64)
	parts := strings.SplitN(s, ".", 2)
	major, _ := strconv.Atoi(parts[0])
	minor := parts[1]
	if len(minor) > 2 {
		minor = minor[:2]
	}
	return fmt.Sprintf("0x%02X%s", major, minor)
}
