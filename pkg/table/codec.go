package table

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	errNoBrackets   = errors.New("vector must be enclosed in [ ]")
	errEmpty        = errors.New("vector has no values")
	errEmptyElement = errors.New("vector has empty elements")
	errMixedSep     = errors.New("vector mixes comma and whitespace separators")
	errNotFinite    = errors.New("vector contains a non-finite value")
)

// ParseVector decodes a textual numeric array such as "[0.1, -2e-3, 4]".
// Values are separated either by commas (with optional whitespace around
// them) or by whitespace alone, as NumPy prints arrays; "[1, 2 3]" is
// rejected. Surrounding whitespace is ignored. NaN and infinities are
// rejected.
func ParseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, errNoBrackets
	}
	body := s[1 : len(s)-1]

	var fields []string
	if strings.Contains(body, ",") {
		fields = strings.Split(body, ",")
		for i, f := range fields {
			f = strings.TrimSpace(f)
			if f == "" {
				return nil, errEmptyElement
			}
			if strings.ContainsAny(f, " \t\n\r") {
				return nil, errMixedSep
			}
			fields[i] = f
		}
	} else {
		fields = strings.Fields(body)
	}
	if len(fields) == 0 {
		return nil, errEmpty
	}

	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errNotFinite
		}
		out[i] = v
	}
	return out, nil
}

// FormatVector encodes v in the form accepted by ParseVector, using the
// shortest representation that round-trips.
func FormatVector(v []float64) string {
	var b strings.Builder
	b.Grow(len(v) * 12)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(FormatFloat(x))
	}
	b.WriteByte(']')
	return b.String()
}

// FormatFloat writes a scalar in a locale-independent decimal form.
func FormatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
