package scope

import (
	"fmt"
	"strconv"
	"strings"
)

// Parameter identifies which PAVA parameter a response carries.
type Parameter string

const (
	ParamFrequency Parameter = "FREQ"
	ParamAmplitude Parameter = "AMPL"
)

// FormatError reports a response line that does not match the expected
// PAVA shape or whose numeric token fails to parse.
type FormatError struct {
	Line   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("scope: malformed response %q: %s", e.Line, e.Reason)
}

// unitScale normalizes the unit suffix following the numeric token.
// Frequencies come back in Hz and amplitudes in volts after scaling;
// level units (dB/dBm/percent) pass through unchanged.
var unitScale = map[string]float64{
	"HZ":  1,
	"KHZ": 1e3,
	"MHZ": 1e6,
	"V":   1,
	"MV":  1e-3,
	"UV":  1e-6,
	"DB":  1,
	"DBM": 1,
	"PCT": 1,
}

// ParseParameter extracts the measurement from a PAVA response line such as
//
//	C1:PAVA FREQ,10.00175E+3 HZ,AV
//
// The line is split on commas; the numeric token is the first
// whitespace-delimited word of the second field, in exponent notation.
// When want is non-empty the parameter tag in the first field must match.
// Units from the table above are scaled; an unrecognized unit leaves the
// value untouched.
func ParseParameter(line string, want Parameter) (float64, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return 0, &FormatError{Line: line, Reason: "fewer than 2 comma-separated fields"}
	}

	if want != "" {
		head := strings.Fields(parts[0])
		if len(head) >= 2 && !strings.EqualFold(head[len(head)-1], string(want)) {
			return 0, &FormatError{
				Line:   line,
				Reason: fmt.Sprintf("parameter tag %q, want %q", head[len(head)-1], want),
			}
		}
	}

	words := strings.Fields(parts[1])
	if len(words) == 0 {
		return 0, &FormatError{Line: line, Reason: "empty value field"}
	}

	value, err := strconv.ParseFloat(words[0], 64)
	if err != nil {
		return 0, &FormatError{Line: line, Reason: fmt.Sprintf("numeric token %q does not parse", words[0])}
	}

	if len(words) >= 2 {
		if scale, ok := unitScale[strings.ToUpper(words[1])]; ok {
			value *= scale
		}
	}
	return value, nil
}
