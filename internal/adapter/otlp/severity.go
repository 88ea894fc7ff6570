package otlp

// The OTLP log data model defines severity numbers 1..24, grouped into six
// bands of four sub-levels each. Anything outside that range normalizes to
// INFO/9.
const (
	defaultSeverityText   = "INFO"
	defaultSeverityNumber = 9
)

var severityLabels = [25]string{
	1:  "TRACE",
	2:  "TRACE2",
	3:  "TRACE3",
	4:  "TRACE4",
	5:  "DEBUG",
	6:  "DEBUG2",
	7:  "DEBUG3",
	8:  "DEBUG4",
	9:  "INFO",
	10: "INFO2",
	11: "INFO3",
	12: "INFO4",
	13: "WARN",
	14: "WARN2",
	15: "WARN3",
	16: "WARN4",
	17: "ERROR",
	18: "ERROR2",
	19: "ERROR3",
	20: "ERROR4",
	21: "FATAL",
	22: "FATAL2",
	23: "FATAL3",
	24: "FATAL4",
}

// normalizeSeverity maps a wire severity number to its text label and
// normalized number. Unknown codes fall back to INFO.
func normalizeSeverity(number int32) (string, uint8) {
	if number < 1 || number > 24 {
		return defaultSeverityText, defaultSeverityNumber
	}
	return severityLabels[number], uint8(number)
}
