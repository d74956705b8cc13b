package diag

// Severity orders diagnostics; only SevError fails a page.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

// String is the lowercase label used in rendered diagnostics.
func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	default:
		return "unknown"
	}
}
