package domain

// Source identifies the collector that produced a piece of evidence.
type Source string

const (
	SourcePortScan    Source = "port_scan"
	SourceReputation  Source = "reputation"
	SourceKeywordScan Source = "keyword_scan"
	SourceClassifier  Source = "classifier"
	SourceAuthLog     Source = "auth_log"
	SourceFingerprint Source = "fingerprint"
	SourceVulnLookup  Source = "vuln_lookup"
)

// Result is the outcome of a collector: either a value or an explicit absence.
// Absence carries a cause for logging and never contributes to scoring.
type Result[T any] struct {
	value   T
	present bool
	cause   string
}

// Present wraps a collected value.
func Present[T any](v T) Result[T] {
	return Result[T]{value: v, present: true}
}

// Absent records that no value could be collected.
func Absent[T any](cause string) Result[T] {
	return Result[T]{cause: cause}
}

// Get returns the value and whether it is present.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.present
}

func (r Result[T]) IsPresent() bool {
	return r.present
}

// Cause is empty for present results.
func (r Result[T]) Cause() string {
	return r.cause
}

// Evidence is the per-collector record attached to every assessment.
type Evidence struct {
	Source  Source `json:"source"`
	Present bool   `json:"present"`
	Cause   string `json:"cause,omitempty"`
}

// EvidenceOf summarizes a Result for reporting.
func EvidenceOf[T any](source Source, r Result[T]) Evidence {
	return Evidence{Source: source, Present: r.present, Cause: r.cause}
}
