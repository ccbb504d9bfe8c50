package hypergraph

import (
	"encoding/json"
	"fmt"
)

// EvidenceKind discriminates the tagged Evidence variant.
type EvidenceKind string

const (
	EvidenceSimulation EvidenceKind = "simulation"
	EvidenceLiterature EvidenceKind = "literature"
	EvidenceCalculation EvidenceKind = "calculation"
)

// LineRange is an inclusive 1-indexed [Start, End] range into Source.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Evidence is a tagged variant over simulation, literature, and calculation
// evidence. Exactly one shape is populated, selected by Kind.
type Evidence struct {
	Kind EvidenceKind `json:"kind"`

	// simulation
	Source string    `json:"source,omitempty"`
	Lines  LineRange `json:"lines,omitempty"`
	Code   string    `json:"code,omitempty"`

	// literature
	ReferenceText string `json:"reference_text,omitempty"`

	// calculation
	Equations string `json:"equations,omitempty"`
	Program   string `json:"program,omitempty"`
}

// Validate checks that Evidence's populated fields match its declared Kind
// exactly: missing fields and fields of another kind are rejected. Parsing
// checks only Kind; the validator calls Validate on every claim's evidence.
func (e Evidence) Validate() error {
	switch e.Kind {
	case EvidenceSimulation:
		if e.Source == "" || e.Code == "" || e.Lines.Start <= 0 || e.Lines.End < e.Lines.Start {
			return fmt.Errorf("simulation evidence requires source, a valid line range, and code")
		}
		if e.ReferenceText != "" || e.Equations != "" || e.Program != "" {
			return fmt.Errorf("simulation evidence must not carry literature/calculation fields")
		}
	case EvidenceLiterature:
		if e.Source == "" || e.ReferenceText == "" {
			return fmt.Errorf("literature evidence requires source and reference_text")
		}
		if e.Code != "" || e.Equations != "" || e.Program != "" {
			return fmt.Errorf("literature evidence must not carry simulation/calculation fields")
		}
	case EvidenceCalculation:
		if e.Equations == "" || e.Program == "" {
			return fmt.Errorf("calculation evidence requires equations and program")
		}
		if e.Source != "" || e.Code != "" || e.ReferenceText != "" {
			return fmt.Errorf("calculation evidence must not carry simulation/literature fields")
		}
	default:
		return fmt.Errorf("unknown evidence kind %q", e.Kind)
	}
	return nil
}

// UnmarshalJSON rejects unknown kinds early instead of silently zero-valuing
// Kind, so add_evidence tool payloads fail fast with a useful message.
func (e *Evidence) UnmarshalJSON(data []byte) error {
	type alias Evidence
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Evidence(a)
	switch e.Kind {
	case EvidenceSimulation, EvidenceLiterature, EvidenceCalculation:
		return nil
	default:
		return fmt.Errorf("evidence: unrecognized kind %q", e.Kind)
	}
}
