package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date serializes as a bare ISO calendar date ("2006-01-02"), matching what
// the inference service is asked to emit for analysis_date.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid analysis date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// DependencyReport is the per-package license guess. Immutable once built.
type DependencyReport struct {
	Name            string  `json:"name"`
	Version         string  `json:"version"`
	License         string  `json:"license"`
	ConfidenceScore float64 `json:"confidence_score"`
}

func (r DependencyReport) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("dependency report missing name")
	}
	if r.Version == "" {
		return fmt.Errorf("dependency report for %q missing version", r.Name)
	}
	if r.License == "" {
		return fmt.Errorf("dependency report for %q missing license", r.Name)
	}
	if r.ConfidenceScore < 0.0 || r.ConfidenceScore > 1.0 {
		return fmt.Errorf("dependency report for %q has confidence %v outside [0,1]", r.Name, r.ConfidenceScore)
	}
	return nil
}

// AnalysisResult is the structured output of one inference call. Files may be
// empty; once attached to an event or record the value is never edited.
type AnalysisResult struct {
	ProjectName  string             `json:"project_name"`
	AnalysisDate Date               `json:"analysis_date"`
	Files        []DependencyReport `json:"files"`
}

func (ar *AnalysisResult) Validate() error {
	if ar.ProjectName == "" {
		return fmt.Errorf("analysis result missing project_name")
	}
	if ar.AnalysisDate.IsZero() {
		return fmt.Errorf("analysis result missing analysis_date")
	}
	for _, f := range ar.Files {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EncodeAnalysisResult serializes a result for storage in event content or a
// record column. DecodeAnalysisResult is its inverse; the pair round-trips
// every field, including confidence scores at full float64 precision.
func EncodeAnalysisResult(ar *AnalysisResult) (string, error) {
	b, err := json.Marshal(ar)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeAnalysisResult(s string) (*AnalysisResult, error) {
	var ar AnalysisResult
	if err := json.Unmarshal([]byte(s), &ar); err != nil {
		return nil, err
	}
	if err := ar.Validate(); err != nil {
		return nil, err
	}
	return &ar, nil
}
