package resume

import (
	"strings"
)

// Status reports how extraction ended for one resume.
type Status string

const (
	StatusOK          Status = "OK"
	StatusParseFailed Status = "PARSE_FAILED"
	StatusAPIFailed   Status = "API_FAILED"
	// StatusInputEmpty marks items that had no usable text and were never sent to the model.
	StatusInputEmpty Status = "INPUT_EMPTY"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusParseFailed, StatusAPIFailed, StatusInputEmpty:
		return true
	default:
		return false
	}
}

// Fields are the structured values the model extracts from a resume.
type Fields struct {
	Name            string
	Email           string
	Skills          []string
	YearsExperience *float64
	Note            string
}

// Empty reports whether no field carries a value.
func (f Fields) Empty() bool {
	return strings.TrimSpace(f.Name) == "" &&
		strings.TrimSpace(f.Email) == "" &&
		len(NormalizeSkills(f.Skills)) == 0 &&
		f.YearsExperience == nil
}

// Record is one extracted resume plus provenance. Treat it as a value:
// helpers return copies and never mutate the receiver.
type Record struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Skills          []string `json:"skills"`
	YearsExperience *float64 `json:"years_experience"`
	SourceFilename  string   `json:"source_filename,omitempty"`
	Status          Status   `json:"status"`
	RawError        string   `json:"raw_error,omitempty"`
	Note            string   `json:"note,omitempty"`
}

// Extracted builds an OK record from decoded fields.
func Extracted(f Fields) Record {
	rec := Record{
		Name:   strings.TrimSpace(f.Name),
		Email:  strings.TrimSpace(f.Email),
		Skills: NormalizeSkills(f.Skills),
		Status: StatusOK,
		Note:   strings.TrimSpace(f.Note),
	}
	if f.YearsExperience != nil && *f.YearsExperience >= 0 {
		years := *f.YearsExperience
		rec.YearsExperience = &years
	}
	return rec
}

// Failed builds a record for a non-OK outcome. The diagnostic must already be
// free of credentials; it is stored as given.
func Failed(status Status, diagnostic string) Record {
	if status == StatusOK || !status.Valid() {
		status = StatusParseFailed
	}
	return Record{
		Skills:   []string{},
		Status:   status,
		RawError: diagnostic,
	}
}

// OK reports whether extraction succeeded.
func (r Record) OK() bool {
	return r.Status == StatusOK
}

// WithSource returns a copy tagged with the given source reference.
func (r Record) WithSource(source string) Record {
	out := r.Clone()
	out.SourceFilename = strings.TrimSpace(source)
	return out
}

// Clone returns a deep copy so callers cannot alias the skills slice or years pointer.
func (r Record) Clone() Record {
	out := r
	out.Skills = append(make([]string, 0, len(r.Skills)), r.Skills...)
	if r.YearsExperience != nil {
		years := *r.YearsExperience
		out.YearsExperience = &years
	}
	return out
}

// NormalizeSkills trims entries, drops blanks and removes case-insensitive
// duplicates, keeping the first spelling seen. The result is never nil.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		trimmed := strings.Join(strings.Fields(s), " ")
		if trimmed == "" {
			continue
		}
		key := SkillKey(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// SkillKey is the case-insensitive identity of a skill.
func SkillKey(skill string) string {
	return strings.ToLower(strings.Join(strings.Fields(skill), " "))
}
