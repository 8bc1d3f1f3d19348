package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"cv-parser/internal/resume"
)

var (
	// ErrEmptyResponse means the model answered with no text at all.
	ErrEmptyResponse = errors.New("empty response")
	// ErrNoPayload means no JSON object could be located in the response.
	ErrNoPayload = errors.New("no structured payload found")
	// ErrNoFields means a JSON object was found but it carried none of the expected values.
	ErrNoFields = errors.New("payload has no name, email, skills or years of experience")
)

// maxObjectCandidates bounds how many '{' positions are tried per response.
const maxObjectCandidates = 64

var (
	nameKeys   = []string{"name", "full_name", "candidate_name"}
	emailKeys  = []string{"email", "email_address", "contact_email"}
	skillsKeys = []string{"skills", "skill_set", "technical_skills"}
	yearsKeys  = []string{"years_of_experience", "experience_years", "years_experience", "total_years_experience"}

	fencePattern  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	rangePattern  = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:-|–|—|to)\s*(\d+(?:\.\d+)?)`)
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	skillSplitter = regexp.MustCompile(`[,;/|\n]`)
	keyReplacer   = strings.NewReplacer(" ", "_", "-", "_")
)

// DecodePayload locates the JSON object inside a model response and reads the
// known fields from it. Missing or mistyped fields come back empty; only the
// absence of any usable object is an error.
func DecodePayload(raw string) (resume.Fields, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return resume.Fields{}, ErrEmptyResponse
	}

	candidates := make([]string, 0, 2)
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, text)

	foundObject := false
	for _, candidate := range candidates {
		for _, obj := range objects(candidate) {
			foundObject = true
			if !hasKnownKey(obj) {
				continue
			}
			fields := fieldsFrom(obj)
			if fields.Empty() {
				return resume.Fields{}, ErrNoFields
			}
			return fields, nil
		}
	}
	if foundObject {
		return resume.Fields{}, ErrNoFields
	}
	return resume.Fields{}, ErrNoPayload
}

// objects decodes a JSON object starting at each '{' in s, in order. Prose
// before the object or commentary after it is ignored.
func objects(s string) []map[string]any {
	var out []map[string]any
	tried := 0
	for i := 0; i < len(s) && tried < maxObjectCandidates; i++ {
		if s[i] != '{' {
			continue
		}
		tried++
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil || obj == nil {
			continue
		}
		out = append(out, normalizeKeys(obj))
	}
	return out
}

func normalizeKeys(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		key := strings.ToLower(strings.TrimSpace(k))
		key = keyReplacer.Replace(key)
		if _, exists := out[key]; !exists {
			out[key] = v
		}
	}
	return out
}

func hasKnownKey(obj map[string]any) bool {
	for _, keys := range [][]string{nameKeys, emailKeys, skillsKeys, yearsKeys} {
		if _, ok := lookup(obj, keys); ok {
			return true
		}
	}
	return false
}

func lookup(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func fieldsFrom(obj map[string]any) resume.Fields {
	f := resume.Fields{Skills: []string{}}
	if v, ok := lookup(obj, nameKeys); ok {
		f.Name = stringValue(v)
	}
	if v, ok := lookup(obj, emailKeys); ok {
		f.Email = stringValue(v)
	}
	if v, ok := lookup(obj, skillsKeys); ok {
		f.Skills = skillsValue(v)
	}
	if v, ok := lookup(obj, yearsKeys); ok {
		f.YearsExperience, f.Note = yearsValue(v)
	}
	return f
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func skillsValue(v any) []string {
	switch t := v.(type) {
	case string:
		return resume.NormalizeSkills(skillSplitter.Split(t, -1))
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case json.Number:
				out = append(out, s.String())
			case map[string]any:
				if name, ok := normalizeKeys(s)["name"].(string); ok {
					out = append(out, name)
				}
			}
		}
		return resume.NormalizeSkills(out)
	}
	return []string{}
}

func yearsValue(v any) (*float64, string) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, ""
		}
		return nonNegative(f), ""
	case string:
		return parseYears(t)
	}
	return nil, ""
}

func parseYears(s string) (*float64, string) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || strings.HasPrefix(s, "-") {
		return nil, ""
	}
	if m := rangePattern.FindStringSubmatch(s); m != nil {
		lo, errLo := strconv.ParseFloat(m[1], 64)
		hi, errHi := strconv.ParseFloat(m[2], 64)
		if errLo == nil && errHi == nil {
			if lo > hi {
				lo, hi = hi, lo
			}
			mid := (lo + hi) / 2
			return nonNegative(mid), fmt.Sprintf("years of experience given as range %q; midpoint %s used", m[0], strconv.FormatFloat(mid, 'f', -1, 64))
		}
	}
	m := numberPattern.FindString(s)
	if m == "" {
		return nil, ""
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil, ""
	}
	return nonNegative(f), ""
}

func nonNegative(f float64) *float64 {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
