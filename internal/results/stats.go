package results

import (
	"encoding/json"
	"math"
	"sort"

	"cv-parser/internal/resume"
)

// DefaultTopK is the number of skills reported when no explicit K is given.
const DefaultTopK = 5

// SkillCount is one entry of the most-common-skills list. Skill keeps the
// spelling first seen across the set.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// Stats summarizes a ResultSet. AverageYearsExperience is NaN when no OK
// record has a value; it is encoded as null in JSON.
type Stats struct {
	TotalProcessed         int            `json:"total_processed"`
	TotalSuccessful        int            `json:"total_successful"`
	StatusCounts           map[string]int `json:"status_counts"`
	AverageYearsExperience float64        `json:"average_years_experience"`
	YearsSampleSize        int            `json:"years_sample_size"`
	TopSkills              []SkillCount   `json:"top_skills"`
}

// HasAverage reports whether AverageYearsExperience is defined.
func (s Stats) HasAverage() bool {
	return !math.IsNaN(s.AverageYearsExperience)
}

// MarshalJSON writes an undefined average as null instead of failing on NaN.
func (s Stats) MarshalJSON() ([]byte, error) {
	type alias Stats
	out := struct {
		alias
		AverageYearsExperience *float64 `json:"average_years_experience"`
	}{alias: alias(s)}
	if s.HasAverage() {
		avg := s.AverageYearsExperience
		out.AverageYearsExperience = &avg
	}
	return json.Marshal(out)
}

// ComputeStats counts every record in TotalProcessed and only OK records in
// TotalSuccessful. The average and skill frequencies use OK records only.
// Skills are counted case-insensitively over the flattened lists; records
// built by resume.Extracted hold each skill once, so for them this is a
// per-resume presence count. Ties keep first-seen order.
func ComputeStats(records []resume.Record, topK int) Stats {
	if topK < 0 {
		topK = 0
	}
	st := Stats{
		TotalProcessed:         len(records),
		StatusCounts:           make(map[string]int),
		AverageYearsExperience: math.NaN(),
		TopSkills:              []SkillCount{},
	}

	type tally struct {
		skill string
		count int
		first int
	}
	tallies := make(map[string]*tally)
	var yearsSum float64

	for _, rec := range records {
		st.StatusCounts[string(rec.Status)]++
		if !rec.OK() {
			continue
		}
		st.TotalSuccessful++
		if rec.YearsExperience != nil {
			yearsSum += *rec.YearsExperience
			st.YearsSampleSize++
		}
		for _, skill := range rec.Skills {
			key := resume.SkillKey(skill)
			if key == "" {
				continue
			}
			t, ok := tallies[key]
			if !ok {
				t = &tally{skill: skill, first: len(tallies)}
				tallies[key] = t
			}
			t.count++
		}
	}

	if st.YearsSampleSize > 0 {
		st.AverageYearsExperience = yearsSum / float64(st.YearsSampleSize)
	}

	ordered := make([]*tally, 0, len(tallies))
	for _, t := range tallies {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].first < ordered[j].first
	})
	if len(ordered) > topK {
		ordered = ordered[:topK]
	}
	for _, t := range ordered {
		st.TopSkills = append(st.TopSkills, SkillCount{Skill: t.skill, Count: t.count})
	}
	return st
}
