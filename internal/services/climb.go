package services

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ClimbScoring assigns a climb category from segment distance and average
// grade. The score is distance_m × avg_grade × grade_factor; the grade factor
// multiplier is deliberately configurable rather than hard-coded, since no
// authoritative value exists for it.
type ClimbScoring struct {
	GradeFactor float64          `yaml:"grade_factor"`
	Categories  []ClimbThreshold `yaml:"categories"`
}

// ClimbThreshold maps a minimum score to a category label.
type ClimbThreshold struct {
	Category string  `yaml:"category"`
	MinScore float64 `yaml:"min_score"`
}

// DefaultClimbScoring mirrors the conventional HC/1..4 ladder.
func DefaultClimbScoring() ClimbScoring {
	return ClimbScoring{
		GradeFactor: 1.0,
		Categories: []ClimbThreshold{
			{Category: "HC", MinScore: 80000},
			{Category: "1", MinScore: 64000},
			{Category: "2", MinScore: 32000},
			{Category: "3", MinScore: 16000},
			{Category: "4", MinScore: 8000},
		},
	}
}

// LoadClimbScoring reads a scoring table from a YAML file; an empty path
// returns the defaults.
func LoadClimbScoring(path string) (ClimbScoring, error) {
	if path == "" {
		return DefaultClimbScoring(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ClimbScoring{}, fmt.Errorf("read climb scoring: %w", err)
	}
	var cs ClimbScoring
	if err := yaml.Unmarshal(raw, &cs); err != nil {
		return ClimbScoring{}, fmt.Errorf("parse climb scoring: %w", err)
	}
	if cs.GradeFactor == 0 {
		cs.GradeFactor = 1.0
	}
	sort.Slice(cs.Categories, func(i, j int) bool {
		return cs.Categories[i].MinScore > cs.Categories[j].MinScore
	})
	return cs, nil
}

// Category returns the label for a segment, "NC" when the score does not
// reach any threshold. avgGrade is a percentage (e.g. 7.5 for 7.5%).
func (cs ClimbScoring) Category(distanceM, avgGrade float64) string {
	if avgGrade <= 0 {
		return "NC"
	}
	score := distanceM * avgGrade * cs.GradeFactor
	for _, th := range cs.Categories {
		if score >= th.MinScore {
			return th.Category
		}
	}
	return "NC"
}
