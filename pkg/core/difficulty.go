package core

import (
	"fmt"
	"strings"
)

// Difficulty is the user's interaction tier. The client treats it as an
// opaque preference, not as a permission model.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyModerate  Difficulty = "moderate"
	DifficultyAdvanced  Difficulty = "advanced"
	DifficultyExpert    Difficulty = "expert"
	DifficultySuperuser Difficulty = "superuser"
)

// Difficulties lists every tier from least to most capable.
var Difficulties = []Difficulty{
	DifficultyEasy,
	DifficultyModerate,
	DifficultyAdvanced,
	DifficultyExpert,
	DifficultySuperuser,
}

// ParseDifficulty accepts a tier name case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Difficulties {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}
