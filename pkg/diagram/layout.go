package diagram

import "github.com/gnowledge/nodeBook-sub003/pkg/core"

// DefaultLayout is used when no preference is known.
const DefaultLayout = "cose"

var layouts = map[core.Difficulty]string{
	core.DifficultyEasy:      "grid",
	core.DifficultyModerate:  "circle",
	core.DifficultyAdvanced:  "breadthfirst",
	core.DifficultyExpert:    "cose",
	core.DifficultySuperuser: "dagre",
}

// LayoutFor picks the default layout name for a difficulty tier.
func LayoutFor(d core.Difficulty) string {
	if l, ok := layouts[d]; ok {
		return l
	}
	return DefaultLayout
}
