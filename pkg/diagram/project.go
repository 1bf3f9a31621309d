package diagram

import (
	"strconv"
	"strings"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/markup"
)

var idEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`)

// EdgeID builds the synthetic identifier of the position-th relation of a node.
// Components are escaped so distinct inputs never share an id.
func EdgeID(source, relation, target string, position int) string {
	return idEscaper.Replace(source) + "|" +
		idEscaper.Replace(relation) + "|" +
		idEscaper.Replace(target) + "|" +
		strconv.Itoa(position)
}

// Project maps a parsed structure to a diagram model.
//
// Every node yields one diagram node labelled with its stripped display name.
// Every relation yields one edge, including relations whose target is not a
// node of the structure. A repeated node identifier keeps its first
// occurrence; its relations are still projected. Project has no side effects
// and a nil structure yields an empty model.
func Project(p *core.ParsedStructure) Model {
	m := Model{
		Nodes: make([]Node, 0, p.Len()),
		Edges: []Edge{},
	}
	if p == nil {
		return m
	}

	seen := make(map[string]bool, len(p.Nodes))
	positions := make(map[string]int, len(p.Nodes))
	for _, n := range p.Nodes {
		if !seen[n.ID] {
			seen[n.ID] = true
			m.Nodes = append(m.Nodes, Node{
				ID:           n.ID,
				Label:        markup.Strip(n.DisplayName()),
				Description:  n.Description,
				OriginalName: n.Name,
			})
		}
		for _, r := range n.Relations {
			pos := positions[n.ID]
			positions[n.ID]++
			m.Edges = append(m.Edges, Edge{
				ID:     EdgeID(n.ID, r.Name, r.Target, pos),
				Source: n.ID,
				Target: r.Target,
				Label:  r.Name,
			})
		}
	}
	return m
}
