package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type wireStructure struct {
	Nodes json.RawMessage `json:"nodes"`
}

type wireNode struct {
	NodeID      string            `json:"node_id"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Attributes  []Attribute       `json:"attributes"`
	Relations   []json.RawMessage `json:"relations"`
}

type wireRelation struct {
	Name   string          `json:"name"`
	Target json.RawMessage `json:"target"`
}

type wireRef struct {
	NodeID string `json:"node_id"`
	ID     string `json:"id"`
}

// DecodeParsed decodes a parsed-structure payload.
//
// Node entries are a tagged variant: an object decodes into a Node, a bare
// string becomes a Node named (and identified) by that string, anything else
// fails with ErrMalformedStructure. An empty or null payload is an empty
// structure.
func DecodeParsed(data []byte) (*ParsedStructure, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return &ParsedStructure{}, nil
	}

	var ws wireStructure
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStructure, err)
	}

	out := &ParsedStructure{}
	if len(ws.Nodes) == 0 || bytes.Equal(ws.Nodes, []byte("null")) {
		return out, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(ws.Nodes, &entries); err != nil {
		return nil, fmt.Errorf("%w: nodes is not a list", ErrMalformedStructure)
	}

	out.Nodes = make([]Node, 0, len(entries))
	for i, raw := range entries {
		n, err := decodeNode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d: %v", ErrMalformedStructure, i, err)
		}
		out.Nodes = append(out.Nodes, n)
	}
	return out, nil
}

func decodeNode(raw json.RawMessage) (Node, error) {
	switch firstByte(raw) {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Node{}, err
		}
		if s == "" {
			return Node{}, fmt.Errorf("empty node entry")
		}
		return Node{ID: s, Name: s}, nil
	case '{':
		var wn wireNode
		if err := json.Unmarshal(raw, &wn); err != nil {
			return Node{}, err
		}
		n := Node{
			ID:          wn.NodeID,
			AltID:       wn.ID,
			Name:        wn.Name,
			Description: wn.Description,
			Attributes:  wn.Attributes,
		}
		if n.ID == "" {
			n.ID = n.AltID
		}
		if n.ID == "" {
			if n.Name == "" {
				return Node{}, fmt.Errorf("node has neither identifier nor name")
			}
			n.ID = n.Name
		}
		for j, rr := range wn.Relations {
			rel, err := decodeRelation(rr)
			if err != nil {
				return Node{}, fmt.Errorf("relation %d: %w", j, err)
			}
			n.Relations = append(n.Relations, rel)
		}
		return n, nil
	default:
		return Node{}, fmt.Errorf("unexpected entry %s", truncate(raw, 32))
	}
}

func decodeRelation(raw json.RawMessage) (Relation, error) {
	if firstByte(raw) != '{' {
		return Relation{}, fmt.Errorf("relation is not an object")
	}
	var wr wireRelation
	if err := json.Unmarshal(raw, &wr); err != nil {
		return Relation{}, err
	}
	rel := Relation{Name: wr.Name}
	switch firstByte(wr.Target) {
	case '"':
		if err := json.Unmarshal(wr.Target, &rel.Target); err != nil {
			return Relation{}, err
		}
	case '{':
		var ref wireRef
		if err := json.Unmarshal(wr.Target, &ref); err != nil {
			return Relation{}, err
		}
		rel.Target = ref.NodeID
		if rel.Target == "" {
			rel.Target = ref.ID
		}
	case 0:
	default:
		return Relation{}, fmt.Errorf("unexpected target %s", truncate(wr.Target, 32))
	}
	return rel, nil
}

func firstByte(raw []byte) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	return raw[0]
}

func truncate(raw []byte, n int) string {
	if len(raw) > n {
		return string(raw[:n]) + "..."
	}
	return string(raw)
}

// EncodeParsed is the inverse of DecodeParsed for well-formed structures.
func EncodeParsed(p *ParsedStructure) ([]byte, error) {
	if p == nil {
		p = &ParsedStructure{}
	}
	if p.Nodes == nil {
		return json.Marshal(ParsedStructure{Nodes: []Node{}})
	}
	return json.Marshal(p)
}
