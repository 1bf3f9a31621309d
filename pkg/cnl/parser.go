// Package cnl parses controlled-natural-language graph documents.
//
// A document is an optional YAML frontmatter block followed by node sections:
//
//	---
//	title: Letters
//	---
//	# Alpha
//	The first letter.
//	has position: 1;
//	has width: 12 *px*;
//	<links to> Beta;
//
//	# Beta
//	```description
//	The second letter.
//	```
//
// A heading starts a node whose identifier is the slug of its plain-text name.
// Repeated headings add to the same node.
package cnl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/markup"
)

// ErrSyntax is matched by every *SyntaxError.
var ErrSyntax = errors.New("cnl syntax error")

// SyntaxError locates a parse failure.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// Meta is the frontmatter of a document.
type Meta struct {
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Document is a parsed CNL source.
type Document struct {
	Meta      Meta
	Structure *core.ParsedStructure
}

var (
	headingRe   = regexp.MustCompile(`^#[ \t]+(.+?)(?:[ \t]+#+)?[ \t]*$`)
	attributeRe = regexp.MustCompile(`^has[ \t]+([^:]+?)[ \t]*:[ \t]*(.*?)[ \t]*;$`)
	unitRe      = regexp.MustCompile(`^(.*?)[ \t]*\*([^*]+)\*$`)
	relationRe  = regexp.MustCompile(`^<([^>]+)>[ \t]*(.+?)[ \t]*;$`)
)

const (
	fenceOpen  = "```description"
	fenceClose = "```"
)

// Parse returns the structure of src.
func Parse(src string) (*core.ParsedStructure, error) {
	doc, err := ParseDocument(src)
	if err != nil {
		return nil, err
	}
	return doc.Structure, nil
}

// ParseDocument parses src including its frontmatter.
func ParseDocument(src string) (*Document, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	meta, body, offset, err := splitFrontmatter(src)
	if err != nil {
		return nil, err
	}

	p := &parser{index: make(map[string]int)}
	if err := p.run(body, offset); err != nil {
		return nil, err
	}
	return &Document{Meta: meta, Structure: p.finish()}, nil
}

func splitFrontmatter(src string) (Meta, string, int, error) {
	var meta Meta
	if !strings.HasPrefix(src, "---\n") {
		return meta, src, 0, nil
	}
	rest := "\n" + src[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, "", 0, &SyntaxError{Line: 1, Msg: "unterminated frontmatter"}
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return meta, "", 0, &SyntaxError{Line: 2, Msg: fmt.Sprintf("frontmatter: %v", err)}
	}

	body := rest[end+len("\n---"):]
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	consumed := strings.Count(src[:len(src)-len(body)], "\n")
	return meta, body, consumed, nil
}

type parser struct {
	nodes   []core.Node
	desc    [][]string
	index   map[string]int
	current int
	fenced  bool
	fenceAt int
}

func (p *parser) run(body string, offset int) error {
	p.current = -1
	for i, line := range strings.Split(body, "\n") {
		lineNo := offset + i + 1
		if err := p.line(strings.TrimSpace(line), lineNo); err != nil {
			return err
		}
	}
	if p.fenced {
		return &SyntaxError{Line: p.fenceAt, Msg: "unterminated description block"}
	}
	return nil
}

func (p *parser) line(line string, lineNo int) error {
	if p.fenced {
		if line == fenceClose {
			p.fenced = false
			return nil
		}
		p.appendDescription(line)
		return nil
	}

	if m := headingRe.FindStringSubmatch(line); m != nil {
		return p.heading(m[1], lineNo)
	}
	if line == "" {
		if p.current >= 0 {
			p.appendDescription("")
		}
		return nil
	}

	switch {
	case line == fenceOpen:
		if p.current < 0 {
			return &SyntaxError{Line: lineNo, Msg: "description block outside a node"}
		}
		p.fenced = true
		p.fenceAt = lineNo
	case attributeRe.MatchString(line):
		if p.current < 0 {
			return &SyntaxError{Line: lineNo, Msg: "attribute outside a node"}
		}
		m := attributeRe.FindStringSubmatch(line)
		attr := core.Attribute{Name: m[1], Value: m[2]}
		if u := unitRe.FindStringSubmatch(attr.Value); u != nil {
			attr.Value, attr.Unit = u[1], u[2]
		}
		if attr.Value == "" {
			return &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("attribute %q has no value", attr.Name)}
		}
		n := &p.nodes[p.current]
		n.Attributes = append(n.Attributes, attr)
	case relationRe.MatchString(line):
		if p.current < 0 {
			return &SyntaxError{Line: lineNo, Msg: "relation outside a node"}
		}
		m := relationRe.FindStringSubmatch(line)
		target := identifier(m[2])
		if target == "" {
			return &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("relation %q has no target", m[1])}
		}
		n := &p.nodes[p.current]
		n.Relations = append(n.Relations, core.Relation{Name: strings.TrimSpace(m[1]), Target: target})
	default:
		if p.current >= 0 {
			p.appendDescription(line)
		}
	}
	return nil
}

func (p *parser) heading(name string, lineNo int) error {
	id := identifier(name)
	if id == "" {
		return &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("heading %q has no identifier", name)}
	}
	if i, ok := p.index[id]; ok {
		p.current = i
		p.appendDescription("")
		return nil
	}
	p.index[id] = len(p.nodes)
	p.current = len(p.nodes)
	p.nodes = append(p.nodes, core.Node{ID: id, Name: name})
	p.desc = append(p.desc, nil)
	return nil
}

func (p *parser) appendDescription(line string) {
	p.desc[p.current] = append(p.desc[p.current], line)
}

// finish joins description lines. Consecutive lines form one paragraph and
// blank lines separate paragraphs.
func (p *parser) finish() *core.ParsedStructure {
	out := &core.ParsedStructure{Nodes: p.nodes}
	for i, lines := range p.desc {
		var paragraphs []string
		var current []string
		for _, l := range append(lines, "") {
			if l == "" {
				if len(current) > 0 {
					paragraphs = append(paragraphs, strings.Join(current, " "))
					current = nil
				}
				continue
			}
			current = append(current, l)
		}
		out.Nodes[i].Description = strings.Join(paragraphs, "\n\n")
	}
	return out
}

// identifier derives a node identifier from a possibly marked-up name.
func identifier(name string) string {
	return core.Slugify(markup.Strip(name))
}
