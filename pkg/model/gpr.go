package model

import (
	"fmt"
	"strings"
	"unicode"
)

// gpr is a parsed gene-reaction rule: a boolean expression over gene ids.
type gpr struct {
	op       string // "gene", "and", "or"
	gene     string
	children []*gpr
}

// parseGPR parses rules such as "(b0001 and b0002) or b0003". Operators are case
// insensitive and "and" binds tighter than "or". An empty rule parses to nil.
func parseGPR(rule string) (*gpr, error) {
	toks := tokenizeGPR(rule)
	if len(toks) == 0 {
		return nil, nil
	}
	p := &gprParser{toks: toks}
	node, err := p.or()
	if err != nil {
		return nil, fmt.Errorf("gene rule %q: %w", rule, err)
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("gene rule %q: unexpected %q", rule, p.toks[p.pos])
	}
	return node, nil
}

func tokenizeGPR(rule string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range rule {
		switch {
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type gprParser struct {
	toks []string
	pos  int
}

func (p *gprParser) peekOp(op string) bool {
	return p.pos < len(p.toks) && strings.EqualFold(p.toks[p.pos], op)
}

func (p *gprParser) or() (*gpr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	node := &gpr{op: "or", children: []*gpr{left}}
	for p.peekOp("or") {
		p.pos++
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		node.children = append(node.children, right)
	}
	if len(node.children) == 1 {
		return left, nil
	}
	return node, nil
}

func (p *gprParser) and() (*gpr, error) {
	left, err := p.atom()
	if err != nil {
		return nil, err
	}
	node := &gpr{op: "and", children: []*gpr{left}}
	for p.peekOp("and") {
		p.pos++
		right, err := p.atom()
		if err != nil {
			return nil, err
		}
		node.children = append(node.children, right)
	}
	if len(node.children) == 1 {
		return left, nil
	}
	return node, nil
}

func (p *gprParser) atom() (*gpr, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("unexpected end of rule")
	}
	tok := p.toks[p.pos]
	switch {
	case tok == "(":
		p.pos++
		node, err := p.or()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos] != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return node, nil
	case tok == ")", strings.EqualFold(tok, "and"), strings.EqualFold(tok, "or"):
		return nil, fmt.Errorf("unexpected %q", tok)
	}
	p.pos++
	return &gpr{op: "gene", gene: tok}, nil
}

// genes lists the gene ids of the rule in order of first appearance.
func (g *gpr) genes() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(n *gpr)
	walk = func(n *gpr) {
		if n == nil {
			return
		}
		if n.op == "gene" {
			if !seen[n.gene] {
				seen[n.gene] = true
				out = append(out, n.gene)
			}
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(g)
	return out
}

// prune drops the removed genes from the rule and collapses operators left with a
// single operand. It returns nil once no gene of the rule remains.
func (g *gpr) prune(removed map[string]bool) *gpr {
	if g.op == "gene" {
		if removed[g.gene] {
			return nil
		}
		return g
	}
	var kept []*gpr
	for _, c := range g.children {
		if pc := c.prune(removed); pc != nil {
			kept = append(kept, pc)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &gpr{op: g.op, children: kept}
}

func (g *gpr) rename(names map[string]string) {
	if g.op == "gene" {
		if to, ok := names[g.gene]; ok {
			g.gene = to
		}
		return
	}
	for _, c := range g.children {
		c.rename(names)
	}
}

func (g *gpr) String() string {
	if g == nil {
		return ""
	}
	return g.format(true)
}

func (g *gpr) format(top bool) string {
	if g.op == "gene" {
		return g.gene
	}
	parts := make([]string, len(g.children))
	for i, c := range g.children {
		parts[i] = c.format(false)
	}
	s := strings.Join(parts, " "+g.op+" ")
	if top {
		return s
	}
	return "(" + s + ")"
}

// eval reports whether the rule holds when the knocked out genes are absent.
func (g *gpr) eval(knocked map[string]bool) bool {
	switch g.op {
	case "gene":
		return !knocked[g.gene]
	case "and":
		for _, c := range g.children {
			if !c.eval(knocked) {
				return false
			}
		}
		return true
	default:
		for _, c := range g.children {
			if c.eval(knocked) {
				return true
			}
		}
		return false
	}
}
