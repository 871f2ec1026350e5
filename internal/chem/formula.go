// Package chem computes molecular weights of chemical formulas.
package chem

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrUnknownElement is returned when a formula names an element missing from the table.
	ErrUnknownElement = errors.New("unknown element")
	// ErrUnbalanced is returned for a "(" without its ")" or a stray ")".
	ErrUnbalanced = errors.New("unbalanced parentheses")
	// ErrSyntax covers any other character the parser cannot consume.
	ErrSyntax = errors.New("invalid formula syntax")
)

// FormulaError reports where in a formula parsing failed.
type FormulaError struct {
	Formula string
	Pos     int
	Detail  string
	Err     error
}

func (e *FormulaError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("formula %q at %d: %v: %s", e.Formula, e.Pos, e.Err, e.Detail)
	}
	return fmt.Sprintf("formula %q at %d: %v", e.Formula, e.Pos, e.Err)
}

func (e *FormulaError) Unwrap() error { return e.Err }

// MolecularWeight returns the molar mass of formula in g/mol, e.g. "Fe2O3" or "Ca(OH)2".
func MolecularWeight(formula string) (float64, error) {
	s := strings.TrimSpace(formula)
	if s == "" {
		return 0, &FormulaError{Formula: formula, Err: ErrSyntax, Detail: "empty formula"}
	}
	p := &formulaParser{src: s}
	return p.group(0)
}

// MolecularWeights computes each formula in order; the first failure aborts.
func MolecularWeights(formulas []string) ([]float64, error) {
	out := make([]float64, 0, len(formulas))
	for _, f := range formulas {
		m, err := MolecularWeight(f)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// OxideFactor returns the factor converting a mass of element into the mass
// of oxide that carries it, e.g. OxideFactor("Fe", "Fe2O3") ≈ 1.4297.
func OxideFactor(element, oxide string) (float64, error) {
	we, ok := AtomicWeight(element)
	if !ok {
		return 0, &FormulaError{Formula: element, Err: ErrUnknownElement, Detail: element}
	}
	wo, err := MolecularWeight(oxide)
	if err != nil {
		return 0, err
	}
	n, err := elementCount(oxide, element)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("oxide %s does not contain %s", oxide, element)
	}
	return wo / (float64(n) * we), nil
}

type formulaParser struct {
	src string
	pos int
}

func (p *formulaParser) fail(err error, detail string) error {
	return &FormulaError{Formula: p.src, Pos: p.pos, Err: err, Detail: detail}
}

// group sums units until end of input or a closing parenthesis at depth > 0.
func (p *formulaParser) group(depth int) (float64, error) {
	total := 0.0
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		var unit float64
		switch {
		case c == '(':
			open := p.pos
			p.pos++
			m, err := p.group(depth + 1)
			if err != nil {
				return 0, err
			}
			if p.pos >= len(p.src) || p.src[p.pos] != ')' {
				p.pos = open
				return 0, p.fail(ErrUnbalanced, "missing ')'")
			}
			p.pos++
			unit = m
		case c == ')':
			if depth == 0 {
				return 0, p.fail(ErrUnbalanced, "unexpected ')'")
			}
			return total, nil
		case unicode.IsUpper(c):
			start := p.pos
			p.pos++
			for p.pos < len(p.src) && unicode.IsLower(rune(p.src[p.pos])) {
				p.pos++
			}
			sym := p.src[start:p.pos]
			w, ok := AtomicWeight(sym)
			if !ok {
				p.pos = start
				return 0, p.fail(ErrUnknownElement, sym)
			}
			unit = w
		default:
			return 0, p.fail(ErrSyntax, fmt.Sprintf("unexpected %q", c))
		}
		total += float64(p.count()) * unit
	}
	return total, nil
}

// count consumes trailing digits; no digits means 1.
func (p *formulaParser) count() int {
	n, digits := 0, 0
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		n = n*10 + int(p.src[p.pos]-'0')
		p.pos++
		digits++
	}
	if digits == 0 {
		return 1
	}
	return n
}

// elementCount returns how many atoms of element appear in formula,
// expanding group multipliers.
func elementCount(formula, element string) (int, error) {
	var walk func(s string) (int, int, error)
	walk = func(s string) (int, int, error) {
		// returns count and characters consumed
		total := 0
		i := 0
		for i < len(s) {
			var unit int
			switch {
			case s[i] == '(':
				n, used, err := walk(s[i+1:])
				if err != nil {
					return 0, 0, err
				}
				i += used + 1
				if i >= len(s) || s[i] != ')' {
					return 0, 0, ErrUnbalanced
				}
				i++
				unit = n
			case s[i] == ')':
				return total, i, nil
			case unicode.IsUpper(rune(s[i])):
				j := i + 1
				for j < len(s) && unicode.IsLower(rune(s[j])) {
					j++
				}
				if s[i:j] == element {
					unit = 1
				}
				i = j
			default:
				return 0, 0, ErrSyntax
			}
			k, digits := 0, 0
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				k = k*10 + int(s[i]-'0')
				i++
				digits++
			}
			if digits == 0 {
				k = 1
			}
			total += k * unit
		}
		return total, i, nil
	}
	n, _, err := walk(strings.TrimSpace(formula))
	return n, err
}
