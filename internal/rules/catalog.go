package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/ppiankov/clausecheck/internal/model"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRule marks a malformed rule atom
var ErrInvalidRule = errors.New("invalid rule atom")

// Catalog is an ordered, read-only set of rule atoms.
// Patterns are compiled once at construction; an atom that fails to
// compile stays in the catalog and is reported when evaluated.
type Catalog struct {
	rules []compiledRule
	index map[string]int
}

type compiledRule struct {
	atom     model.RuleAtom
	patterns []*regexp.Regexp
	terms    []*regexp.Regexp // must_not then hints_any, for the offending excerpt
	err      error
}

// NewCatalog compiles atoms in the given order
func NewCatalog(atoms []model.RuleAtom) *Catalog {
	c := &Catalog{
		rules: make([]compiledRule, 0, len(atoms)),
		index: make(map[string]int, len(atoms)),
	}
	for _, a := range atoms {
		cr := compile(a)
		if _, dup := c.index[a.Code]; dup && cr.err == nil {
			cr.err = fmt.Errorf("%w: duplicate code %q", ErrInvalidRule, a.Code)
		} else if !dup {
			c.index[a.Code] = len(c.rules)
		}
		c.rules = append(c.rules, cr)
	}
	return c
}

func compile(a model.RuleAtom) compiledRule {
	cr := compiledRule{atom: a}
	if err := check(a); err != nil {
		cr.err = err
		return cr
	}
	for _, p := range a.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			cr.err = fmt.Errorf("%w: %s: pattern %q: %v", ErrInvalidRule, a.Code, p, err)
			return cr
		}
		cr.patterns = append(cr.patterns, re)
	}
	cr.terms = termPatterns(a)
	return cr
}

// check rejects atoms whose predicate could never fire or is unknown
func check(a model.RuleAtom) error {
	if a.Code == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidRule)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("%w: %s: unknown severity %q", ErrInvalidRule, a.Code, a.Severity)
	}
	switch a.Predicate {
	case model.PredicateHintsAndEvidence, model.PredicateForbidden:
		if len(a.Patterns) == 0 && len(a.MustNot) == 0 {
			return fmt.Errorf("%w: %s: %s needs patterns or must_not", ErrInvalidRule, a.Code, a.Predicate)
		}
	case model.PredicateMissingRequired:
		if len(a.MustHave) == 0 {
			return fmt.Errorf("%w: %s: missing_required needs must_have", ErrInvalidRule, a.Code)
		}
	default:
		return fmt.Errorf("%w: %s: unknown predicate %q", ErrInvalidRule, a.Code, a.Predicate)
	}
	return nil
}

// Len returns the number of atoms
func (c *Catalog) Len() int {
	return len(c.rules)
}

// Atoms returns the atoms in catalog order
func (c *Catalog) Atoms() []model.RuleAtom {
	out := make([]model.RuleAtom, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.atom
	}
	return out
}

// Lookup returns the atom with the given code
func (c *Catalog) Lookup(code string) (model.RuleAtom, bool) {
	i, ok := c.index[code]
	if !ok {
		return model.RuleAtom{}, false
	}
	return c.rules[i].atom, true
}

// Validate reports every malformed atom, joined
func (c *Catalog) Validate() error {
	var errs []error
	for _, r := range c.rules {
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return errors.Join(errs...)
}

type catalogFile struct {
	Rules []model.RuleAtom `yaml:"rules"`
}

// LoadCatalogFile reads a YAML catalog of the form "rules: [...]"
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("parse catalog: no rules defined")
	}
	return NewCatalog(f.Rules), nil
}

// MarshalYAML encodes the catalog in the format ParseCatalog reads
func (c *Catalog) MarshalYAML() (any, error) {
	return catalogFile{Rules: c.Atoms()}, nil
}
