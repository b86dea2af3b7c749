package datastore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/skyarchive/depot/qualifier"
)

// Constraints decide which datasets a datastore accepts. Patterns are
// dataset-type or storage-class names, glob patterns over those names
// (calexp*, deepCoadd_*), the keyword all, or any of these scoped to an
// instrument (instrument<HSC>, or instrument<HSC> with a nested list in
// document form).
//
// Reject is evaluated before accept; the first matching pattern decides.
// An empty accept list accepts everything not rejected.
type Constraints struct {
	Accept []Pattern `yaml:"accept"`
	Reject []Pattern `yaml:"reject"`
}

// Pattern is one constraint entry.
type Pattern struct {
	// Glob matches against the dataset's lookup names; "all" matches
	// every dataset. Empty means the pattern is a bare instrument scope.
	Glob string

	// Instrument restricts the pattern to one instrument.
	Instrument string
}

// UnmarshalYAML accepts the scalar document forms:
//
//	all
//	calexp
//	pvi*
//	instrument<HSC>
//	instrument<HSC>/calexp
func (p *Pattern) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := parsePattern(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func parsePattern(raw string) (Pattern, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Pattern{}, errors.New("empty constraint pattern")
	}

	p := Pattern{Glob: raw}
	if strings.HasPrefix(raw, "instrument<") {
		scope, rest, _ := strings.Cut(raw, "/")
		key, err := qualifier.ParseKey(scope)
		if err != nil {
			return Pattern{}, fmt.Errorf("constraint %q: %w", raw, err)
		}
		p.Instrument = key.Instrument
		p.Glob = rest
	}

	if p.Glob != "" && p.Glob != "all" {
		if !doublestar.ValidatePattern(p.Glob) {
			return Pattern{}, fmt.Errorf("constraint %q: bad glob pattern", raw)
		}
	}
	return p, nil
}

// String renders the pattern in document form.
func (p Pattern) String() string {
	if p.Instrument == "" {
		return p.Glob
	}
	scope := fmt.Sprintf("instrument<%s>", p.Instrument)
	if p.Glob == "" {
		return scope
	}
	return scope + "/" + p.Glob
}

// Matches evaluates the pattern against a dataset identity.
func (p Pattern) Matches(id qualifier.Identity) bool {
	if p.Instrument != "" && p.Instrument != id.Instrument {
		return false
	}
	if p.Glob == "" || p.Glob == "all" {
		return true
	}
	for _, name := range id.Names {
		if ok, err := doublestar.Match(p.Glob, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Accepts reports whether the constraints allow a dataset: rejected
// datasets lose first, then an empty accept list allows the rest, and a
// non-empty accept list allows only what it matches.
func (c Constraints) Accepts(id qualifier.Identity) bool {
	for _, p := range c.Reject {
		if p.Matches(id) {
			return false
		}
	}
	if len(c.Accept) == 0 {
		return true
	}
	for _, p := range c.Accept {
		if p.Matches(id) {
			return true
		}
	}
	return false
}

// Validate re-checks pattern syntax; parsing already rejects malformed
// patterns, so this guards programmatically built constraints.
func (c Constraints) Validate() error {
	var errs []error
	for _, p := range append(append([]Pattern(nil), c.Accept...), c.Reject...) {
		if _, err := parsePattern(p.String()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
