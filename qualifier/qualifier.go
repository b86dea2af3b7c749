// Package qualifier implements the scoping expressions that narrow
// template and formatter dictionary entries to a subset of datasets.
//
// A dictionary key is one of:
//
//	calexp                   a plain dataset-type or storage-class name
//	instrument<HSC>          an instrument scope (nests a sub-dictionary,
//	                         or scopes a single entry)
//	physical_filter+         a field-driven override
//	physical_filter+visit    several composed field qualifiers
//
// Resolution walks an ordered candidate list (see Candidates) so that for
// any dataset identity exactly one entry wins.
package qualifier

import (
	"fmt"
	"sort"
	"strings"
)

// Key is a parsed dictionary key.
type Key struct {
	// Name is the dataset-type or storage-class name the key applies to,
	// empty for pure instrument or field-qualifier keys.
	Name string

	// Instrument restricts the key to datasets observed with the named
	// instrument. Empty means unscoped.
	Instrument string

	// Fields are identity-field qualifiers from the a+b+c form, sorted.
	// The key only applies to identities that carry all of them.
	Fields []string
}

// ParseKey parses a dictionary key string. An instrument scope may carry
// an inner key after a slash, as in instrument<HSC>/calexp.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, fmt.Errorf("empty dictionary key")
	}

	k := Key{}
	if open := strings.IndexByte(s, '<'); open >= 0 {
		end := strings.IndexByte(s, '>')
		if end < open {
			return Key{}, fmt.Errorf("key %q: unclosed qualifier", s)
		}
		scope, value := s[:open], s[open+1:end]
		if scope != "instrument" {
			return Key{}, fmt.Errorf("key %q: unsupported qualifier scope %q", s, scope)
		}
		if value == "" {
			return Key{}, fmt.Errorf("key %q: empty instrument name", s)
		}
		k.Instrument = value

		rest := s[end+1:]
		if rest == "" {
			return k, nil
		}
		if !strings.HasPrefix(rest, "/") {
			return Key{}, fmt.Errorf("key %q: unexpected text after qualifier", s)
		}
		inner, err := ParseKey(rest[1:])
		if err != nil {
			return Key{}, err
		}
		if inner.Instrument != "" {
			return Key{}, fmt.Errorf("key %q: nested instrument qualifier", s)
		}
		k.Name = inner.Name
		k.Fields = inner.Fields
		return k, nil
	}

	if strings.ContainsRune(s, '+') {
		parts := strings.Split(s, "+")
		for _, p := range parts {
			if p == "" {
				continue // trailing '+' marks a single-field override
			}
			k.Fields = append(k.Fields, p)
		}
		if len(k.Fields) == 0 {
			return Key{}, fmt.Errorf("key %q: no qualifier fields", s)
		}
		sort.Strings(k.Fields)
		return k, nil
	}

	k.Name = s
	return k, nil
}

// String renders the key in document form. The result round-trips
// through ParseKey.
func (k Key) String() string {
	var inner string
	switch {
	case len(k.Fields) == 1:
		inner = k.Fields[0] + "+"
	case len(k.Fields) > 1:
		inner = strings.Join(k.Fields, "+")
	default:
		inner = k.Name
	}
	if k.Instrument == "" {
		return inner
	}
	base := fmt.Sprintf("instrument<%s>", k.Instrument)
	if inner == "" {
		return base
	}
	return base + "/" + inner
}

// Identity is the subset of dataset identity a key is evaluated against.
type Identity struct {
	// Names are the dictionary names to try for the dataset, highest
	// priority first: the dataset-type name, the parent type name for a
	// component, then storage-class names.
	Names []string

	// Instrument is the identity's instrument value, if any.
	Instrument string

	// Fields are the identity-field names with values set.
	Fields map[string]struct{}
}

// Matches reports whether the key applies to the identity under the given
// candidate name. Instrument-scoped keys require the identity's
// instrument; field-qualified keys require every qualifier field set.
func (k Key) Matches(name string, id Identity) bool {
	if k.Name != "" && k.Name != name {
		return false
	}
	if k.Instrument != "" && k.Instrument != id.Instrument {
		return false
	}
	for _, f := range k.Fields {
		if _, ok := id.Fields[f]; !ok {
			return false
		}
	}
	return true
}

// Candidates returns the ordered keys to try against a dictionary for the
// identity, most specific first:
//
//  1. each name in priority order, instrument-scoped then plain
//  2. field-qualified keys whose fields the identity carries, more fields
//     first, instrument-scoped before plain
//  3. the instrument-scoped default, then the plain default
//
// Field-qualified candidates are produced by the dictionary itself (it
// knows which field combinations it declares); callers pass them in
// fieldKeys.
func Candidates(id Identity, fieldKeys []Key) []Key {
	var out []Key
	for _, name := range id.Names {
		if id.Instrument != "" {
			out = append(out, Key{Name: name, Instrument: id.Instrument})
		}
		out = append(out, Key{Name: name})
	}

	matched := make([]Key, 0, len(fieldKeys))
	for _, fk := range fieldKeys {
		if fk.Matches("", id) {
			matched = append(matched, fk)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if len(matched[i].Fields) != len(matched[j].Fields) {
			return len(matched[i].Fields) > len(matched[j].Fields)
		}
		return matched[i].Instrument > matched[j].Instrument
	})
	out = append(out, matched...)

	if id.Instrument != "" {
		out = append(out, Key{Name: "default", Instrument: id.Instrument})
	}
	out = append(out, Key{Name: "default"})
	return out
}
