// Package template implements the path-template grammar used to compute
// dataset file locations from identity fields.
//
// A template is a string containing ordered placeholders:
//
//	{visit}              required field
//	{physical_filter:?}  optional field, omitted from the path when unset
//	{visit:08d}          zero-padded integer, width 8
//	{exposure.obs_id}    attribute projection on a composite field
//
// Padding and the optional marker combine ({tract:04d?}). Any other form
// inside braces is a syntax error.
package template

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingField is returned by Render when a required placeholder has no
// value.
var ErrMissingField = errors.New("no value for required template field")

// Field is a single parsed placeholder.
type Field struct {
	// Name is the identity field the placeholder reads.
	Name string

	// Attribute is the projected attribute for {name.attr} forms, empty
	// otherwise.
	Attribute string

	// Optional marks {name:?} placeholders, which are dropped from the
	// rendered path when unset.
	Optional bool

	// PadWidth is the zero-pad width for {name:08d} placeholders, zero
	// when no numeric formatting was requested.
	PadWidth int
}

// Key returns the lookup key for the field's value: "name" or "name.attr".
func (f Field) Key() string {
	if f.Attribute != "" {
		return f.Name + "." + f.Attribute
	}
	return f.Name
}

func (f Field) String() string {
	var spec strings.Builder
	spec.WriteByte('{')
	spec.WriteString(f.Key())
	if f.PadWidth > 0 || f.Optional {
		spec.WriteByte(':')
		if f.PadWidth > 0 {
			fmt.Fprintf(&spec, "0%dd", f.PadWidth)
		}
		if f.Optional {
			spec.WriteByte('?')
		}
	}
	spec.WriteByte('}')
	return spec.String()
}

// token is one parsed segment: either literal text or a placeholder.
type token struct {
	literal string
	field   *Field
}

// FileTemplate is a parsed path template.
type FileTemplate struct {
	raw    string
	tokens []token
}

// Parse parses a template string, rejecting any placeholder that is not
// one of the recognized forms.
func Parse(raw string) (*FileTemplate, error) {
	if raw == "" {
		return nil, errors.New("template string is empty")
	}

	t := &FileTemplate{raw: raw}
	rest := raw
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("template %q: unmatched '}'", raw)
			}
			if rest != "" {
				t.tokens = append(t.tokens, token{literal: rest})
			}
			break
		}

		if lit := rest[:open]; lit != "" {
			if strings.IndexByte(lit, '}') >= 0 {
				return nil, fmt.Errorf("template %q: unmatched '}'", raw)
			}
			t.tokens = append(t.tokens, token{literal: lit})
		}

		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("template %q: unclosed '{'", raw)
		}

		field, err := parseField(rest[open+1 : open+end])
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", raw, err)
		}
		t.tokens = append(t.tokens, token{field: field})
		rest = rest[open+end+1:]
	}

	return t, nil
}

// MustParse is Parse for statically known templates; it panics on error.
func MustParse(raw string) *FileTemplate {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// parseField interprets the text between braces: name[.attr][:spec].
func parseField(body string) (*Field, error) {
	name, spec, hasSpec := strings.Cut(body, ":")

	f := &Field{Name: name}
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		f.Name = name[:dot]
		f.Attribute = name[dot+1:]
		if f.Attribute == "" || strings.ContainsRune(f.Attribute, '.') {
			return nil, fmt.Errorf("placeholder {%s}: bad attribute projection", body)
		}
	}
	if f.Name == "" {
		return nil, fmt.Errorf("placeholder {%s}: empty field name", body)
	}
	if !validFieldName(f.Name) || (f.Attribute != "" && !validFieldName(f.Attribute)) {
		return nil, fmt.Errorf("placeholder {%s}: field names must be identifiers", body)
	}

	if !hasSpec {
		return f, nil
	}
	if spec == "" {
		return nil, fmt.Errorf("placeholder {%s}: empty format spec", body)
	}

	if strings.HasSuffix(spec, "?") {
		f.Optional = true
		spec = strings.TrimSuffix(spec, "?")
	}
	if spec != "" {
		// Only zero-padded decimal formatting is recognized: 0<width>d.
		if len(spec) < 3 || spec[0] != '0' || spec[len(spec)-1] != 'd' {
			return nil, fmt.Errorf("placeholder {%s}: unrecognized format spec %q", body, spec)
		}
		width, err := strconv.Atoi(spec[1 : len(spec)-1])
		if err != nil || width < 1 {
			return nil, fmt.Errorf("placeholder {%s}: bad pad width in %q", body, spec)
		}
		f.PadWidth = width
	}

	return f, nil
}

func validFieldName(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return s != ""
}

// String returns the original template text.
func (t *FileTemplate) String() string { return t.raw }

// Fields returns the template's placeholders in order of appearance.
func (t *FileTemplate) Fields() []Field {
	var fields []Field
	for _, tok := range t.tokens {
		if tok.field != nil {
			fields = append(fields, *tok.field)
		}
	}
	return fields
}

// HasField reports whether any placeholder reads the named identity field.
func (t *FileTemplate) HasField(name string) bool {
	for _, tok := range t.tokens {
		if tok.field != nil && tok.field.Name == name {
			return true
		}
	}
	return false
}

// separators are the characters eligible for cleanup around a skipped
// optional field.
const separators = "/_-."

// Render substitutes values into the template. Keys in values are field
// names, or "name.attr" for attribute projections; a projection also
// resolves through a map value stored under the bare field name.
//
// An unset optional field is omitted together with the run of separator
// characters immediately before it (after it, when the field starts the
// template). An unset required field is an error wrapping ErrMissingField.
func (t *FileTemplate) Render(values map[string]any) (string, error) {
	var out strings.Builder
	skipLeading := false

	for _, tok := range t.tokens {
		if tok.literal != "" {
			lit := tok.literal
			if skipLeading {
				lit = strings.TrimLeft(lit, separators)
				skipLeading = false
			}
			out.WriteString(lit)
			continue
		}

		f := tok.field
		val, ok := lookupValue(values, f)
		if !ok {
			if !f.Optional {
				return "", fmt.Errorf("template %q: %w: %s", t.raw, ErrMissingField, f.Key())
			}
			if trimmed := trimTrailingSeparators(out.String()); trimmed != out.Len() {
				s := out.String()[:trimmed]
				out.Reset()
				out.WriteString(s)
			} else if out.Len() == 0 {
				skipLeading = true
			}
			continue
		}

		rendered, err := formatValue(val, f)
		if err != nil {
			return "", fmt.Errorf("template %q: field %s: %w", t.raw, f.Key(), err)
		}
		out.WriteString(rendered)
	}

	path := out.String()
	if path == "" {
		return "", fmt.Errorf("template %q: rendered path is empty", t.raw)
	}
	return path, nil
}

// trimTrailingSeparators returns the length of s without its trailing
// separator run.
func trimTrailingSeparators(s string) int {
	return len(strings.TrimRight(s, separators))
}

// lookupValue resolves a field against the value map: the projected key
// first, then a map stored under the bare name.
func lookupValue(values map[string]any, f *Field) (any, bool) {
	if v, ok := values[f.Key()]; ok && v != nil {
		return v, true
	}
	if f.Attribute == "" {
		return nil, false
	}
	switch m := values[f.Name].(type) {
	case map[string]any:
		v, ok := m[f.Attribute]
		return v, ok && v != nil
	case map[string]string:
		v, ok := m[f.Attribute]
		return v, ok
	}
	return nil, false
}

// formatValue renders one value, applying zero-padding when requested.
// Padded fields must carry an integer or an integer-valued string.
func formatValue(val any, f *Field) (string, error) {
	if f.PadWidth == 0 {
		return fmt.Sprintf("%v", val), nil
	}

	var n int64
	switch v := val.(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint:
		if uint64(v) > math.MaxInt64 {
			return "", fmt.Errorf("value %d overflows padded field", v)
		}
		n = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return "", fmt.Errorf("value %d overflows padded field", v)
		}
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", fmt.Errorf("value %q is not an integer", v)
		}
		n = parsed
	default:
		return "", fmt.Errorf("value %v (%T) is not an integer", val, val)
	}
	return fmt.Sprintf("%0*d", f.PadWidth, n), nil
}

// Validate re-checks the parsed template's structural properties. Parsing
// already rejects bad placeholder syntax; Validate additionally requires
// at least one placeholder so templates cannot map every dataset to a
// single fixed path.
func (t *FileTemplate) Validate() error {
	for _, tok := range t.tokens {
		if tok.field != nil {
			return nil
		}
	}
	return fmt.Errorf("template %q has no placeholders", t.raw)
}
