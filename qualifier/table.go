package qualifier

// Table is an ordered collection of (key, value) entries resolved against
// a dataset identity with the Candidates precedence. Template and
// formatter dictionaries share it.
type Table[V any] struct {
	entries []entry[V]
}

type entry[V any] struct {
	key   Key
	value V
}

// Put stores an entry. Declaration order is preserved; a later Put for an
// equal key replaces the earlier value.
func (t *Table[V]) Put(key Key, value V) {
	for i := range t.entries {
		if keysEqual(t.entries[i].key, key) {
			t.entries[i].value = value
			return
		}
	}
	t.entries = append(t.entries, entry[V]{key: key, value: value})
}

// Len returns the number of entries.
func (t *Table[V]) Len() int { return len(t.entries) }

// Keys returns the entry keys in declaration order.
func (t *Table[V]) Keys() []Key {
	keys := make([]Key, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.key
	}
	return keys
}

// Get returns the value stored under exactly the given key.
func (t *Table[V]) Get(key Key) (V, bool) {
	for _, e := range t.entries {
		if keysEqual(e.key, key) {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// fieldKeys returns the entries keyed by field qualifiers, used to build
// identity-specific candidates.
func (t *Table[V]) fieldKeys() []Key {
	var keys []Key
	for _, e := range t.entries {
		if len(e.key.Fields) > 0 {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Lookup resolves the identity against the table: candidate keys are
// tried most specific first and the first present entry wins, so exactly
// one value applies to any identity the table covers.
func (t *Table[V]) Lookup(id Identity) (V, Key, bool) {
	for _, cand := range Candidates(id, t.fieldKeys()) {
		if v, ok := t.Get(cand); ok {
			return v, cand, true
		}
	}
	var zero V
	return zero, Key{}, false
}

func keysEqual(a, b Key) bool {
	if a.Name != b.Name || a.Instrument != b.Instrument || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return true
}
