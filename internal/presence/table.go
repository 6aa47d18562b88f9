package presence

import "sort"

// Table maps identities to connection handles and back.
// H is the opaque handle type supplied by the transport layer.
type Table[H comparable] struct {
	byIdentity map[string]H
	byHandle   map[H]string
}

// NewTable creates an empty Table.
func NewTable[H comparable]() *Table[H] {
	return &Table[H]{
		byIdentity: make(map[string]H),
		byHandle:   make(map[H]string),
	}
}

// Bind binds identity to h in both directions.
//
// If identity was bound to a different handle, that handle loses its entry
// and is returned with replaced=true. Nothing is sent to the evicted handle.
// If h was bound under a different identity, that identity is unbound.
func (t *Table[H]) Bind(identity string, h H) (previous H, replaced bool) {
	if old, ok := t.byHandle[h]; ok && old != identity {
		delete(t.byIdentity, old)
	}

	if prev, ok := t.byIdentity[identity]; ok && prev != h {
		delete(t.byHandle, prev)
		previous, replaced = prev, true
	}

	t.byIdentity[identity] = h
	t.byHandle[h] = identity
	return previous, replaced
}

// Lookup returns the handle currently bound to identity.
func (t *Table[H]) Lookup(identity string) (H, bool) {
	h, ok := t.byIdentity[identity]
	return h, ok
}

// IdentityOf returns the identity currently bound to h.
func (t *Table[H]) IdentityOf(h H) (string, bool) {
	id, ok := t.byHandle[h]
	return id, ok
}

// Release removes the binding owned by h.
// The identity entry is only removed if it still points at h, so a
// disconnect racing a reconnect under the same identity is harmless.
func (t *Table[H]) Release(h H) (identity string, removed bool) {
	identity, ok := t.byHandle[h]
	if !ok {
		return "", false
	}
	delete(t.byHandle, h)

	if cur, ok := t.byIdentity[identity]; ok && cur == h {
		delete(t.byIdentity, identity)
		return identity, true
	}
	return identity, false
}

// Contains reports whether identity is currently bound.
func (t *Table[H]) Contains(identity string) bool {
	_, ok := t.byIdentity[identity]
	return ok
}

// Len returns the number of bound identities.
func (t *Table[H]) Len() int {
	return len(t.byIdentity)
}

// Identities returns a sorted copy of all bound identities.
func (t *Table[H]) Identities() []string {
	out := make([]string, 0, len(t.byIdentity))
	for id := range t.byIdentity {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Each calls fn for every binding. fn must not mutate the table.
func (t *Table[H]) Each(fn func(identity string, h H)) {
	for id, h := range t.byIdentity {
		fn(id, h)
	}
}
