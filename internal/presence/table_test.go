package presence

import (
	"reflect"
	"testing"
)

func TestTable_BindAndLookup(t *testing.T) {
	tbl := NewTable[string]()

	if _, replaced := tbl.Bind("alice", "h1"); replaced {
		t.Error("first Bind reported replaced")
	}

	h, ok := tbl.Lookup("alice")
	if !ok || h != "h1" {
		t.Errorf("Lookup(alice) = %q, %v, want h1, true", h, ok)
	}
	id, ok := tbl.IdentityOf("h1")
	if !ok || id != "alice" {
		t.Errorf("IdentityOf(h1) = %q, %v, want alice, true", id, ok)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}

func TestTable_RebindReplacesPreviousHandle(t *testing.T) {
	tbl := NewTable[string]()
	tbl.Bind("alice", "h1")

	prev, replaced := tbl.Bind("alice", "h2")
	if !replaced || prev != "h1" {
		t.Errorf("Bind = %q, %v, want h1, true", prev, replaced)
	}

	if h, _ := tbl.Lookup("alice"); h != "h2" {
		t.Errorf("Lookup(alice) = %q, want h2", h)
	}
	if _, ok := tbl.IdentityOf("h1"); ok {
		t.Error("stale handle h1 still has an identity")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}

func TestTable_RebindSameHandleIsNoop(t *testing.T) {
	tbl := NewTable[string]()
	tbl.Bind("alice", "h1")

	if _, replaced := tbl.Bind("alice", "h1"); replaced {
		t.Error("rebinding the same handle reported replaced")
	}
	if h, _ := tbl.Lookup("alice"); h != "h1" {
		t.Errorf("Lookup(alice) = %q, want h1", h)
	}
}

func TestTable_HandleMovesToNewIdentity(t *testing.T) {
	tbl := NewTable[string]()
	tbl.Bind("alice", "h1")
	tbl.Bind("bob", "h1")

	if tbl.Contains("alice") {
		t.Error("alice still bound after h1 rebound as bob")
	}
	if id, _ := tbl.IdentityOf("h1"); id != "bob" {
		t.Errorf("IdentityOf(h1) = %q, want bob", id)
	}
}

func TestTable_AtMostOneHandlePerIdentity(t *testing.T) {
	tbl := NewTable[int]()
	for h := 0; h < 20; h++ {
		tbl.Bind("alice", h)
		tbl.Bind("bob", h+100)
	}

	handles := 0
	for h := 0; h < 200; h++ {
		if id, ok := tbl.IdentityOf(h); ok && id == "alice" {
			handles++
		}
	}
	if handles != 1 {
		t.Errorf("alice bound to %d handles, want 1", handles)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}
}

func TestTable_Release(t *testing.T) {
	tbl := NewTable[string]()
	tbl.Bind("alice", "h1")

	id, removed := tbl.Release("h1")
	if !removed || id != "alice" {
		t.Errorf("Release(h1) = %q, %v, want alice, true", id, removed)
	}
	if tbl.Contains("alice") {
		t.Error("alice still bound after release")
	}

	if _, removed := tbl.Release("h1"); removed {
		t.Error("second Release reported removed")
	}
}

func TestTable_StaleReleaseKeepsNewerBinding(t *testing.T) {
	tbl := NewTable[string]()
	tbl.Bind("alice", "h1")
	tbl.Bind("alice", "h2")

	if _, removed := tbl.Release("h1"); removed {
		t.Error("stale Release(h1) reported removed")
	}
	if !tbl.Contains("alice") {
		t.Fatal("stale release evicted the live binding")
	}
	if h, _ := tbl.Lookup("alice"); h != "h2" {
		t.Errorf("Lookup(alice) = %q, want h2", h)
	}
}

func TestTable_ReleaseUnknownHandle(t *testing.T) {
	tbl := NewTable[string]()
	if id, removed := tbl.Release("nope"); removed || id != "" {
		t.Errorf("Release(nope) = %q, %v, want \"\", false", id, removed)
	}
}

func TestTable_Identities(t *testing.T) {
	tbl := NewTable[string]()
	tbl.Bind("carol", "h3")
	tbl.Bind("alice", "h1")
	tbl.Bind("bob", "h2")

	got := tbl.Identities()
	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Identities() = %v, want %v", got, want)
	}

	got[0] = "mallory"
	if !tbl.Contains("alice") {
		t.Error("mutating the returned slice changed the table")
	}
}

func TestTable_Each(t *testing.T) {
	tbl := NewTable[string]()
	tbl.Bind("alice", "h1")
	tbl.Bind("bob", "h2")

	seen := map[string]string{}
	tbl.Each(func(id, h string) { seen[id] = h })

	want := map[string]string{"alice": "h1", "bob": "h2"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("Each visited %v, want %v", seen, want)
	}
}
