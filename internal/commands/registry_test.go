package commands

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistry_FindByAlias(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&RmCmd{}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"rm", "remove", "delete"} {
		cmd, ok := r.Find(name)
		if !ok || cmd.Name() != "rm" {
			t.Errorf("expected %q to resolve to rm, got %v, %v", name, cmd, ok)
		}
	}
	if _, ok := r.Find("del"); ok {
		t.Error("expected unknown name not to resolve")
	}
}

func TestRegistry_RejectsClash(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&ListCmd{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&ListCmd{}); err == nil {
		t.Error("expected error registering the same name twice")
	}
}

func TestRegistry_AllSortedOnce(t *testing.T) {
	r := NewRegistry()
	for _, c := range []Command{&ThemeCmd{}, &AddCmd{}, &RmCmd{}} {
		if err := r.Register(c); err != nil {
			t.Fatal(err)
		}
	}

	var names []string
	for _, c := range r.All() {
		names = append(names, c.Name())
	}
	if diff := cmp.Diff([]string{"add", "rm", "theme"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}
