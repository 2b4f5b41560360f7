package diffview

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGenerate(t *testing.T) {
	original := map[string]interface{}{
		"title":    "Landing Page",
		"subtitle": "Old subtitle",
		"legacy":   true,
	}
	edited := map[string]interface{}{
		"title":    "Landing Page",
		"subtitle": "New subtitle",
		"hero":     map[string]interface{}{"image": "a.png"},
	}

	diff := Generate(original, edited)

	want := []Change{
		{Field: "hero", Kind: ChangeAdded},
		{Field: "legacy", Kind: ChangeRemoved},
		{Field: "subtitle", Kind: ChangeModified},
	}
	if d := cmp.Diff(want, diff.Changes); d != "" {
		t.Fatalf("unexpected changes (-want +got):\n%s", d)
	}
	if diff.Detail == "" {
		t.Fatal("expected a non-empty detail diff")
	}
}

func TestSummarize(t *testing.T) {
	diff := Diff{Changes: []Change{
		{Field: "a", Kind: ChangeModified},
		{Field: "b", Kind: ChangeModified},
		{Field: "c", Kind: ChangeAdded},
	}}
	if got := diff.Summarize(); got != "2 modified, 1 added" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestSummarizeNoChanges(t *testing.T) {
	diff := Generate(
		map[string]interface{}{"title": "same"},
		map[string]interface{}{"title": "same"},
	)
	if len(diff.Changes) != 0 {
		t.Fatalf("expected no changes, got %v", diff.Changes)
	}
	if got := diff.Summarize(); got != "no changes" {
		t.Fatalf("unexpected summary %q", got)
	}
}
