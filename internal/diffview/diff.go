package diffview

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
)

const (
	ChangeAdded    = "added"
	ChangeRemoved  = "removed"
	ChangeModified = "modified"
)

type Change struct {
	Field string `json:"field"`
	Kind  string `json:"kind"`
}

// Diff is a flat, field-level view of what an edit did to a document. It is
// attached to pipeline metadata so the approval surface can show reviewers
// what they are approving.
type Diff struct {
	Changes []Change `json:"changes"`
	Detail  string   `json:"detail,omitempty"`
}

func Generate(original, edited map[string]interface{}) Diff {
	diff := Diff{Changes: make([]Change, 0)}

	fields := make(map[string]struct{})
	for field := range original {
		fields[field] = struct{}{}
	}
	for field := range edited {
		fields[field] = struct{}{}
	}

	sorted := make([]string, 0, len(fields))
	for field := range fields {
		sorted = append(sorted, field)
	}
	sort.Strings(sorted)

	for _, field := range sorted {
		before, hadBefore := original[field]
		after, hasAfter := edited[field]
		switch {
		case !hadBefore:
			diff.Changes = append(diff.Changes, Change{Field: field, Kind: ChangeAdded})
		case !hasAfter:
			diff.Changes = append(diff.Changes, Change{Field: field, Kind: ChangeRemoved})
		case !cmp.Equal(before, after):
			diff.Changes = append(diff.Changes, Change{Field: field, Kind: ChangeModified})
		}
	}

	diff.Detail = cmp.Diff(original, edited)
	return diff
}

// Summarize renders a one-line human summary, e.g. "2 modified, 1 added".
func (d Diff) Summarize() string {
	if len(d.Changes) == 0 {
		return "no changes"
	}
	counts := make(map[string]int)
	for _, change := range d.Changes {
		counts[change.Kind]++
	}
	parts := make([]string, 0, len(counts))
	for _, kind := range []string{ChangeModified, ChangeAdded, ChangeRemoved} {
		if counts[kind] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[kind], kind))
		}
	}
	return strings.Join(parts, ", ")
}
