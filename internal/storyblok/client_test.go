package storyblok

import (
	"testing"

	"go.uber.org/zap"

	"github.com/redgrape/thegrid/internal/config"
)

func TestSlugify(t *testing.T) {
	c := NewClient(&config.Config{}, zap.NewNop())

	for _, tc := range []struct {
		name string
		slug string
	}{
		{"Landing Page", "landing-page"},
		{"Hello,  World!", "hello-world"},
		{"  Spaced  ", "spaced"},
		{"Über uns", "uber-uns"},
		{"v1.4.0 Release", "v1-4-0-release"},
		{"", ""},
	} {
		if got := c.Slugify(tc.name); got != tc.slug {
			t.Errorf("Slugify(%q) = %q, want %q", tc.name, got, tc.slug)
		}
	}
}
