package policy

import (
	"testing"

	"github.com/redgrape/thegrid/internal/models"
)

const samplePolicy = `
- source: figma-to-storyblok
  risk:   medium
  origin: dashboard

- source: storyblok-editor
  risk:   high
  origin: cms-plugin

- source: release
  risk:   low
`

func TestPolicyParsing(t *testing.T) {
	p, err := Parse([]byte(samplePolicy))
	if err != nil {
		t.Fatal("Failed to parse policy:", err)
	}

	if risk := p.RiskFor("storyblok-editor"); risk != models.RiskHigh {
		t.Fatalf("unexpected risk %q", risk)
	}
	if origin := p.OriginFor("storyblok-editor"); origin != models.OriginCMSPlugin {
		t.Fatalf("unexpected origin %q", origin)
	}
}

func TestPolicyDefaults(t *testing.T) {
	p, err := Parse([]byte(samplePolicy))
	if err != nil {
		t.Fatal("Failed to parse policy:", err)
	}

	// Unknown source falls back to the defaults.
	if risk := p.RiskFor("totally-new-source"); risk != models.RiskMedium {
		t.Fatalf("unexpected default risk %q", risk)
	}
	if origin := p.OriginFor("totally-new-source"); origin != models.OriginDashboard {
		t.Fatalf("unexpected default origin %q", origin)
	}

	// A rule without origin keeps the default origin.
	if origin := p.OriginFor("release"); origin != models.OriginDashboard {
		t.Fatalf("unexpected origin %q", origin)
	}
}

func TestPolicyRejectsRuleWithoutSource(t *testing.T) {
	_, err := Parse([]byte("- risk: high\n"))
	if err == nil {
		t.Fatal("expected an error for a rule without source")
	}
}

func TestEmptyPathYieldsDefaults(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatal("Failed to load empty policy:", err)
	}
	if risk := p.RiskFor("anything"); risk != models.RiskMedium {
		t.Fatalf("unexpected risk %q", risk)
	}
}
