package policy

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/redgrape/thegrid/internal/models"
)

// Rule classifies one producer source. Risk is supplied by configuration,
// not computed: whether publishing CMS content is risky is a domain
// judgement call.
type Rule struct {
	Source string `yaml:"source"`
	Risk   string `yaml:"risk"`
	Origin string `yaml:"origin"`
}

type Policy struct {
	rules map[string]Rule
}

func Parse(data []byte) (*Policy, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, errors.Wrap(err, "Failed to parse approval policy")
	}

	policy := &Policy{rules: make(map[string]Rule)}
	for _, rule := range rules {
		if rule.Source == "" {
			return nil, errors.New("approval policy rule without source")
		}
		policy.rules[rule.Source] = rule
	}
	return policy, nil
}

// Load reads the yaml policy file. An empty path yields an empty policy:
// every source falls back to the defaults.
func Load(path string) (*Policy, error) {
	if path == "" {
		return &Policy{rules: make(map[string]Rule)}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read approval policy")
	}
	return Parse(data)
}

func (p *Policy) RiskFor(source string) string {
	if rule, ok := p.rules[source]; ok && rule.Risk != "" {
		return rule.Risk
	}
	return models.RiskMedium
}

func (p *Policy) OriginFor(source string) string {
	if rule, ok := p.rules[source]; ok && rule.Origin != "" {
		return rule.Origin
	}
	return models.OriginDashboard
}
