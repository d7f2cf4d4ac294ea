package importer

import (
	"fmt"
	"os"
	"sort"

	"bookkeeping/models"

	"gopkg.in/yaml.v3"
)

// Profile is a saved column mapping for one bank's statement layout.
type Profile struct {
	Name        string                `yaml:"name" json:"name"`
	Strategy    models.AmountStrategy `yaml:"strategy" json:"strategy"`
	CreditToken string                `yaml:"credit_token,omitempty" json:"creditToken,omitempty"`
	DebitToken  string                `yaml:"debit_token,omitempty" json:"debitToken,omitempty"`
	Mapping     map[string]string     `yaml:"mapping" json:"mapping"`
}

type Profiles map[string]Profile

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads a YAML profile file. A missing path yields no profiles.
func LoadProfiles(path string) (Profiles, error) {
	if path == "" {
		return Profiles{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Profiles{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseProfiles(data)
}

func ParseProfiles(data []byte) (Profiles, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse import profiles: %w", err)
	}
	out := make(Profiles, len(f.Profiles))
	for _, p := range f.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("import profile without a name")
		}
		if p.Strategy == "" {
			p.Strategy = models.StrategySigned
		}
		if errs := ValidateMapping(p.Mapping, p.Strategy); len(errs) > 0 {
			return nil, fmt.Errorf("import profile %q: %s", p.Name, errs[0])
		}
		if _, dup := out[p.Name]; dup {
			return nil, fmt.Errorf("duplicate import profile %q", p.Name)
		}
		out[p.Name] = p
	}
	return out, nil
}

func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply fills the mapping and strategy of req from the profile. Fields
// already set on the request win.
func (p Profile) Apply(req *StageRequest) {
	if len(req.Mapping) == 0 {
		req.Mapping = make(map[string]string, len(p.Mapping))
		for k, v := range p.Mapping {
			req.Mapping[k] = v
		}
	}
	if req.Strategy == "" {
		req.Strategy = p.Strategy
	}
	if req.CreditToken == "" {
		req.CreditToken = p.CreditToken
	}
	if req.DebitToken == "" {
		req.DebitToken = p.DebitToken
	}
}
