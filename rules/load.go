package rules

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// LoadRules reads rules from a YAML or JSON file. The file holds either a
// top-level list of rules or an object with a "rules" list.
func LoadRules(fs afero.Fs, path string) ([]Rule, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	rules, err := ParseRules(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes rules from data. ext selects JSON for ".json" and YAML
// otherwise.
func ParseRules(data []byte, ext string) ([]Rule, error) {
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(ext, ".json") {
		unmarshal = json.Unmarshal
	}

	var list []Rule
	if err := unmarshal(data, &list); err == nil {
		return checkRules(list)
	}
	var doc ruleFile
	if err := unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return checkRules(doc.Rules)
}

func checkRules(rules []Rule) ([]Rule, error) {
	for i, rule := range rules {
		if rule.Path == "" && rule.Expr == "" {
			return nil, fmt.Errorf("rule %d: path or expr required", i)
		}
		if !rule.Required && rule.Expr == "" {
			return nil, fmt.Errorf("rule %d (%s): expr required unless rule is required", i, rule.Path)
		}
	}
	return rules, nil
}
