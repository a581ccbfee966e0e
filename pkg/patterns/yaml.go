package patterns

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML trims every expression; block scalars keep a trailing newline.
func (r *RegexSpec) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Version            yaml.Node `yaml:"version"`
		Pattern            string    `yaml:"pattern"`
		Start              string    `yaml:"start"`
		End                string    `yaml:"end"`
		AdditionalMatch    []string  `yaml:"additional_match"`
		AdditionalNotMatch []string  `yaml:"additional_not_match"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	version, err := parseVersion(&raw.Version)
	if err != nil {
		return err
	}

	*r = RegexSpec{
		Version:            version,
		Pattern:            strings.TrimSpace(raw.Pattern),
		Start:              strings.TrimSpace(raw.Start),
		End:                strings.TrimSpace(raw.End),
		AdditionalMatch:    trimAll(raw.AdditionalMatch),
		AdditionalNotMatch: trimAll(raw.AdditionalNotMatch),
	}
	return nil
}

// parseVersion accepts 0.1 as well as "0.1" and "v0.1".
func parseVersion(node *yaml.Node) (float64, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return 0, nil
	}
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("line %d: regex.version must be a number", node.Line)
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(node.Value), "v"), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: regex.version must be a number: %w", node.Line, err)
	}
	return v, nil
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// UnmarshalYAML defaults end_offset to EndOfInput.
func (t *TestFixture) UnmarshalYAML(value *yaml.Node) error {
	type plain TestFixture
	p := plain{EndOffset: EndOfInput}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = TestFixture(p)
	return nil
}

// UnmarshalYAML defaults end_offset to EndOfInput.
func (e *ExpectedMatch) UnmarshalYAML(value *yaml.Node) error {
	type plain ExpectedMatch
	p := plain{EndOffset: EndOfInput}
	if err := value.Decode(&p); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	*e = ExpectedMatch(p)
	return nil
}
