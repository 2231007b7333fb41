// Package hashtag maps free text to a short list of topic hashtags using a
// fixed keyword table.
package hashtag

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Limit is the largest number of hashtags an Extractor ever returns.
const Limit = 4

// Rule maps a lower-case keyword to a canonical hashtag.
type Rule struct {
	Keyword string `yaml:"keyword"`
	Tag     string `yaml:"tag"`
}

// Table is an ordered, read-only set of rules. Matching walks the rules in
// order, so the order decides which tags survive truncation.
type Table struct {
	rules []Rule
}

// NewTable validates rules and returns a Table holding its own copy of them.
func NewTable(rules []Rule) (Table, error) {
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		tag := strings.TrimSpace(r.Tag)
		if kw == "" {
			return Table{}, fmt.Errorf("hashtag rule %d: empty keyword", i)
		}
		if len(tag) < 2 || !strings.HasPrefix(tag, "#") || strings.ContainsAny(tag, " \t\n") {
			return Table{}, fmt.Errorf("hashtag rule %d (%q): invalid tag %q", i, kw, r.Tag)
		}
		out = append(out, Rule{Keyword: kw, Tag: tag})
	}
	return Table{rules: out}, nil
}

// Rules returns a copy of the table's rules.
func (t Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Len returns the number of rules.
func (t Table) Len() int { return len(t.rules) }

var defaultRules = []Rule{
	{"artificial intelligence", "#AI"},
	{"machine learning", "#ML"},
	{"deep learning", "#DeepLearning"},
	{"neural network", "#NeuralNetworks"},
	{"data science", "#DataScience"},
	{"blockchain", "#Blockchain"},
	{"cryptocurrency", "#Crypto"},
	{"crypto", "#Crypto"},
	{"bitcoin", "#Bitcoin"},
	{"ethereum", "#Ethereum"},
	{"web3", "#Web3"},
	{"metaverse", "#Metaverse"},
	{"virtual reality", "#VR"},
	{"augmented reality", "#AR"},
	{"robotics", "#Robotics"},
	{"automation", "#Automation"},
	{"cybersecurity", "#Cybersecurity"},
	{"cloud", "#Cloud"},
}

// DefaultTable returns the built-in technology keyword table.
func DefaultTable() Table {
	t, err := NewTable(defaultRules)
	if err != nil {
		panic(err)
	}
	return t
}

type tableFile struct {
	Hashtags []Rule `yaml:"hashtags"`
}

// LoadTable reads a YAML file of the form
//
//	hashtags:
//	  - keyword: machine learning
//	    tag: "#ML"
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read hashtag file: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Table{}, fmt.Errorf("parse hashtag yaml: %w", err)
	}
	if len(f.Hashtags) == 0 {
		return Table{}, fmt.Errorf("hashtag file %s: no rules", path)
	}
	return NewTable(f.Hashtags)
}

// Extractor finds hashtags for a text.
type Extractor struct {
	table Table
	max   int
}

// NewExtractor returns an Extractor yielding at most max tags. max is
// clamped to [0, Limit].
func NewExtractor(table Table, max int) *Extractor {
	if max < 0 {
		max = 0
	}
	if max > Limit {
		max = Limit
	}
	return &Extractor{table: table, max: max}
}

// Extract returns the distinct tags whose keyword occurs in text, in table
// order, truncated to the extractor's limit.
func (e *Extractor) Extract(text string) []string {
	out := []string{}
	if text == "" || e.max == 0 {
		return out
	}
	lower := strings.ToLower(text)
	seen := make(map[string]bool, e.max)
	for _, r := range e.table.rules {
		if seen[r.Tag] || !strings.Contains(lower, r.Keyword) {
			continue
		}
		seen[r.Tag] = true
		out = append(out, r.Tag)
		if len(out) == e.max {
			break
		}
	}
	return out
}
