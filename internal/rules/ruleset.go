package rules

import (
	"fmt"
	"os"
	"strings"
)

// RuleSet is the full content of a rule file: synthesized rules followed by
// manually supplied blocks.
type RuleSet struct {
	Rules   []KeepRule
	Extra   []string
	Options Options
}

// NewRuleSet merges extra blocks after the synthesized rules. Extra blocks keep
// their supplied order; blank and repeated blocks are dropped.
func NewRuleSet(rules []KeepRule, extra []string, opts Options) RuleSet {
	seen := make(map[string]struct{}, len(extra))
	var blocks []string
	for _, block := range extra {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if _, ok := seen[block]; ok {
			continue
		}
		seen[block] = struct{}{}
		blocks = append(blocks, block)
	}
	return RuleSet{Rules: rules, Extra: blocks, Options: opts}
}

// Render returns the rule file text. The same RuleSet always renders to the
// same bytes.
func (s RuleSet) Render() string {
	var b strings.Builder
	for _, r := range s.Rules {
		b.WriteString(r.Render(s.Options))
	}
	for _, block := range s.Extra {
		b.WriteString(block)
		b.WriteString("\n")
	}
	return b.String()
}

// ReadExtraFiles reads manual rule files, one block per file, in order.
func ReadExtraFiles(paths []string) ([]string, error) {
	blocks := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read extra rules %s: %w", p, err)
		}
		blocks = append(blocks, string(data))
	}
	return blocks, nil
}
