// Package redact scrubs credentials from captured text before it is written
// into a bundle.
package redact

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const Mask = "********"

type rule struct {
	re   *regexp.Regexp
	repl string
}

var defaultRules = []rule{
	{
		re:   regexp.MustCompile(`(?s)-----BEGIN ([A-Z0-9 ]*)PRIVATE KEY-----.*?-----END ([A-Z0-9 ]*)PRIVATE KEY-----`),
		repl: "-----BEGIN ${1}PRIVATE KEY-----\n" + Mask + "\n-----END ${2}PRIVATE KEY-----",
	},
	{
		re:   regexp.MustCompile(`(?i)((?:password|passwd|passphrase|secret|token|api[_-]?key|auth[_-]?key)\s*[:=]\s*)("[^"\n]*"|'[^'\n]*'|[^\s,;]+)`),
		repl: "${1}" + Mask,
	},
	// ISC dhcpd OMAPI/TSIG keys: secret "base64";
	{
		re:   regexp.MustCompile(`(?i)(\bsecret\s+)("[^"\n]*")`),
		repl: `${1}"` + Mask + `"`,
	},
}

// Redactor applies an ordered set of replacement rules. It is safe for
// concurrent use.
type Redactor struct {
	rules []rule
}

// Default returns a Redactor with the built-in rules only.
func Default() *Redactor {
	return &Redactor{rules: defaultRules}
}

// New returns a Redactor with the built-in rules plus one regular expression
// per line of patternFile. Whole matches of extra patterns are masked.
func New(patternFile string) (*Redactor, error) {
	r := Default()
	if patternFile == "" {
		return r, nil
	}
	patterns, err := loadPatterns(patternFile)
	if err != nil {
		return nil, err
	}
	rules := make([]rule, 0, len(defaultRules)+len(patterns))
	rules = append(rules, defaultRules...)
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p, err)
		}
		rules = append(rules, rule{re: re, repl: Mask})
	}
	r.rules = rules
	return r, nil
}

func loadPatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, errors.New("redact pattern file contained no patterns")
	}
	return patterns, nil
}

// Redact returns data with every rule applied and the number of replacements.
func (r *Redactor) Redact(data []byte) ([]byte, int) {
	if r == nil {
		return data, 0
	}
	count := 0
	for _, rl := range r.rules {
		n := len(rl.re.FindAllIndex(data, -1))
		if n == 0 {
			continue
		}
		count += n
		data = rl.re.ReplaceAll(data, []byte(rl.repl))
	}
	return data, count
}
