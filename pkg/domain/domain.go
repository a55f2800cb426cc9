// Package domain resolves the publisher domain of a URL, applying per-suffix
// heuristics to see through shorteners and platform subdomains.
package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

const matchTimeout = 100 * time.Millisecond

// Heuristic maps one host suffix to the regex that recovers the real domain.
type Heuristic struct {
	Suffix string
	Expr   *regexp2.Regexp
}

// Heuristics is an injectable suffix -> regex table. The zero value is an
// empty table.
type Heuristics struct {
	rules []Heuristic
}

// NewHeuristics compiles a suffix -> pattern map. Patterns use the
// Perl/Python-compatible syntax of regexp2.
func NewHeuristics(patterns map[string]string) (Heuristics, error) {
	suffixes := make([]string, 0, len(patterns))
	for suffix := range patterns {
		suffixes = append(suffixes, suffix)
	}
	// Longest suffix first so the most specific rule is tried first.
	sort.Slice(suffixes, func(i, j int) bool {
		if len(suffixes[i]) != len(suffixes[j]) {
			return len(suffixes[i]) > len(suffixes[j])
		}
		return suffixes[i] < suffixes[j]
	})

	rules := make([]Heuristic, 0, len(suffixes))
	for _, suffix := range suffixes {
		expr, err := regexp2.Compile(patterns[suffix], regexp2.None)
		if err != nil {
			return Heuristics{}, fmt.Errorf("invalid heuristic for %q: %w", suffix, err)
		}
		expr.MatchTimeout = matchTimeout
		rules = append(rules, Heuristic{Suffix: strings.ToLower(suffix), Expr: expr})
	}
	return Heuristics{rules: rules}, nil
}

// Len returns the number of rules.
func (h Heuristics) Len() int {
	return len(h.rules)
}

// LoadHeuristics reads a YAML or JSON suffix -> regex map. Any problem with
// the file yields an empty table and a warning, never an error.
func LoadHeuristics(path string, logger *slog.Logger) Heuristics {
	if path == "" {
		return Heuristics{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read heuristics, using none", "path", path, "error", err)
		return Heuristics{}
	}

	patterns := map[string]string{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &patterns)
	} else {
		err = yaml.Unmarshal(data, &patterns)
	}
	if err != nil {
		logger.Warn("Malformed heuristics, using none", "path", path, "error", err)
		return Heuristics{}
	}

	h, err := NewHeuristics(patterns)
	if err != nil {
		logger.Warn("Invalid heuristic pattern, using none", "path", path, "error", err)
		return Heuristics{}
	}

	logger.Info("Loaded domain heuristics", "path", path, "count", h.Len())
	return h
}

// Resolve returns the publisher domain for rawURL. An unparsable URL gives "".
func Resolve(rawURL string, h Heuristics) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := u.Host

	lowered := strings.ToLower(host)
	for _, rule := range h.rules {
		if !strings.HasSuffix(lowered, rule.Suffix) {
			continue
		}
		m, err := rule.Expr.FindStringMatch(rawURL)
		if err != nil || m == nil {
			break
		}
		if groups := m.Groups(); len(groups) > 1 && groups[1].Capture.Length > 0 {
			return groups[1].String()
		}
		break
	}

	return host
}
