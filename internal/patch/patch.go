// Package patch locates pinned package versions in a stage's text and
// substitutes newly resolved versions, leaving every other byte intact.
package patch

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Candidates returns the deduplicated package names captured by pattern
// across stageText. The result is sorted so query commands and logs are
// stable. An empty result means the stage has no pins and is not an error.
func Candidates(stageText string, pattern *regexp.Regexp) []string {
	seen := make(map[string]struct{})
	for _, m := range pattern.FindAllStringSubmatch(stageText, -1) {
		seen[m[1]] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply rewrites every pin matched by pattern whose package name has an
// entry in newVersions, and returns the patched text. Each newVersions
// entry is a "name<sep>version" line as produced by the package manager
// query. Substitution uses the captured match offsets, applied right to
// left so earlier offsets stay valid; pins without a matching entry are
// left untouched. Applying the same versions twice is a no-op on the
// second pass.
func Apply(stageText string, pattern *regexp.Regexp, sep string, newVersions []string) string {
	versions := make(map[string]string, len(newVersions))
	for _, entry := range newVersions {
		name, version, ok := strings.Cut(entry, sep)
		if !ok || name == "" || version == "" {
			continue
		}
		versions[name] = version
	}
	if len(versions) == 0 {
		return stageText
	}

	matches := pattern.FindAllStringSubmatchIndex(stageText, -1)
	patched := stageText
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		name := stageText[m[2]:m[3]]
		version, ok := versions[name]
		if !ok {
			continue
		}
		patched = patched[:m[0]] + name + sep + version + patched[m[1]:]
	}
	return patched
}

// UnifiedDiff renders a unified diff between the original and patched text,
// labeled with path. It returns "" when the two are identical, in which
// case no confirmation should be requested.
func UnifiedDiff(original, patched, path string) (string, error) {
	if original == patched {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(patched),
		FromFile: path + " (old)",
		ToFile:   path + " (new)",
		Context:  3,
	})
}
