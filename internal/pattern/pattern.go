// Package pattern implements glob matching against the virtual evidence
// root. Patterns use shell-glob semantics where `*` crosses path
// separators, so a pattern like `*/databases/contacts.db` matches a
// candidate at any depth.
package pattern

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// VirtualRoot is the conceptual prefix all candidates are matched under.
const VirtualRoot = "root/"

// Normalize strips the redundant leading `*/` or `root/` segment that
// callers sometimes carry in their patterns. The stripped form is what gets
// combined with the virtual root for matching.
func Normalize(p string) string {
	if strings.HasPrefix(p, "*/") {
		return p[2:]
	}
	if strings.HasPrefix(p, VirtualRoot) {
		return p[len(VirtualRoot):]
	}
	return p
}

// Matcher is a pattern compiled once and evaluated against many
// source-relative candidate names.
type Matcher struct {
	rooted glob.Glob // VirtualRoot + normalized pattern
	raw    glob.Glob // pattern exactly as given
}

// Compile builds a Matcher. Both the rooted-normalized and the raw form of
// the pattern are compiled; a candidate matching either form qualifies, so
// patterns that already include a redundant prefix keep working.
func Compile(p string) (*Matcher, error) {
	raw, err := glob.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", p, err)
	}
	rooted, err := glob.Compile(VirtualRoot + Normalize(p))
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", p, err)
	}
	return &Matcher{rooted: rooted, raw: raw}, nil
}

// Match reports whether the source-relative name matches the pattern under
// the virtual root.
func (m *Matcher) Match(name string) bool {
	candidate := VirtualRoot + strings.TrimPrefix(name, "/")
	return m.rooted.Match(candidate) || m.raw.Match(candidate)
}
