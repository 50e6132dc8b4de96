// Package jsonpath walks decoded JSON documents by an ordered list of keys
// and indices. Every lookup is tolerant: a missing key, an out-of-range
// index or a value of the wrong shape yields the caller's default instead
// of an error.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is a single navigation step: either a mapping key or a sequence index.
type Step struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a step that descends into a mapping by key.
func Key(k string) Step {
	return Step{key: k}
}

// Index returns a step that descends into a sequence by position.
func Index(i int) Step {
	return Step{index: i, isIndex: true}
}

// IsIndex reports whether the step addresses a sequence element.
func (s Step) IsIndex() bool {
	return s.isIndex
}

func (s Step) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.key
}

// Path is an ordered list of steps from the document root.
type Path []Step

// Join returns a new path made of prefix followed by steps. The prefix is
// copied so shared prefixes are never aliased.
func Join(prefix Path, steps ...Step) Path {
	out := make(Path, 0, len(prefix)+len(steps))
	out = append(out, prefix...)
	return append(out, steps...)
}

// String renders the path in dotted form, e.g. "merke[0].merkeKode".
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if !s.isIndex && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Extract walks root along path and returns the value found, or def when
// any step is absent or of the wrong shape. A nil value at the end of the
// walk is also replaced by def.
func Extract(root any, path Path, def any) any {
	current := root
	for _, step := range path {
		if current == nil {
			return def
		}

		if step.isIndex {
			seq, ok := current.([]any)
			if !ok || step.index < 0 || step.index >= len(seq) {
				return def
			}
			current = seq[step.index]
			continue
		}

		obj, ok := current.(map[string]any)
		if !ok {
			return def
		}
		// An absent key becomes nil and is resolved on the next step.
		current = obj[step.key]
	}

	if current == nil {
		return def
	}
	return current
}

// Parse converts a dotted path such as "a.b[0].c" or "a.b.0.c" into a Path.
// Purely numeric segments are treated as indices.
func Parse(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}

	var path Path
	for _, segment := range strings.Split(s, ".") {
		if segment == "" {
			return nil, fmt.Errorf("empty segment in path %q", s)
		}

		name := segment
		var indices []string
		if open := strings.IndexByte(segment, '['); open >= 0 {
			name = segment[:open]
			rest := segment[open:]
			for rest != "" {
				if rest[0] != '[' {
					return nil, fmt.Errorf("unexpected %q in path %q", rest, s)
				}
				end := strings.IndexByte(rest, ']')
				if end < 0 {
					return nil, fmt.Errorf("unterminated index in path %q", s)
				}
				indices = append(indices, rest[1:end])
				rest = rest[end+1:]
			}
		}

		if name != "" {
			if n, err := strconv.Atoi(name); err == nil {
				if n < 0 {
					return nil, fmt.Errorf("negative index %d in path %q", n, s)
				}
				path = append(path, Index(n))
			} else {
				path = append(path, Key(name))
			}
		}

		for _, idx := range indices {
			n, err := strconv.Atoi(idx)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid index %q in path %q", idx, s)
			}
			path = append(path, Index(n))
		}
	}

	return path, nil
}
