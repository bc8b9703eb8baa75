package entitystore

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// FieldSelector maps one source path of an entity onto a key of the projected output.
type FieldSelector struct {
	OutputKey  string
	SourcePath string
}

// Projection is an ordered list of FieldSelectors.
type Projection []FieldSelector

// ProjectionOf builds a Projection for the given field paths.
// Plain names are used verbatim as output keys, dotted paths are camel-cased ("ref.name" -> "refName").
func ProjectionOf(paths ...string) Projection {
	projection := make(Projection, 0, len(paths))

	for _, path := range paths {
		projection = append(projection, FieldSelector{
			OutputKey:  camelize(path),
			SourcePath: path,
		})
	}

	return projection
}

// SourcePaths returns the source paths of all selectors in order.
func (p Projection) SourcePaths() []string {
	paths := make([]string, 0, len(p))
	for _, selector := range p {
		paths = append(paths, selector.SourcePath)
	}

	return paths
}

// Apply projects the given values onto a new map, resolving nested paths through map[string]any members.
// Paths that cannot be resolved yield nil.
func (p Projection) Apply(values map[string]any) map[string]any {
	projected := make(map[string]any, len(p))

	for _, selector := range p {
		projected[selector.OutputKey] = lookupPath(values, selector.SourcePath)
	}

	return projected
}

// RootPaths returns the distinct first segments of all dotted source paths, in order of appearance.
func (p Projection) RootPaths() []string {
	var roots []string
	seen := make(map[string]bool)

	for _, selector := range p {
		root, _, nested := strings.Cut(selector.SourcePath, ".")
		if !nested || seen[root] {
			continue
		}

		seen[root] = true
		roots = append(roots, root)
	}

	return roots
}

func lookupPath(values map[string]any, path string) any {
	var current any = values

	for _, segment := range strings.Split(path, ".") {
		members, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current = members[segment]
	}

	return current
}

func camelize(path string) string {
	segments := strings.Split(path, ".")
	if len(segments) == 1 {
		return path
	}

	var b strings.Builder
	b.WriteString(segments[0])

	for _, segment := range segments[1:] {
		r, size := utf8.DecodeRuneInString(segment)
		if r == utf8.RuneError {
			continue
		}

		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(segment[size:])
	}

	return b.String()
}
