// Package synonyms provides the synonym index used for query expansion.
package synonyms

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JuanR0/biblio/internal/observability"
	"github.com/JuanR0/biblio/internal/textproc"
)

// ErrInvalidFormat is returned when a synonym source is not a mapping of
// group name to member list.
var ErrInvalidFormat = errors.New("invalid synonym file format")

// DefaultExclusions lists words that must never share a group. The
// relation is applied symmetrically.
var DefaultExclusions = map[string][]string{
	"libro":       {"computadora", "cubiculo", "equipo", "sala"},
	"computadora": {"libro", "cubiculo", "texto", "obra"},
	"cubiculo":    {"libro", "computadora", "texto", "equipo"},
	"conseguir":   {"prestar"},
}

// Group is a set of mutually substitutable words. Members keep source order
// and the canonical name is always first.
type Group struct {
	Name    string
	Members []string
}

// Index maps words to their synonym group. It is immutable after Build and
// safe for concurrent use. The zero value is an empty index.
type Index struct {
	groups      []Group
	wordToGroup map[string]int
}

// Builder assembles an Index, enforcing exclusivity at build time.
type Builder struct {
	exclusions map[string]map[string]struct{}
	groups     []Group
	logger     *observability.Logger
}

// NewBuilder creates a builder with the given exclusion table.
func NewBuilder(exclusions map[string][]string, logger *observability.Logger) *Builder {
	if logger == nil {
		logger = observability.NopLogger()
	}
	b := &Builder{
		exclusions: make(map[string]map[string]struct{}),
		logger:     logger,
	}
	for word, conflicts := range exclusions {
		w := textproc.Fold(word)
		for _, c := range conflicts {
			cn := textproc.Fold(c)
			if w == "" || cn == "" || w == cn {
				continue
			}
			b.addExclusion(w, cn)
			b.addExclusion(cn, w)
		}
	}
	return b
}

func (b *Builder) addExclusion(a, c string) {
	if b.exclusions[a] == nil {
		b.exclusions[a] = make(map[string]struct{})
	}
	b.exclusions[a][c] = struct{}{}
}

func (b *Builder) conflicts(a, c string) bool {
	_, ok := b.exclusions[a][c]
	return ok
}

// Add registers a group. The group name is its canonical first member.
// Members conflicting with an already kept member are stripped.
func (b *Builder) Add(name string, members []string) {
	canonical := textproc.Fold(name)
	candidates := make([]string, 0, len(members)+1)
	if canonical != "" {
		candidates = append(candidates, canonical)
	}
	for _, m := range members {
		if n := textproc.Fold(m); n != "" {
			candidates = append(candidates, n)
		}
	}

	kept := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		conflict := ""
		for _, k := range kept {
			if b.conflicts(k, c) {
				conflict = k
				break
			}
		}
		if conflict != "" {
			b.logger.Warn().
				Str("group", name).
				Str("word", c).
				Str("conflicts_with", conflict).
				Msg("Stripped exclusive word from synonym group")
			continue
		}
		seen[c] = struct{}{}
		kept = append(kept, c)
	}

	if len(kept) == 0 {
		return
	}
	if canonical == "" {
		canonical = kept[0]
	}
	b.groups = append(b.groups, Group{Name: canonical, Members: kept})
}

// Build returns the immutable index. A word listed in several groups stays
// in the first one.
func (b *Builder) Build() *Index {
	idx := &Index{wordToGroup: make(map[string]int)}
	for _, g := range b.groups {
		members := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			if owner, taken := idx.wordToGroup[m]; taken {
				b.logger.Warn().
					Str("word", m).
					Str("kept_in", idx.groups[owner].Name).
					Str("dropped_from", g.Name).
					Msg("Word belongs to more than one synonym group")
				continue
			}
			members = append(members, m)
		}
		if len(members) < 2 {
			// A singleton group carries no synonym and the word stays free.
			continue
		}
		pos := len(idx.groups)
		idx.groups = append(idx.groups, Group{Name: g.Name, Members: members})
		for _, m := range members {
			idx.wordToGroup[m] = pos
		}
	}
	return idx
}

// Empty returns an index in which every word is its own group.
func Empty() *Index {
	return &Index{wordToGroup: map[string]int{}}
}

// LoadFile reads a YAML or JSON mapping {group: [members...]} and builds an
// index. File order is preserved.
func LoadFile(path string, exclusions map[string][]string, logger *observability.Logger) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms: %w", err)
	}
	return Parse(data, exclusions, logger)
}

// Parse builds an index from YAML or JSON bytes.
func Parse(data []byte, exclusions map[string][]string, logger *observability.Logger) (*Index, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse synonyms: %w", err)
	}

	b := NewBuilder(exclusions, logger)
	if len(root.Content) == 0 {
		return b.Build(), nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, ErrInvalidFormat
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		var members []string
		if err := val.Decode(&members); err != nil {
			return nil, fmt.Errorf("%w: group %q: %v", ErrInvalidFormat, key.Value, err)
		}
		b.Add(key.Value, members)
	}
	return b.Build(), nil
}

// LoadOrEmpty loads the synonym file, degrading to an empty index on any
// error. A blank path yields an empty index without a warning.
func LoadOrEmpty(path string, exclusions map[string][]string, logger *observability.Logger) *Index {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if strings.TrimSpace(path) == "" {
		return Empty()
	}
	idx, err := LoadFile(path, exclusions, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Synonyms unavailable, expansion disabled")
		return Empty()
	}
	logger.Info().Str("path", path).Int("groups", idx.Len()).Msg("Synonyms loaded")
	return idx
}

// Len returns the number of groups.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.groups)
}

// Groups returns a copy of the groups in load order.
func (i *Index) Groups() []Group {
	if i == nil {
		return nil
	}
	out := make([]Group, len(i.groups))
	for n, g := range i.groups {
		out[n] = Group{Name: g.Name, Members: append([]string(nil), g.Members...)}
	}
	return out
}

func (i *Index) lookup(word string) (Group, bool) {
	if i == nil {
		return Group{}, false
	}
	pos, ok := i.wordToGroup[word]
	if !ok {
		return Group{}, false
	}
	return i.groups[pos], true
}

// HasGroup reports whether the normalized word belongs to a group.
func (i *Index) HasGroup(word string) bool {
	_, ok := i.lookup(textproc.Fold(word))
	return ok
}

// Synonyms returns the word's group members, or a singleton containing the
// normalized word.
func (i *Index) Synonyms(word string) []string {
	w := textproc.Fold(word)
	if g, ok := i.lookup(w); ok {
		return append([]string(nil), g.Members...)
	}
	if w == "" {
		return nil
	}
	return []string{w}
}

// Alternative returns the first group member that differs from word.
func (i *Index) Alternative(word string) (string, bool) {
	w := textproc.Fold(word)
	g, ok := i.lookup(w)
	if !ok {
		return "", false
	}
	for _, m := range g.Members {
		if m != w {
			return m, true
		}
	}
	return "", false
}

// Expand returns the ordered, deduplicated union of Synonyms over words.
func (i *Index) Expand(words []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(words))
	for _, word := range words {
		for _, s := range i.Synonyms(word) {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// IsSynonym reports whether two words are equal or share a group.
func (i *Index) IsSynonym(a, b string) bool {
	na, nb := textproc.Fold(a), textproc.Fold(b)
	if na == nb {
		return true
	}
	ga, okA := i.wordToGroupPos(na)
	gb, okB := i.wordToGroupPos(nb)
	return okA && okB && ga == gb
}

func (i *Index) wordToGroupPos(w string) (int, bool) {
	if i == nil {
		return 0, false
	}
	pos, ok := i.wordToGroup[w]
	return pos, ok
}

// FindInText reports, per keyword, which of its synonyms occur as whole
// words in the text.
func (i *Index) FindInText(text string, keywords []string) map[string][]string {
	padded := " " + textproc.Fold(text) + " "
	found := make(map[string][]string)
	for _, kw := range keywords {
		for _, s := range i.Synonyms(kw) {
			if strings.Contains(padded, " "+s+" ") {
				found[kw] = append(found[kw], s)
			}
		}
	}
	return found
}
