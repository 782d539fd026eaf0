// Package knowledge loads and serves the per-category rule sets.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JuanR0/biblio/internal/observability"
)

var (
	// ErrInvalidFormat is returned when a rule file is not a mapping of rule
	// id to rule body.
	ErrInvalidFormat = errors.New("invalid rule file format")

	// ErrInvalidRule marks a rule without an answer or without questions.
	ErrInvalidRule = errors.New("invalid rule")
)

// Rule is one canned answer and the example questions that lead to it.
type Rule struct {
	ID        string   `json:"id" yaml:"id"`
	Questions []string `json:"questions" yaml:"questions"`
	Answer    string   `json:"answer" yaml:"answer"`
}

// Validate checks the rule invariants.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Answer) == "" {
		return fmt.Errorf("%w: %s: empty answer", ErrInvalidRule, r.ID)
	}
	if len(r.Questions) == 0 {
		return fmt.Errorf("%w: %s: no example questions", ErrInvalidRule, r.ID)
	}
	return nil
}

// rawRule accepts both the Spanish and English key spellings.
type rawRule struct {
	Preguntas []string `yaml:"preguntas"`
	Respuesta string   `yaml:"respuesta"`
	Questions []string `yaml:"questions"`
	Answer    string   `yaml:"answer"`
}

func (r rawRule) toRule(id string) Rule {
	questions := r.Preguntas
	if len(questions) == 0 {
		questions = r.Questions
	}
	answer := r.Respuesta
	if answer == "" {
		answer = r.Answer
	}

	kept := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			kept = append(kept, q)
		}
	}
	return Rule{ID: id, Questions: kept, Answer: strings.TrimSpace(answer)}
}

// ParseRules decodes a YAML or JSON document {rule_id: {preguntas, respuesta}}.
// Document order is preserved. Invalid rules are returned in skipped.
func ParseRules(data []byte) (rules []Rule, skipped []error, err error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(root.Content) == 0 {
		return nil, nil, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("%w: expected an object of rules", ErrInvalidFormat)
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		id := doc.Content[i].Value
		var raw rawRule
		if err := doc.Content[i+1].Decode(&raw); err != nil {
			skipped = append(skipped, fmt.Errorf("%w: %s: %v", ErrInvalidRule, id, err))
			continue
		}
		rule := raw.toRule(id)
		if err := rule.Validate(); err != nil {
			skipped = append(skipped, err)
			continue
		}
		rules = append(rules, rule)
	}
	return rules, skipped, nil
}

// Store holds the loaded rules. It is immutable once built and safe for
// concurrent reads.
type Store struct {
	categories []string
	rules      map[string][]Rule
}

// NewStore builds a store from rules keyed by category. Categories keep the
// given order; a category without rules is present and empty.
func NewStore(categories []string, rules map[string][]Rule) *Store {
	s := &Store{
		categories: append([]string(nil), categories...),
		rules:      make(map[string][]Rule, len(categories)),
	}
	for _, c := range categories {
		s.rules[c] = append([]Rule(nil), rules[c]...)
	}
	return s
}

// Categories returns the configured categories in order.
func (s *Store) Categories() []string {
	return append([]string(nil), s.categories...)
}

// Rules returns the category's rules in load order. Unknown categories
// yield nil.
func (s *Store) Rules(category string) []Rule {
	if s == nil {
		return nil
	}
	return s.rules[category]
}

// Count returns the number of rules in a category.
func (s *Store) Count(category string) int {
	return len(s.Rules(category))
}

// Counts returns rule counts for every category.
func (s *Store) Counts() map[string]int {
	out := make(map[string]int, len(s.categories))
	for _, c := range s.categories {
		out[c] = len(s.rules[c])
	}
	return out
}

// Total returns the number of rules across categories.
func (s *Store) Total() int {
	n := 0
	for _, c := range s.categories {
		n += len(s.rules[c])
	}
	return n
}

// LoaderConfig controls where rule files are read from.
type LoaderConfig struct {
	Dir        string
	Categories []string
	// Files overrides the default "<category>_rules.json" file name.
	Files map[string]string
	// ExampleData substitutes built-in rules for categories whose file is
	// missing or empty.
	ExampleData bool
}

// FileFor returns the rule file path for a category.
func (c LoaderConfig) FileFor(category string) string {
	name := c.Files[category]
	if name == "" {
		name = category + "_rules.json"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Dir, name)
}

// Load reads every category's rule file. Failures are logged and leave the
// category empty; Load itself never fails.
func Load(cfg LoaderConfig, logger *observability.Logger) *Store {
	if logger == nil {
		logger = observability.NopLogger()
	}
	log := logger.WithComponent("knowledge")

	rules := make(map[string][]Rule, len(cfg.Categories))
	for _, category := range cfg.Categories {
		path := cfg.FileFor(category)
		loaded, err := loadFile(path, log)
		if err != nil {
			log.Warn().Err(err).Str("category", category).Str("path", path).Msg("Rules not loaded")
		}

		if len(loaded) == 0 && cfg.ExampleData {
			if examples := ExampleRules(category); len(examples) > 0 {
				log.Info().Str("category", category).Int("rules", len(examples)).Msg("Using built-in example rules")
				loaded = examples
			}
		}

		rules[category] = loaded
		log.Info().Str("category", category).Int("rules", len(loaded)).Msg("Category loaded")
	}
	return NewStore(cfg.Categories, rules)
}

func loadFile(path string, log *observability.Logger) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	rules, skipped, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	for _, s := range skipped {
		log.Warn().Err(s).Str("path", path).Msg("Skipping rule")
	}
	return rules, nil
}

// ExampleRules returns the built-in rules for categories that ship them.
func ExampleRules(category string) []Rule {
	switch category {
	case "computers":
		return []Rule{{
			ID:        "uso_computadoras",
			Questions: []string{"uso de computadoras", "cómo usar ordenador"},
			Answer:    "Las computadoras están disponibles por orden de llegada. Máximo 2 horas de uso.",
		}}
	case "cubicles":
		return []Rule{{
			ID:        "reserva_cubiculos",
			Questions: []string{"cómo reservar cubículo", "sala de estudio"},
			Answer:    "Reserva cubículos en recepción. Máximo 3 horas por día.",
		}}
	default:
		return nil
	}
}
