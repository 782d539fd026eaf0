// Package retrieval answers library questions by categorizing them and
// matching them against the category's rules.
package retrieval

import (
	"errors"
	"fmt"

	"github.com/JuanR0/biblio/internal/textproc"
)

// Category names used by the default taxonomy.
const (
	CategoryBooks     = "books"
	CategoryComputers = "computers"
	CategoryCubicles  = "cubicles"
	CategoryGeneral   = "general"
)

// ErrInvalidTaxonomy is returned by Taxonomy.Validate.
var ErrInvalidTaxonomy = errors.New("invalid taxonomy")

// Keyword is a category keyword and its relevance weight.
type Keyword struct {
	Word   string  `yaml:"word" json:"word"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// CategorySpec describes one category.
type CategorySpec struct {
	Name      string    `yaml:"name" json:"name"`
	Keywords  []Keyword `yaml:"keywords" json:"keywords"`
	Exclusive []string  `yaml:"exclusive" json:"exclusive"`
	Phrases   []string  `yaml:"phrases" json:"phrases"`
	Threshold float64   `yaml:"threshold" json:"threshold"`
	Fallback  string    `yaml:"fallback" json:"fallback"`
}

// MaxWeight returns the largest keyword weight of the category.
func (c CategorySpec) MaxWeight() float64 {
	max := 0.0
	for _, k := range c.Keywords {
		if k.Weight > max {
			max = k.Weight
		}
	}
	return max
}

// Sniffer maps raw-question keywords to a more specific fallback answer.
type Sniffer struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Answer   string   `yaml:"answer" json:"answer"`
}

// Taxonomy is the immutable category configuration shared by the
// categorizer, the expander, the scorer and the engine.
type Taxonomy struct {
	Categories    []CategorySpec `yaml:"categories" json:"categories"`
	General       string         `yaml:"general" json:"general"`
	CriticalWords []string       `yaml:"critical_words" json:"critical_words"`
	ActionVerbs   []string       `yaml:"action_verbs" json:"action_verbs"`
	StopWords     []string       `yaml:"stop_words" json:"stop_words"`
	Sniffers      []Sniffer      `yaml:"sniffers" json:"sniffers"`
	Clarification string         `yaml:"clarification" json:"clarification"`
}

// Names returns the category names in configured order.
func (t Taxonomy) Names() []string {
	names := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		names[i] = c.Name
	}
	return names
}

// Category looks up a category by name.
func (t Taxonomy) Category(name string) (CategorySpec, bool) {
	for _, c := range t.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategorySpec{}, false
}

// Validate checks that the taxonomy can drive the engine.
func (t Taxonomy) Validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidTaxonomy)
	}
	seen := make(map[string]bool, len(t.Categories))
	for _, c := range t.Categories {
		if c.Name == "" {
			return fmt.Errorf("%w: category without a name", ErrInvalidTaxonomy)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidTaxonomy, c.Name)
		}
		seen[c.Name] = true
		if c.Threshold < 0 || c.Threshold > 1 {
			return fmt.Errorf("%w: %s threshold %.2f outside [0,1]", ErrInvalidTaxonomy, c.Name, c.Threshold)
		}
		for _, k := range c.Keywords {
			if k.Weight < 0 {
				return fmt.Errorf("%w: %s keyword %q has negative weight", ErrInvalidTaxonomy, c.Name, k.Word)
			}
		}
	}
	if !seen[t.General] {
		return fmt.Errorf("%w: general category %q is not configured", ErrInvalidTaxonomy, t.General)
	}
	return nil
}

// ScoringConfig holds the tunable constants of categorization and
// retrieval.
type ScoringConfig struct {
	StartBonus      float64 `yaml:"start_bonus" json:"start_bonus"`
	WordBonus       float64 `yaml:"word_bonus" json:"word_bonus"`
	SubstringBonus  float64 `yaml:"substring_bonus" json:"substring_bonus"`
	FeatureBonus    float64 `yaml:"feature_bonus" json:"feature_bonus"`
	PhraseBoost     float64 `yaml:"phrase_boost" json:"phrase_boost"`
	MinCategory     float64 `yaml:"min_category_score" json:"min_category_score"`
	DefaultCategory float64 `yaml:"default_category_confidence" json:"default_category_confidence"`

	TokenWeight      float64 `yaml:"token_weight" json:"token_weight"`
	SequenceWeight   float64 `yaml:"sequence_weight" json:"sequence_weight"`
	ActionBonus      float64 `yaml:"action_bonus" json:"action_bonus"`
	CriticalPenalty  float64 `yaml:"critical_penalty" json:"critical_penalty"`
	GeneralMargin    float64 `yaml:"general_margin" json:"general_margin"`
	FallbackFloor    float64 `yaml:"fallback_floor" json:"fallback_floor"`
	DefaultThreshold float64 `yaml:"default_threshold" json:"default_threshold"`
}

// DefaultScoringConfig returns the production constants.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		StartBonus:      1.5,
		WordBonus:       1.0,
		SubstringBonus:  0.7,
		FeatureBonus:    1.0,
		PhraseBoost:     2.0,
		MinCategory:     0.5,
		DefaultCategory: 0.5,

		TokenWeight:      0.7,
		SequenceWeight:   0.2,
		ActionBonus:      0.05,
		CriticalPenalty:  0.3,
		GeneralMargin:    0.1,
		FallbackFloor:    0.25,
		DefaultThreshold: 0.4,
	}
}

func keywords(weight float64, words ...string) []Keyword {
	out := make([]Keyword, len(words))
	for i, w := range words {
		out[i] = Keyword{Word: w, Weight: weight}
	}
	return out
}

// DefaultTaxonomy returns the library's four categories.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		General: CategoryGeneral,
		Categories: []CategorySpec{
			{
				Name: CategoryBooks,
				Keywords: keywords(1.0,
					"libro", "texto", "volumen", "obra", "lectura", "novela",
					"autor", "título", "editorial", "préstamo", "devolución",
					"bibliografía", "referencia", "colección", "página"),
				Exclusive: []string{"libro", "texto", "volumen", "novela", "autor"},
				Phrases:   []string{"prestamo de libros", "devolver libro", "renovar prestamo", "multa por"},
				Threshold: 0.4,
				Fallback:  "Información sobre libros disponible en recepción. Horario de atención: 8 AM a 6 PM.",
			},
			{
				Name: CategoryComputers,
				Keywords: keywords(1.0,
					"computadora", "ordenador", "pc", "equipo", "software",
					"hardware", "internet", "impresora", "digital", "teclado",
					"monitor", "programa", "aplicación", "red", "wifi", "online"),
				Exclusive: []string{"computadora", "ordenador", "pc", "software", "hardware"},
				Phrases:   []string{"uso de computadoras"},
				Threshold: 0.4,
				Fallback:  "Consulta las reglas de uso de computadoras en el área de tecnología.",
			},
			{
				Name: CategoryCubicles,
				Keywords: keywords(1.0,
					"cubiculo", "sala", "espacio", "cabina", "estudio",
					"silencioso", "grupo", "reservar", "área", "individual",
					"privado", "silenciosa", "trabajo", "concentración"),
				Exclusive: []string{"cubiculo", "cabina", "silencioso", "privado"},
				Phrases:   []string{"sala de estudio", "reservar cubiculo"},
				Threshold: 0.35,
				Fallback:  "Para reservar cubículos, visita la recepción con identificación.",
			},
			{
				Name: CategoryGeneral,
				Keywords: keywords(0.7,
					"horario", "hora", "abrir", "cerrar", "baño", "wc",
					"servicio", "ubicación", "carné", "membresía", "impresión",
					"wifi", "información", "ayuda", "contacto", "dirección",
					"teléfono", "email", "normas", "reglamento", "acceso"),
				Exclusive: []string{"baño", "wc", "horario", "abrir", "cerrar"},
				Phrases:   []string{"horario de atencion", "carne de biblioteca"},
				Threshold: 0.3,
				Fallback:  "No he entendido la pregunta, ¿podrías reformularla?.",
			},
		},
		CriticalWords: []string{"cubiculo", "libro", "computadora"},
		ActionVerbs:   []string{"reservar", "prestar", "usar", "devolver"},
		StopWords:     textproc.DefaultStopWords,
		Sniffers: []Sniffer{
			{
				Keywords: []string{"libro", "texto"},
				Answer:   "Para préstamos de libros, presenta tu carné en recepción. Se permiten hasta 3 libros por 15 días.",
			},
			{
				Keywords: []string{"cubiculo", "sala", "cabina"},
				Answer:   "Para reservar cubículos, acércate a la recepción con tu carné. Se permite 1 reserva por día de máximo 3 horas.",
			},
			{
				Keywords: []string{"computadora", "ordenador"},
				Answer:   "Las computadoras están disponibles por orden de llegada. Máximo 2 horas de uso. Presenta tu carné.",
			},
		},
		Clarification: "Haz una pregunta sobre los servicios de la biblioteca.",
	}
}
