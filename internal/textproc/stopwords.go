package textproc

// DefaultStopWords are Spanish function words and generic verbs that carry no
// topic signal in short library questions. Entries are normalized on use.
var DefaultStopWords = []string{
	"cómo", "cuál", "dónde", "qué", "cuánto", "cuánta", "cuántos", "cuántas",
	"para", "por", "con", "sin", "sobre", "bajo", "entre", "hacia", "desde",
	"se", "un", "una", "unos", "unas", "el", "la", "los", "las", "lo",
	"de", "del", "al", "y", "o", "pero", "a", "en", "que", "es", "son",
	"este", "esta", "estos", "estas", "ese", "esa", "esos", "esas",
	"me", "te", "nos", "os", "le", "les", "mi", "tu", "su", "nuestro",
	"vuestro", "sus", "muy", "mas", "más", "menos", "tan", "tanto",
	"como", "cuando", "donde", "mientras", "aunque", "porque", "si",
	"sí", "no", "también", "además", "entonces", "luego", "ahora",
	"antes", "después", "siempre", "nunca", "quizás",
	"conseguir", "obtener", "tener", "hacer", "usar", "utilizar",
	"necesitar", "querer", "poder", "deber", "saber", "conocer",
}

// WordSetOf normalizes each entry (without word rewrites) and returns the set.
func WordSetOf(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if n := basicForm(w); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
