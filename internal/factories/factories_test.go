package factories

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuanR0/biblio/internal/config"
	"github.com/JuanR0/biblio/internal/observability"
	"github.com/JuanR0/biblio/internal/retrieval"
	"github.com/JuanR0/biblio/internal/textproc"
)

const booksRules = `{
  "multas": {
    "preguntas": ["multa por libro atrasado", "cuánto es la multa por retraso"],
    "respuesta": "La multa es de 1 euro por día de retraso."
  }
}`

const synonymsJSON = `{"multa": ["sancion", "penalizacion"]}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "knowledge"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "knowledge", "books_rules.json"), []byte(booksRules), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synonyms.json"), []byte(synonymsJSON), 0o600))

	cfg := config.DefaultConfig()
	cfg.Knowledge.Dir = filepath.Join(dir, "knowledge")
	cfg.Synonyms.Path = filepath.Join(dir, "synonyms.json")
	cfg.Database.SQLite.Path = filepath.Join(dir, "audit.db")
	return cfg
}

func TestBuild_WiresEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Enabled = true

	app, err := Build(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	defer app.Close()

	info := app.Engine.Info()
	assert.Equal(t, textproc.ModeBasic, info.Mode)
	assert.Equal(t, 1, info.RulesLoaded["books"])
	// Built-in examples fill the missing computers and cubicles files.
	assert.Equal(t, 1, info.RulesLoaded["computers"])
	assert.Equal(t, 1, info.RulesLoaded["cubicles"])
	assert.Equal(t, 0, info.RulesLoaded["general"])
	assert.Equal(t, 1, info.SynonymGroups)
	assert.True(t, info.CacheEnabled)
	assert.True(t, info.AuditEnabled)
	require.NotNil(t, app.Audit)
	require.NoError(t, app.Ping(context.Background()))

	ctx := context.Background()
	res := app.Engine.Answer(ctx, retrieval.Request{Question: "multa por libro atrasado", UserID: "u-1"})
	assert.Equal(t, "La multa es de 1 euro por día de retraso.", res.Answer)
	assert.Equal(t, 0.9, res.Confidence)

	again := app.Engine.Answer(ctx, retrieval.Request{Question: "multa por libro atrasado", UserID: "u-1"})
	assert.Equal(t, res, again)

	rows, err := app.Audit.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	cachedRows := 0
	for _, r := range rows {
		if r.Cached {
			cachedRows++
		}
	}
	assert.Equal(t, 1, cachedRows)
}

func TestBuild_LogsEngineReadyOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: &buf})

	app, err := Build(context.Background(), testConfig(t), logger)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, 1, strings.Count(buf.String(), `"message":"Engine ready"`))
}

func TestBuild_DegradesWithoutBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = "redis"
	cfg.Cache.Redis.URL = "redis://127.0.0.1:1/0"
	cfg.Audit.Enabled = true
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "missing", "dir", "audit.db")

	app, err := Build(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	defer app.Close()

	info := app.Engine.Info()
	assert.False(t, info.CacheEnabled)
	assert.False(t, info.AuditEnabled)
	assert.Nil(t, app.Audit)
	assert.NoError(t, app.Ping(context.Background()))
}

func TestBuild_MissingKnowledgeStillAnswers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Knowledge.Dir = t.TempDir()
	cfg.Knowledge.ExampleData = false
	cfg.Synonyms.Path = ""
	cfg.Cache.Enabled = false

	app, err := Build(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	defer app.Close()

	res := app.Engine.Answer(context.Background(), retrieval.Request{Question: "¿cómo reservo un cubículo?"})
	assert.True(t, res.Details.Fallback)
	assert.Equal(t, 0.25, res.Confidence)
	assert.Equal(t, 0, app.Engine.Info().TotalRules)
}

func TestNewTaxonomy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Knowledge.Categories = []string{"cubicles", "events", "general"}
	cfg.Retrieval.Thresholds["cubicles"] = 0.5
	cfg.Retrieval.MinConfidence = 0.2

	tax := NewTaxonomy(cfg)
	require.NoError(t, tax.Validate())
	assert.Equal(t, []string{"cubicles", "events", "general"}, tax.Names())

	cubicles, _ := tax.Category("cubicles")
	assert.Equal(t, 0.5, cubicles.Threshold)
	assert.NotEmpty(t, cubicles.Keywords)

	events, _ := tax.Category("events")
	general, _ := tax.Category("general")
	assert.Empty(t, events.Keywords)
	assert.Equal(t, 0.4, events.Threshold)
	assert.Equal(t, general.Fallback, events.Fallback)
	assert.Equal(t, 0.2, general.Threshold)
}

func TestNewScoring(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Retrieval.FallbackConfidence = 0.2
	cfg.Retrieval.GeneralMargin = 0.05

	scoring := NewScoring(cfg)
	assert.Equal(t, 0.2, scoring.FallbackFloor)
	assert.Equal(t, 0.05, scoring.GeneralMargin)
	assert.Equal(t, 1.5, scoring.StartBonus)
}

func TestNewExtractor(t *testing.T) {
	cfg := config.DefaultConfig()
	tax := NewTaxonomy(cfg)

	ext, err := NewExtractor(cfg, tax, observability.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, textproc.ModeBasic, ext.Mode())

	cfg.Linguistic.Enabled = true
	cfg.Linguistic.Endpoint = "http://127.0.0.1:1"
	ext, err = NewExtractor(cfg, tax, observability.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, textproc.ModeEnriched, ext.Mode())

	// The unreachable service degrades to basic features.
	features, err := ext.Extract(context.Background(), "reservar cubiculo")
	require.NoError(t, err)
	assert.NotEmpty(t, features)

	cfg.Linguistic.Endpoint = " "
	_, err = NewExtractor(cfg, tax, observability.NopLogger())
	assert.ErrorIs(t, err, textproc.ErrExtractorUnavailable)
}
