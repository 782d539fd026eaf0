package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JuanR0/biblio/internal/factories"
	"github.com/JuanR0/biblio/internal/retrieval"
	"github.com/JuanR0/biblio/internal/storage"
	"github.com/JuanR0/biblio/internal/textproc"
	"github.com/JuanR0/biblio/pkg/client"
)

// diagnoseSample is the sentence sent to the linguistic service.
const diagnoseSample = "reservar un cubículo"

func toResponse(question string, res retrieval.MatchResult) client.QueryResponse {
	d := res.Details
	return client.QueryResponse{
		Question:   question,
		Answer:     res.Answer,
		Confidence: res.Confidence,
		Source:     res.Source,
		Mode:       res.Mode,
		Details: client.Details{
			Category:           d.Category,
			CategoryConfidence: d.CategoryConfidence,
			MatchConfidence:    d.MatchConfidence,
			ExpandedQueries:    d.ExpandedQueries,
			RuleID:             d.RuleID,
			Exclusive:          d.Exclusive,
			Fallback:           d.Fallback,
			FallbackReason:     d.FallbackReason,
		},
	}
}

func (c *cli) printAnswer(resp client.QueryResponse) error {
	if c.outputJSON {
		return c.ui.JSON(resp)
	}

	c.ui.Section("Answer")
	fmt.Fprintln(c.ui.out, resp.Answer)
	c.ui.Section("Details")
	c.ui.KeyValue("Source", resp.Source)
	c.ui.KeyValue("Confidence", fmt.Sprintf("%.3f", resp.Confidence))
	c.ui.KeyValue("Category", fmt.Sprintf("%s (%.3f)", resp.Details.Category, resp.Details.CategoryConfidence))
	if resp.Details.RuleID != "" {
		c.ui.KeyValue("Rule", resp.Details.RuleID)
	}
	if resp.Details.Fallback {
		c.ui.Warning("Fallback answer (%s)", resp.Details.FallbackReason)
	}
	return nil
}

// newAskCmd creates the ask subcommand.
func (c *cli) newAskCmd() *cobra.Command {
	var (
		server string
		userID string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question",
		Long: `Ask answers a question with the local rule files, or through a running
API server when --server is set. Without arguments, questions are read from
stdin one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var answer func(q string) (client.QueryResponse, error)
			if server != "" {
				api, err := client.NewClient(client.ClientConfig{BaseURL: server})
				if err != nil {
					return err
				}
				answer = func(q string) (client.QueryResponse, error) {
					resp, err := api.Query(ctx, client.QueryRequest{Question: q, UserID: userID})
					if err != nil {
						return client.QueryResponse{}, err
					}
					return *resp, nil
				}
			} else {
				app, err := c.buildApp(ctx)
				if err != nil {
					return err
				}
				defer app.Close()
				answer = func(q string) (client.QueryResponse, error) {
					res := app.Engine.Answer(ctx, retrieval.Request{Question: q, UserID: userID})
					return toResponse(q, res), nil
				}
			}

			if len(args) > 0 {
				resp, err := answer(strings.Join(args, " "))
				if err != nil {
					return err
				}
				return c.printAnswer(resp)
			}

			return c.repl(cmd.InOrStdin(), answer)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "API base URL (e.g. http://localhost:8001)")
	cmd.Flags().StringVar(&userID, "user", "", "opaque user id recorded in the audit trail")
	return cmd
}

func (c *cli) repl(in io.Reader, answer func(string) (client.QueryResponse, error)) error {
	interactive := isTerminal(os.Stdin) && in == os.Stdin
	if interactive {
		c.ui.Info("Escribe tu pregunta (Ctrl+D para salir)")
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(c.ui.out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		resp, err := answer(q)
		if err != nil {
			c.ui.Error("%v", err)
			continue
		}
		if err := c.printAnswer(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// newCategorizeCmd creates the categorize subcommand.
func (c *cli) newCategorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <question>",
		Short: "Show how a question is categorized",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			result := app.Engine.Categorizer().Classify(cmd.Context(), strings.Join(args, " "))
			if c.outputJSON {
				return c.ui.JSON(result)
			}

			c.ui.Section("Categorization")
			c.ui.KeyValue("Category", result.Category)
			c.ui.KeyValue("Confidence", fmt.Sprintf("%.3f", result.Confidence))
			if result.Exclusive != "" {
				c.ui.KeyValue("Exclusive keyword", result.Exclusive)
			}
			if len(result.Phrases) > 0 {
				c.ui.KeyValue("Phrases", strings.Join(result.Phrases, ", "))
			}
			if result.Defaulted {
				c.ui.Warning("No category scored high enough; defaulted to %s", result.Category)
			}

			rows := make([][]string, 0, len(result.Scores))
			for _, name := range app.Engine.Taxonomy().Names() {
				if score, ok := result.Scores[name]; ok {
					rows = append(rows, []string{name, fmt.Sprintf("%.2f", score)})
				}
			}
			if len(rows) > 0 {
				c.ui.Table([]string{"Category", "Score"}, rows)
			}
			return nil
		},
	}
}

// newExpandCmd creates the expand subcommand.
func (c *cli) newExpandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand <question>",
		Short: "Show the query variants generated for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			normalized := textproc.Normalize(strings.Join(args, " "))
			variants := app.Engine.Expander().Expand(cmd.Context(), normalized)
			if c.outputJSON {
				return c.ui.JSON(map[string]interface{}{"normalized": normalized, "variants": variants})
			}

			c.ui.KeyValue("Normalized", normalized)
			rows := make([][]string, len(variants))
			for i, v := range variants {
				rows[i] = []string{fmt.Sprintf("%d", i+1), v}
			}
			c.ui.Table([]string{"#", "Variant"}, rows)
			return nil
		},
	}
}

// newRulesCmd creates the rules subcommand.
func (c *cli) newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules [category]",
		Short: "List the loaded rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			store := app.Engine.Store()
			categories := store.Categories()
			if len(args) == 1 {
				if _, ok := app.Engine.Taxonomy().Category(args[0]); !ok {
					return fmt.Errorf("unknown category %q", args[0])
				}
				categories = args
			}

			if c.outputJSON {
				out := make(map[string]interface{}, len(categories))
				for _, cat := range categories {
					out[cat] = store.Rules(cat)
				}
				return c.ui.JSON(out)
			}

			for _, cat := range categories {
				rules := store.Rules(cat)
				c.ui.Section(fmt.Sprintf("%s (%d)", cat, len(rules)))
				if len(rules) == 0 {
					c.ui.Warning("No rules loaded")
					continue
				}
				rows := make([][]string, len(rules))
				for i, r := range rules {
					rows[i] = []string{r.ID, fmt.Sprintf("%d", len(r.Questions)), truncate(r.Answer, 60)}
				}
				c.ui.Table([]string{"Rule", "Questions", "Answer"}, rows)
			}
			return nil
		},
	}
}

// newInfoCmd creates the info subcommand.
func (c *cli) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show engine mode and loaded knowledge",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			info := app.Engine.Info()
			if c.outputJSON {
				return c.ui.JSON(info)
			}

			c.ui.Section("System")
			c.ui.KeyValue("Mode", info.Mode)
			c.ui.KeyValue("Rules", info.TotalRules)
			c.ui.KeyValue("Synonym groups", info.SynonymGroups)
			c.ui.KeyValue("Response cache", info.CacheEnabled)
			c.ui.KeyValue("Audit trail", info.AuditEnabled)

			rows := make([][]string, len(info.Categories))
			for i, cat := range info.Categories {
				rows[i] = []string{cat, fmt.Sprintf("%d", info.RulesLoaded[cat])}
			}
			c.ui.Table([]string{"Category", "Rules"}, rows)
			return nil
		},
	}
}

// DiagnoseReport is the outcome of probing the linguistic service.
type DiagnoseReport struct {
	Mode     string           `json:"mode"`
	Endpoint string           `json:"endpoint,omitempty"`
	Model    string           `json:"model,omitempty"`
	Sample   string           `json:"sample"`
	OK       bool             `json:"ok"`
	Error    string           `json:"error,omitempty"`
	Latency  string           `json:"latency,omitempty"`
	Tokens   []textproc.Token `json:"tokens,omitempty"`
	Features []string         `json:"features"`
}

// newDiagnoseCmd creates the diagnose subcommand.
func (c *cli) newDiagnoseCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check the linguistic service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if endpoint != "" {
				c.cfg.Linguistic.Enabled = true
				c.cfg.Linguistic.Endpoint = endpoint
			}

			tax := factories.NewTaxonomy(c.cfg)
			report := DiagnoseReport{Mode: textproc.ModeBasic, Sample: diagnoseSample}
			basic := textproc.NewBasicExtractor(tax.StopWords, tax.CriticalWords)

			if !c.cfg.Linguistic.Enabled {
				report.OK = true
				report.Features, _ = basic.Extract(ctx, textproc.Normalize(diagnoseSample))
				return c.printDiagnose(report)
			}

			report.Mode = textproc.ModeEnriched
			report.Endpoint = c.cfg.Linguistic.Endpoint
			lemma, err := textproc.NewLemmaExtractor(textproc.LemmaConfig{
				Endpoint: c.cfg.Linguistic.Endpoint,
				Model:    c.cfg.Linguistic.Model,
				Timeout:  c.cfg.Linguistic.Timeout,
			})
			if err != nil {
				return err
			}
			report.Model = lemma.Model()

			spin := c.ui.NewSpinner("Probing " + report.Endpoint)
			spin.Start()
			start := time.Now()
			tokens, err := lemma.Analyze(ctx, diagnoseSample)
			spin.Stop()
			report.Latency = FormatDuration(time.Since(start))

			if err != nil {
				report.Error = err.Error()
				report.Features, _ = basic.Extract(ctx, textproc.Normalize(diagnoseSample))
			} else {
				report.OK = true
				report.Tokens = tokens
				report.Features, _ = lemma.Extract(ctx, textproc.Normalize(diagnoseSample))
			}

			if err := c.printDiagnose(report); err != nil {
				return err
			}
			if !report.OK {
				return fmt.Errorf("linguistic service unavailable")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "linguistic service URL (overrides config)")
	return cmd
}

func (c *cli) printDiagnose(report DiagnoseReport) error {
	if c.outputJSON {
		return c.ui.JSON(report)
	}

	c.ui.Section("Linguistic service")
	c.ui.KeyValue("Mode", report.Mode)
	if report.Endpoint != "" {
		c.ui.KeyValue("Endpoint", report.Endpoint)
		c.ui.KeyValue("Model", report.Model)
		c.ui.KeyValue("Latency", report.Latency)
	}
	c.ui.KeyValue("Sample", report.Sample)
	c.ui.KeyValue("Features", strings.Join(report.Features, ", "))

	switch {
	case report.Endpoint == "":
		c.ui.Info("Linguistic service disabled; using basic features")
	case report.OK:
		rows := make([][]string, len(report.Tokens))
		for i, t := range report.Tokens {
			rows[i] = []string{t.Text, t.Lemma, t.POS, fmt.Sprintf("%t", t.IsStop)}
		}
		c.ui.Table([]string{"Token", "Lemma", "POS", "Stop"}, rows)
		c.ui.Success("Linguistic service is working")
	default:
		c.ui.Error("%s", report.Error)
		c.ui.Warning("Answers will use basic features")
	}
	return nil
}

// newAuditCmd creates the audit subcommand.
func (c *cli) newAuditCmd() *cobra.Command {
	var (
		limit int
		stats bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recently answered questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := factories.OpenAuditDB(ctx, c.cfg)
			if err != nil {
				return fmt.Errorf("open audit database: %w", err)
			}
			defer db.Close()
			repo := storage.NewAuditRepository(db)

			if stats {
				return c.printAuditStats(ctx, repo)
			}

			rows, err := repo.ListRecent(ctx, limit)
			if err != nil {
				return fmt.Errorf("list audit events: %w", err)
			}
			if c.outputJSON {
				if rows == nil {
					rows = []*storage.QueryAudit{}
				}
				return c.ui.JSON(rows)
			}
			if len(rows) == 0 {
				c.ui.Info("No audit events recorded")
				return nil
			}

			table := make([][]string, len(rows))
			for i, r := range rows {
				table[i] = []string{
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					truncate(r.Question, 40),
					r.Source,
					fmt.Sprintf("%.3f", r.Confidence),
					fmt.Sprintf("%t", r.Fallback),
					r.UserID,
				}
			}
			c.ui.Table([]string{"Time", "Question", "Source", "Confidence", "Fallback", "User"}, table)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "number of events to show")
	cmd.Flags().BoolVar(&stats, "stats", false, "show aggregates per answer source")
	return cmd
}

func (c *cli) printAuditStats(ctx context.Context, repo *storage.AuditRepository) error {
	stats, err := repo.StatsBySource(ctx)
	if err != nil {
		return fmt.Errorf("audit stats: %w", err)
	}
	if c.outputJSON {
		if stats == nil {
			stats = []storage.SourceStats{}
		}
		return c.ui.JSON(stats)
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{s.Source, fmt.Sprintf("%d", s.Count), fmt.Sprintf("%d", s.Fallbacks), fmt.Sprintf("%.3f", s.AvgConfidence)}
	}
	c.ui.Table([]string{"Source", "Answers", "Fallbacks", "Avg confidence"}, rows)
	return nil
}

// newVersionCmd creates the version subcommand.
func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.outputJSON {
				return c.ui.JSON(map[string]string{"version": version, "commit": commit})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "biblio-cli %s (%s)\n", version, commit)
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
