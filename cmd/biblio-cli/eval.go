package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JuanR0/biblio/internal/retrieval"
)

// EvalCase is one labelled question.
type EvalCase struct {
	Line     int    `json:"line"`
	Question string `json:"question"`
	Category string `json:"expected_category"`
	RuleID   string `json:"expected_rule,omitempty"`
}

// EvalMiss records a case whose prediction did not match.
type EvalMiss struct {
	EvalCase
	GotCategory string  `json:"got_category"`
	GotRule     string  `json:"got_rule,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// CategoryScore is the per-category accuracy.
type CategoryScore struct {
	Category string  `json:"category"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// EvalReport summarizes an evaluation run.
type EvalReport struct {
	Total            int             `json:"total"`
	CategoryCorrect  int             `json:"category_correct"`
	CategoryAccuracy float64         `json:"category_accuracy"`
	RuleTotal        int             `json:"rule_total"`
	RuleCorrect      int             `json:"rule_correct"`
	RuleAccuracy     float64         `json:"rule_accuracy"`
	Fallbacks        int             `json:"fallbacks"`
	AvgConfidence    float64         `json:"avg_confidence"`
	PerCategory      []CategoryScore `json:"per_category"`
	Misses           []EvalMiss      `json:"misses,omitempty"`
	Duration         string          `json:"duration"`
}

// Answerer is the part of the engine the evaluator needs.
type Answerer interface {
	Answer(ctx context.Context, req retrieval.Request) retrieval.MatchResult
}

// ReadEvalCases parses question,expected_category[,expected_rule] rows. A
// header row starting with "question" and lines starting with # are skipped.
func ReadEvalCases(r io.Reader) ([]EvalCase, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	var cases []EvalCase
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(record[0]), "question") {
				continue
			}
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: want question and expected category", line)
		}

		c := EvalCase{
			Line:     line,
			Question: strings.TrimSpace(record[0]),
			Category: strings.TrimSpace(record[1]),
		}
		if len(record) > 2 {
			c.RuleID = strings.TrimSpace(record[2])
		}
		if c.Question == "" || c.Category == "" {
			return nil, fmt.Errorf("line %d: question and expected category are required", line)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// Evaluate answers every case and scores the predicted category and rule.
// progress, if set, is called once per case.
func Evaluate(ctx context.Context, engine Answerer, cases []EvalCase, progress func()) (EvalReport, error) {
	start := time.Now()
	report := EvalReport{Total: len(cases)}
	perCat := make(map[string]*CategoryScore)

	var confSum float64
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := engine.Answer(ctx, retrieval.Request{Question: c.Question, UserID: "eval"})
		confSum += res.Confidence
		if res.Details.Fallback {
			report.Fallbacks++
		}

		cs, ok := perCat[c.Category]
		if !ok {
			cs = &CategoryScore{Category: c.Category}
			perCat[c.Category] = cs
		}
		cs.Total++

		catOK := res.Details.Category == c.Category
		ruleOK := true
		if catOK {
			report.CategoryCorrect++
			cs.Correct++
		}
		if c.RuleID != "" {
			report.RuleTotal++
			ruleOK = res.Details.RuleID == c.RuleID
			if ruleOK {
				report.RuleCorrect++
			}
		}
		if !catOK || !ruleOK {
			report.Misses = append(report.Misses, EvalMiss{
				EvalCase:    c,
				GotCategory: res.Details.Category,
				GotRule:     res.Details.RuleID,
				Confidence:  res.Confidence,
			})
		}

		if progress != nil {
			progress()
		}
	}

	report.CategoryAccuracy = ratio(report.CategoryCorrect, report.Total)
	report.RuleAccuracy = ratio(report.RuleCorrect, report.RuleTotal)
	if report.Total > 0 {
		report.AvgConfidence = retrieval.Round3(confSum / float64(report.Total))
	}
	for _, cs := range perCat {
		cs.Accuracy = ratio(cs.Correct, cs.Total)
		report.PerCategory = append(report.PerCategory, *cs)
	}
	sort.Slice(report.PerCategory, func(i, j int) bool {
		return report.PerCategory[i].Category < report.PerCategory[j].Category
	})
	report.Duration = FormatDuration(time.Since(start))
	return report, nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return retrieval.Round3(float64(n) / float64(d))
}

// newEvalCmd creates the eval subcommand.
func (c *cli) newEvalCmd() *cobra.Command {
	var (
		file    string
		minimum float64
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure categorization accuracy over a CSV of labelled questions",
		Long: `Eval reads rows of question,expected_category[,expected_rule] and reports
how often the engine picks the expected category and rule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open eval file: %w", err)
			}
			defer f.Close()

			cases, err := ReadEvalCases(f)
			if err != nil {
				return err
			}
			if len(cases) == 0 {
				return fmt.Errorf("no cases in %s", file)
			}

			app, err := c.buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			bar := c.ui.NewProgressBar(int64(len(cases)), "Evaluating")
			report, err := Evaluate(ctx, app.Engine, cases, bar.Add)
			bar.Finish()
			if err != nil {
				return err
			}

			if err := c.printEval(report); err != nil {
				return err
			}
			if minimum > 0 && report.CategoryAccuracy < minimum {
				return fmt.Errorf("category accuracy %.3f below %.3f", report.CategoryAccuracy, minimum)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file with labelled questions")
	cmd.Flags().Float64Var(&minimum, "min-accuracy", 0, "fail when category accuracy is below this value")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) printEval(report EvalReport) error {
	if c.outputJSON {
		return c.ui.JSON(report)
	}

	c.ui.Section("Evaluation")
	c.ui.KeyValue("Questions", report.Total)
	c.ui.KeyValue("Category accuracy", fmt.Sprintf("%.1f%% (%d/%d)", report.CategoryAccuracy*100, report.CategoryCorrect, report.Total))
	if report.RuleTotal > 0 {
		c.ui.KeyValue("Rule accuracy", fmt.Sprintf("%.1f%% (%d/%d)", report.RuleAccuracy*100, report.RuleCorrect, report.RuleTotal))
	}
	c.ui.KeyValue("Fallbacks", report.Fallbacks)
	c.ui.KeyValue("Avg confidence", fmt.Sprintf("%.3f", report.AvgConfidence))
	c.ui.KeyValue("Duration", report.Duration)

	rows := make([][]string, len(report.PerCategory))
	for i, cs := range report.PerCategory {
		rows[i] = []string{cs.Category, fmt.Sprintf("%d", cs.Total), fmt.Sprintf("%d", cs.Correct), fmt.Sprintf("%.1f%%", cs.Accuracy*100)}
	}
	c.ui.Table([]string{"Category", "Total", "Correct", "Accuracy"}, rows)

	if len(report.Misses) > 0 {
		c.ui.Section("Misses")
		rows = make([][]string, len(report.Misses))
		for i, m := range report.Misses {
			rows[i] = []string{
				fmt.Sprintf("%d", m.Line),
				truncate(m.Question, 40),
				m.Category + " / " + m.GotCategory,
				m.RuleID + " / " + m.GotRule,
			}
		}
		c.ui.Table([]string{"Line", "Question", "Category (want / got)", "Rule (want / got)"}, rows)
	} else {
		c.ui.Success("All cases matched")
	}
	return nil
}
