package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/zen-systems/cepho/pkg/gate"
	"github.com/zen-systems/cepho/pkg/review"
	"github.com/zen-systems/cepho/pkg/router"
)

// outputFormat is one way of printing a view. The set is closed: table
// and json.
type outputFormat interface {
	render(w io.Writer, v view) error
}

// view is anything a command prints. Each view knows its table layout;
// the json format encodes the view value itself.
type view interface {
	writeTable(w io.Writer)
}

type tableFormat struct{}

type jsonFormat struct{}

func (tableFormat) render(w io.Writer, v view) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	v.writeTable(tw)
	return tw.Flush()
}

func (jsonFormat) render(w io.Writer, v view) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseOutputFormat(name string) (outputFormat, error) {
	switch strings.ToLower(name) {
	case "", "table":
		return tableFormat{}, nil
	case "json":
		return jsonFormat{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table or json)", name)
	}
}

type profileView router.TaskProfile

func (v profileView) writeTable(w io.Writer) {
	fmt.Fprintf(w, "CATEGORY\t%s\n", v.Category)
	fmt.Fprintf(w, "COMPLEXITY\t%s\n", v.Complexity)
	fmt.Fprintf(w, "WORDS\t%d\n", v.WordCount)
	fmt.Fprintf(w, "REAL-TIME\t%t\n", v.RequiresRealTime)
	fmt.Fprintf(w, "CALCULATION\t%t\n", v.RequiresCalculation)
	fmt.Fprintf(w, "CODE\t%t\n", v.RequiresCodeExecution)
	fmt.Fprintf(w, "KEYWORDS\t%s\n", formatList(v.MatchedKeywords))
}

type decisionView struct {
	Profile  router.TaskProfile     `json:"profile"`
	Decision router.RoutingDecision `json:"decision"`
}

func (v decisionView) writeTable(w io.Writer) {
	d := v.Decision
	fmt.Fprintf(w, "PROVIDER\t%s (%s)\n", d.Provider, d.ProviderName)
	fmt.Fprintf(w, "CONFIDENCE\t%.2f\n", d.Confidence)
	fmt.Fprintf(w, "WHY\t%s\n", d.Justification)
	fmt.Fprintf(w, "ALTERNATIVES\t%s\n", formatList(d.Alternatives))
	fmt.Fprintf(w, "CATEGORY\t%s / %s\n", v.Profile.Category, v.Profile.Complexity)
	if len(d.Scores) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "CANDIDATE\tSCORE\tREASONS")
		for _, s := range d.Scores {
			fmt.Fprintf(w, "%s\t%.0f\t%s\n", s.Provider, s.Score, formatList(s.Reasons))
		}
	}
}

type answerView router.Result

func (v answerView) writeTable(w io.Writer) {
	fmt.Fprintf(w, "PROVIDER\t%s\n", v.Decision.Provider)
	if v.Response != nil {
		fmt.Fprintf(w, "MODEL\t%s/%s\n", v.Response.Adapter, v.Response.Model)
	}
	for _, call := range v.Calls {
		if call.Error != "" {
			fmt.Fprintf(w, "FAILED\t%s: %s\n", call.Provider, call.Error)
		}
	}
	fmt.Fprintf(w, "TOKENS\t%d\n", v.Usage.TotalTokens)
	if v.Response != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, v.Response.Content)
	}
}

type providersView []router.ProviderProfile

func (v providersView) writeTable(w io.Writer) {
	fmt.Fprintln(w, "ID\tNAME\tQUALITY\tCOST\tCAPABILITIES\tSTATUS")
	for _, p := range v {
		status := "not connected"
		if p.Configured {
			status = "ready"
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%.0f\t%s\t%s\n", p.ID, p.Name, p.QualityScore, p.CostScore, formatList(p.Capabilities), status)
	}
}

type modelRow struct {
	Adapter string   `json:"adapter"`
	Models  []string `json:"models"`
	Ready   bool     `json:"ready"`
}

type modelsView []modelRow

func (v modelsView) writeTable(w io.Writer) {
	fmt.Fprintln(w, "ADAPTER\tMODELS\tSTATUS")
	for _, row := range v {
		status := "no key"
		if row.Ready {
			status = "ready"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.Adapter, formatList(row.Models), status)
	}
}

type aliasRow struct {
	Alias string `json:"alias"`
	Model string `json:"model"`
}

type aliasesView []aliasRow

func (v aliasesView) writeTable(w io.Writer) {
	fmt.Fprintln(w, "ALIAS\tMODEL")
	for _, row := range v {
		fmt.Fprintf(w, "%s\t%s\n", row.Alias, row.Model)
	}
}

type itemView review.Item

func (v itemView) writeTable(w io.Writer) {
	fmt.Fprintf(w, "ID\t%s\n", v.ID)
	fmt.Fprintf(w, "TITLE\t%s\n", v.Title)
	fmt.Fprintf(w, "STATE\t%s\n", v.State)
	fmt.Fprintf(w, "REVISION\t%d\n", v.Revision)
	if v.RevisionOf != "" {
		fmt.Fprintf(w, "REVISION OF\t%s\n", v.RevisionOf)
	}
	if v.FirstScore != nil {
		fmt.Fprintf(w, "FIRST REVIEW\t%d/10 by %s: %s\n", *v.FirstScore, orDash(v.FirstReviewer), orDash(v.FirstFeedback))
	}
	if v.SecondScore != nil {
		fmt.Fprintf(w, "SECOND REVIEW\t%d/10 by %s: %s\n", *v.SecondScore, orDash(v.SecondReviewer), orDash(v.SecondFeedback))
	}
	fmt.Fprintf(w, "UPDATED\t%s\n", v.UpdatedAt.Format("2006-01-02 15:04:05"))
	if v.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, v.Description)
	}
}

type itemsView []*review.Item

func (v itemsView) writeTable(w io.Writer) {
	fmt.Fprintln(w, "ID\tSTATE\tREV\tTITLE")
	for _, item := range v {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", item.ID, item.State, item.Revision, item.Title)
	}
}

type gateView struct {
	Item    *review.Item  `json:"item"`
	Verdict *gate.Verdict `json:"verdict"`
}

func (v gateView) writeTable(w io.Writer) {
	fmt.Fprintf(w, "ITEM\t%s\n", v.Item.ID)
	fmt.Fprintf(w, "STATE\t%s\n", v.Item.State)
	fmt.Fprintf(w, "SCORE\t%d/10\n", v.Verdict.Score)
	fmt.Fprintf(w, "DECISION\t%s\n", v.Verdict.Decision)
	fmt.Fprintf(w, "FEEDBACK\t%s\n", orDash(v.Verdict.Feedback))
	for _, hint := range v.Verdict.RepairHints {
		fmt.Fprintf(w, "HINT\t%s\n", hint)
	}
}

type batchRow struct {
	ID       string          `json:"id"`
	State    review.State    `json:"state,omitempty"`
	Score    *int            `json:"score,omitempty"`
	Decision review.Decision `json:"decision,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type batchView []batchRow

func newBatchView(outcomes []gate.Outcome) batchView {
	rows := make(batchView, 0, len(outcomes))
	for _, o := range outcomes {
		row := batchRow{ID: o.ItemID}
		if o.Item != nil {
			row.State = o.Item.State
		}
		if o.Verdict != nil {
			score := o.Verdict.Score
			row.Score = &score
			row.Decision = o.Verdict.Decision
		}
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

func (v batchView) writeTable(w io.Writer) {
	fmt.Fprintln(w, "ID\tSTATE\tSCORE\tDECISION\tERROR")
	for _, row := range v {
		score := "-"
		if row.Score != nil {
			score = fmt.Sprintf("%d", *row.Score)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row.ID, orDash(string(row.State)), score, orDash(string(row.Decision)), orDash(row.Error))
	}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
