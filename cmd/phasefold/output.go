package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/rpggio/phasefold/internal/analysis"
	"github.com/rpggio/phasefold/internal/domain/run"
)

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func statusText(s run.Status) string {
	switch s {
	case run.StatusSucceeded:
		return color.New(color.Bold, color.FgGreen).Sprint(s)
	case run.StatusPartial:
		return color.New(color.Bold, color.FgYellow).Sprint(s)
	case run.StatusFailed:
		return color.New(color.Bold, color.FgRed).Sprint(s)
	default:
		return string(s)
	}
}

func okMark() string   { return color.GreenString("✔") }
func failMark() string { return color.RedString("✘") }

func boolText(b bool) string {
	if b {
		return okMark()
	}
	return failMark()
}

func binStatusText(s run.BinStatus) string {
	if s == run.BinOK {
		return okMark()
	}
	return failMark()
}

func num(f float64) string { return analysis.FormatFloat(f) }

// table writes tab-separated rows aligned into columns.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, header ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
	t.row(strings.ToUpper(strings.Join(header, "\t")))
	return t
}

func (t *table) row(cells ...string) {
	fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}

func (t *table) flush() error { return t.tw.Flush() }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
