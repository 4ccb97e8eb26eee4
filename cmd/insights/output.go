package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"query-insights/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders rows under headers.
func printTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

func printResults(opts *options, results *domain.ResultSet) error {
	if opts.output == "json" {
		return printJSON(opts.stdout, results)
	}
	if results.IsEmpty() {
		_, err := fmt.Fprintln(opts.stdout, "(no results)")
		return err
	}

	headers := make([]string, len(results.Columns))
	for i, c := range results.Columns {
		headers[i] = c.Label + " (" + c.Type + ")"
	}
	rows := make([][]string, len(results.Rows))
	for i, row := range results.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = formatCell(v)
		}
	}
	printTable(opts.stdout, headers, rows)
	_, err := fmt.Fprintf(opts.stdout, "%d row(s)\n", len(rows))
	return err
}

func printQueries(opts *options, docs []domain.QueryDocument, nextPageToken string) error {
	if opts.output == "json" {
		type item struct {
			ID      string             `json:"id"`
			Name    string             `json:"name"`
			Title   string             `json:"title"`
			Variant string             `json:"variant"`
			Status  domain.QueryStatus `json:"status"`
		}
		out := struct {
			Queries       []item `json:"queries"`
			NextPageToken string `json:"next_page_token,omitempty"`
		}{Queries: make([]item, len(docs)), NextPageToken: nextPageToken}
		for i := range docs {
			d := &docs[i]
			out.Queries[i] = item{ID: d.ID, Name: d.Name, Title: d.Title, Variant: domain.VariantOf(d).String(), Status: d.Status}
		}
		return printJSON(opts.stdout, out)
	}

	rows := make([][]string, len(docs))
	for i := range docs {
		d := &docs[i]
		last := ""
		if d.LastExecution != nil {
			last = d.LastExecution.Format(time.RFC3339)
		}
		rows[i] = []string{d.ID, d.Name, d.Title, d.DataSource, domain.VariantOf(d).String(), string(d.Status), last}
	}
	printTable(opts.stdout, []string{"ID", "NAME", "TITLE", "DATA SOURCE", "VARIANT", "STATUS", "LAST EXECUTION"}, rows)
	if nextPageToken != "" {
		_, err := fmt.Fprintf(opts.stdout, "next page: --page-token %s\n", nextPageToken)
		return err
	}
	return nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
