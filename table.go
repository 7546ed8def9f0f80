package main

import (
	"sort"
	"strconv"

	"VideoPipeline-server/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderTable(headers []string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	return tw.Render()
}

// renderJobTable lays out the job summary followed by its log.
func renderJobTable(job *models.RenderJob) string {
	rows := [][]string{
		{"id", job.ID},
		{"project", job.ProjectID},
		{"status", job.Status},
	}
	if job.Error != nil {
		rows = append(rows, []string{"error", *job.Error})
	}
	if job.CompletedAt != nil {
		rows = append(rows, []string{"completed", job.CompletedAt.Format("2006-01-02 15:04:05")})
	}
	kinds := make([]string, 0, len(job.Artifacts))
	for k := range job.Artifacts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		rows = append(rows, []string{k, job.ArtifactURL(k)})
	}
	out := renderTable([]string{"field", "value"}, rows)

	logRows := make([][]string, 0, len(job.Logs))
	for i, l := range job.LogLines() {
		logRows = append(logRows, []string{strconv.Itoa(i + 1), l})
	}
	if len(logRows) > 0 {
		out += "\n" + renderTable([]string{"#", "log"}, logRows)
	}
	return out
}
