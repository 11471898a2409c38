package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/okian/tom/internal/domain/leaderboard"
	"github.com/okian/tom/internal/domain/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

var statusStyles = map[model.Status]lipgloss.Style{
	model.StatusExcellent:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	model.StatusImproved:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	model.StatusMaintained: lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
	model.StatusDecreased:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(out io.Writer, t leaderboard.Table) {
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s (%s is better, benchmark %g)", t.Kind, t.Config.Direction, t.Config.Benchmark)))
	rows := make([][]string, 0, len(t.Records))
	for i, r := range t.Records {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			r.Identity,
			fmt.Sprintf("%g", r.PriorValue),
			fmt.Sprintf("%g", r.CurrentValue),
			fmt.Sprintf("%+.2f", r.Change),
			fmt.Sprintf("%.2f", r.FairScore),
			statusStyle(r.Status).Render(string(r.Status)),
		})
	}
	renderGrid(out, []string{"#", "Identity", "Prior", "Current", "Change", "Fair Score", "Status"}, rows)
}

func renderLeaderboard(out io.Writer, entries []model.LeaderboardEntry) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			fmt.Sprint(e.Rank),
			e.CanonicalName,
			fmt.Sprintf("%.2f", e.TotalFairScore),
			fmt.Sprintf("%.2f", e.AverageFairScore),
			fmt.Sprintf("%+.2f", e.AverageImprovement),
			fmt.Sprint(e.TableCount),
			string(e.Recognition),
			statusStyle(e.Status).Render(string(e.Status)),
		})
	}
	renderGrid(out, []string{"Rank", "Name", "Total", "Average", "Avg Change", "Tables", "Recognition", "Status"}, rows)
}

func statusStyle(s model.Status) lipgloss.Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return dimStyle
}

// renderGrid prints left-aligned columns sized to their widest cell.
func renderGrid(out io.Writer, header []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(out, dimStyle.Render("no rows"))
		return
	}
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, c := range row {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = cellStyle.Width(widths[i] + 2).Render(style.Render(c))
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
	}

	fmt.Fprintln(out, line(header, headerStyle))
	for _, row := range rows {
		fmt.Fprintln(out, line(row, lipgloss.NewStyle()))
	}
}
