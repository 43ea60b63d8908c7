package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"

	"github.com/mesh-intelligence/teashelf/internal/backup"
	"github.com/mesh-intelligence/teashelf/pkg/types"
)

// nameWidth caps the name column in tables.
const nameWidth = 32

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable returns a light-style table mirrored to w. Footers keep their
// casing so counts read as written.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

// renderTeas prints teas as a table, marking favorites and low stock.
func renderTeas(w io.Writer, teas []types.Tea, prefs types.UserPreferences) {
	if len(teas) == 0 {
		fmt.Fprintln(w, "No teas.")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Brand", "Type", "Stock", "Rating", "Brews", ""})
	for i := range teas {
		tea := &teas[i]
		t.AppendRow(table.Row{
			tea.ID,
			runewidth.Truncate(tea.Name, nameWidth, "..."),
			runewidth.Truncate(tea.Brand, nameWidth, "..."),
			tea.Type,
			formatStock(tea),
			formatNumber(tea.Rating),
			tea.TotalBrewCount,
			markers(tea, prefs),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d teas", len(teas))})
	t.Render()
}

func markers(tea *types.Tea, prefs types.UserPreferences) string {
	var m []string
	if prefs.IsFavorite(tea.ID) {
		m = append(m, "fav")
	}
	if tea.IsLowStock() {
		m = append(m, "low")
	}
	return strings.Join(m, ",")
}

// renderTea prints one tea as a two-column detail table.
func renderTea(w io.Writer, tea types.Tea, prefs types.UserPreferences) {
	t := newTable(w)
	b := tea.BrewingInstructions
	t.AppendRows([]table.Row{
		{"ID", tea.ID},
		{"Name", tea.Name},
		{"Brand", tea.Brand},
		{"Type", tea.Type},
		{"Form", tea.Form},
		{"Stock", formatStock(&tea)},
		{"Rating", formatNumber(tea.Rating)},
		{"Brewing", fmt.Sprintf("%s°%s, %ds", formatNumber(b.Temperature), b.TempUnit, b.SteepTimeInSeconds)},
	})
	optional := []struct {
		label, value string
	}{
		{"Origin", tea.Origin},
		{"Purchased", tea.PurchaseDate},
		{"Caffeine", string(tea.CaffeineLevel)},
		{"Flavors", joinFlavors(tea.FlavorTags)},
		{"Tasting notes", tea.TastingNotes},
		{"Notes", tea.Notes},
		{"Last brewed", tea.LastBrewed},
	}
	for _, o := range optional {
		if o.value != "" {
			t.AppendRow(table.Row{o.label, o.value})
		}
	}
	if tea.Price != nil {
		t.AppendRow(table.Row{"Price", strings.TrimSpace(formatNumber(*tea.Price) + " " + tea.Currency)})
	}
	t.AppendRow(table.Row{"Brews", tea.TotalBrewCount})
	if prefs.IsFavorite(tea.ID) {
		t.AppendRow(table.Row{"Favorite", "yes"})
	}
	t.Render()
}

func renderBackups(w io.Writer, infos []types.BackupInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No backups.")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Taken at", "Teas"})
	for i, info := range infos {
		t.AppendRow(table.Row{i + 1, info.TakenAt.Format(backupKeyLayout), info.Count})
	}
	t.Render()
}

// statusView is the JSON shape of a backup status readout.
type statusView struct {
	Running    bool   `json:"running"`
	LastBackup string `json:"lastBackup,omitempty"`
	LastCount  int    `json:"lastCount"`
	Outcome    string `json:"outcome,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newStatusView(st backup.Status) statusView {
	v := statusView{
		Running:   st.Running,
		LastCount: st.LastCount,
		Outcome:   string(st.Outcome),
	}
	if !st.LastBackup.IsZero() {
		v.LastBackup = st.LastBackup.Format(backupKeyLayout)
	}
	if st.LastError != nil {
		v.Error = st.LastError.Error()
	}
	return v
}

func renderStatus(w io.Writer, v statusView) {
	last := v.LastBackup
	if last == "" {
		last = "never"
	}
	outcome := v.Outcome
	if outcome == "" {
		outcome = "none"
	}
	fmt.Fprintf(w, "Last backup: %s (%d teas)\nOutcome: %s\n", last, v.LastCount, outcome)
	if v.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", v.Error)
	}
}

func formatStock(tea *types.Tea) string {
	return formatNumber(tea.Amount) + " " + string(tea.Unit)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinFlavors(tags []types.FlavorProfile) string {
	parts := make([]string, len(tags))
	for i, f := range tags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
