package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/store"
	"github.com/roach88/punchcard/internal/timeclock"
)

// Color palette.
const (
	ColorOnShift  = "#22C55E" // green
	ColorOnBreak  = "#F59E0B" // amber
	ColorOnLunch  = "#A78BFA" // lavender
	ColorOffShift = "#6D7383" // muted grey
	ColorError    = "#EF4444"
	ColorLabel    = "#B1B8C7"
	ColorPillText = "#1B1530"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLabel))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Bold(true)
)

var stateColors = map[ir.State]string{
	ir.OffShift: ColorOffShift,
	ir.OnShift:  ColorOnShift,
	ir.OnBreak:  ColorOnBreak,
	ir.OnLunch:  ColorOnLunch,
}

// StatePill renders s as a colored badge, e.g. " ON BREAK ".
func StatePill(s ir.State) string {
	label := strings.ToUpper(strings.ReplaceAll(s.String(), "-", " "))
	return lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.Color(ColorPillText)).
		Background(lipgloss.Color(stateColors[s])).
		Render(label)
}

func errorLine(code, message string) string {
	return errorStyle.Render("Error ["+code+"]:") + " " + message
}

// actionNames maps transitions to the clock subcommand that performs them.
var actionNames = map[ir.Transition]string{
	ir.ClockIn:         "in",
	ir.ClockOut:        "out",
	ir.IntermittentIn:  "break-in",
	ir.IntermittentOut: "break-out",
	ir.LunchIn:         "lunch-in",
	ir.LunchOut:        "lunch-out",
}

// formatClock renders a unix-seconds timestamp; 0 is unset.
func formatClock(ts uint64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

// recordView is the show/clock output.
type recordView struct {
	Address string            `json:"address"`
	Seed    string            `json:"seed,omitempty"`
	Record  ir.EmployeeRecord `json:"record"`
	Allowed []string          `json:"allowed"`
	Token   string            `json:"token,omitempty"`
}

func newRecordView(v ir.RecordView, seed *ir.Seed) recordView {
	out := recordView{
		Address: v.Address.String(),
		Record:  v.Record,
		Allowed: []string{},
	}
	if seed != nil {
		out.Seed = seed.String()
	}
	for _, t := range timeclock.Allowed(v.Record.State) {
		out.Allowed = append(out.Allowed, actionNames[t])
	}
	return out
}

func (v recordView) String() string {
	var b strings.Builder
	if v.Token != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("confirmed:"), v.Token)
	}
	fmt.Fprintf(&b, "%s %s\n", StatePill(v.Record.State), v.Address)
	if v.Seed != "" {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("seed:        "), v.Seed)
	}
	rows := []struct {
		label string
		ts    uint64
	}{
		{"shift start: ", v.Record.ShiftStartClock},
		{"shift end:   ", v.Record.ShiftEndClock},
		{"break start: ", v.Record.IntermittentStartClock},
		{"break end:   ", v.Record.IntermittentEndClock},
		{"lunch start: ", v.Record.LunchStartClock},
		{"lunch end:   ", v.Record.LunchEndClock},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(r.label), formatClock(r.ts))
	}
	allowed := "none"
	if len(v.Allowed) > 0 {
		allowed = strings.Join(v.Allowed, ", ")
	}
	fmt.Fprintf(&b, "  %s %s", labelStyle.Render("available:   "), allowed)
	return b.String()
}

// listView is the admin monitor: every record with its last shift bounds.
type listView struct {
	Records []listRow `json:"records"`
}

type listRow struct {
	Address    string   `json:"address"`
	State      ir.State `json:"state"`
	Active     bool     `json:"active"`
	ShiftStart uint64   `json:"shift_start_clock"`
	ShiftEnd   uint64   `json:"shift_end_clock"`
}

func newListView(views []ir.RecordView) listView {
	out := listView{Records: make([]listRow, 0, len(views))}
	for _, v := range views {
		out.Records = append(out.Records, listRow{
			Address:    v.Address.String(),
			State:      v.Record.State,
			Active:     v.Record.Active,
			ShiftStart: v.Record.ShiftStartClock,
			ShiftEnd:   v.Record.ShiftEndClock,
		})
	}
	return out
}

func (l listView) String() string {
	if len(l.Records) == 0 {
		return "No records."
	}
	var b strings.Builder
	for i, r := range l.Records {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-44s %s  %s %s  %s %s",
			r.Address, StatePill(r.State),
			labelStyle.Render("in"), formatClock(r.ShiftStart),
			labelStyle.Render("out"), formatClock(r.ShiftEnd))
	}
	return b.String()
}

// historyView is the journal of one record.
type historyView struct {
	Address string        `json:"address"`
	Entries []store.Entry `json:"entries"`
}

func (h historyView) String() string {
	if len(h.Entries) == 0 {
		return "No history for " + h.Address + "."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "History of %s", h.Address)
	for _, e := range h.Entries {
		c := e.Confirmation
		action := string(c.Kind)
		if c.Kind == ir.KindTransition {
			action = actionNames[c.Transition]
		}
		fmt.Fprintf(&b, "\n  #%-6d %s  %-10s %s  %s",
			c.Seq, formatClock(c.AppliedAt), action, StatePill(e.State), c.Token)
	}
	return b.String()
}
