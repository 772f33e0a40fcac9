package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tereborace.com/painelos/ordens"
)

// ==== Modo TUI (Bubble Tea) ====

// columnas que se ven na táboa do terminal
var tuiCols = []ordens.Field{ordens.Protocol, ordens.Client, ordens.Type, ordens.Status, ordens.CreatedAt}

type tuiModel struct {
	profile *Profile
	ds      *ordens.Dataset
	list    list.Model
	report  ordens.Report
	chart   int
	limit   int
	q       string
	page    int
	perPage int
	input   textinput.Model
	status  string
	focus   int // 0=list, 1=busca
}

func initialTUI(p *Profile, ds *ordens.Dataset, month string, limit int) tuiModel {
	items := make([]list.Item, len(ds.Months))
	for i, m := range ds.Months {
		items[i] = monthItem{month: m, n: ds.Filter(m).Len()}
	}
	l := list.New(items, list.NewDefaultDelegate(), 24, 20)
	l.Title = "Meses"
	in := textinput.New()
	in.Placeholder = "buscar... (/ para focar)"
	m := tuiModel{profile: p, ds: ds, list: l, limit: limit, perPage: 10, page: 1, input: in}
	m.selectMonth(month)
	return m
}

type monthItem struct {
	month string
	n     int
}

func (i monthItem) FilterValue() string { return i.month }
func (i monthItem) Title() string       { return i.month }
func (i monthItem) Description() string { return formatCount(i.n) + " ordens" }

func (m tuiModel) Init() tea.Cmd { return nil }

func (m *tuiModel) selectMonth(month string) {
	m.report = ordens.BuildReport(m.ds, month, m.profile.Specs())
	m.page = 1
	for i, mo := range m.ds.Months {
		if mo == m.report.Month {
			m.list.Select(i)
		}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		s := msg.String()
		if s == "ctrl+c" {
			return m, tea.Quit
		}
		if m.focus == 1 {
			switch s {
			case "esc", "enter":
				m.focus = 0
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			m.q = m.input.Value()
			m.page = 1
			return m, cmd
		}
		switch s {
		case "Q":
			return m, tea.Quit
		case "/":
			m.focus = 1
			return m, m.input.Focus()
		case "enter":
			if it, ok := m.list.SelectedItem().(monthItem); ok {
				m.selectMonth(it.month)
			}
			return m, nil
		case "C": // seguinte gráfica
			if n := len(m.report.Charts); n > 0 {
				m.chart = (m.chart + 1) % n
			}
			return m, nil
		case "N":
			if _, pages, _, _ := paginate(len(m.view()), m.page, m.perPage); m.page < pages {
				m.page++
			}
			return m, nil
		case "P":
			if m.page > 1 {
				m.page--
			}
			return m, nil
		case "E", "X", "S":
			fn, err := m.export(map[string]string{"E": "csv", "X": "xlsx", "S": "sqlite"}[s])
			if err != nil {
				m.status = err.Error()
			} else {
				m.status = "Exportado " + fn
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width/4, msg.Height-5)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m tuiModel) View() string {
	left := lipgloss.NewStyle().Width(28).Render(m.list.View())
	rightSB := strings.Builder{}
	fmt.Fprintf(&rightSB, "%s\n", lipgloss.NewStyle().Bold(true).Render(m.profile.Title))
	fmt.Fprintf(&rightSB, "Fonte: %s · Mês: %s · %s ordens\n", stripExt(filepath.Base(m.ds.Source)), m.report.Month, formatCount(m.report.Records))
	fmt.Fprintf(&rightSB, "Busca [/]: %s\n", m.input.View())
	fmt.Fprintf(&rightSB, "%s\n\n", m.renderRows())
	if len(m.report.Charts) > 0 {
		ct := m.report.Charts[m.chart]
		fmt.Fprintf(&rightSB, "Gráfica [C] %d/%d: %s\n%s\n", m.chart+1, len(m.report.Charts), ct.Title, renderHistogram(ct.Table, m.limit, 40))
	}
	fmt.Fprintf(&rightSB, "[enter] mês  [N/P] páx  [E] CSV  [X] XLSX  [S] SQLite  [Q] sair\n")
	fmt.Fprintf(&rightSB, "%s", m.status)
	right := lipgloss.NewStyle().Width(100).Render(rightSB.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

// view devolve os rexistros do mes que casan coa busca.
func (m *tuiModel) view() []ordens.Record {
	return searchRecords(m.ds.Filter(m.report.Month).Records, m.q)
}

func (m *tuiModel) renderRows() string {
	recs := m.view()
	page, pages, lo, hi := paginate(len(recs), m.page, m.perPage)
	head := make([]string, len(tuiCols))
	for i, f := range tuiCols {
		head[i] = f.String()
	}
	lines := []string{strings.Join(head, " | ")}
	lines = append(lines, strings.Repeat("-", len(lines[0])))
	for _, r := range recs[lo:hi] {
		row := make([]string, len(tuiCols))
		for j, f := range tuiCols {
			row[j] = truncateLabel(displayLabel(r.Get(f)), 24)
		}
		lines = append(lines, strings.Join(row, " | "))
	}
	lines = append(lines, fmt.Sprintf("Páx %d/%d · %d filas", page, pages, len(recs)))
	return strings.Join(lines, "\n")
}

// export escribe a vista actual no directorio de traballo.
func (m *tuiModel) export(format string) (string, error) {
	recs := m.view()
	fn := fmt.Sprintf("%s_%d.%s", stripExt(exportName(m.profile.Name, m.report.Month, format)), time.Now().Unix(), format)
	switch format {
	case "csv":
		f, err := os.Create(fn)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return fn, writeCSV(f, recs)
	case "xlsx":
		f, err := buildXLSX(recs, m.report)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return fn, f.SaveAs(fn)
	case "sqlite":
		// a busca xa vai aplicada en recs
		n, err := writeSQLiteSnapshot(fn, recs, "")
		if err != nil {
			return "", err
		}
		return fn, verifySnapshot(fn, n)
	}
	return "", fmt.Errorf("formato descoñecido: %s", format)
}
