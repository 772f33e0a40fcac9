package main

import (
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func press(t *testing.T, m tuiModel, keys ...tea.KeyMsg) tuiModel {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(tuiModel)
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func TestTUINavigation(t *testing.T) {
	cfg := testConfig(t)
	p, ds, err := loadProfile(cfg, cliOptions{Profile: "abertas"})
	if err != nil {
		t.Fatalf("loadProfile: %v", err)
	}
	m := initialTUI(p, ds, "", cfg.ChartLimit)
	if m.report.Month != "2025-01" || m.report.Records != 3 {
		t.Fatalf("initial month %s with %d records", m.report.Month, m.report.Records)
	}

	// C percorre as gráficas e volve á primeira
	n := len(m.report.Charts)
	for i := 1; i <= n; i++ {
		m = press(t, m, runes("C"))
		if m.chart != i%n {
			t.Fatalf("after %d presses chart = %d", i, m.chart)
		}
	}

	// busca
	m = press(t, m, runes("/"), runes("acme"), enter)
	if m.focus != 0 || m.q != "acme" {
		t.Fatalf("focus %d, q %q", m.focus, m.q)
	}
	if got := len(m.view()); got != 2 {
		t.Fatalf("search view = %d records", got)
	}
	if !strings.Contains(m.View(), "Acme") {
		t.Errorf("view without search results:\n%s", m.View())
	}

	// outro mes
	m.list.Select(1)
	m = press(t, m, enter)
	if m.report.Month != "2025-02" {
		t.Fatalf("month after enter = %s", m.report.Month)
	}

	// unha soa páxina: N non avanza
	m = press(t, m, runes("N"))
	if m.page != 1 {
		t.Fatalf("page = %d", m.page)
	}
}

func TestTUIExport(t *testing.T) {
	cfg := testConfig(t)
	p, ds, err := loadProfile(cfg, cliOptions{Profile: "abertas"})
	if err != nil {
		t.Fatalf("loadProfile: %v", err)
	}
	t.Chdir(t.TempDir())

	m := initialTUI(p, ds, "2025-01", cfg.ChartLimit)
	for _, key := range []string{"E", "X", "S"} {
		m = press(t, m, runes(key))
		if !strings.HasPrefix(m.status, "Exportado ") {
			t.Fatalf("%s: status %q", key, m.status)
		}
		fn := strings.TrimPrefix(m.status, "Exportado ")
		if st, err := os.Stat(fn); err != nil || st.Size() == 0 {
			t.Fatalf("%s: export %s missing or empty (%v)", key, fn, err)
		}
	}
}
