package main

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFlags(t *testing.T) {
	t.Setenv("PAINEL_CONFIG", "")
	o, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if o.Mode != "web" || o.ConfigPath != "" || o.Debug {
		t.Fatalf("defaults = %+v", o)
	}

	o, err = parseFlags([]string{"--mode", "text", "--profile", "ralpnet", "--file", "x.xlsx", "--month", "2025-01", "--debug"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if o.Mode != "text" || o.Profile != "ralpnet" || o.File != "x.xlsx" || o.Month != "2025-01" || !o.Debug {
		t.Fatalf("parsed = %+v", o)
	}

	t.Setenv("PAINEL_CONFIG", "/etc/painel.yaml")
	if o, _ := parseFlags(nil); o.ConfigPath != "/etc/painel.yaml" {
		t.Fatalf("PAINEL_CONFIG not used: %q", o.ConfigPath)
	}
	if o, _ := parseFlags([]string{"--config", "local.yaml"}); o.ConfigPath != "local.yaml" {
		t.Fatalf("--config must win over env: %q", o.ConfigPath)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	if _, err := parseFlags([]string{"--mode", "gui"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if _, err := parseFlags([]string{"extra"}); err == nil {
		t.Fatalf("expected error for positional args")
	}
	if _, err := parseFlags([]string{"-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestLoadProfileAndTextReport(t *testing.T) {
	cfg := testConfig(t)

	p, ds, err := loadProfile(cfg, cliOptions{Profile: "abertas"})
	if err != nil {
		t.Fatalf("loadProfile: %v", err)
	}
	if p.Name != "abertas" || ds.Len() != 4 || ds.Dropped != 1 {
		t.Fatalf("profile %s: %d records, %d dropped", p.Name, ds.Len(), ds.Dropped)
	}

	var out bytes.Buffer
	writeTextReport(&out, p, ds, "", cfg.ChartLimit)
	text := out.String()
	for _, want := range []string{
		"Dashboard de Ordens de Serviços Abertas",
		"Mês 2025-01 · 3 ordens · meses: 2025-01, 2025-02",
		"== Clientes que mais abriram chamados ==",
		"Acme",
		"João Ávila",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Beta") {
		t.Errorf("february client in january report:\n%s", text)
	}
}

func TestLoadProfileErrors(t *testing.T) {
	cfg := testConfig(t)
	if _, _, err := loadProfile(cfg, cliOptions{Profile: "nope"}); err == nil {
		t.Fatalf("expected error for unknown profile")
	}
	if _, _, err := loadProfile(cfg, cliOptions{Profile: "ralpnet"}); err == nil {
		t.Fatalf("upload profile without --file must fail")
	}
	if _, _, err := loadProfile(cfg, cliOptions{Profile: "abertas", Month: "1999-01"}); err == nil {
		t.Fatalf("expected error for month without records")
	}
	if _, _, err := loadProfile(cfg, cliOptions{Profile: "quebrado"}); err == nil {
		t.Fatalf("expected decoding error")
	}

	path := filepath.Join(t.TempDir(), "ocorrencias.xlsx")
	if err := os.WriteFile(path, xlsxBytes(t, exampleRows()...), 0o644); err != nil {
		t.Fatal(err)
	}
	_, ds, err := loadProfile(cfg, cliOptions{Profile: "ralpnet", File: path, Month: "2025-02"})
	if err != nil || ds.Len() != 4 {
		t.Fatalf("ralpnet --file: %v", err)
	}
}
