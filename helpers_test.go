package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"tereborace.com/painelos/ordens"
)

func testRow(proto, client, created string) []string {
	r := make([]string, ordens.FieldCount)
	r[ordens.Protocol] = proto
	r[ordens.Client] = client
	r[ordens.Type] = "Sem conexão"
	r[ordens.Method] = "Telefone"
	r[ordens.Status] = "Aberta"
	r[ordens.CreatedAt] = created
	r[ordens.User] = "ana"
	r[ordens.Neighborhood] = "Centro"
	r[ordens.AccessPoint] = "POP-1"
	return r
}

// exemplo: dous meses e unha fila sen data
func exampleRows() [][]string {
	return [][]string{
		testRow("1", "Acme", "2025-01-05 10:00:00"),
		testRow("2", "Acme", "2025-01-20 08:30:00"),
		testRow("3", "João Ávila", "2025-01-21 09:00:00"),
		testRow("4", "Beta", "2025-02-02 11:15:00"),
		testRow("5", "Gama", "N/A"),
	}
}

func csvLatin1(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	var b strings.Builder
	b.WriteString("Relatório de ordens de serviço\n")
	b.WriteString(strings.Join(ordens.Columns(), ";") + "\n")
	for _, r := range rows {
		b.WriteString(strings.Join(r, ";") + "\n")
	}
	out, err := charmap.ISO8859_1.NewEncoder().String(b.String())
	if err != nil {
		t.Fatalf("encode latin1: %v", err)
	}
	return []byte(out)
}

// xlsxBytes: cabeceira na primeira fila, sen título (como a exportación da ralpnet)
func xlsxBytes(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	all := append([][]string{ordens.Columns()}, rows...)
	for i, r := range all {
		vals := make([]any, len(r))
		for j, v := range r {
			vals[j] = v
		}
		if err := f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+1), &vals); err != nil {
			t.Fatalf("row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return buf.Bytes()
}

const testConfigYAML = `
addr: 127.0.0.1:0
per_page: 2
chart_limit: 5
max_upload_mb: 1
profiles:
  - name: abertas
    title: Dashboard de Ordens de Serviços Abertas
    subtitle: Ordens abertas por mês
    url: https://example.org/abertas
    source: os_abertas.csv
    charts:
      - {field: client, kind: bar, title: Clientes que mais abriram chamados}
      - {field: method, kind: pie, title: Metodo de abertura de chamados}
      - {field: user, kind: area, title: Usuários que mais abriram chamados}
  - name: quebrado
    title: Arquivo em UTF-8
    source: quebrado.csv
    charts:
      - {field: client}
  - name: ralpnet
    title: Dashboard de Ordens de Serviços Ralpnet
    url: https://example.org/ralpnet
    charts:
      - {field: client, kind: bar, title: Quantidade de chamados por clientes}
      - {field: closed_by, kind: bar, title: Usuários que mais encerraram chamados}
`

// testConfig escribe os ficheiros de proba nun directorio temporal e carga a configuración.
func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name string, b []byte) {
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("os_abertas.csv", csvLatin1(t, exampleRows()...))
	// UTF-8 declarado como latin1
	utf8CSV := "titulo\n" + strings.Join(ordens.Columns(), ";") + "\n" + strings.Join(testRow("1", "Usuário", "2025-01-05"), ";") + "\n"
	write("quebrado.csv", []byte(utf8CSV))
	write("profiles.yaml", []byte(testConfigYAML))

	t.Setenv("PAINEL_DATA_DIR", dir)
	t.Setenv("PAINEL_ADDR", "")
	t.Setenv("PAINEL_DEBUG", "")
	cfg, err := LoadConfig(filepath.Join(dir, "profiles.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	return cfg
}

func testServer(t *testing.T) *server {
	t.Helper()
	s, err := newServer(testConfig(t))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return s
}
