package ordens

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// fila de proba: só se enchen Protocolo, Cliente, Tipo, Criada e Bairro
func testRow(proto, client, created string) []string {
	r := make([]string, FieldCount)
	r[Protocol] = proto
	r[Client] = client
	r[Type] = "Sem conexão"
	r[Method] = "Telefone"
	r[Status] = "Aberta"
	r[CreatedAt] = created
	r[Neighborhood] = "Centro"
	return r
}

func testTable(rows ...[]string) *Table {
	t := &Table{Source: "test", Header: Columns()}
	for i, r := range rows {
		t.Rows = append(t.Rows, r)
		t.Lines = append(t.Lines, i+3)
	}
	return t
}

// csvLatin1 monta unha exportación como a do sistema: liña de título, cabeceira e datos.
func csvLatin1(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	var b strings.Builder
	b.WriteString("Relatório de ordens de serviço\n")
	b.WriteString(strings.Join(Columns(), ";") + "\n")
	for _, r := range rows {
		b.WriteString(strings.Join(r, ";") + "\n")
	}
	out, err := charmap.ISO8859_1.NewEncoder().String(b.String())
	if err != nil {
		t.Fatalf("encode latin1: %v", err)
	}
	return []byte(out)
}

// xlsxBytes crea un libro cunha folla: skip liñas de título, cabeceira e datos.
func xlsxBytes(t *testing.T, skip int, rows ...[]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"
	line := 1
	for i := 0; i < skip; i++ {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", line), "Ocorrências")
		line++
	}
	head := make([]any, FieldCount)
	for i, c := range Columns() {
		head[i] = c
	}
	if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", line), &head); err != nil {
		t.Fatalf("header: %v", err)
	}
	line++
	for _, r := range rows {
		vals := make([]any, len(r))
		for i, v := range r {
			vals[i] = v
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", line), &vals); err != nil {
			t.Fatalf("row: %v", err)
		}
		line++
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return buf.Bytes()
}
