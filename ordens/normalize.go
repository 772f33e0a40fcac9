package ordens

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Dataset é a secuencia normalizada: todas as liñas teñen CreatedAt válido
// e están ordenadas por CreatedAt (ordenación estable).
// Non se modifica despois de creado; Filter devolve copias.
type Dataset struct {
	Source  string
	Records []Record
	Months  []string // chaves YYYY-MM sen repetir, en orde cronolóxica
	Dropped int      // liñas descartadas por CreatedAt inválido
}

// Formatos de data aceptados, por orde. O primeiro que encaixa gaña.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02/01/06 15:04",
	"02/01/06",
	"02-01-2006 15:04:05",
	"02-01-2006",
}

// ParseTimestamp converte texto a data en UTC. Valores que non encaixan devolven ok=false
// (coerción permisiva: pasan a faltar, non son erro).
// Un desprazamento horario (RFC3339) pásase a UTC: orde, mes e texto canónico
// saen todos do mesmo instante.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	// número de serie de Excel (datas en celas con RawCellValue); desde 1927 para
	// non confundir un ano ou un código curto cunha data
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 10000 && f < 2958466 && !math.IsNaN(f) {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			t = t.Round(time.Second)
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Normalize aplica o esquema posicional de 19 columnas, descarta as liñas sen
// CreatedAt válido, ordena por CreatedAt e calcula os meses.
//
// As columnas recoñécense só pola posición: un ficheiro con outra orde queda
// mal etiquetado. Unha táboa con liñas onde ningunha data de
// creación é válida rexéitase como SchemaError.
func Normalize(t *Table) (*Dataset, error) {
	if len(t.Header) != FieldCount {
		return nil, &SchemaError{Want: FieldCount, Got: len(t.Header)}
	}

	ds := &Dataset{Source: t.Source, Records: make([]Record, 0, len(t.Rows))}
	for i, row := range t.Rows {
		if len(row) != FieldCount {
			return nil, &SchemaError{Want: FieldCount, Got: len(row), Field: CreatedAt, Reason: "linha com número de colunas diferente"}
		}
		created, ok := ParseTimestamp(row[CreatedAt])
		if !ok {
			ds.Dropped++
			continue
		}
		var rec Record
		for j := range rec.Values {
			rec.Values[j] = strings.TrimSpace(row[j])
		}
		rec.Created = created
		rec.Values[CreatedAt] = created.Format(TimestampLayout)
		for _, f := range []Field{ScheduledAt, ClosedAt} {
			if ts, ok := ParseTimestamp(rec.Values[f]); ok {
				rec.Values[f] = ts.Format(TimestampLayout)
			}
		}
		if i < len(t.Lines) {
			rec.Line = t.Lines[i]
		}
		ds.Records = append(ds.Records, rec)
	}

	if len(t.Rows) > 0 && len(ds.Records) == 0 {
		return nil, &SchemaError{Want: FieldCount, Got: len(t.Header), Field: CreatedAt,
			Reason: "nenhum valor da coluna é uma data; a ordem das colunas pode estar trocada"}
	}

	sort.SliceStable(ds.Records, func(i, j int) bool {
		return ds.Records[i].Created.Before(ds.Records[j].Created)
	})
	ds.Months = monthKeys(ds.Records)
	return ds, nil
}

func monthKeys(recs []Record) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range recs {
		m := r.Month()
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Table devolve a forma crua canónica do dataset; Normalize(ds.Table()) reproduz ds.
func (d *Dataset) Table() *Table {
	t := &Table{Source: d.Source, Header: Columns()}
	for _, r := range d.Records {
		row := make([]string, FieldCount)
		copy(row, r.Values[:])
		t.Rows = append(t.Rows, row)
		t.Lines = append(t.Lines, r.Line)
	}
	return t
}

// Len é o número de rexistros.
func (d *Dataset) Len() int { return len(d.Records) }

// HasMonth indica se month é unha das chaves do dataset.
func (d *Dataset) HasMonth(month string) bool {
	for _, m := range d.Months {
		if m == month {
			return true
		}
	}
	return false
}

// DefaultMonth é a primeira opción do selector ("" nun dataset baleiro).
func (d *Dataset) DefaultMonth() string {
	if len(d.Months) == 0 {
		return ""
	}
	return d.Months[0]
}
