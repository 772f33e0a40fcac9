package ordens

import (
	"fmt"
	"os"
	"strings"
)

// Pipeline encadea Load -> Normalize, con cache opcional.
type Pipeline struct {
	Options LoadOptions
	Cache   *Cache // nil = sen cache
}

// Run le content (xa en memoria) e devolve o dataset normalizado.
// cached indica se veu da cache.
func (p *Pipeline) Run(source string, content []byte) (ds *Dataset, cached bool, err error) {
	var key string
	if p.Cache != nil {
		key = CacheKey(content, p.Options)
		if ds, ok := p.Cache.Get(source, key); ok {
			return ds, true, nil
		}
	}
	t, err := LoadBytes(content, p.Options)
	if err != nil {
		return nil, false, withSource(err, source)
	}
	t.Source = source
	ds, err = Normalize(t)
	if err != nil {
		return nil, false, err
	}
	if p.Cache != nil {
		p.Cache.Put(source, key, ds)
	}
	return ds, false, nil
}

// RunFile é Run sobre un ficheiro do disco.
func (p *Pipeline) RunFile(path string) (*Dataset, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false, &LoadError{Source: path, Err: err}
	}
	return p.Run(path, b)
}

// ChartKind é o tipo de gráfica que o presentador debuxa.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartPie  ChartKind = "pie"
	ChartArea ChartKind = "area"
)

// ParseChartKind valida o tipo de gráfica.
func ParseChartKind(s string) (ChartKind, error) {
	switch k := ChartKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ChartBar, ChartPie, ChartArea:
		return k, nil
	case "":
		return ChartBar, nil
	}
	return "", fmt.Errorf("tipo de gráfico desconhecido: %q", s)
}

// ChartSpec: que campo contar, como debuxalo e con que título.
type ChartSpec struct {
	Field Field
	Kind  ChartKind
	Title string
}

// ChartTable é unha gráfica xa calculada.
type ChartTable struct {
	ChartSpec
	Table FrequencyTable
}

// Report reúne todas as gráficas dun mes.
type Report struct {
	Month   string
	Months  []string
	Records int // rexistros do mes
	Charts  []ChartTable
}

// BuildReport calcula as táboas de frecuencia de specs para month.
// month baleiro escolle o primeiro mes do dataset.
func BuildReport(ds *Dataset, month string, specs []ChartSpec) Report {
	if month == "" {
		month = ds.DefaultMonth()
	}
	view := ds.Filter(month)
	rep := Report{Month: month, Months: ds.Months, Records: view.Len()}
	for _, s := range specs {
		rep.Charts = append(rep.Charts, ChartTable{
			ChartSpec: s,
			Table:     FrequencyTable{Field: s.Field, Month: month, Entries: Frequencies(view.Records, s.Field)},
		})
	}
	return rep
}
