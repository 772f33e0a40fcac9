package ordens

import "sort"

// Count é un par (valor, ocorrencias). Value "" representa o valor que falta.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FrequencyTable conta os valores dun campo dentro dun mes.
// Entries vai por conta descendente; os empates manteñen a orde en que apareceron.
type FrequencyTable struct {
	Field   Field   `json:"-"`
	Month   string  `json:"month"`
	Entries []Count `json:"entries"`
}

// Total é a suma das contas (= número de rexistros do mes).
func (ft FrequencyTable) Total() int {
	n := 0
	for _, e := range ft.Entries {
		n += e.Count
	}
	return n
}

// Labels e Counts separan as columnas, como as queren as gráficas.
func (ft FrequencyTable) Labels() []string {
	out := make([]string, len(ft.Entries))
	for i, e := range ft.Entries {
		out[i] = e.Value
	}
	return out
}

func (ft FrequencyTable) Counts() []int {
	out := make([]int, len(ft.Entries))
	for i, e := range ft.Entries {
		out[i] = e.Count
	}
	return out
}

// OthersLabel agrupa a cola cando se corta a táboa para mostrala.
const OthersLabel = "Outros"

// Top devolve unha copia coas n primeiras entradas e o resto sumado en "Outros".
// n <= 0 ou unha táboa curta devolven a táboa tal cal. O total non cambia.
func (ft FrequencyTable) Top(n int) FrequencyTable {
	if n <= 0 || len(ft.Entries) <= n {
		return ft
	}
	out := ft
	out.Entries = make([]Count, 0, n+1)
	out.Entries = append(out.Entries, ft.Entries[:n]...)
	rest := 0
	for _, e := range ft.Entries[n:] {
		rest += e.Count
	}
	out.Entries = append(out.Entries, Count{Value: OthersLabel, Count: rest})
	return out
}

// Filter devolve un novo Dataset só cos rexistros de month.
// Un mes sen rexistros dá un dataset baleiro, non erro.
func (d *Dataset) Filter(month string) *Dataset {
	out := &Dataset{Source: d.Source}
	for _, r := range d.Records {
		if r.Month() == month {
			out.Records = append(out.Records, r)
		}
	}
	if len(out.Records) > 0 {
		out.Months = []string{month}
	}
	return out
}

// Frequencies agrupa records polo valor textual de f.
func Frequencies(records []Record, f Field) []Count {
	idx := map[string]int{}
	out := []Count{}
	for _, r := range records {
		v := r.Get(f)
		i, ok := idx[v]
		if !ok {
			i = len(out)
			idx[v] = i
			out = append(out, Count{Value: v})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Aggregate filtra d polo mes e conta os valores de f.
func Aggregate(d *Dataset, month string, f Field) FrequencyTable {
	return FrequencyTable{Field: f, Month: month, Entries: Frequencies(d.Filter(month).Records, f)}
}
