package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tereborace.com/painelos/ordens"
)

// ==== API JSON ====

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type apiChart struct {
	Title   string           `json:"title"`
	Field   string           `json:"field"`
	Kind    ordens.ChartKind `json:"kind"`
	Total   int              `json:"total"`
	Entries []ordens.Count   `json:"entries"`
}

type apiSummary struct {
	Profile string     `json:"profile"`
	Source  string     `json:"source"`
	Month   string     `json:"month"`
	Months  []string   `json:"months"`
	Records int        `json:"records"`
	Dropped int        `json:"dropped"`
	Charts  []apiChart `json:"charts"`
}

type apiRecords struct {
	Month   string              `json:"month"`
	All     bool                `json:"all"`
	Q       string              `json:"q"`
	Total   int                 `json:"total"`
	Page    int                 `json:"page"`
	Pages   int                 `json:"pages"`
	PerPage int                 `json:"per_page"`
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiDataset resolve perfil e dataset; escribe o erro JSON se non hai datos.
func (s *server) apiDataset(w http.ResponseWriter, r *http.Request) (*Profile, *ordens.Dataset, bool) {
	p, ok := s.cfg.Profile(r.PathValue("profile"))
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "perfil desconhecido: " + r.PathValue("profile")})
		return nil, nil, false
	}
	ds, err := s.dataset(p)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: loadErrorMessage(err), Kind: ordens.ErrorKind(err)})
		return nil, nil, false
	}
	if ds == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "nenhum arquivo carregado"})
		return nil, nil, false
	}
	return p, ds, true
}

// /api/p/{profile}/months
func (s *server) handleAPIMonths(w http.ResponseWriter, r *http.Request) {
	_, ds, ok := s.apiDataset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"months":  ds.Months,
		"default": ds.DefaultMonth(),
	})
}

// /api/p/{profile}/summary?month=
func (s *server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	p, ds, ok := s.apiDataset(w, r)
	if !ok {
		return
	}
	rep := ordens.BuildReport(ds, r.URL.Query().Get("month"), p.Specs())
	out := apiSummary{
		Profile: p.Name,
		Source:  ds.Source,
		Month:   rep.Month,
		Months:  rep.Months,
		Records: rep.Records,
		Dropped: ds.Dropped,
		Charts:  make([]apiChart, 0, len(rep.Charts)),
	}
	for _, ct := range rep.Charts {
		out.Charts = append(out.Charts, apiChart{
			Title:   ct.Title,
			Field:   ct.Field.Key(),
			Kind:    ct.Kind,
			Total:   ct.Table.Total(),
			Entries: ct.Table.Entries,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// /api/p/{profile}/records?month=&q=&page=
func (s *server) handleAPIRecords(w http.ResponseWriter, r *http.Request) {
	_, ds, ok := s.apiDataset(w, r)
	if !ok {
		return
	}
	month := r.URL.Query().Get("month")
	if month == "" {
		month = ds.DefaultMonth()
	}
	q := r.URL.Query().Get("q")
	all := r.URL.Query().Get("all") == "1"
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	recs := searchRecords(previewRecords(ds, month, all), q)
	page, pages, lo, hi := paginate(len(recs), page, s.cfg.PerPage)

	keys := make([]string, ordens.FieldCount)
	for i := range keys {
		keys[i] = ordens.Field(i).Key()
	}
	rows := make([]map[string]string, 0, hi-lo)
	for _, rec := range recs[lo:hi] {
		m := make(map[string]string, len(keys))
		for i, k := range keys {
			m[k] = rec.Values[i]
		}
		rows = append(rows, m)
	}
	writeJSON(w, http.StatusOK, apiRecords{
		Month:   month,
		All:     all,
		Q:       q,
		Total:   len(recs),
		Page:    page,
		Pages:   pages,
		PerPage: s.cfg.PerPage,
		Columns: keys,
		Rows:    rows,
	})
}
