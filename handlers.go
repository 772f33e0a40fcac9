package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"tereborace.com/painelos/ordens"
)

// ==== datos por perfil ====

// dataset devolve o dataset normalizado do perfil.
// Nun perfil de upload sen ficheiro aínda devolve nil, nil.
func (s *server) dataset(p *Profile) (*ordens.Dataset, error) {
	if p.IsUpload() {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.uploads[p.Name], nil
	}
	path := s.cfg.SourcePath(p)
	opts, err := p.LoadOptions(path)
	if err != nil {
		return nil, err
	}
	pl := &ordens.Pipeline{Options: opts, Cache: s.cache}
	ds, cached, err := pl.RunFile(path)
	s.metrics.observeLoad(p.Name, ds, cached, err)
	// un fallo de carga tamén é un fallo da cache
	s.metrics.observeCache(cached)
	if err != nil {
		log.Printf("perfil %s: %v", p.Name, err)
		return nil, err
	}
	if !cached {
		logLoaded(p.Name, ds)
	}
	return ds, nil
}

// storeUpload carga content como o ficheiro actual dun perfil de upload.
// Se falla, o upload anterior queda como estaba.
func (s *server) storeUpload(p *Profile, name string, content []byte) (*ordens.Dataset, error) {
	opts, err := p.LoadOptions(name)
	if err != nil {
		s.metrics.observeLoad(p.Name, nil, false, err)
		return nil, err
	}
	pl := &ordens.Pipeline{Options: opts}
	ds, _, err := pl.Run(name, content)
	s.metrics.observeLoad(p.Name, ds, false, err)
	if err != nil {
		log.Printf("perfil %s: upload %s: %v", p.Name, name, err)
		return nil, err
	}
	logLoaded(p.Name, ds)

	s.mu.Lock()
	s.uploads[p.Name] = ds
	s.mu.Unlock()
	return ds, nil
}

func (s *server) lookupProfile(w http.ResponseWriter, name string) (*Profile, bool) {
	p, ok := s.cfg.Profile(name)
	if !ok {
		http.Error(w, "perfil desconhecido: "+name, http.StatusNotFound)
	}
	return p, ok
}

// paginate devolve a páxina axustada, o total de páxinas e o rango [lo, hi).
func paginate(total, page, perPage int) (int, int, int, int) {
	if perPage <= 0 {
		perPage = 25
	}
	pages := max(1, (total+perPage-1)/perPage)
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	lo := (page - 1) * perPage
	hi := min(total, lo+perPage)
	return page, pages, lo, hi
}

// previewRecords: os rexistros do mes, ou todo o ficheiro se all.
func previewRecords(ds *ordens.Dataset, month string, all bool) []ordens.Record {
	if all {
		return ds.Records
	}
	return ds.Filter(month).Records
}

// ==== handlers ====

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_ = s.tpl.ExecuteTemplate(w, "index.gohtml", map[string]any{
		"Profiles": s.cfg.Profiles,
	})
}

type chartView struct {
	Index int
	Title string
	Kind  ordens.ChartKind
	Total int
	Top   []ordens.Count
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupProfile(w, r.PathValue("profile"))
	if !ok {
		return
	}
	data := map[string]any{
		"Profile":  p,
		"Profiles": s.cfg.Profiles,
	}

	ds, err := s.dataset(p)
	if err != nil {
		s.renderLoadError(w, data, err)
		return
	}
	if ds == nil {
		// perfil de upload sen ficheiro
		_ = s.tpl.ExecuteTemplate(w, "dashboard.gohtml", data)
		return
	}
	s.renderDashboard(w, r, data, ds)
}

func (s *server) renderLoadError(w http.ResponseWriter, data map[string]any, err error) {
	data["Error"] = loadErrorMessage(err)
	data["ErrorKind"] = ordens.ErrorKind(err)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = s.tpl.ExecuteTemplate(w, "dashboard.gohtml", data)
}

func (s *server) renderDashboard(w http.ResponseWriter, r *http.Request, data map[string]any, ds *ordens.Dataset) {
	p := data["Profile"].(*Profile)
	month := r.URL.Query().Get("month")
	if month != "" && !ds.HasMonth(month) {
		data["Notice"] = fmt.Sprintf("Mês %s sem ordens; mostrando %s.", month, ds.DefaultMonth())
		month = ""
	}
	rep := ordens.BuildReport(ds, month, p.Specs())

	charts := make([]chartView, len(rep.Charts))
	for i, ct := range rep.Charts {
		charts[i] = chartView{
			Index: i,
			Title: ct.Title,
			Kind:  ct.Kind,
			Total: ct.Table.Total(),
			Top:   ct.Table.Top(10).Entries,
		}
	}

	q := r.URL.Query().Get("q")
	all := r.URL.Query().Get("all") == "1"
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	recs := searchRecords(previewRecords(ds, rep.Month, all), q)
	page, pages, lo, hi := paginate(len(recs), page, s.cfg.PerPage)
	rows := make([][]string, 0, hi-lo)
	for _, rec := range recs[lo:hi] {
		rows = append(rows, rec.Values[:])
	}

	data["Source"] = filepath.Base(ds.Source)
	data["Month"] = rep.Month
	data["Months"] = rep.Months
	data["Records"] = rep.Records
	data["RecordsFmt"] = formatCount(rep.Records)
	data["Dropped"] = ds.Dropped
	data["Charts"] = charts
	data["Cols"] = ordens.Columns()
	data["Rows"] = rows
	data["Q"] = q
	data["All"] = all
	data["Matches"] = len(recs)
	data["Page"] = page
	data["Pages"] = pages
	data["HasPrev"] = page > 1
	data["HasNext"] = page < pages
	_ = s.tpl.ExecuteTemplate(w, "dashboard.gohtml", data)
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupProfile(w, r.PathValue("profile"))
	if !ok {
		return
	}
	if !p.IsUpload() {
		http.Error(w, "o perfil "+p.Name+" não aceita upload", http.StatusBadRequest)
		return
	}
	limit := s.cfg.MaxUploadMB << 20
	if r.ContentLength > limit {
		http.Error(w, fmt.Sprintf("arquivo maior que %d MB", s.cfg.MaxUploadMB), http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, fmt.Sprintf("arquivo maior que %d MB", s.cfg.MaxUploadMB), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "falta o arquivo: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := map[string]any{"Profile": p, "Profiles": s.cfg.Profiles}
	if _, err := s.storeUpload(p, filepath.Base(hdr.Filename), content); err != nil {
		s.renderLoadError(w, data, err)
		return
	}
	http.Redirect(w, r, "/p/"+p.Name, http.StatusSeeOther)
}

// reportFor resolve perfil, dataset e mes dunha petición. Escribe a resposta de erro se falla.
func (s *server) reportFor(w http.ResponseWriter, r *http.Request, name string) (*Profile, *ordens.Dataset, ordens.Report, bool) {
	p, ok := s.lookupProfile(w, name)
	if !ok {
		return nil, nil, ordens.Report{}, false
	}
	ds, err := s.dataset(p)
	if err != nil {
		http.Error(w, loadErrorMessage(err), http.StatusUnprocessableEntity)
		return nil, nil, ordens.Report{}, false
	}
	if ds == nil {
		http.Error(w, "nenhum arquivo carregado", http.StatusNotFound)
		return nil, nil, ordens.Report{}, false
	}
	return p, ds, ordens.BuildReport(ds, r.URL.Query().Get("month"), p.Specs()), true
}

func (s *server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(strings.TrimSuffix(r.PathValue("file"), ".png"))
	if err != nil || !strings.HasSuffix(r.PathValue("file"), ".png") {
		http.NotFound(w, r)
		return
	}
	_, _, rep, ok := s.reportFor(w, r, r.PathValue("profile"))
	if !ok {
		return
	}
	if n < 0 || n >= len(rep.Charts) {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	if err := renderChart(&buf, rep.Charts[n], s.cfg.ChartLimit); err != nil {
		if errors.Is(err, errNoData) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleQR(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupProfile(w, r.PathValue("profile"))
	if !ok {
		return
	}
	png, err := renderQR(p.URL, 256)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ==== exportación ====

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	if format != "csv" && format != "xlsx" && format != "sqlite" {
		http.NotFound(w, r)
		return
	}
	name := r.URL.Query().Get("profile")
	if name == "" {
		http.Error(w, "missing profile", http.StatusBadRequest)
		return
	}
	p, ds, rep, ok := s.reportFor(w, r, name)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	view := ds.Filter(rep.Month).Records
	fn := exportName(p.Name, rep.Month, format)

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename="+fn)
		if err := writeCSV(w, searchRecords(view, q)); err != nil {
			log.Printf("export csv %s: %v", p.Name, err)
		}
	case "xlsx":
		f, err := buildXLSX(searchRecords(view, q), rep)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+fn)
		_ = f.Write(w)
	case "sqlite":
		path, err := exportSQLiteFile(view, q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer os.Remove(path)
		w.Header().Set("Content-Type", "application/vnd.sqlite3")
		w.Header().Set("Content-Disposition", "attachment; filename="+fn)
		http.ServeFile(w, r, path)
	}
}

// writeCSV escribe as 19 columnas en UTF-8 e formato canónico.
func writeCSV(w io.Writer, recs []ordens.Record) error {
	csvw := csv.NewWriter(w)
	_ = csvw.Write(ordens.Columns())
	for _, rec := range recs {
		_ = csvw.Write(rec.Values[:])
	}
	csvw.Flush()
	return csvw.Error()
}

// buildXLSX: folla "Ordens" cos rexistros e folla "Resumo" coas táboas de frecuencia.
func buildXLSX(recs []ordens.Record, rep ordens.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Ordens"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	cols := ordens.Columns()
	head := make([]any, len(cols))
	for i, c := range cols {
		head[i] = c
	}
	_ = f.SetSheetRow(sheet, "A1", &head)
	for i, rec := range recs {
		row := make([]any, len(rec.Values))
		for j, v := range rec.Values {
			row[j] = v
		}
		_ = f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row)
	}

	summary := "Resumo"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	line := 1
	title := []any{"Mês", rep.Month, "Ordens", rep.Records}
	_ = f.SetSheetRow(summary, fmt.Sprintf("A%d", line), &title)
	line += 2
	for _, ct := range rep.Charts {
		h := []any{ct.Title, "Quantidade"}
		_ = f.SetSheetRow(summary, fmt.Sprintf("A%d", line), &h)
		line++
		for _, e := range ct.Table.Entries {
			row := []any{displayLabel(e.Value), e.Count}
			_ = f.SetSheetRow(summary, fmt.Sprintf("A%d", line), &row)
			line++
		}
		line++
	}
	return f, nil
}

// exportSQLiteFile escribe o snapshot nun ficheiro temporal e devolve a súa ruta.
func exportSQLiteFile(recs []ordens.Record, q string) (string, error) {
	tmp, err := os.CreateTemp("", "painelos-*.sqlite")
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	_ = tmp.Close()

	n, err := writeSQLiteSnapshot(path, recs, q)
	if err == nil {
		err = verifySnapshot(path, n)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
