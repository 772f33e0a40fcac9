package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"tereborace.com/painelos/ordens"
)

// ==== Gráficas (PNG no servidor, ASCII no terminal) ====

var errNoData = errors.New("sem dados para o mês")

const (
	chartWidth  = 960
	chartHeight = 480
	labelRunes  = 18
)

var chartColor = drawing.ColorFromHex("1f77b4")

// intTick mostra os ticks do eixo Y como enteiros.
func intTick(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

// renderChart debuxa ct como PNG. limit corta a táboa agrupando o resto en "Outros".
func renderChart(w io.Writer, ct ordens.ChartTable, limit int) error {
	ft := ct.Table.Top(limit)
	if len(ft.Entries) == 0 {
		return errNoData
	}
	switch ct.Kind {
	case ordens.ChartPie:
		return renderPie(w, ct.Title, ft)
	case ordens.ChartArea:
		return renderArea(w, ct.Title, ft)
	default:
		return renderBar(w, ct.Title, ft)
	}
}

func maxCount(ft ordens.FrequencyTable) int {
	m := 0
	for _, e := range ft.Entries {
		m = max(m, e.Count)
	}
	return m
}

func renderBar(w io.Writer, title string, ft ordens.FrequencyTable) error {
	bars := make([]chart.Value, len(ft.Entries))
	for i, e := range ft.Entries {
		bars[i] = chart.Value{
			Label: truncateLabel(displayLabel(e.Value), labelRunes),
			Value: float64(e.Count),
			Style: chart.Style{FillColor: chartColor, StrokeColor: chartColor},
		}
	}
	bc := chart.BarChart{
		Title:      title,
		Width:      max(chartWidth, len(bars)*60),
		Height:     chartHeight,
		BarWidth:   40,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: float64(maxCount(ft))},
			ValueFormatter: intTick,
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

func renderPie(w io.Writer, title string, ft ordens.FrequencyTable) error {
	total := ft.Total()
	vals := make([]chart.Value, len(ft.Entries))
	for i, e := range ft.Entries {
		vals[i] = chart.Value{
			Label: fmt.Sprintf("%s %s", truncateLabel(displayLabel(e.Value), labelRunes), percent(e.Count, total)),
			Value: float64(e.Count),
		}
	}
	pc := chart.PieChart{
		Title:  title,
		Width:  chartHeight,
		Height: chartHeight,
		Values: vals,
	}
	return pc.Render(chart.PNG, w)
}

func renderArea(w io.Writer, title string, ft ordens.FrequencyTable) error {
	xs := make([]float64, len(ft.Entries))
	ys := make([]float64, len(ft.Entries))
	ticks := make([]chart.Tick, len(ft.Entries))
	for i, e := range ft.Entries {
		xs[i] = float64(i)
		ys[i] = float64(e.Count)
		ticks[i] = chart.Tick{Value: float64(i), Label: truncateLabel(displayLabel(e.Value), labelRunes)}
	}
	// go-chart precisa de polo menos dous valores en X
	if len(xs) == 1 {
		xs = append(xs, 1)
		ys = append(ys, ys[0])
	}
	ch := chart.Chart{
		Title:      title,
		Width:      max(chartWidth, len(xs)*60),
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 24, Bottom: 16}},
		XAxis:      chart.XAxis{Ticks: ticks},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: float64(maxCount(ft))},
			ValueFormatter: intTick,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    title,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chartColor,
					StrokeWidth: 2,
					FillColor:   chartColor.WithAlpha(96),
				},
			},
		},
	}
	return ch.Render(chart.PNG, w)
}

// renderQR devolve o PNG do código QR de url.
func renderQR(url string, size int) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("perfil sem url para o QR")
	}
	return qrcode.Encode(url, qrcode.Medium, size)
}

// renderHistogram debuxa ft en ASCII, unha barra por valor.
func renderHistogram(ft ordens.FrequencyTable, limit, maxBar int) string {
	ft = ft.Top(limit)
	if len(ft.Entries) == 0 {
		return "(sem dados)\n"
	}
	maxc := maxCount(ft)
	b := strings.Builder{}
	for _, e := range ft.Entries {
		bar := strings.Repeat("█", int(float64(e.Count)/float64(maxc)*float64(maxBar)))
		lab := truncateLabel(displayLabel(e.Value), labelRunes)
		fmt.Fprintf(&b, "%-*s | %-*s %d\n", labelRunes, lab, maxBar, bar, e.Count)
	}
	return b.String()
}

// writeTextReport escribe todas as gráficas dun mes como histogramas ASCII.
func writeTextReport(w io.Writer, p *Profile, ds *ordens.Dataset, month string, limit int) {
	rep := ordens.BuildReport(ds, month, p.Specs())
	fmt.Fprintf(w, "%s\n", p.Title)
	if p.Subtitle != "" {
		fmt.Fprintf(w, "%s\n", p.Subtitle)
	}
	fmt.Fprintf(w, "Mês %s · %s ordens · meses: %s\n", rep.Month, formatCount(rep.Records), strings.Join(rep.Months, ", "))
	for _, ct := range rep.Charts {
		fmt.Fprintf(w, "\n== %s ==\n%s", ct.Title, renderHistogram(ct.Table, limit, 40))
	}
}
