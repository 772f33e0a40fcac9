// main.go
// Build/run:
//
//	go run .                                   # UI web en http://127.0.0.1:8080 cos perfís embebidos
//	go run . --config profiles.yaml --mode web # perfís propios
//	go run . --mode tui --profile abertas      # UI TUI (terminal)
//	go run . --mode text --profile ralpnet --file ocorrencias.xlsx --month 2025-01
//
// Notas:
// - Cada perfil é un panel: un ficheiro de ordes de servizo (CSV latin1 ou XLSX) e unha lista de gráficas.
// - Os datos lense, normalízanse e cóntanse por mes no paquete ordens; aquí só se presentan.
// - Perfil sen source: o ficheiro chega por upload desde a web (ou --file nos modos tui/text).
// - Exportación: CSV, XLSX e SQLite da vista do mes.
// - Gráficas: PNG no servidor (go-chart) no modo web; histograma ASCII nos modos tui e text.

package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tereborace.com/painelos/ordens"
)

//go:embed webstatic/*
var webFS embed.FS

//go:embed templates/*
var tplFS embed.FS

type server struct {
	cfg     Config
	tpl     *template.Template
	cache   *ordens.Cache
	metrics *metrics
	mux     *http.ServeMux

	mu      sync.RWMutex
	uploads map[string]*ordens.Dataset // último upload por perfil
}

func newServer(cfg Config) (*server, error) {
	tpl, err := template.New("").
		Funcs(template.FuncMap{
			"label": displayLabel, // "" -> (vazio)
			"add":   func(a, b int) int { return a + b },
			"sub":   func(a, b int) int { return a - b },
			"title": titleCase,
		}).
		ParseFS(tplFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:     cfg,
		tpl:     tpl,
		cache:   ordens.NewCache(),
		metrics: newMetrics(),
		mux:     http.NewServeMux(),
		uploads: map[string]*ordens.Dataset{},
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *server) routes() error {
	assets, err := fs.Sub(webFS, "webstatic")
	if err != nil {
		return err
	}

	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(assets))))
	s.handle("GET /{$}", s.handleIndex)
	s.handle("GET /p/{profile}", s.handleDashboard)
	s.handle("POST /p/{profile}/upload", s.handleUpload)
	s.handle("GET /p/{profile}/chart/{file}", s.handleChartPNG)
	s.handle("GET /p/{profile}/qr.png", s.handleQR)
	s.handle("GET /export/{format}", s.handleExport)

	// API JSON
	s.handle("GET /api/p/{profile}/months", s.handleAPIMonths)
	s.handle("GET /api/p/{profile}/summary", s.handleAPISummary)
	s.handle("GET /api/p/{profile}/records", s.handleAPIRecords)

	s.mux.Handle("GET /metrics", s.metrics.handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return nil
}

// handle rexistra h co middleware de log e as métricas da ruta.
func (s *server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, withLogging(s.cfg.Debug, s.metrics.instrument(pattern, h)))
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// run serve ata que ctx remata e despois pecha con prazo.
func (s *server) run(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("Web UI en http://%s", s.cfg.Addr)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("pechando...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

// middleware para empregar de debug nos handlers
func withLogging(debug bool, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if debug {
			start := time.Now()
			log.Printf("→ %s %s %s", r.Method, r.URL.Path, r.URL.RawQuery)
			defer log.Printf("← %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
		}
		h(w, r)
	}
}

// ==== flags ====

type cliOptions struct {
	ConfigPath string
	Mode       string
	Addr       string
	Profile    string
	File       string
	Month      string
	Debug      bool
}

func parseFlags(args []string) (cliOptions, error) {
	var o cliOptions
	fset := flag.NewFlagSet("painelos", flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	fset.StringVar(&o.ConfigPath, "config", os.Getenv("PAINEL_CONFIG"), "ficheiro YAML de perfís (baleiro = perfís embebidos)")
	fset.StringVar(&o.Mode, "mode", "web", "web|tui|text")
	fset.StringVar(&o.Addr, "addr", "", "enderezo para o modo web")
	fset.StringVar(&o.Profile, "profile", "", "perfil para os modos tui e text")
	fset.StringVar(&o.File, "file", "", "ficheiro a cargar en vez do source do perfil")
	fset.StringVar(&o.Month, "month", "", "mes YYYY-MM (baleiro = o primeiro)")
	fset.BoolVar(&o.Debug, "debug", false, "enable debug logging")
	if err := fset.Parse(args); err != nil {
		return o, err
	}
	if fset.NArg() > 0 {
		return o, fmt.Errorf("argumentos sobrantes: %s", strings.Join(fset.Args(), " "))
	}
	switch o.Mode {
	case "web", "tui", "text":
	default:
		return o, fmt.Errorf("modo descoñecido: %s", o.Mode)
	}
	return o, nil
}

// applyFlags: os flags gañan ás variables de contorno e ao YAML.
func (o cliOptions) applyFlags(cfg *Config) {
	if o.Addr != "" {
		cfg.Addr = o.Addr
	}
	if o.Debug {
		cfg.Debug = true
	}
}

// loadProfile carga o dataset dun perfil para os modos de terminal.
func loadProfile(cfg Config, o cliOptions) (*Profile, *ordens.Dataset, error) {
	p := &cfg.Profiles[0]
	if o.Profile != "" {
		var ok bool
		if p, ok = cfg.Profile(o.Profile); !ok {
			return nil, nil, fmt.Errorf("perfil descoñecido: %s", o.Profile)
		}
	}
	path := o.File
	if path == "" {
		path = cfg.SourcePath(p)
	}
	if path == "" {
		return nil, nil, fmt.Errorf("o perfil %s non ten source: indique --file", p.Name)
	}
	opts, err := p.LoadOptions(path)
	if err != nil {
		return nil, nil, err
	}
	pl := &ordens.Pipeline{Options: opts}
	ds, _, err := pl.RunFile(path)
	if err != nil {
		return nil, nil, err
	}
	logLoaded(p.Name, ds)
	if o.Month != "" && !ds.HasMonth(o.Month) {
		return nil, nil, fmt.Errorf("mes %s sen rexistros (dispoñibles: %s)", o.Month, strings.Join(ds.Months, ", "))
	}
	return p, ds, nil
}

func logLoaded(profile string, ds *ordens.Dataset) {
	log.Printf("perfil %s: %s, %d rexistros, %d descartados, %d meses", profile, ds.Source, ds.Len(), ds.Dropped, len(ds.Months))
}

// ==== main ====
func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "uso: painelos [--config perfís.yaml] [--mode web|tui|text] [--addr host:porto] [--profile nome] [--file ficheiro] [--month YYYY-MM] [--debug]")
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}
	o.applyFlags(&cfg)

	switch o.Mode {
	case "web":
		srv, err := newServer(cfg)
		if err != nil {
			log.Fatal(err)
		}
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		if err := srv.run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	case "tui":
		p, ds, err := loadProfile(cfg, o)
		if err != nil {
			log.Fatal(err)
		}
		prog := tea.NewProgram(initialTUI(p, ds, o.Month, cfg.ChartLimit))
		if _, err := prog.Run(); err != nil {
			log.Fatal(err)
		}
	case "text":
		p, ds, err := loadProfile(cfg, o)
		if err != nil {
			log.Fatal(err)
		}
		writeTextReport(os.Stdout, p, ds, o.Month, cfg.ChartLimit)
	}
}
