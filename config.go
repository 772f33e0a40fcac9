package main

import (
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tereborace.com/painelos/ordens"
)

//go:embed profiles.yaml
var defaultProfilesYAML []byte

// ==== Configuración ====

type Config struct {
	Addr        string    `yaml:"addr"`
	Debug       bool      `yaml:"debug"`
	DataDir     string    `yaml:"data_dir"` // base para os source relativos
	PerPage     int       `yaml:"per_page"`
	ChartLimit  int       `yaml:"chart_limit"` // barras por gráfica antes de agrupar en "Outros"
	MaxUploadMB int64     `yaml:"max_upload_mb"`
	Profiles    []Profile `yaml:"profiles"`
}

// Profile é un panel: de onde vén o ficheiro, como se le e que gráficas amosa.
type Profile struct {
	Name      string        `yaml:"name"`
	Title     string        `yaml:"title"`
	Subtitle  string        `yaml:"subtitle"`
	URL       string        `yaml:"url"` // destino do QR
	Source    string        `yaml:"source"`
	Format    string        `yaml:"format"`
	Encoding  string        `yaml:"encoding"`
	Delimiter string        `yaml:"delimiter"`
	Decimal   string        `yaml:"decimal"`
	SkipRows  *int          `yaml:"skip_rows"` // nil = o defecto do formato
	Sheet     string        `yaml:"sheet"`
	Charts    []ChartConfig `yaml:"charts"`

	specs []ordens.ChartSpec
}

type ChartConfig struct {
	Field string `yaml:"field"`
	Kind  string `yaml:"kind"`
	Title string `yaml:"title"`
}

// IsUpload: sen source, o ficheiro chega polo formulario.
func (p *Profile) IsUpload() bool { return strings.TrimSpace(p.Source) == "" }

// Specs devolve as gráficas xa validadas.
func (p *Profile) Specs() []ordens.ChartSpec { return p.specs }

// LoadOptions para un ficheiro deste perfil; name só se usa para deducir o formato.
func (p *Profile) LoadOptions(name string) (ordens.LoadOptions, error) {
	format := ordens.Format(strings.ToLower(strings.TrimSpace(p.Format)))
	if format == "" || p.IsUpload() {
		f, err := ordens.FormatFromName(name)
		if err != nil {
			return ordens.LoadOptions{}, err
		}
		format = f
	}
	opts := ordens.DefaultOptions(format)
	if p.SkipRows != nil {
		opts.SkipRows = *p.SkipRows
	}
	opts.Sheet = p.Sheet
	if format == ordens.FormatCSV {
		if p.Encoding != "" {
			opts.Encoding = p.Encoding
		}
		if p.Delimiter != "" {
			opts.Delimiter, _ = utf8.DecodeRuneInString(p.Delimiter)
		}
		if p.Decimal != "" {
			opts.DecimalComma = p.Decimal == ","
		}
	}
	return opts, nil
}

// SourcePath resolve source contra data_dir.
func (c *Config) SourcePath(p *Profile) string {
	if p.IsUpload() || filepath.IsAbs(p.Source) || c.DataDir == "" {
		return p.Source
	}
	return filepath.Join(c.DataDir, p.Source)
}

// Profile busca un perfil polo nome.
func (c *Config) Profile(name string) (*Profile, bool) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], true
		}
	}
	return nil, false
}

// LoadConfig le o YAML (ou os perfís embebidos se path está baleiro),
// aplica .env e variables de contorno, completa valores por defecto e valida.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data := defaultProfilesYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		data = b
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}

	// .env é opcional
	if err := godotenv.Load(); err == nil {
		log.Printf("variables cargadas de .env")
	}
	envOverride(&cfg.Addr, "PAINEL_ADDR")
	envOverride(&cfg.DataDir, "PAINEL_DATA_DIR")
	envOverrideBool(&cfg.Debug, "PAINEL_DEBUG")

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 25
	}
	if cfg.ChartLimit <= 0 {
		cfg.ChartLimit = 30
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 32
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Profiles) == 0 {
		return errors.New("config: sen perfís")
	}
	seen := map[string]bool{}
	for i := range c.Profiles {
		p := &c.Profiles[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return fmt.Errorf("config: perfil %d sen nome", i+1)
		}
		if seen[p.Name] {
			return fmt.Errorf("config: perfil %q repetido", p.Name)
		}
		seen[p.Name] = true
		if p.Title == "" {
			p.Title = p.Name
		}
		if p.SkipRows != nil && *p.SkipRows < 0 {
			return fmt.Errorf("config: perfil %q: skip_rows negativo", p.Name)
		}
		switch strings.ToLower(p.Encoding) {
		case "", "latin1", "latin-1", "iso-8859-1", "windows-1252", "cp1252", "utf-8", "utf8":
		default:
			return fmt.Errorf("config: perfil %q: codificación descoñecida %q", p.Name, p.Encoding)
		}
		if !p.IsUpload() {
			if _, err := p.LoadOptions(p.Source); err != nil {
				return fmt.Errorf("config: perfil %q: %w", p.Name, err)
			}
		}
		if len(p.Charts) == 0 {
			return fmt.Errorf("config: perfil %q sen gráficas", p.Name)
		}
		p.specs = p.specs[:0]
		for j, ch := range p.Charts {
			f, err := ordens.ParseField(ch.Field)
			if err != nil {
				return fmt.Errorf("config: perfil %q gráfica %d: %w", p.Name, j+1, err)
			}
			k, err := ordens.ParseChartKind(ch.Kind)
			if err != nil {
				return fmt.Errorf("config: perfil %q gráfica %d: %w", p.Name, j+1, err)
			}
			title := ch.Title
			if title == "" {
				title = f.String()
			}
			p.specs = append(p.specs, ordens.ChartSpec{Field: f, Kind: k, Title: title})
		}
	}
	return nil
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("ignorando %s=%q: %v", key, v, err)
		return
	}
	*dst = b
}
