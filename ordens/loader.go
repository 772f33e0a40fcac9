package ordens

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Format do ficheiro de entrada.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Codificacións aceptadas para CSV.
const (
	EncodingLatin1  = "latin1"
	EncodingCP1252  = "windows-1252"
	EncodingUTF8    = "utf-8"
	defaultEncoding = EncodingLatin1
)

// LoadOptions describe como ler o ficheiro.
type LoadOptions struct {
	Format       Format
	Encoding     string // só CSV
	Delimiter    rune   // só CSV
	DecimalComma bool   // só CSV: "12,5" -> "12.5" en columnas numéricas
	SkipRows     int    // liñas descartadas antes da cabeceira
	Sheet        string // só XLSX; baleiro = primeira folla
}

// DefaultOptions reproduce a lectura das exportacións do sistema:
// CSV con ";" en latin1, coma decimal e unha liña de título antes da cabeceira.
func DefaultOptions(f Format) LoadOptions {
	switch f {
	case FormatCSV:
		return LoadOptions{Format: FormatCSV, Encoding: defaultEncoding, Delimiter: ';', DecimalComma: true, SkipRows: 1}
	default:
		return LoadOptions{Format: f}
	}
}

// Table é o resultado cru do Loader: texto sen tipos, columnas por posición.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
	Lines  []int // liña de orixe de cada fila
}

// FormatFromName deduce o formato pola extensión.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", &LoadError{Source: name, Err: fmt.Errorf("formato não suportado %q", filepath.Ext(name))}
}

// LoadFile abre path e chama Load.
func LoadFile(path string, opts LoadOptions) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	t, err := LoadBytes(b, opts)
	if err != nil {
		return nil, withSource(err, path)
	}
	t.Source = path
	return t, nil
}

// Load le todo r. Ou devolve a táboa completa ou un erro, nunca resultados parciais.
func Load(r io.Reader, opts LoadOptions) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	return LoadBytes(b, opts)
}

// LoadBytes é Load sobre un buffer xa lido (serve para calcular a chave da cache).
func LoadBytes(b []byte, opts LoadOptions) (*Table, error) {
	switch opts.Format {
	case FormatCSV:
		return loadCSV(b, opts)
	case FormatXLSX:
		return loadXLSX(b, opts)
	}
	return nil, &LoadError{Err: fmt.Errorf("formato desconhecido %q", opts.Format)}
}

func withSource(err error, src string) error {
	var le *LoadError
	if errors.As(err, &le) && le.Source == "" {
		le.Source = src
	}
	return err
}

// ==== CSV ====

func loadCSV(b []byte, opts LoadOptions) (*Table, error) {
	text, err := decodeText(b, opts.Encoding)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = opts.Delimiter
	if cr.Comma == 0 {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	t := &Table{}
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{Err: err}
		}
		line, _ := cr.FieldPos(0)
		if skipped < opts.SkipRows {
			skipped++
			continue
		}
		if t.Header == nil {
			t.Header = trimAll(rec)
			continue
		}
		if len(rec) > len(t.Header) {
			return nil, &LoadError{Err: fmt.Errorf("linha %d: esperados %d campos, encontrados %d", line, len(t.Header), len(rec))}
		}
		t.Rows = append(t.Rows, pad(rec, len(t.Header)))
		t.Lines = append(t.Lines, line)
	}
	if t.Header == nil {
		return nil, &LoadError{Err: errors.New("arquivo sem cabeçalho")}
	}
	if opts.DecimalComma {
		fixDecimalComma(t.Rows, len(t.Header))
	}
	return t, nil
}

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
	// bytes que Windows-1252 deixa sen definir
	cp1252Undefined = map[byte]bool{0x81: true, 0x8D: true, 0x8F: true, 0x90: true, 0x9D: true}
)

// decodeText converte b a UTF-8 validando a codificación declarada.
//
// latin1 e windows-1252 aceptan case calquera byte, así que un ficheiro UTF-8
// declarado como latin1 detéctase porque o contido é UTF-8 válido con
// secuencias multibyte (ou trae BOM), ou porque ten caracteres de control C1.
func decodeText(b []byte, enc string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		if off := c1Offset(b, func(c byte) bool { return c >= 0x80 && c <= 0x9F }); off >= 0 {
			return nil, &DecodingError{Encoding: EncodingLatin1, Offset: off, Err: errors.New("carácter de controlo C1")}
		}
		if off := utf8Offset(b); off >= 0 {
			return nil, &DecodingError{Encoding: EncodingLatin1, Offset: off, Err: errors.New("o conteúdo parece UTF-8")}
		}
		return decodeWith(charmap.ISO8859_1, b)
	case "windows-1252", "cp1252":
		if off := c1Offset(b, func(c byte) bool { return cp1252Undefined[c] }); off >= 0 {
			return nil, &DecodingError{Encoding: EncodingCP1252, Offset: off, Err: errors.New("byte não definido")}
		}
		if off := utf8Offset(b); off >= 0 {
			return nil, &DecodingError{Encoding: EncodingCP1252, Offset: off, Err: errors.New("o conteúdo parece UTF-8")}
		}
		return decodeWith(charmap.Windows1252, b)
	case "utf-8", "utf8":
		b = bytes.TrimPrefix(b, utf8BOM)
		if !utf8.Valid(b) {
			return nil, &DecodingError{Encoding: EncodingUTF8, Offset: int64(firstInvalidUTF8(b))}
		}
		return b, nil
	}
	return nil, fmt.Errorf("codificação desconhecida %q", enc)
}

func decodeWith(enc encoding.Encoding, b []byte) ([]byte, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return nil, &DecodingError{Encoding: fmt.Sprint(enc), Err: err}
	}
	return out, nil
}

func c1Offset(b []byte, bad func(byte) bool) int64 {
	for i, c := range b {
		if bad(c) {
			return int64(i)
		}
	}
	return -1
}

// utf8Offset devolve a posición do primeiro byte non ASCII se b é UTF-8 válido
// con polo menos unha secuencia multibyte; -1 no resto dos casos.
func utf8Offset(b []byte) int64 {
	if bytes.HasPrefix(b, utf8BOM) {
		return 0
	}
	first := -1
	for i, c := range b {
		if c >= 0x80 {
			first = i
			break
		}
	}
	if first < 0 || !utf8.Valid(b) {
		return -1
	}
	return int64(first)
}

func firstInvalidUTF8(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}

// números con coma decimal, sen separador de milleiros (como pandas con decimal=",")
var commaDecimalRe = regexp.MustCompile(`^\s*-?\d+(,\d+)?\s*$`)

// fixDecimalComma reescribe "12,5" como "12.5" nas columnas onde todos os
// valores cubertos son números e polo menos un leva coma.
func fixDecimalComma(rows [][]string, width int) {
	for c := 0; c < width; c++ {
		numeric, withComma := true, false
		for _, r := range rows {
			v := strings.TrimSpace(r[c])
			if v == "" {
				continue
			}
			if !commaDecimalRe.MatchString(v) {
				numeric = false
				break
			}
			if strings.Contains(v, ",") {
				withComma = true
			}
		}
		if !numeric || !withComma {
			continue
		}
		for _, r := range rows {
			r[c] = strings.Replace(strings.TrimSpace(r[c]), ",", ".", 1)
		}
	}
}

// ==== XLSX ====

func loadXLSX(b []byte, opts LoadOptions) (*Table, error) {
	// RawCellValue: as datas chegan como número de serie e non no formato local da folla
	f, err := excelize.OpenReader(bytes.NewReader(b), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &LoadError{Err: errors.New("planilha sem abas")}
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	t := &Table{}
	skipped := 0
	for i, rec := range rows {
		if skipped < opts.SkipRows {
			skipped++
			continue
		}
		if t.Header == nil {
			t.Header = trimAll(rec)
			continue
		}
		if isBlank(rec) {
			continue
		}
		if len(rec) > len(t.Header) {
			// excelize devolve ata a última cela con valor; as celas baleiras á dereita non contan
			if !isBlank(rec[len(t.Header):]) {
				return nil, &LoadError{Err: fmt.Errorf("linha %d: esperados %d campos, encontrados %d", i+1, len(t.Header), len(rec))}
			}
			rec = rec[:len(t.Header)]
		}
		t.Rows = append(t.Rows, pad(rec, len(t.Header)))
		t.Lines = append(t.Lines, i+1)
	}
	if t.Header == nil {
		return nil, &LoadError{Err: fmt.Errorf("aba %q sem cabeçalho", sheet)}
	}
	return t, nil
}

// ---

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, v := range rec {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func pad(rec []string, n int) []string {
	out := make([]string, n)
	copy(out, rec)
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
