package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ==== utilidades ====

// EmptyLabel é como se mostra o valor en falta nas gráficas e táboas.
const EmptyLabel = "(vazio)"

func displayLabel(v string) string {
	if strings.TrimSpace(v) == "" {
		return EmptyLabel
	}
	return v
}

// truncateLabel corta a n runas con "…" (sen partir caracteres UTF-8)
func truncateLabel(s string, n int) string {
	if n <= 1 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

var titleCaser = cases.Title(language.BrazilianPortuguese)

// titleCase: "encerradas-jan-25" -> "Encerradas Jan 25"
func titleCase(s string) string {
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return titleCaser.String(s)
}

// 12.345 a partir dun int
func formatCount(n int) string {
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	digits := fmt.Sprint(n)
	// milleiros con puntos
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}

// percent: 3 de 8 -> "37,5%"
func percent(part, total int) string {
	if total == 0 {
		return "0%"
	}
	s := fmt.Sprintf("%.1f", float64(part)*100/float64(total))
	s = strings.TrimSuffix(s, ".0")
	return strings.Replace(s, ".", ",", 1) + "%"
}

// remove extension
func stripExt(path string) string {
	ext := filepath.Ext(path)            // inclúe o punto: ".csv", ".xlsx", etc.
	return strings.TrimSuffix(path, ext) // elimina a última extensión
}

func safeFile(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == '.' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, s)
	if s == "" {
		s = "export"
	}
	return s
}

// exportName: abertas_2025-01_export.csv
func exportName(profile, month, ext string) string {
	if month == "" {
		month = "todos"
	}
	return fmt.Sprintf("%s_%s_export.%s", safeFile(profile), safeFile(month), ext)
}

// loadErrorMessage é a mensaxe que ve o usuário cando falla a carga.
func loadErrorMessage(err error) string {
	msg := err.Error()
	if !strings.HasPrefix(msg, "erro ao carregar o arquivo") {
		msg = "erro ao carregar o arquivo: " + msg
	}
	return "E" + msg[1:]
}
