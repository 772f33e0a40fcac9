// Package ordens carga, normaliza e agrega exportacións de ordes de servizo (OS).
//
// O fluxo é sempre o mesmo: Load le o ficheiro (CSV ou XLSX) nunha Table
// sen tipos, Normalize aplica o esquema fixo de 19 columnas e descarta liñas
// sen data de creación, e Aggregate conta valores dun campo dentro dun mes.
package ordens

import (
	"fmt"
	"strings"
	"time"
)

// Field identifica unha columna do esquema fixo (por posición) ou un campo derivado.
type Field int

const (
	Protocol Field = iota
	ClientID
	ContractID
	Client
	Type
	Classification
	Method
	Status
	CreatedAt
	ScheduledAt
	ClosedAt
	Owner
	User
	Neighborhood
	AccessPoint
	OS
	ExternalProtocol
	ClosedBy
	Phones

	// derivados de CreatedAt, non existen no ficheiro
	Month
	CreatedDay
)

// FieldCount é o número de columnas que ten que traer o ficheiro.
const FieldCount = int(Phones) + 1

// MonthLayout é o formato canónico da chave de mes.
const MonthLayout = "2006-01"

// TimestampLayout é o formato canónico de CreatedAt despois de normalizar.
const TimestampLayout = "2006-01-02 15:04:05"

var fieldNames = [...]string{
	"Protocolo", "ID Cliente", "ID Contrato", "Cliente", "Tipo", "Classificações", "Metodo",
	"Status", "Criada", "Agendamento", "Encerrada", "Responsável", "Usuário", "Bairro",
	"POP", "OS", "Protocolo Externo", "Finalizado Por", "Telefones",
	"Mês", "Dia",
}

var fieldKeys = [...]string{
	"protocol", "client_id", "contract_id", "client", "type", "classification", "method",
	"status", "created_at", "scheduled_at", "closed_at", "owner", "user", "neighborhood",
	"access_point", "os", "external_protocol", "closed_by", "phones",
	"month", "created_day",
}

// String devolve o nome da columna tal e como aparece nos paneis.
func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Key é o identificador usado na configuración e na API.
func (f Field) Key() string {
	if f < 0 || int(f) >= len(fieldKeys) {
		return ""
	}
	return fieldKeys[f]
}

// Derived indica se o campo se calcula a partir de CreatedAt.
func (f Field) Derived() bool { return f == Month || f == CreatedDay }

// ParseField acepta a chave ("client") ou o nome da columna ("Cliente"), sen distinguir maiúsculas.
func ParseField(s string) (Field, error) {
	s = strings.TrimSpace(s)
	for i := range fieldKeys {
		if strings.EqualFold(s, fieldKeys[i]) || strings.EqualFold(s, fieldNames[i]) {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("campo desconhecido: %q", s)
}

// Columns devolve os nomes das 19 columnas na orde do ficheiro.
func Columns() []string {
	out := make([]string, FieldCount)
	copy(out, fieldNames[:FieldCount])
	return out
}

// Record é unha orde de servizo.
// Values garda o texto de cada columna; CreatedAt queda na forma canónica.
type Record struct {
	Values  [FieldCount]string
	Created time.Time
	Line    int // liña no ficheiro de orixe (1 = primeira)
}

// Get devolve o valor textual dun campo, incluídos os derivados.
func (r Record) Get(f Field) string {
	switch f {
	case Month:
		return r.Month()
	case CreatedDay:
		return r.Created.Format("2006-01-02")
	}
	if f < 0 || int(f) >= FieldCount {
		return ""
	}
	return r.Values[f]
}

// Month é a chave YYYY-MM do rexistro.
func (r Record) Month() string {
	return r.Created.Format(MonthLayout)
}
