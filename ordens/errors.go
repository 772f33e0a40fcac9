package ordens

import (
	"errors"
	"fmt"
)

// DecodingError: os bytes non corresponden á codificación declarada.
type DecodingError struct {
	Encoding string
	Offset   int64 // posición do primeiro byte inválido
	Err      error
}

func (e *DecodingError) Error() string {
	msg := fmt.Sprintf("o arquivo não é %s válido (byte %d)", e.Encoding, e.Offset)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodingError) Unwrap() error { return e.Err }

// LoadError: ficheiro inexistente, ilexible ou malformado.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("erro ao carregar o arquivo: %v", e.Err)
	}
	return fmt.Sprintf("erro ao carregar o arquivo %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaError: as columnas non encaixan no esquema posicional.
type SchemaError struct {
	Want, Got int
	Field     Field
	Reason    string
}

func (e *SchemaError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("esquema inválido (%s): %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("esquema inválido: esperadas %d colunas, o arquivo tem %d", e.Want, e.Got)
}

// ErrorKind clasifica un erro para a API: "decoding", "schema", "load" ou "".
func ErrorKind(err error) string {
	var de *DecodingError
	var se *SchemaError
	var le *LoadError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &de):
		return "decoding"
	case errors.As(err, &se):
		return "schema"
	case errors.As(err, &le):
		return "load"
	}
	return "load"
}
