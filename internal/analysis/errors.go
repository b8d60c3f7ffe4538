package analysis

import (
	"errors"
	"fmt"
)

// User-facing alert texts.
const (
	MsgDrawPolygon = "Por favor, desenhe um polígono primeiro."
	MsgDrawPoint   = "Por favor, marque um ponto ou desenhe um polígono primeiro."
	MsgAddPeriod   = "Por favor, adicione pelo menos um período de data."
	MsgBadDate     = "Data inválida em %s."
	MsgReversed    = "A data de início de %s é posterior à data de fim."
)

var (
	ErrNoPeriods      = errors.New("no valid date period")
	ErrReversedPeriod = errors.New("period starts after it ends")
)

// ValidationError is raised before any network call when the drawn
// geometry or the periods cannot make a request.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// APIError is a whole-response failure reported by the analysis service:
// a non-2xx status or a top-level "error" field.
type APIError struct {
	StatusCode int
	Message    string // server-supplied, may be empty
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("analysis service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis service returned status %d: %s", e.StatusCode, e.Message)
}
