package database

import (
	stderrors "errors"
	"strings"

	"github.com/almoxsms/almox-backend/pkg/errors"
	"github.com/lib/pq"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "campo"
		}
		return errors.InvalidField(col, "validation.required")

	default:
		return nil
	}
}

// Translate returns the mapped AppError for pq errors and err unchanged otherwise.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantidade"):
		return errors.InvalidField("quantidade", "validation.positive")
	case strings.Contains(constraint, "tipo"):
		return errors.InvalidField("tipo", "validation.oneof")
	case strings.Contains(constraint, "role"):
		return errors.InvalidField("role", "validation.oneof")
	case strings.Contains(constraint, "status"):
		return errors.InvalidField("status", "validation.oneof")
	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "produtos_codigo"):
		return errors.ConflictWithKey("errors.produto_codigo_duplicado", map[string]string{"codigo": detailValue(pqErr.Detail)})
	case strings.Contains(constraint, "lotes_produto_numero"):
		return errors.ConflictWithKey("errors.lote_duplicado", map[string]string{"numero_lote": detailValue(pqErr.Detail)})
	case strings.Contains(constraint, "usuarios_email"), strings.Contains(constraint, "usuarios_username"):
		return errors.ConflictWithKey("errors.usuario_duplicado", nil)
	default:
		return errors.ConflictWithKey("errors.registro_duplicado", nil)
	}
}

// detailValue pulls the last value out of "Key (a, b)=(x, y) already exists.".
func detailValue(detail string) string {
	start := strings.LastIndex(detail, "=(")
	if start < 0 {
		return ""
	}
	rest := detail[start+2:]
	end := strings.Index(rest, ")")
	if end < 0 {
		return ""
	}
	parts := strings.Split(rest[:end], ",")
	return strings.TrimSpace(parts[len(parts)-1])
}
