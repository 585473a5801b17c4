package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Коды ошибок PostgreSQL, которые репозитории переводят в доменные.
const (
	pgUniqueViolation           = "23505"
	pgForeignKeyViolaton        = "23503"
	pgExclusionViolation        = "23P01"
	pgInvalidTextRepresentation = "22P02"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrCode(err) == pgForeignKeyViolaton
}

func isExclusionViolation(err error) bool {
	return pgErrCode(err) == pgExclusionViolation
}

// isReferentialViolation отлавливает битую ссылку на чужую строку.
// Идентификаторы хранятся в UUID-колонках, поэтому значение не в форме
// UUID падает с 22P02 ещё до проверки внешнего ключа — для вызывающего
// это та же невалидная ссылка, что и 23503.
func isReferentialViolation(err error) bool {
	code := pgErrCode(err)
	return code == pgForeignKeyViolaton || code == pgInvalidTextRepresentation
}
