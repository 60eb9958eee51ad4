package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLExecutor - интерфейс, позволяющий методам репозитория работать
// как с *sql.DB, так и с *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// getExecutor возвращает переданный executor или *sql.DB по умолчанию.
func getExecutor(db *sql.DB, exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return db
}

// rowScanner покрывает *sql.Row и *sql.Rows, чтобы хелперы сканирования
// работали с обоими.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// checkAffectedRows проверяет результат Exec и возвращает notFoundErr,
// если ни одна строка не была затронута.
func checkAffectedRows(result sql.Result, notFoundErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundErr
	}
	return nil
}
