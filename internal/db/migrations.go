package db

import (
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// RunMigrations применяет схему базы данных.
// Все выражения идемпотентны, повторный запуск безопасен
func RunMigrations() error {
	ctx, cancel := GetContext()
	defer cancel()

	if _, err := Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ошибка при применении схемы: %w", err)
	}
	return nil
}
