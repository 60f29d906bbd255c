package db

import (
	"context"
	"embed"
	"fmt"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate creates any missing tables in the public and private stores.
func Migrate(ctx context.Context, pools *Pools) error {
	steps := []struct {
		file string
		exec func(ctx context.Context, sql string) error
	}{
		{"schema/public.sql", func(ctx context.Context, sql string) error {
			_, err := pools.Public.Exec(ctx, sql)
			return err
		}},
		{"schema/private.sql", func(ctx context.Context, sql string) error {
			_, err := pools.Private.Exec(ctx, sql)
			return err
		}},
	}

	for _, s := range steps {
		body, err := schemaFS.ReadFile(s.file)
		if err != nil {
			return fmt.Errorf("read %s: %w", s.file, err)
		}
		if err := s.exec(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", s.file, err)
		}
	}
	return nil
}
