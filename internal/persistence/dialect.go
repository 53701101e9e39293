package persistence

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type dialect struct {
	driver        string
	migrationsDir string
	upsertJobTail string
}

var sqliteDialect = dialect{
	driver:        "sqlite",
	migrationsDir: "migrations/sqlite",
	upsertJobTail: `ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind,
			lecture_id=excluded.lecture_id,
			dedupe_key=excluded.dedupe_key,
			status=excluded.status,
			attempts=excluded.attempts,
			error=excluded.error,
			error_kind=excluded.error_kind,
			updated_at=excluded.updated_at`,
}

var mysqlDialect = dialect{
	driver:        "mysql",
	migrationsDir: "migrations/mysql",
	upsertJobTail: `ON DUPLICATE KEY UPDATE
			kind=VALUES(kind),
			lecture_id=VALUES(lecture_id),
			dedupe_key=VALUES(dedupe_key),
			status=VALUES(status),
			attempts=VALUES(attempts),
			error=VALUES(error),
			error_kind=VALUES(error_kind),
			updated_at=VALUES(updated_at)`,
}

// mysqlDSN forces time parsing so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// splitStatements breaks a migration file into single statements so drivers
// without multi-statement support can apply it.
func splitStatements(content string) []string {
	parts := strings.Split(content, ";")
	ret := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ret = append(ret, p)
		}
	}
	return ret
}
