package mysql

import (
	"time"

	driver "github.com/go-sql-driver/mysql"
)

// DSN returns raw with the settings the repo depends on forced on: DATETIME
// columns scan into time.Time and are read and written as UTC.
func DSN(raw string) (string, error) {
	cfg, err := driver.ParseDSN(raw)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
