package history

import (
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/genflow-ai/genflow/types"
)

// Open connects to the history database. Postgres DSNs are recognized by
// their scheme; anything else is treated as a SQLite path, with ":memory:"
// supported for tests and local runs.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, types.NewError(types.ErrConfig, "open history database").WithCause(err)
	}
	if log != nil {
		log.Info("history database connected", zap.String("dialect", dialector.Name()))
	}
	return db, nil
}
