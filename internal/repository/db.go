package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"habit-tracker/internal/model"
)

const defaultDSN = "habit_tracker.db"

// DBOption tweaks how NewDB opens the database.
type DBOption func(*dbOptions)

type dbOptions struct {
	logLevel    logger.LogLevel
	busyTimeout time.Duration
}

// WithLogLevel sets the gorm log level. Warn reports slow queries only.
func WithLogLevel(level logger.LogLevel) DBOption {
	return func(o *dbOptions) { o.logLevel = level }
}

// WithBusyTimeout sets how long SQLite waits on a locked database file.
func WithBusyTimeout(d time.Duration) DBOption {
	return func(o *dbOptions) { o.busyTimeout = d }
}

// NewDB opens the SQLite task store and migrates every model.
// File databases run in WAL mode so the bot and the CLI can read the same file.
func NewDB(dsn string, opts ...DBOption) (*gorm.DB, error) {
	o := dbOptions{logLevel: logger.Warn, busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if dsn == "" {
		dsn = defaultDSN
	}

	memory := isMemoryDSN(dsn)
	if !memory {
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "[db] ", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  o.logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(withPragmas(dsn, o.busyTimeout, memory)), &gorm.Config{
		Logger:  dbLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Task{}, &model.TaskGroup{}, &model.TaskGroupItem{}, &model.TimeBlock{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// withPragmas appends go-sqlite3 connection parameters to dsn.
func withPragmas(dsn string, busy time.Duration, memory bool) string {
	params := []string{fmt.Sprintf("_busy_timeout=%d", busy.Milliseconds())}
	if !memory {
		params = append(params, "_journal_mode=WAL")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// ensureDir creates the parent directory of a file DSN.
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
