package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"scribedesk/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database configured under dbType.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch normalizeDriver(dbType) {
	case "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
		if strings.Contains(dbCfg.DSN, ":memory:") || strings.Contains(dbCfg.DSN, "mode=memory") {
			// every pooled connection would otherwise get its own empty database
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.DBName,
				dbCfg.Params,
			)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func normalizeDriver(dbType string) string {
	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "mysql":
		return "mysql"
	}
	return ""
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch normalizeDriver(driver) {
	case "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS saved_summaries (
				id TEXT PRIMARY KEY,
				workspace_id TEXT NOT NULL,
				title TEXT NOT NULL,
				content TEXT NOT NULL,
				source_file TEXT NOT NULL DEFAULT '',
				revisions INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_saved_summaries_updated_at ON saved_summaries(updated_at DESC)`,
			`CREATE TABLE IF NOT EXISTS upload_log (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				workspace_id TEXT NOT NULL,
				document_id TEXT NOT NULL,
				file_name TEXT NOT NULL,
				synthesized INTEGER NOT NULL DEFAULT 0,
				uploaded_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_upload_log_workspace ON upload_log(workspace_id)`,
			`CREATE TABLE IF NOT EXISTS collection_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				workspace_id TEXT NOT NULL,
				collection_id TEXT NOT NULL,
				action TEXT NOT NULL,
				outcome TEXT NOT NULL,
				message TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_collection_events_collection ON collection_events(collection_id)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS saved_summaries (
				id VARCHAR(191) NOT NULL,
				workspace_id VARCHAR(64) NOT NULL,
				title VARCHAR(255) NOT NULL,
				content MEDIUMTEXT NOT NULL,
				source_file VARCHAR(255) NOT NULL DEFAULT '',
				revisions INT NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_saved_summaries_updated_at (updated_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS upload_log (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				workspace_id VARCHAR(64) NOT NULL,
				document_id VARCHAR(255) NOT NULL,
				file_name VARCHAR(255) NOT NULL,
				synthesized TINYINT(1) NOT NULL DEFAULT 0,
				uploaded_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_upload_log_workspace (workspace_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS collection_events (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				workspace_id VARCHAR(64) NOT NULL,
				collection_id VARCHAR(100) NOT NULL,
				action VARCHAR(50) NOT NULL,
				outcome VARCHAR(50) NOT NULL,
				message TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_collection_events_collection (collection_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
