// Package snowflake executes rendered statement batches against a warehouse
// account over database/sql.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"

	"snowcraft/pkg/errors"
	"snowcraft/pkg/models"
)

// Service provides warehouse database operations
type Service struct {
	db        *sql.DB
	config    models.Connection
	connected bool
}

// NewService creates a service for the given connection profile
func NewService(config models.Connection) *Service {
	return &Service{config: config}
}

// Connect establishes the database connection and verifies it with a ping
func (s *Service) Connect() error {
	if s.connected {
		return nil
	}

	dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
		s.config.Username,
		s.config.Password,
		s.config.Account,
		s.config.Database,
		s.config.Schema,
		s.config.Warehouse,
		s.config.Role,
	)

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return errors.ConnectionError("Failed to open warehouse connection", err).
			WithContext("account", s.config.Account).
			WithContext("warehouse", s.config.Warehouse)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	ctx, cancel := s.getContext()
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		if strings.Contains(err.Error(), "authentication") {
			return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
				WithContext("user", s.config.Username).
				WithSuggestions(
					"Verify your username and password",
					"Check if your account is locked",
				)
		}

		return errors.ConnectionError("Failed to connect to warehouse", err).
			WithContext("account", s.config.Account).
			AsRecoverable()
	}

	s.db = db
	s.connected = true
	return nil
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// TestConnection pings the account, connecting first if necessary
func (s *Service) TestConnection() error {
	if !s.connected {
		if err := s.Connect(); err != nil {
			return err
		}
	}

	ctx, cancel := s.getContext()
	defer cancel()

	return s.db.PingContext(ctx)
}

// ExecuteBatch runs an ordered list of statements inside one transaction,
// switching to the configured database and schema first. Any failure rolls
// the whole batch back.
func (s *Service) ExecuteBatch(statements []string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before executing SQL")
	}

	ctx, cancel := s.getContext()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction")
	}

	if err := s.useTarget(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}

	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()

			sqlErr := errors.SQLError(
				fmt.Sprintf("Failed to execute statement %d", i+1),
				stmt,
				err,
			).WithContext("statement_index", i+1).
				WithContext("total_statements", len(statements))

			errStr := err.Error()
			if strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "not found") {
				sqlErr.Code = errors.ErrCodeSQLObjectNotFound
				sqlErr.WithSuggestions(
					"Verify the object exists in the target database/schema",
					"Check for typos in object names",
				)
			} else if strings.Contains(errStr, "syntax error") {
				sqlErr.Code = errors.ErrCodeSQLSyntax
				sqlErr.WithSuggestions(
					"Check SQL syntax near the error location",
				)
			}

			return sqlErr
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit transaction")
	}
	return nil
}

// ExecuteScript splits a multi-statement SQL text and runs it as one batch
func (s *Service) ExecuteScript(script string) error {
	return s.ExecuteBatch(splitStatements(script))
}

// UploadFiles PUTs local files to a stage. Stage names are passed without
// the leading @.
func (s *Service) UploadFiles(stage string, files []string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before uploading artifacts")
	}

	ctx, cancel := s.getContext()
	defer cancel()

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to resolve artifact path").
				WithContext("path", file)
		}
		put := fmt.Sprintf("PUT file://%s @%s AUTO_COMPRESS=FALSE OVERWRITE=TRUE",
			filepath.ToSlash(abs), stage)
		if _, err := s.db.ExecContext(ctx, put); err != nil {
			return errors.SQLError("Failed to upload artifact", put, err).
				WithContext("file", file).
				WithContext("stage", stage)
		}
	}
	return nil
}

// Query runs a single query and returns its rows
func (s *Service) Query(query string) (*sql.Rows, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}

	ctx, cancel := s.getContext()
	defer cancel()

	return s.db.QueryContext(ctx, query)
}

func (s *Service) getContext() (context.Context, context.CancelFunc) {
	timeout := 30 * time.Second
	if s.config.Timeout != "" {
		if d, err := time.ParseDuration(s.config.Timeout); err == nil {
			timeout = d
		}
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (s *Service) useTarget(ctx context.Context, tx *sql.Tx) error {
	if s.config.Database != "" {
		stmt := fmt.Sprintf("USE DATABASE %s", s.config.Database)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.SQLError("Failed to switch database", stmt, err).
				WithContext("database", s.config.Database)
		}
	}
	if s.config.Schema != "" {
		stmt := fmt.Sprintf("USE SCHEMA %s", s.config.Schema)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.SQLError("Failed to switch schema", stmt, err).
				WithContext("schema", s.config.Schema)
		}
	}
	return nil
}

// splitStatements splits SQL text on semicolons outside quoted strings and
// -- line comments
func splitStatements(text string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	inComment := false
	stringChar := rune(0)

	for i, char := range text {
		if inComment {
			if char == '\n' {
				inComment = false
			}
			current.WriteRune(char)
			continue
		}
		if !inString {
			if char == '\'' || char == '"' {
				inString = true
				stringChar = char
			} else if char == '-' && i+1 < len(text) && text[i+1] == '-' {
				inComment = true
			} else if char == ';' {
				if i == 0 || text[i-1] != '\\' {
					statements = append(statements, current.String())
					current.Reset()
					continue
				}
			}
		} else {
			if char == stringChar && (i == 0 || text[i-1] != '\\') {
				inString = false
			}
		}
		current.WriteRune(char)
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}

// ValidateConfig checks that a connection profile has the required fields
func ValidateConfig(config models.Connection) error {
	if config.Account == "" {
		return errors.ConfigError("account is required", "account")
	}
	if config.Username == "" {
		return errors.ConfigError("username is required", "username")
	}
	if config.Password == "" {
		return errors.ConfigError("password is required", "password")
	}
	if config.Warehouse == "" {
		return errors.ConfigError("warehouse is required", "warehouse")
	}
	return nil
}
