package strategy

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/logging"
	"github.com/credstack/rotor/internal/secure"
)

// DatabaseStrategy rotates a database user's password. The ALTER runs on a
// connection authenticated with the old password, so a half-applied
// rotation never locks us out of the very credential we need to recover.
type DatabaseStrategy struct {
	driver string
	dsn    string
	user   string
	logger *logging.Logger

	// open is sql.Open in production; tests swap in sqlmock.
	open func(driver, dsn string) (*sql.DB, error)
}

// NewDatabaseStrategy creates a strategy for the configured database.
func NewDatabaseStrategy(cfg config.SecretConfig, logger *logging.Logger) *DatabaseStrategy {
	return &DatabaseStrategy{
		driver: cfg.Driver,
		dsn:    cfg.DSN,
		user:   cfg.User,
		logger: logger,
		open:   sql.Open,
	}
}

func (s *DatabaseStrategy) Name() string {
	return "database-password"
}

func (s *DatabaseStrategy) Generate(_ context.Context) (*secure.Buffer, error) {
	return GeneratePassword(32)
}

// Apply sets the new password over an old-authenticated connection.
func (s *DatabaseStrategy) Apply(ctx context.Context, old, newValue *secure.Buffer) error {
	dsn, err := s.dsnWith(old)
	if err != nil {
		return err
	}
	return s.alterPassword(ctx, dsn, newValue)
}

// Verify opens a fresh connection authenticated with the new password.
func (s *DatabaseStrategy) Verify(ctx context.Context, value *secure.Buffer) error {
	dsn, err := s.dsnWith(value)
	if err != nil {
		return err
	}

	db, err := s.open(s.driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("new password rejected: %w", err)
	}
	return nil
}

// Rollback restores the old password. The failed value authenticated the
// last successful ALTER, so that connection is tried first; if it is
// rejected the apply never landed and the old password still works.
func (s *DatabaseStrategy) Rollback(ctx context.Context, old, failed *secure.Buffer) error {
	dsn, err := s.dsnWith(failed)
	if err != nil {
		return err
	}
	if err := s.alterPassword(ctx, dsn, old); err == nil {
		return nil
	}

	dsn, err = s.dsnWith(old)
	if err != nil {
		return err
	}
	db, openErr := s.open(s.driver, dsn)
	if openErr != nil {
		return fmt.Errorf("failed to open database: %w", openErr)
	}
	defer db.Close()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		return fmt.Errorf("neither old nor new password authenticates: %w", pingErr)
	}
	s.logger.Debug("Old database password still active, no restore needed")
	return nil
}

// alterPassword runs ALTER USER over the given connection.
func (s *DatabaseStrategy) alterPassword(ctx context.Context, dsn string, password *secure.Buffer) error {
	db, err := s.open(s.driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	return password.With(func(raw []byte) error {
		s.logger.Debug("Altering password for %s to %v", s.user, logging.Secret(raw))
		var stmt string
		switch s.driver {
		case "postgres":
			stmt = fmt.Sprintf("ALTER USER %s WITH PASSWORD %s",
				pq.QuoteIdentifier(s.user), pq.QuoteLiteral(string(raw)))
		case "mysql":
			stmt = fmt.Sprintf("ALTER USER '%s'@'%%' IDENTIFIED BY '%s'",
				escapeMySQLString(s.user), escapeMySQLString(string(raw)))
		default:
			return fmt.Errorf("unsupported database driver %q", s.driver)
		}

		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ALTER USER failed: %w", err)
		}
		return nil
	})
}

// dsnWith rewrites the configured DSN to authenticate with the given
// password. A nil password leaves the DSN untouched (first rotation).
func (s *DatabaseStrategy) dsnWith(password *secure.Buffer) (string, error) {
	if password == nil {
		return s.dsn, nil
	}

	var out string
	err := password.With(func(raw []byte) error {
		switch s.driver {
		case "postgres":
			u, err := url.Parse(s.dsn)
			if err != nil {
				// Parse errors echo the full URL, credentials included.
				return fmt.Errorf("invalid postgres dsn: %s", logging.Redact(err.Error(), []string{s.dsn}))
			}
			user := s.user
			if u.User != nil && user == "" {
				user = u.User.Username()
			}
			u.User = url.UserPassword(user, string(raw))
			out = u.String()
			return nil
		case "mysql":
			cfg, err := mysql.ParseDSN(s.dsn)
			if err != nil {
				return fmt.Errorf("invalid mysql dsn: %s", logging.Redact(err.Error(), []string{s.dsn}))
			}
			if s.user != "" {
				cfg.User = s.user
			}
			cfg.Passwd = string(raw)
			out = cfg.FormatDSN()
			return nil
		default:
			return fmt.Errorf("unsupported database driver %q", s.driver)
		}
	})
	return out, err
}

// escapeMySQLString escapes quotes and backslashes for literals inside
// statements the server will not parameterize.
func escapeMySQLString(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"'", "\\'",
	)
	return replacer.Replace(s)
}
