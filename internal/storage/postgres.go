package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/xaenox/daily-brief/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresSource reads user profiles from the brief_users table.
type PostgresSource struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresSource(config DatabaseConfig, logger *zap.Logger) (*PostgresSource, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	source := NewPostgresSourceFromDB(db, logger)
	if err := source.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return source, nil
}

// NewPostgresSourceFromDB wraps an already opened database handle.
func NewPostgresSourceFromDB(db *sql.DB, logger *zap.Logger) *PostgresSource {
	return &PostgresSource{db: db, logger: logger}
}

func (s *PostgresSource) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	s.logger.Info("Directory schema ready")
	return nil
}

func (s *PostgresSource) Records(ctx context.Context) ([]models.Record, error) {
	query := `
		SELECT background, interests, phone, email, preferred_sources
		FROM brief_users
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var background, interests, phone, email, sources string
		if err := rows.Scan(&background, &interests, &phone, &email, &sources); err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		records = append(records, models.Record{
			models.ColumnBackground: background,
			models.ColumnInterests:  interests,
			models.ColumnPhone:      phone,
			models.ColumnEmail:      email,
			models.ColumnSources:    sources,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return records, nil
}

func (s *PostgresSource) Close() error {
	return s.db.Close()
}
