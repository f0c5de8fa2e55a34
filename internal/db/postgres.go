package db

import (
	"fmt"
	"net/url"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/types"
	"github.com/cassiama/LicenseGuard-API/internal/utils"
)

// Only real postgres connection URLs are accepted when DB_URL is set; this is
// the connection-scheme allowlist the service has always enforced.
var allowedSchemes = []string{"postgres", "postgresql"}

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	dsn, err := resolveDSN(log)
	if err != nil {
		return nil, err
	}

	serviceLog.Info("Connecting to Postgres...")
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &PostgresService{db: gormDB, log: serviceLog}, nil
}

func resolveDSN(log *logger.Logger) (string, error) {
	if raw := strings.TrimSpace(utils.GetEnv("DB_URL", "", log)); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse DB_URL: %w", err)
		}
		for _, scheme := range allowedSchemes {
			if u.Scheme == scheme {
				return raw, nil
			}
		}
		return "", fmt.Errorf("DB_URL scheme %q not allowed; provide a postgres:// connection URL", u.Scheme)
	}

	host := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	port := utils.GetEnv("POSTGRES_PORT", "5432", log)
	user := utils.GetEnv("POSTGRES_USER", "postgres", log)
	password := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	name := utils.GetEnv("POSTGRES_NAME", "licenseguard", log)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name), nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.Event{},
		&types.ProjectRecord{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	if err := s.db.Exec(`
		ALTER TABLE "event"
		ADD CONSTRAINT "fk_event_user_id"
		FOREIGN KEY ("user_id")
		REFERENCES "user"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("add fk_event_user_id: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
