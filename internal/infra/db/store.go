package db

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sigil/internal/config"
)

var errDBUnavailable = errors.New("db unavailable")

type Store struct {
	DB *gorm.DB
}

// NewStore connects to postgres when a DSN is configured; without one the
// store is a nil-DB shell and callers fall back to the memory backends.
func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := gdb.AutoMigrate(&TrustEntryModel{}, &ExecutionModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{DB: gdb}, nil
}

// gormConfig enables TranslateError so driver unique-violations surface as
// gorm.ErrDuplicatedKey; the trust repository maps that onto
// domain.ErrDuplicateKey, which the server tolerates when re-registering its
// own key at startup.
func gormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

func (s *Store) Available() bool {
	return s != nil && s.DB != nil
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
