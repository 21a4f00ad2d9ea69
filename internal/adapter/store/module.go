package store

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/homespark/rt-coordination-service/config"
	"github.com/homespark/rt-coordination-service/internal/service"
)

var Module = fx.Module("store",
	fx.Provide(
		func(cfg *config.Config) (*gorm.DB, error) {
			return OpenDB(cfg.DB.DSN)
		},
		func(cfg *config.Config, db *gorm.DB) *Store {
			return NewStore(db, cfg.Auth.JWTSecret)
		},
		func(s *Store) service.IdentityStore { return s },
		func(s *Store) service.BookingStore { return s },
		func(s *Store) service.MessageSink { return s },
		func(s *Store) service.JobStore { return s },
	),
)
