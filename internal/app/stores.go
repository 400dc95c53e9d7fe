package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/collabtext/collabtext/internal/config"
	"github.com/collabtext/collabtext/internal/database"
	"github.com/collabtext/collabtext/internal/document/repository"
	"github.com/collabtext/collabtext/internal/storage"
	"github.com/collabtext/collabtext/internal/users"
	"github.com/collabtext/collabtext/pkg/logger"
)

const mongoConnectAttempts = 5

// Stores bundles the metadata repositories selected by STORE_BACKEND.
type Stores struct {
	Users     users.UserRepository
	Documents repository.Repository

	sql   *sql.DB
	mongo *mongo.Client
}

// OpenStores connects the configured metadata backend. Postgres schemas are
// migrated before the repositories are returned.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := database.OpenPostgres(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Infof("using postgres metadata store")
		return &Stores{
			Users:     users.NewPostgresUserRepository(db),
			Documents: repository.NewPostgresRepo(db),
			sql:       db,
		}, nil

	case "mongo":
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoConnectAttempts)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB.Database)
		ur, err := users.NewMongoUserRepository(ctx, db)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		logger.Infof("using mongo metadata store (database %s)", cfg.MongoDB.Database)
		return &Stores{Users: ur, Documents: repository.NewMongoRepo(db), mongo: client}, nil

	case "memory":
		logger.Warnf("using in-memory metadata store; data is lost on restart")
		return &Stores{Users: users.NewMemoryUserRepository(), Documents: repository.NewMemoryRepo()}, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
}

// Ping checks the connection behind the store, if any.
func (s *Stores) Ping(ctx context.Context) error {
	switch {
	case s.sql != nil:
		return s.sql.PingContext(ctx)
	case s.mongo != nil:
		return s.mongo.Ping(ctx, nil)
	}
	return nil
}

func (s *Stores) Close(ctx context.Context) error {
	switch {
	case s.sql != nil:
		return s.sql.Close()
	case s.mongo != nil:
		return s.mongo.Disconnect(ctx)
	}
	return nil
}

// OpenBodies returns the body store selected by BODY_BACKEND.
func OpenBodies(ctx context.Context, cfg *config.Config) (storage.BodyStore, error) {
	switch cfg.Body.Backend {
	case "minio":
		logger.Infof("storing document bodies in minio bucket %s", cfg.MinIO.Bucket)
		return storage.NewMinIOStore(ctx, cfg.MinIO)
	case "file":
		logger.Infof("storing document bodies under %s", cfg.Body.Dir)
		return storage.NewFileStore(cfg.Body.Dir)
	}
	return nil, fmt.Errorf("unknown BODY_BACKEND %q", cfg.Body.Backend)
}
