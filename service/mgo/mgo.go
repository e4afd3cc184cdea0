package mgo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Config struct {
	URI      string
	Database string
}

var (
	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
)

// Init connects and pings once. The driver handles reconnection after
// that; callers see transient errors as InfrastructureError at the
// operation level.
func Init(ctx context.Context, cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if client != nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cli, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return errors.Wrap(err, "mongo connect")
	}
	if err := cli.Ping(cctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return errors.Wrap(err, "mongo ping")
	}

	client = cli
	db = cli.Database(cfg.Database)
	return nil
}

func GetDB() *mongo.Database {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		panic("Mongo not ready: call Init first")
	}
	return db
}

func Ping(ctx context.Context) error {
	mu.RLock()
	cli := client
	mu.RUnlock()
	if cli == nil {
		return errors.New("mongo not initialized")
	}
	return cli.Ping(ctx, nil)
}

func Close(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		return nil
	}
	err := client.Disconnect(ctx)
	client, db = nil, nil
	return err
}
