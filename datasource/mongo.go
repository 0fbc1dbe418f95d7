package datasource

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoConfig configures a MongoDB connection.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// MongoSource is a DataSource backed by the official mongo-driver client.
type MongoSource struct {
	client   *mongo.Client
	database string
	logger   *zap.Logger
}

// NewMongoSource dials MongoDB and returns a ready DataSource.
func NewMongoSource(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoSource, error) {
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &MongoSource{
		client:   client,
		database: cfg.Database,
		logger:   logger.With(zap.String("component", "datasource_mongo")),
	}, nil
}

// Kind implements DataSource.
func (s *MongoSource) Kind() string { return "mongo" }

// Database returns the configured *mongo.Database handle.
func (s *MongoSource) Database() *mongo.Database {
	return s.client.Database(s.database)
}

// Collection is a convenience accessor for Database().Collection(name).
func (s *MongoSource) Collection(name string) *mongo.Collection {
	return s.Database().Collection(name)
}

// Ping implements DataSource.
func (s *MongoSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close implements DataSource.
func (s *MongoSource) Close() error {
	return s.client.Disconnect(context.Background())
}
