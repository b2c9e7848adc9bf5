// Package dbmongo stores attachment blobs in MongoDB GridFS.
package dbmongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gochat/internal/config"
)

const (
	connectTimeout         = 10 * time.Second
	serverSelectionTimeout = 5 * time.Second
	defaultBucket          = "chat_attachments"
)

// MongoClient bundles the client with the attachment bucket.
type MongoClient struct {
	Client   *mongo.Client
	Database *mongo.Database
	GridFS   *gridfs.Bucket
}

func clientOptions(c *config.Config) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(c.GetMongoURI()).
		SetAppName("gochat").
		SetServerSelectionTimeout(serverSelectionTimeout)
	if c.MongoDB.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(c.MongoDB.MaxPoolSize)
	}
	return opts
}

// NewMongoConnection connects, pings and opens the configured bucket. The
// client is disconnected again if any step fails.
func NewMongoConnection(c *config.Config) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions(c))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(c.MongoDB.Database)
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName(c)))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("open gridfs bucket %q: %w", bucketName(c), err)
	}

	return &MongoClient{Client: client, Database: db, GridFS: bucket}, nil
}

func bucketName(c *config.Config) string {
	if c.MongoDB.Bucket == "" {
		return defaultBucket
	}
	return c.MongoDB.Bucket
}

func (mc *MongoClient) Close(ctx context.Context) error {
	return mc.Client.Disconnect(ctx)
}
