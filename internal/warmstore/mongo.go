// Package warmstore is the Tier 2 durable store (MongoDB): canonical
// students, proficiencies, sessions, responses, and question pools.
package warmstore

import (
	"context"
	"log"
	"time"

	"adaptivetest/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	Client   *mongo.Client
	Database *mongo.Database
)

func InitMongo(cfg config.MongoDBConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI).SetMaxPoolSize(cfg.PoolSize)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Printf("[warmstore] error connecting to mongo: %v", err)
		return err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		log.Printf("[warmstore] error pinging mongo: %v", err)
		return err
	}

	Client = client
	Database = client.Database(cfg.Database)
	log.Printf("[warmstore] connected to mongo database %s", cfg.Database)
	return nil
}

func CloseMongo() {
	if Client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := Client.Disconnect(ctx); err != nil {
		log.Printf("[warmstore] error disconnecting mongo: %v", err)
	}
}
