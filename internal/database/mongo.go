package database

import (
	"context"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultMongoDB = "chatooz"

// ConnectMongo dials MongoDB, pings it and returns the client together with
// the database named in the URI path (or "chatooz").
func ConnectMongo(mongoURI string) (*mongo.Client, *mongo.Database, error) {
	// Use longer timeout for Atlas connections
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	log.Println("✅ Connected to MongoDB")
	return client, client.Database(mongoDatabaseName(mongoURI)), nil
}

// mongoDatabaseName extracts the database from mongodb://host/<name>?opts.
func mongoDatabaseName(mongoURI string) string {
	parts := strings.Split(mongoURI, "/")
	if len(parts) > 3 {
		if name := strings.Split(parts[len(parts)-1], "?")[0]; name != "" {
			return name
		}
	}
	return defaultMongoDB
}

// DisconnectMongo closes the client, waiting at most ten seconds.
func DisconnectMongo(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

// MaskURI hides the password portion of a connection string for logging.
func MaskURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at == -1 {
		return uri
	}
	scheme := strings.Index(uri, "://")
	if scheme == -1 || scheme+3 > at {
		return uri
	}
	creds := uri[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon != -1 {
		return uri[:scheme+3] + creds[:colon] + ":***" + uri[at:]
	}
	return uri
}
