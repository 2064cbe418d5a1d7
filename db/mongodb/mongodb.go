// Package mongodb implements db.Database on a MongoDB collection. Keys are
// stored hex encoded in _id, which keeps the byte order under MongoDB's
// string comparison. The server address is read from MONGODB_URL.
package mongodb

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vocdoni/davinci-ballotbox/db"
	"github.com/vocdoni/davinci-ballotbox/db/internal/overlay"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionName = "kv"
	opTimeout      = 10 * time.Second
)

type document struct {
	ID    string `bson:"_id"`
	Value []byte `bson:"value"`
}

// MongoDB is a db.Database stored in one collection of opts.Path database.
type MongoDB struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ db.Database = (*MongoDB)(nil)

// New connects to MONGODB_URL and uses opts.Path as database name.
func New(opts db.Options) (*MongoDB, error) {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		return nil, errors.New("MONGODB_URL is not set")
	}
	if opts.Path == "" {
		return nil, errors.New("mongodb database name is empty")
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("could not ping mongodb: %w", err)
	}
	return &MongoDB{
		client: client,
		coll:   client.Database(opts.Path).Collection(collectionName),
	}, nil
}

// Close implements db.Database.
func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Compact implements db.Database. MongoDB compacts on its own.
func (*MongoDB) Compact() error { return nil }

// Get implements db.Database.
func (m *MongoDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var doc document
	err := m.coll.FindOne(ctx, bson.M{"_id": hex.EncodeToString(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Value, nil
}

// Iterate implements db.Database.
func (m *MongoDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	filter := bson.M{}
	if len(prefix) > 0 {
		filter = bson.M{"_id": bson.M{"$regex": "^" + hex.EncodeToString(prefix)}}
	}
	cur, err := m.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		key, err := hex.DecodeString(doc.ID)
		if err != nil {
			return fmt.Errorf("invalid key %q: %w", doc.ID, err)
		}
		if !callback(key, doc.Value) {
			break
		}
	}
	return cur.Err()
}

// WriteTx implements db.Database. Writes are sent as one unordered bulk
// write on Commit.
func (m *MongoDB) WriteTx() db.WriteTx {
	return &WriteTx{Tx: overlay.New(m), db: m}
}

// WriteTx overlays pending writes on the collection.
type WriteTx struct {
	overlay.Tx
	db *MongoDB
}

var _ db.WriteTx = (*WriteTx)(nil)

// Commit implements db.WriteTx.
func (tx *WriteTx) Commit() error {
	models := make([]mongo.WriteModel, 0, len(tx.Pending)+len(tx.Deleted))
	for k := range tx.Deleted {
		models = append(models, mongo.NewDeleteOneModel().
			SetFilter(bson.M{"_id": hex.EncodeToString([]byte(k))}))
	}
	for k, v := range tx.Pending {
		id := hex.EncodeToString([]byte(k))
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(document{ID: id, Value: v}).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := tx.db.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return err
	}
	tx.Discard()
	return nil
}
