// Package docstore reads and replaces whole collections in the document store.
package docstore

import (
	"context"
	"math"
	"time"

	"github.com/netsec-ml/netsec/netsec-golib/errors"
	"github.com/netsec-ml/netsec/netsec-golib/frame"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// IDField is the identity field assigned by the store
const IDField = "_id"

const connectTimeout = 30 * time.Second

// Client is a connection to a document store.
type Client struct {
	client *mongo.Client
}

// Connect opens a connection to the store at uri and checks that it is reachable.
func Connect(ctx context.Context, uri string) (*Client, error) {
	opts := options.Client().ApplyURI(uri).SetConnectTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to document store")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrapf(err, "pinging document store")
	}
	return &Client{client: client}, nil
}

// Close disconnects from the store.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Export reads every document of a collection, preserving field order.
func (c *Client) Export(ctx context.Context, database, collection string) ([]bson.D, error) {
	cur, err := c.client.Database(database).Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s.%s", database, collection)
	}
	defer cur.Close(ctx)

	var docs []bson.D
	for cur.Next(ctx) {
		var doc bson.D
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrapf(err, "decoding document %d of %s.%s", len(docs), database, collection)
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s.%s", database, collection)
	}
	return docs, nil
}

// Replace deletes every document of a collection and inserts docs in its place.
// It returns the number of inserted documents.
func (c *Client) Replace(ctx context.Context, database, collection string, docs []bson.D) (int, error) {
	coll := c.client.Database(database).Collection(collection)
	if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
		return 0, errors.Wrapf(err, "clearing %s.%s", database, collection)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	batch := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, d)
	}
	res, err := coll.InsertMany(ctx, batch)
	if err != nil {
		return 0, errors.Wrapf(err, "inserting into %s.%s", database, collection)
	}
	return len(res.InsertedIDs), nil
}

// Documents converts each row of f to a document with fields in column order.
// Integral values are stored as int64; missing values are stored as NaN.
func Documents(f *frame.Frame) []bson.D {
	docs := make([]bson.D, 0, f.Len())
	for _, row := range f.Rows {
		doc := make(bson.D, 0, len(f.Columns))
		for i, name := range f.Columns {
			v := row[i]
			if !frame.IsMissing(v) && v == math.Trunc(v) && math.Abs(v) < 1<<53 {
				doc = append(doc, bson.E{Key: name, Value: int64(v)})
			} else {
				doc = append(doc, bson.E{Key: name, Value: v})
			}
		}
		docs = append(docs, doc)
	}
	return docs
}
