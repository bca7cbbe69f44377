package docstore

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// Lazy connects to the store on first use, so connection failures surface from Export.
// A failed connection attempt is retried on the next call.
type Lazy struct {
	URI string

	m      sync.Mutex
	client *Client
}

// NewLazy returns a Lazy for uri without dialing.
func NewLazy(uri string) *Lazy {
	return &Lazy{URI: uri}
}

func (l *Lazy) get(ctx context.Context) (*Client, error) {
	l.m.Lock()
	defer l.m.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	c, err := Connect(ctx, l.URI)
	if err != nil {
		return nil, err
	}
	l.client = c
	return c, nil
}

// Export connects if needed and reads the whole collection.
func (l *Lazy) Export(ctx context.Context, database, collection string) ([]bson.D, error) {
	c, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.Export(ctx, database, collection)
}

// Close disconnects if a connection was made.
func (l *Lazy) Close(ctx context.Context) error {
	l.m.Lock()
	defer l.m.Unlock()
	if l.client == nil {
		return nil
	}
	err := l.client.Close(ctx)
	l.client = nil
	return err
}
