// Package remote implements the client for the authoritative document
// store: one Postgres collection of documents per entity type, keyed by
// the same ids used locally, plus a Redis change feed announcing pushes to
// other clients.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Document is one remote record. Payload carries the serialized entity;
// UpdatedAt is the last-write-wins timestamp.
type Document struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (collection, id)
);`

// referenceCollection holds fixed reference documents such as the category
// enumeration.
const referenceCollection = "reference"

// Client talks to the remote document store.
type Client struct {
	pool *pgxpool.Pool
}

// NewClient wraps a pgx pool.
func NewClient(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

// EnsureSchema creates the documents table when missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("remote: ensure schema: %w", err)
	}
	return nil
}

// PutMany upserts documents in one round trip.
func (c *Client) PutMany(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, doc := range docs {
		batch.Queue(`
			INSERT INTO documents (collection, id, payload, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (collection, id) DO UPDATE SET
				payload = excluded.payload,
				updated_at = excluded.updated_at`,
			doc.Collection, doc.ID, doc.Payload, doc.UpdatedAt.UTC())
	}
	results := c.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("remote: put: %w", err)
		}
	}
	return nil
}

// Delete removes one document. Deleting an absent document succeeds.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if _, err := c.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("remote: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// List returns every document in a collection.
func (c *Client) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, payload, updated_at FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return nil, fmt.Errorf("remote: list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc := Document{Collection: collection}
		if err := rows.Scan(&doc.ID, &doc.Payload, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("remote: scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("remote: list %s: %w", collection, err)
	}
	return docs, nil
}

// SeedCategories writes the fixed category reference document exactly once.
// An already-seeded store is success, not failure.
func (c *Client) SeedCategories(ctx context.Context, names []string) error {
	payload, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("remote: marshal categories: %w", err)
	}
	if _, err := c.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, payload, updated_at)
		VALUES ($1, 'categories', $2, $3)
		ON CONFLICT (collection, id) DO NOTHING`,
		referenceCollection, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("remote: seed categories: %w", err)
	}
	return nil
}

// Categories reads the seeded category enumeration.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var payload []byte
	err := c.pool.QueryRow(ctx,
		`SELECT payload FROM documents WHERE collection = $1 AND id = 'categories'`,
		referenceCollection).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("remote: categories: %w", err)
	}
	var names []string
	if err := json.Unmarshal(payload, &names); err != nil {
		return nil, fmt.Errorf("remote: decode categories: %w", err)
	}
	return names, nil
}
