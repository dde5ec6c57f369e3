package repository

import (
	"context"
)

// Repository stores JSON documents by id. GetByID decodes into doc (pointer to struct).
type Repository interface {
	GetByID(ctx context.Context, id string, doc interface{}) error
	Save(ctx context.Context, docID string, doc interface{}) error
	Delete(ctx context.Context, id string) error
	GetDBName() string
}
