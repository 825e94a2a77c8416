// Package mongodb implements the service stores on MongoDB. Mesa and Pedido writes
// are conditional on {_id, versao}; till postings are single atomic updates filtered
// on status=aberto.
package mongodb

import (
	"context"
	"errors"
	"time"

	"floorops/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const opTimeout = 10 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// translate maps driver errors to the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrDuplicate
	default:
		return err
	}
}

// missOrStale tells a conditional write that matched nothing apart: the document is
// gone or it changed since it was read.
func missOrStale(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrStale
}

// replaceVersioned writes doc over the stored version prev. On success the caller
// bumps its in-memory version.
func replaceVersioned(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, prev int64, doc interface{}) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "versao": prev}, doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return missOrStale(ctx, coll, id)
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
