// Package memory holds in-process stores with the same conditional write semantics
// as the Mongo ones. Documents are copied in and out through bson so callers never
// share memory with the store.
package memory

import "go.mongodb.org/mongo-driver/bson"

func clone[T any](v *T) *T {
	data, err := bson.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := bson.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}
