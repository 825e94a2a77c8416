package mongodb

import (
	"context"

	"floorops/models"
	"floorops/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PedidoStore struct {
	coll *mongo.Collection
}

func NewPedidoStore(coll *mongo.Collection) *PedidoStore {
	return &PedidoStore{coll: coll}
}

func (s *PedidoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "mesa", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "dataPagamento", Value: 1}}},
	})
	return err
}

func (s *PedidoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Pedido, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var p models.Pedido
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *PedidoStore) List(ctx context.Context, f services.PedidoFilter) ([]models.Pedido, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := s.coll.Find(ctx, pedidoQuery(f), options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	pedidos := []models.Pedido{}
	if err := cursor.All(ctx, &pedidos); err != nil {
		return nil, err
	}
	return pedidos, nil
}

func pedidoQuery(f services.PedidoFilter) bson.M {
	q := bson.M{}
	if f.MesaID != nil {
		q["mesa"] = *f.MesaID
	}
	if len(f.IDs) > 0 {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if len(f.Statuses) > 0 {
		q["status"] = bson.M{"$in": f.Statuses}
	}
	if f.PaidFrom != nil || f.PaidTo != nil {
		paid := bson.M{}
		if f.PaidFrom != nil {
			paid["$gte"] = *f.PaidFrom
		}
		if f.PaidTo != nil {
			paid["$lte"] = *f.PaidTo
		}
		q["dataPagamento"] = paid
	}
	if !f.IncludeRemoved {
		q["removidoDaLista"] = bson.M{"$ne": true}
	}
	return q
}

func (s *PedidoStore) Insert(ctx context.Context, p *models.Pedido) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, p)
	return translate(err)
}

func (s *PedidoStore) Replace(ctx context.Context, p *models.Pedido) error {
	prev := p.Version
	p.Version++
	if err := replaceVersioned(ctx, s.coll, p.ID, prev, p); err != nil {
		p.Version = prev
		return err
	}
	return nil
}

func (s *PedidoStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.coll, id)
}
