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

type MesaStore struct {
	coll *mongo.Collection
}

func NewMesaStore(coll *mongo.Collection) *MesaStore {
	return &MesaStore{coll: coll}
}

func (s *MesaStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "numero", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "area", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}

func (s *MesaStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Mesa, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var m models.Mesa
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *MesaStore) List(ctx context.Context, filter services.MesaFilter) ([]models.Mesa, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	q := bson.M{}
	if filter.Area != "" {
		q["area"] = filter.Area
	}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	cursor, err := s.coll.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "numero", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	mesas := []models.Mesa{}
	if err := cursor.All(ctx, &mesas); err != nil {
		return nil, err
	}
	return mesas, nil
}

func (s *MesaStore) MaxNumber(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	opts := options.FindOne().
		SetSort(bson.D{{Key: "numero", Value: -1}}).
		SetProjection(bson.M{"numero": 1})
	var top struct {
		Number int `bson:"numero"`
	}
	err := s.coll.FindOne(ctx, bson.M{}, opts).Decode(&top)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return top.Number, nil
}

func (s *MesaStore) Insert(ctx context.Context, m *models.Mesa) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, m)
	return translate(err)
}

func (s *MesaStore) Replace(ctx context.Context, m *models.Mesa) error {
	prev := m.Version
	m.Version++
	if err := replaceVersioned(ctx, s.coll, m.ID, prev, m); err != nil {
		m.Version = prev
		return err
	}
	return nil
}

func (s *MesaStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.coll, id)
}
