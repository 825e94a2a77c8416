package mongodb

import (
	"context"

	"floorops/models"
	"floorops/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MenuStore reads the cardapio collection.
type MenuStore struct {
	coll *mongo.Collection
}

func NewMenuStore(coll *mongo.Collection) *MenuStore {
	return &MenuStore{coll: coll}
}

func (s *MenuStore) Resolve(ctx context.Context, ref string) (*models.MenuItem, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var item models.MenuItem
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *MenuStore) List(ctx context.Context) ([]models.MenuItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "nome", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	items := []models.MenuItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// StaffStore reads funcionarios and maintains their mesasAtendidas index.
type StaffStore struct {
	coll *mongo.Collection
}

func NewStaffStore(coll *mongo.Collection) *StaffStore {
	return &StaffStore{coll: coll}
}

func (s *StaffStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "telefone", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *StaffStore) Insert(ctx context.Context, f *models.Funcionario) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, f)
	return translate(err)
}

func (s *StaffStore) FindByPhone(ctx context.Context, phone string) (*models.Funcionario, error) {
	return s.findOne(ctx, bson.M{"telefone": phone})
}

func (s *StaffStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Funcionario, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *StaffStore) findOne(ctx context.Context, filter bson.M) (*models.Funcionario, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var f models.Funcionario
	if err := s.coll.FindOne(ctx, filter).Decode(&f); err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (s *StaffStore) AttachTable(ctx context.Context, staff string, mesaID primitive.ObjectID) error {
	return s.update(ctx, staff, bson.M{"$addToSet": bson.M{"mesasAtendidas": mesaID}})
}

func (s *StaffStore) DetachTable(ctx context.Context, staff string, mesaID primitive.ObjectID) error {
	return s.update(ctx, staff, bson.M{"$pull": bson.M{"mesasAtendidas": mesaID}})
}

func (s *StaffStore) update(ctx context.Context, staff string, update bson.M) error {
	id, err := primitive.ObjectIDFromHex(staff)
	if err != nil {
		return repository.ErrNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AreaStore keeps floor-plan metadata keyed by area name.
type AreaStore struct {
	coll *mongo.Collection
}

func NewAreaStore(coll *mongo.Collection) *AreaStore {
	return &AreaStore{coll: coll}
}

func (s *AreaStore) List(ctx context.Context) ([]models.Area, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	areas := []models.Area{}
	if err := cursor.All(ctx, &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

func (s *AreaStore) Upsert(ctx context.Context, a *models.Area) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": a.Name}, a, options.Replace().SetUpsert(true))
	return err
}
