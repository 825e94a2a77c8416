package mongodb

import (
	"context"
	"time"

	"floorops/models"
	"floorops/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CaixaStore struct {
	coll *mongo.Collection
}

func NewCaixaStore(coll *mongo.Collection) *CaixaStore {
	return &CaixaStore{coll: coll}
}

// EnsureIndexes creates the partial unique index that allows a single open session.
func (s *CaixaStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("um_caixa_aberto").
				SetPartialFilterExpression(bson.M{"status": models.CaixaAberto}),
		},
		{Keys: bson.D{{Key: "dataAbertura", Value: -1}}},
	})
	return err
}

func (s *CaixaStore) Insert(ctx context.Context, c *models.Caixa) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, c)
	return translate(err)
}

func (s *CaixaStore) FindOpen(ctx context.Context) (*models.Caixa, error) {
	return s.findOne(ctx, bson.M{"status": models.CaixaAberto})
}

func (s *CaixaStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Caixa, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *CaixaStore) findOne(ctx context.Context, filter bson.M) (*models.Caixa, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var c models.Caixa
	if err := s.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// AddSale posts one sale in a single update. The running totals are rounded to cents
// on the server so they match the in-memory driver instead of accumulating float
// error through $inc.
func (s *CaixaStore) AddSale(ctx context.Context, id primitive.ObjectID, v models.Venda) (*models.Caixa, error) {
	return s.post(ctx, id, saleUpdate(v))
}

func saleUpdate(v models.Venda) mongo.Pipeline {
	amount := utils.RoundToCents(v.Amount)
	addCents := func(field string) bson.M {
		return bson.M{"$round": bson.A{bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{field, 0}}, amount}}, 2}}
	}
	orders := bson.M{"$ifNull": bson.A{"$pedidos", bson.A{}}}
	return mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"vendas.total":      addCents("$vendas.total"),
		"vendas.quantidade": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$vendas.quantidade", 0}}, 1}},
		"totaisPorForma": bson.M{"$mergeObjects": bson.A{
			bson.M{"$ifNull": bson.A{"$totaisPorForma", bson.M{}}},
			bson.M{v.Method: addCents("$totaisPorForma." + v.Method)},
		}},
		"pedidos": bson.M{"$cond": bson.A{
			bson.M{"$in": bson.A{v.OrderRef, orders}},
			orders,
			bson.M{"$concatArrays": bson.A{orders, bson.A{v.OrderRef}}},
		}},
		"versao": bson.M{"$add": bson.A{"$versao", 1}},
	}}}}
}

func (s *CaixaStore) AddCashOut(ctx context.Context, id primitive.ObjectID, m models.Movimento) (*models.Caixa, error) {
	return s.post(ctx, id, bson.M{
		"$push": bson.M{"sangrias": m},
		"$inc":  bson.M{"versao": 1},
	})
}

func (s *CaixaStore) AddCashIn(ctx context.Context, id primitive.ObjectID, m models.Movimento) (*models.Caixa, error) {
	return s.post(ctx, id, bson.M{
		"$push": bson.M{"reforcos": m},
		"$inc":  bson.M{"versao": 1},
	})
}

func (s *CaixaStore) post(ctx context.Context, id primitive.ObjectID, update interface{}) (*models.Caixa, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c models.Caixa
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": models.CaixaAberto}, update, opts).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, missOrStale(ctx, s.coll, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CaixaStore) Close(ctx context.Context, c *models.Caixa) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	prev := c.Version
	c.Version++
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": c.ID, "status": models.CaixaAberto, "versao": prev}, c)
	if err != nil {
		c.Version = prev
		return translate(err)
	}
	if res.MatchedCount == 0 {
		c.Version = prev
		return missOrStale(ctx, s.coll, c.ID)
	}
	return nil
}

func (s *CaixaStore) ListOpenedBetween(ctx context.Context, from, to time.Time) ([]models.Caixa, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	filter := bson.M{"dataAbertura": bson.M{"$gte": from, "$lte": to}}
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "dataAbertura", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	caixas := []models.Caixa{}
	if err := cursor.All(ctx, &caixas); err != nil {
		return nil, err
	}
	return caixas, nil
}
