package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Database struct {
	Client       *mongo.Client
	Mesas        *mongo.Collection
	Pedidos      *mongo.Collection
	Caixas       *mongo.Collection
	Cardapio     *mongo.Collection
	Funcionarios *mongo.Collection
	Areas        *mongo.Collection
}

func ConnectDatabase(uri, name string) (*Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	db := client.Database(name)
	log.Println("Connected to MongoDB")
	return &Database{
		Client:       client,
		Mesas:        db.Collection("mesas"),
		Pedidos:      db.Collection("pedidos"),
		Caixas:       db.Collection("caixas"),
		Cardapio:     db.Collection("cardapio"),
		Funcionarios: db.Collection("funcionarios"),
		Areas:        db.Collection("areas"),
	}, nil
}

func (d *Database) Disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Client.Disconnect(ctx); err != nil {
		log.Printf("error disconnecting from MongoDB: %v", err)
	}
}
