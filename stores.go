package main

import (
	"context"
	"fmt"
	"log"

	"floorops/config"
	"floorops/models"
	"floorops/repository/memory"
	"floorops/repository/mongodb"
	"floorops/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type menuStore interface {
	Resolve(ctx context.Context, ref string) (*models.MenuItem, error)
	List(ctx context.Context) ([]models.MenuItem, error)
}

type staffStore interface {
	FindByPhone(ctx context.Context, phone string) (*models.Funcionario, error)
	Insert(ctx context.Context, f *models.Funcionario) error
	AttachTable(ctx context.Context, staff string, mesaID primitive.ObjectID) error
	DetachTable(ctx context.Context, staff string, mesaID primitive.ObjectID) error
}

type stores struct {
	mesas   services.MesaStore
	pedidos services.PedidoStore
	caixas  services.CaixaStore
	menu    menuStore
	staff   staffStore
	areas   services.AreaStore
	close   func()
}

type indexed interface {
	EnsureIndexes(ctx context.Context) error
}

// openStores builds the stores for DB_DRIVER: MongoDB, or process memory seeded with a
// sample menu for development.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.DBDriver == "memory" {
		log.Println("Using in-memory stores, data is lost on restart")
		menu := memory.NewMenuStore()
		if err := config.SeedMenu(ctx, menu); err != nil {
			return nil, err
		}
		return &stores{
			mesas:   memory.NewMesaStore(),
			pedidos: memory.NewPedidoStore(),
			caixas:  memory.NewCaixaStore(),
			menu:    menu,
			staff:   memory.NewStaffStore(),
			areas:   memory.NewAreaStore(),
			close:   func() {},
		}, nil
	}

	db, err := config.ConnectDatabase(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	mesas := mongodb.NewMesaStore(db.Mesas)
	pedidos := mongodb.NewPedidoStore(db.Pedidos)
	caixas := mongodb.NewCaixaStore(db.Caixas)
	staff := mongodb.NewStaffStore(db.Funcionarios)
	for _, s := range []indexed{mesas, pedidos, caixas, staff} {
		if err := s.EnsureIndexes(ctx); err != nil {
			db.Disconnect()
			return nil, fmt.Errorf("error creating indexes: %w", err)
		}
	}
	return &stores{
		mesas:   mesas,
		pedidos: pedidos,
		caixas:  caixas,
		menu:    mongodb.NewMenuStore(db.Cardapio),
		staff:   staff,
		areas:   mongodb.NewAreaStore(db.Areas),
		close:   db.Disconnect,
	}, nil
}
