package config

import (
	"context"
	"errors"
	"log"

	"floorops/models"
	"floorops/repository"
	"floorops/utils"
)

type StaffSeeder interface {
	FindByPhone(ctx context.Context, phone string) (*models.Funcionario, error)
	Insert(ctx context.Context, f *models.Funcionario) error
}

// SeedManager creates the first manager account from ADMIN_PHONE and ADMIN_PASSWORD.
func SeedManager(ctx context.Context, staff StaffSeeder, phone, password string) error {
	if phone == "" || password == "" {
		log.Println("skip seeding manager: missing ADMIN_PHONE/ADMIN_PASSWORD")
		return nil
	}
	_, err := staff.FindByPhone(ctx, phone)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	err = staff.Insert(ctx, &models.Funcionario{
		Name:     "Gerente",
		Phone:    phone,
		Password: hash,
		Role:     models.CargoGerente,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	if err == nil {
		log.Println("manager account seeded:", phone)
	}
	return err
}

type MenuSeeder interface {
	Put(ctx context.Context, item *models.MenuItem) error
}

// SeedMenu fills an empty in-memory menu so the service is usable in development.
func SeedMenu(ctx context.Context, menu MenuSeeder) error {
	items := []models.MenuItem{
		{Name: "Hamburguer da casa", Price: 32, PrepMinutes: 20, Available: true,
			Addons: []models.Adicional{{Name: "bacon", ExtraPrice: 4}, {Name: "queijo extra", ExtraPrice: 3}}},
		{Name: "Batata frita", Price: 18, PrepMinutes: 10, Available: true},
		{Name: "Refrigerante lata", Price: 7, Available: true},
		{Name: "Suco natural", Price: 10, PrepMinutes: 5, Available: true},
	}
	for i := range items {
		if err := menu.Put(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}
