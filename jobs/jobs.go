// Package jobs schedules the periodic maintenance sweeps.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"floorops/logger"

	"github.com/go-co-op/gocron"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UnionRepairer interface {
	RepairUnions(ctx context.Context) ([]primitive.ObjectID, error)
}

// Start schedules the union repair sweep every day at the given "HH:MM" in loc and
// starts the scheduler in the background.
func Start(loc *time.Location, at string, tables UnionRepairer, log *logger.Logger) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(loc)
	if _, err := s.Every(1).Day().At(at).Do(RepairUnions(tables, log)); err != nil {
		return nil, err
	}
	s.StartAsync()
	return s, nil
}

// RepairUnions returns the sweep run by the scheduler.
func RepairUnions(tables UnionRepairer, log *logger.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		ctx = logger.WithRequestID(ctx, "job:repair_unions")

		restored, err := tables.RepairUnions(ctx)
		if err != nil {
			log.Error(ctx, "repair_unions", "union repair sweep failed", err)
			return
		}
		log.Info(ctx, "repair_unions", "union repair sweep finished", slog.Int("restored", len(restored)))
	}
}
