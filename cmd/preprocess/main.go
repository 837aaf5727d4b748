package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"modechoice-env/internal/config"
	"modechoice-env/internal/db"
	"modechoice-env/internal/preprocess"
	"modechoice-env/internal/table"
	"modechoice-env/internal/trajectory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	trips, err := loadTrips(ctx, cfg)
	if err != nil {
		log.Fatalf("load trips: %v", err)
	}

	opts := preprocess.DefaultOptions()
	opts.MinTripsPerDay = cfg.MinTripsPerDay
	opts.DropColumns = cfg.DropColumns
	opts.MaxMissingRatio = cfg.MaxMissingRatio
	ds, err := preprocess.Prepare(trips, opts)
	if err != nil {
		log.Fatalf("preprocess: %v", err)
	}

	train, test := trajectory.Split(ds, cfg.TrainFraction)
	trainPath := trajectory.FileName(cfg.OutputDir, cfg.DatasetName, "train")
	testPath := trajectory.FileName(cfg.OutputDir, cfg.DatasetName, "test")
	if err := trajectory.Save(trainPath, train); err != nil {
		log.Fatalf("save train: %v", err)
	}
	if err := trajectory.Save(testPath, test); err != nil {
		log.Fatalf("save test: %v", err)
	}
	log.Printf("wrote %d train trajectories to %s and %d test trajectories to %s",
		len(train.Trajectories), trainPath, len(test.Trajectories), testPath)
}

func loadTrips(ctx context.Context, cfg *config.Config) (*table.Table, error) {
	if !cfg.FromDatabase() {
		if cfg.TripsSource == "" {
			return nil, errors.New("TRIPS_SOURCE must name a .csv/.xlsx file or be set to db")
		}
		log.Printf("reading trips from %s", cfg.TripsSource)
		return table.ReadFile(cfg.TripsSource, cfg.TripsSheet)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL must be set when TRIPS_SOURCE=db")
	}
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return nil, err
	}
	log.Printf("reading trips from table %q", cfg.TripsTable)
	return db.FetchTable(ctx, sqlDB, cfg.TripsTable)
}
