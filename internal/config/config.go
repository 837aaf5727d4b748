package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"modechoice-env/internal/trajectory"
)

type Config struct {
	// preprocessing
	TripsSource     string // table file path, or "db"
	TripsSheet      string
	DatabaseURL     string
	TripsTable      string
	MinTripsPerDay  int
	DropColumns     []string
	MaxMissingRatio float64
	TrainFraction   float64
	OutputDir       string
	DatasetName     string

	// environment server
	TrajPath          string
	HTTPAddr          string
	MetricsAddr       string
	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool
	Seed              int64
	EvalEpisodes      int
	EvalPolicy        string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		TripsSource:       os.Getenv("TRIPS_SOURCE"),
		TripsSheet:        os.Getenv("TRIPS_SHEET"),
		DatabaseURL:       firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")),
		TripsTable:        getenvDefault("TRIPS_TABLE", "trips"),
		OutputDir:         getenvDefault("OUTPUT_DIR", "expert_samples"),
		DatasetName:       getenvDefault("DATASET_NAME", "mobis"),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "modeenv"),
		EvalPolicy:        getenvDefault("EVAL_POLICY", "majority"),
		DropColumns:       splitList(os.Getenv("DROP_COLUMNS")),
	}

	var err error
	if cfg.MinTripsPerDay, err = intVar("MIN_TRIPS_PER_DAY", 500, 0); err != nil {
		return nil, err
	}
	if cfg.EvalEpisodes, err = intVar("EVAL_EPISODES", 0, 0); err != nil {
		return nil, err
	}
	if cfg.MaxMissingRatio, err = ratioVar("MAX_MISSING_RATIO", 0.1); err != nil {
		return nil, err
	}
	if cfg.TrainFraction, err = ratioVar("TRAIN_FRACTION", 0.9); err != nil {
		return nil, err
	}

	cfg.TrajPath = getenvDefault("TRAJ_PATH", trajectory.FileName(cfg.OutputDir, cfg.DatasetName, "train"))

	if v := os.Getenv("SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SEED: %q", v)
		}
		cfg.Seed = seed
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	// Debug logging for NATS publish subjects
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			cfg.LogNATSSubjects = true
		default:
			cfg.LogNATSSubjects = false
		}
	}

	return cfg, nil
}

// FromDatabase reports whether trips are read from DATABASE_URL rather than a file.
func (c *Config) FromDatabase() bool {
	return strings.EqualFold(strings.TrimSpace(c.TripsSource), "db")
}

func intVar(k string, def, min int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < min {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func ratioVar(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 || f > 1 {
		return 0, fmt.Errorf("invalid %s: %q (want a value in [0,1])", k, v)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
