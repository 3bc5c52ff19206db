package config

import (
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
	"go.uber.org/zap"

	"github.com/copyleftdev/planeopt/internal/optimization"
	"github.com/copyleftdev/planeopt/internal/optimization/methods"
	"github.com/copyleftdev/planeopt/internal/optimization/penalty"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		Epsilon              float64        `env:"OPT_EPSILON" envDefault:"0.001"`
		MaxIterations        int            `env:"OPT_MAX_ITERATIONS" envDefault:"0"`
		GradientRate         float64        `env:"OPT_GRADIENT_RATE" envDefault:"0.25"`
		SimplexStep          float64        `env:"OPT_SIMPLEX_STEP" envDefault:"1"`
		PenaltyGrowth        float64        `env:"OPT_PENALTY_GROWTH" envDefault:"10"`
		PenaltyMaxIterations int            `env:"OPT_PENALTY_MAX_ITERATIONS" envDefault:"20"`
		ScanRadius           float64        `env:"OPT_SCAN_RADIUS" envDefault:"10"`
		ScanPopulation       int            `env:"OPT_SCAN_POPULATION" envDefault:"20"`
		ScanIterations       int            `env:"OPT_SCAN_ITERATIONS" envDefault:"100"`
		ScanSeed             int64          `env:"OPT_SCAN_SEED" envDefault:"42"`
		DefaultMethod        methods.Method `env:"OPT_DEFAULT_METHOD" envDefault:"gauss-seidel"`
		DefaultPenalty       penalty.Shape  `env:"OPT_DEFAULT_PENALTY" envDefault:"quadratic"`
		SolveTimeout         time.Duration  `env:"OPT_SOLVE_TIMEOUT" envDefault:"30s"`
	}
	Surface struct {
		MaxResolution int `env:"SURFACE_MAX_RESOLUTION" envDefault:"400"`
		CacheSize     int `env:"SURFACE_CACHE_SIZE" envDefault:"8"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if cfg.Surface.CacheSize < 1 {
		cfg.Surface.CacheSize = 1
	}

	return cfg, nil
}

// Settings returns the solver settings described by the configuration.
func (c *Config) Settings(logger *zap.Logger) optimization.Settings {
	return optimization.Settings{
		Epsilon:        c.Optimization.Epsilon,
		MaxIterations:  c.Optimization.MaxIterations,
		Rate:           c.Optimization.GradientRate,
		InitialStep:    c.Optimization.SimplexStep,
		ScanRadius:     c.Optimization.ScanRadius,
		ScanPopulation: c.Optimization.ScanPopulation,
		ScanIterations: c.Optimization.ScanIterations,
		ScanSeed:       c.Optimization.ScanSeed,
		Logger:         logger,
	}.WithDefaults()
}

// Penalty returns the penalty loop configuration for the given bound shape.
func (c *Config) Penalty(shape penalty.Shape) penalty.Config {
	pc := penalty.DefaultConfig()
	pc.BoundShape = shape
	if c.Optimization.PenaltyGrowth > 1 {
		pc.Growth = c.Optimization.PenaltyGrowth
	}
	if c.Optimization.PenaltyMaxIterations > 0 {
		pc.MaxIterations = c.Optimization.PenaltyMaxIterations
	}
	return pc
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool returns the value of the environment variable as bool or the default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
