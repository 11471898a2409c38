package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/tom/internal/config"
	"github.com/okian/tom/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.UploadQueueSize, convey.ShouldEqual, 1_024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.RefreshDebounceMS, convey.ShouldEqual, 250)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then its catalog is the built-in one", func() {
			catalog, err := cfg.Catalog()
			convey.So(err, convey.ShouldBeNil)
			convey.So(catalog, convey.ShouldResemble, model.DefaultCatalog())
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TOM_ADDR", ":8080")
			_ = os.Setenv("TOM_QUEUE_SIZE", "64")
			_ = os.Setenv("TOM_WORKER_COUNT", "3")
			_ = os.Setenv("TOM_REFRESH_DEBOUNCE_MS", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.UploadQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.RefreshDebounceMS, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
worker_count: 8
directory_path: /etc/tom/directory.yaml
metrics:
  vti_dpmo:
    benchmark: 1200
  scrap_rate:
    direction: lower
    benchmark: 2.5
  safety_observations:
    include_in_leaderboard: true
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TOM_CONFIG", tmpFile)
			_ = os.Setenv("TOM_WORKER_COUNT", "2")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values merge under env values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.DirectoryPath, convey.ShouldEqual, "/etc/tom/directory.yaml")
				convey.So(cfg.UploadQueueSize, convey.ShouldEqual, 1_024)
			})

			convey.Convey("Then metric overrides merge into the catalog", func() {
				convey.So(err, convey.ShouldBeNil)
				catalog, err := cfg.Catalog()
				convey.So(err, convey.ShouldBeNil)

				dpmo := catalog[model.KindVTIDPMO]
				convey.So(dpmo.Benchmark, convey.ShouldEqual, 1200)
				convey.So(dpmo.Direction, convey.ShouldEqual, model.LowerIsBetter)
				convey.So(dpmo.IncludeInLeaderboard, convey.ShouldBeTrue)

				convey.So(catalog["scrap_rate"], convey.ShouldResemble, model.MetricTableConfig{
					Direction: model.LowerIsBetter, Benchmark: 2.5, IncludeInLeaderboard: true,
				})
				convey.So(catalog[model.KindSafetyObservations].IncludeInLeaderboard, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a new metric omits its benchmark", func() {
			tmpFile := createTempConfigFile("metrics:\n  scrap_rate:\n    direction: lower\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TOM_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a metric has an unknown direction", func() {
			tmpFile := createTempConfigFile("metrics:\n  vti_dpmo:\n    direction: sideways\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TOM_CONFIG", tmpFile)

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TOM_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("TOM_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("TOM_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("TOM_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with a non-positive worker count", func() {
			_ = os.Setenv("TOM_WORKER_COUNT", "0")

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestDotEnv(t *testing.T) {
	convey.Convey("Given a .env file in the working directory", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		dir := t.TempDir()
		wd, err := os.Getwd()
		convey.So(err, convey.ShouldBeNil)
		convey.So(os.WriteFile(dir+"/.env", []byte("TOM_ADDR=:7070\nTOM_LOG_LEVEL=debug\n"), 0o600), convey.ShouldBeNil)
		convey.So(os.Chdir(dir), convey.ShouldBeNil)
		defer func() { _ = os.Chdir(wd) }()

		convey.Convey("When the process env already sets a key", func() {
			_ = os.Setenv("TOM_LOG_LEVEL", "warn")

			cfg, err := config.Load(context.Background())

			convey.Convey("Then .env fills the gaps without overriding it", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
			})
		})
	})
}

func TestLoadFile(t *testing.T) {
	convey.Convey("Given a YAML file with a metric override", t, func() {
		clearConfigEnvVars()
		_ = os.Setenv("TOM_ADDR", ":1111")
		defer clearConfigEnvVars()

		path := createTempConfigFile("metrics:\n  vti_dpmo:\n    benchmark: 1200\n")
		defer func() { _ = os.Remove(path) }()

		convey.Convey("When loaded with LoadFile", func() {
			cfg, err := config.LoadFile(path)

			convey.Convey("Then env is ignored and the override applies", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				catalog, err := cfg.Catalog()
				convey.So(err, convey.ShouldBeNil)
				convey.So(catalog[model.KindVTIDPMO].Benchmark, convey.ShouldEqual, 1200)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.LoadFile(path + ".missing")
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

// Helper functions

func clearConfigEnvVars() {
	envVars := []string{
		"TOM_CONFIG",
		"TOM_ADDR",
		"TOM_LOG_LEVEL",
		"TOM_QUEUE_SIZE",
		"TOM_WORKER_COUNT",
		"TOM_DEDUPE_SIZE",
		"TOM_MAX_LEADERBOARD_LIMIT",
		"TOM_MAX_UPLOAD_BYTES",
		"TOM_REFRESH_DEBOUNCE_MS",
		"TOM_DIRECTORY_PATH",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "tom-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = tmpFile.Close() }()

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
