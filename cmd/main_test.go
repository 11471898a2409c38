package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tom/internal/config"
	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/pkg/logger"
)

func TestNewService(t *testing.T) {
	convey.Convey("Given an initialized logger and default config", t, func() {
		convey.So(logger.Init(), convey.ShouldBeNil)
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When the service is built", func() {
			svc, err := newService(ctx, cfg)

			convey.Convey("Then it carries the built-in catalog", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.Catalog(), convey.ShouldContainKey, model.KindVTIDPMO)
			})
		})

		convey.Convey("When a directory file is configured", func() {
			path := filepath.Join(t.TempDir(), "directory.yaml")
			convey.So(os.WriteFile(path, []byte("employees:\n  - name: Alice Smith\n    username: asmith\n"), 0o600), convey.ShouldBeNil)
			cfg.DirectoryPath = path

			svc, err := newService(ctx, cfg)

			convey.Convey("Then the service starts with it", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(svc.Start(ctx), convey.ShouldBeNil)
				svc.Stop()
			})
		})

		convey.Convey("When the directory file is missing", func() {
			cfg.DirectoryPath = filepath.Join(t.TempDir(), "missing.yaml")
			_, err := newService(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When a metric override is incomplete", func() {
			cfg.Metrics = map[string]config.MetricConfig{"new_metric": {Direction: "higher"}}
			_, err := newService(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given a running service", t, func() {
		convey.So(logger.Init(), convey.ShouldBeNil)
		ctx := context.Background()
		svc, err := newService(ctx, config.New())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("Then one-shot updates do not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then the updaters return when the context ends", func() {
			tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(tctx)
				startServiceMetricsUpdater(tctx, svc)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			convey.So(tctx.Err(), convey.ShouldNotBeNil)
		})
	})
}
