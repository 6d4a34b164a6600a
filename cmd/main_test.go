package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/heartline/heartline/internal/adapters/http/api"
	"github.com/heartline/heartline/internal/adapters/sink"
	app "github.com/heartline/heartline/internal/app"
	"github.com/heartline/heartline/internal/config"
	"github.com/heartline/heartline/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("HEARTLINE_ADDR", ":8080")
			_ = os.Setenv("HEARTLINE_FLUSH_QUEUE_SIZE", "1000")
			_ = os.Setenv("HEARTLINE_FLUSH_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("HEARTLINE_ADDR")
				_ = os.Unsetenv("HEARTLINE_FLUSH_QUEUE_SIZE")
				_ = os.Unsetenv("HEARTLINE_FLUSH_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FlushQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.FlushWorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing sink selection", func() {
			ctx := context.Background()
			cfg := config.New(ctx)
			cfg.Sink = config.SinkMemory

			s, err := buildSink(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(s, convey.ShouldHaveSameTypeAs, sink.NewMemorySink())
			convey.So(s.Close(), convey.ShouldBeNil)
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New(app.WithSink(sink.NewMemorySink()))
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithSink(sink.NewMemorySink()),
					app.WithWindowDuration(30*time.Second),
					app.WithFlushInterval(10*time.Second),
					app.WithFlushQueueSize(2000),
					app.WithFlushWorkerCount(8),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New(app.WithSink(sink.NewMemorySink()))
			mux := http.NewServeMux()
			apiServer := api.NewServer(svc, svc)
			apiServer.Register(context.Background(), mux)

			srv := &http.Server{
				Addr:              ":0",
				Handler:           mux,
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}
			convey.So(srv, convey.ShouldNotBeNil)
			convey.So(srv.Handler, convey.ShouldNotBeNil)
		})
	})
}
