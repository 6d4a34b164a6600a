package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/heartline/heartline/internal/adapters/sink"
	"github.com/heartline/heartline/internal/app"
	"github.com/heartline/heartline/internal/domain/model"
	"github.com/heartline/heartline/pkg/clock"
	"github.com/heartline/heartline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func sampleAt(subject string, hr int, ts time.Time) model.HeartbeatSample {
	return model.HeartbeatSample{SubjectID: subject, HeartRate: hr, Timestamp: ts}
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := app.New(app.WithSink(sink.NewMemorySink()))

		Convey("When started twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			svc.Stop()
		})

		Convey("When stopped without starting", func() {
			So(svc.Stop, ShouldNotPanic)
		})

		Convey("When sampling before start", func() {
			err := svc.AddSample(ctx, sampleAt("42", 70, time.Now()))
			So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestServiceIngressValidation(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		base := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
		clk := clock.NewManual(base)
		mem := sink.NewMemorySink()
		svc := app.New(
			app.WithSink(mem),
			app.WithClock(clk),
			app.WithHeartRateBounds(30, 250),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then a sample without a subject is rejected", func() {
			err := svc.AddSample(ctx, sampleAt("", 70, base))
			So(errors.Is(err, app.ErrMissingSubject), ShouldBeTrue)
		})

		Convey("Then a sample without a heart rate is rejected", func() {
			err := svc.AddSample(ctx, sampleAt("42", 0, base))
			So(errors.Is(err, app.ErrMissingHeartRate), ShouldBeTrue)
		})

		Convey("Then out-of-range readings are rejected", func() {
			So(errors.Is(svc.AddSample(ctx, sampleAt("42", 20, base)), app.ErrHeartRateOutOfRange), ShouldBeTrue)
			So(errors.Is(svc.AddSample(ctx, sampleAt("42", 400, base)), app.ErrHeartRateOutOfRange), ShouldBeTrue)
		})

		Convey("Then a zero timestamp is coerced to the injected clock", func() {
			So(svc.AddSample(ctx, sampleAt("42", 72, time.Time{})), ShouldBeNil)

			// The coerced sample lands in the window containing clk.Now().
			n := svc.FlushDue(ctx, base.Add(time.Minute))
			So(n, ShouldEqual, 1)

			So(waitFor(func() bool { return len(mem.Records()) == 1 }, 2*time.Second), ShouldBeTrue)
			So(mem.Records()[0].WindowStart.Equal(base), ShouldBeTrue)
		})

		Convey("Then missing sub-metrics do not reject the sample", func() {
			s := sampleAt("42", 72, base)
			s.RRInterval = nil
			s.SDNN = nil
			So(svc.AddSample(ctx, s), ShouldBeNil)
		})
	})
}

func TestServicePipeline(t *testing.T) {
	Convey("Given a started service with a manual clock", t, func() {
		ctx := context.Background()
		base := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
		clk := clock.NewManual(base)
		mem := sink.NewMemorySink()
		svc := app.New(
			app.WithSink(mem),
			app.WithClock(clk),
			app.WithWindowDuration(time.Minute),
			app.WithFlushWorkerCount(2),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a two-window stream is ingested and the clock advances", func() {
			for i := 0; i < 40; i++ {
				So(svc.AddSample(ctx, sampleAt("42", 65, base.Add(time.Duration(i)*time.Second))), ShouldBeNil)
			}
			for i := 0; i < 25; i++ {
				So(svc.AddSample(ctx, sampleAt("42", 80, base.Add(time.Minute+time.Duration(i)*time.Second))), ShouldBeNil)
			}

			clk.Advance(90 * time.Second)
			n := svc.FlushDue(ctx, clk.Now())

			Convey("Then exactly the closed window reaches the sink", func() {
				So(n, ShouldEqual, 1)
				So(waitFor(func() bool { return len(mem.Records()) == 1 }, 2*time.Second), ShouldBeTrue)

				rec := mem.Records()[0]
				So(rec.SubjectID, ShouldEqual, "42")
				So(rec.SampleCount, ShouldEqual, 40)
				So(rec.AvgHeartRate, ShouldEqual, 65)

				recent, err := svc.RecentWindows(ctx, "42", 10)
				So(err, ShouldBeNil)
				So(recent, ShouldHaveLength, 1)
			})

			Convey("And stopping the service flushes the still-open window", func() {
				svc.Stop()

				recs := mem.Records()
				So(len(recs), ShouldEqual, 2)

				var final *model.WindowRecord
				for i := range recs {
					if recs[i].WindowStart.Equal(base.Add(time.Minute)) {
						final = &recs[i]
					}
				}
				So(final, ShouldNotBeNil)
				So(final.SampleCount, ShouldEqual, 25)
				So(final.AvgHeartRate, ShouldEqual, 80)
			})
		})

		Convey("When nothing is due", func() {
			So(svc.AddSample(ctx, sampleAt("42", 70, base)), ShouldBeNil)

			n := svc.FlushDue(ctx, base.Add(10*time.Second))

			Convey("Then nothing reaches the sink", func() {
				So(n, ShouldEqual, 0)
				time.Sleep(50 * time.Millisecond)
				So(mem.Records(), ShouldBeEmpty)
				svc.Stop()
			})
		})
	})
}

func TestServiceStopAfterContextCancel(t *testing.T) {
	Convey("Given a service started with a cancelable context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		base := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
		mem := sink.NewMemorySink()
		svc := app.New(
			app.WithSink(mem),
			app.WithClock(clock.NewManual(base)),
			app.WithWindowDuration(time.Minute),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When the context is canceled before the service stops", func() {
			So(svc.AddSample(ctx, sampleAt("42", 70, base)), ShouldBeNil)
			cancel()
			svc.Stop()

			Convey("Then the final flush still reaches the sink", func() {
				recs := mem.Records()
				So(recs, ShouldHaveLength, 1)
				So(recs[0].SubjectID, ShouldEqual, "42")
				So(recs[0].SampleCount, ShouldEqual, 1)
			})
		})
	})
}

func TestServiceStopJoinsSweep(t *testing.T) {
	Convey("Given a service sweeping on a very short cadence", t, func() {
		ctx := context.Background()
		base := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
		clk := clock.NewManual(base)
		mem := sink.NewMemorySink()
		svc := app.New(
			app.WithSink(mem),
			app.WithClock(clk),
			app.WithWindowDuration(time.Minute),
			app.WithFlushInterval(time.Millisecond),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a window becomes due just as the service stops", func() {
			So(svc.AddSample(ctx, sampleAt("42", 70, base)), ShouldBeNil)
			clk.Advance(2 * time.Minute)
			svc.Stop()

			Convey("Then the window reaches the sink exactly once", func() {
				recs := mem.Records()
				So(recs, ShouldHaveLength, 1)
				So(recs[0].SubjectID, ShouldEqual, "42")
				So(recs[0].SampleCount, ShouldEqual, 1)
			})
		})
	})
}

func TestServiceStats(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		base := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
		mem := sink.NewMemorySink()
		svc := app.New(app.WithSink(mem), app.WithClock(clock.NewManual(base)))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When samples for two subjects are buffered", func() {
			So(svc.AddSample(ctx, sampleAt("42", 70, base)), ShouldBeNil)
			So(svc.AddSample(ctx, sampleAt("42", 71, base.Add(time.Second))), ShouldBeNil)
			So(svc.AddSample(ctx, sampleAt("7", 90, base)), ShouldBeNil)

			stats := svc.GetStats()

			Convey("Then the stats expose occupancy", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["activeSubjects"], ShouldEqual, 2)
				So(stats["activeWindows"], ShouldEqual, 2)
				So(stats["bufferedSampleCount"], ShouldEqual, 3)
				So(stats["liveSubscribers"], ShouldEqual, 0)
			})
		})
	})
}
