package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/heartline/heartline/internal/adapters/mq/queue"
	"github.com/heartline/heartline/internal/adapters/mq/worker"
	"github.com/heartline/heartline/internal/domain/model"
	"github.com/heartline/heartline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

type fakeSink struct {
	mu    sync.Mutex
	saved []model.WindowRecord
	err   error
}

func (s *fakeSink) Save(_ context.Context, rec model.WindowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, rec)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []model.WindowRecord
}

func (p *fakePublisher) Publish(_ context.Context, rec model.WindowRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, rec)
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func testRecord(subject string) model.WindowRecord {
	start := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	return model.WindowRecord{
		SubjectID:    subject,
		WindowStart:  start,
		WindowEnd:    start.Add(time.Minute),
		SampleCount:  10,
		AvgHeartRate: 70,
		MinHeartRate: 65,
		MaxHeartRate: 78,
	}
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

func TestPool(t *testing.T) {
	Convey("Given a running worker pool", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sink := &fakeSink{}
		pub := &fakePublisher{}

		pool := worker.NewPool(2, q, sink, pub)
		pool.Start(ctx)
		defer pool.Stop()

		Convey("When records are enqueued", func() {
			q.Enqueue(ctx, testRecord("42"))
			q.Enqueue(ctx, testRecord("7"))

			Convey("Then every record is saved and published", func() {
				ok := waitFor(func() bool {
					return sink.count() == 2 && pub.count() == 2
				}, 2*time.Second)
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestPool_PublishDespiteSinkFailure(t *testing.T) {
	Convey("Given a pool whose sink always fails", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sink := &fakeSink{err: errors.New("disk on fire")}
		pub := &fakePublisher{}

		pool := worker.NewPool(1, q, sink, pub)
		pool.Start(ctx)
		defer pool.Stop()

		Convey("When a record is enqueued", func() {
			q.Enqueue(ctx, testRecord("42"))

			Convey("Then it still reaches the live subscribers", func() {
				So(waitFor(func() bool { return pub.count() == 1 }, 2*time.Second), ShouldBeTrue)
				So(sink.count(), ShouldEqual, 0)
			})
		})
	})
}

func TestPool_ShutdownDrainsQueue(t *testing.T) {
	Convey("Given a running pool with buffered records", t, func() {
		ctx := context.Background()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sink := &fakeSink{}
		pub := &fakePublisher{}

		pool := worker.NewPool(2, q, sink, pub)
		pool.Start(ctx)

		for i := 0; i < 8; i++ {
			q.Enqueue(ctx, testRecord("42"))
		}

		Convey("When the pool shuts down", func() {
			So(pool.Shutdown(ctx), ShouldBeNil)

			Convey("Then nothing already buffered is lost", func() {
				So(sink.count(), ShouldEqual, 8)
				So(pub.count(), ShouldEqual, 8)
			})
		})
	})
}

func TestPool_DrainsAfterStartContextCanceled(t *testing.T) {
	Convey("Given a pool whose start context has been canceled", t, func() {
		ctx, cancel := context.WithCancel(context.Background())

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sink := &fakeSink{}
		pub := &fakePublisher{}

		pool := worker.NewPool(2, q, sink, pub)
		pool.Start(ctx)
		cancel()

		Convey("When records are enqueued after the cancellation", func() {
			for i := 0; i < 4; i++ {
				q.Enqueue(context.Background(), testRecord("42"))
			}

			Convey("Then shutdown still drains them into the sink", func() {
				So(pool.Shutdown(context.Background()), ShouldBeNil)
				So(sink.count(), ShouldEqual, 4)
				So(pub.count(), ShouldEqual, 4)
			})
		})
	})
}
