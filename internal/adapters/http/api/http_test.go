package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/heartline/heartline/internal/adapters/broadcast"
	"github.com/heartline/heartline/internal/adapters/http/api"
	"github.com/heartline/heartline/internal/app"
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

// Mock implementations for testing
type mockDependencies struct {
	hub       *broadcast.Hub
	samples   []model.HeartbeatSample
	sampleErr error
	recent    []model.WindowRecord
	recentErr error
}

func (m *mockDependencies) AddSample(ctx context.Context, sample model.HeartbeatSample) error {
	if m.sampleErr != nil {
		return m.sampleErr
	}
	m.samples = append(m.samples, sample)
	return nil
}

func (m *mockDependencies) Hub() *broadcast.Hub {
	return m.hub
}

func (m *mockDependencies) RecentWindows(ctx context.Context, subjectID string, limit int) ([]model.WindowRecord, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	if limit < len(m.recent) {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestMux(deps *mockDependencies, stats map[string]interface{}) *http.ServeMux {
	if deps.hub == nil {
		deps.hub = broadcast.NewHub()
	}
	server := api.NewServer(deps, &mockStatsProvider{stats: stats})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newTestMux(deps, map[string]interface{}{"started": true})

		Convey("Then the health endpoint serves the metrics registry", func() {
			req := httptest.NewRequest("GET", "/healthz", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint returns the provider payload", func() {
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)

			var got map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got["started"], ShouldEqual, true)
		})

		Convey("Then stats rejects non-GET methods", func() {
			req := httptest.NewRequest("POST", "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestSamplesHandler(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newTestMux(deps, nil)

		post := func(body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest("POST", "/samples", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		Convey("When posting a valid sample", func() {
			w := post(`{"subject_id":"42","heart_rate":72,"timestamp":"2026-05-02T10:00:00Z","rr_interval":812.5}`)

			Convey("Then it is accepted and forwarded", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)

				var ack map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack["status"], ShouldEqual, "accepted")

				So(deps.samples, ShouldHaveLength, 1)
				So(deps.samples[0].SubjectID, ShouldEqual, "42")
				So(deps.samples[0].HeartRate, ShouldEqual, 72)
				So(deps.samples[0].Timestamp.Equal(time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(*deps.samples[0].RRInterval, ShouldEqual, 812.5)
			})
		})

		Convey("When posting a sample without a timestamp", func() {
			w := post(`{"subject_id":"42","heart_rate":72}`)

			Convey("Then it is accepted with a zero timestamp for the service to stamp", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.samples, ShouldHaveLength, 1)
				So(deps.samples[0].Timestamp.IsZero(), ShouldBeTrue)
			})
		})

		Convey("When posting malformed JSON", func() {
			w := post(`{"subject_id":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When posting without a subject", func() {
			w := post(`{"heart_rate":72}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			var resp map[string]string
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp["code"], ShouldEqual, "bad_request")
			So(resp["message"], ShouldContainSubstring, "subject_id")
		})

		Convey("When posting without a heart rate", func() {
			w := post(`{"subject_id":"42"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When posting a bad timestamp", func() {
			w := post(`{"subject_id":"42","heart_rate":72,"timestamp":"yesterday"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service rejects the reading", func() {
			deps.sampleErr = app.ErrHeartRateOutOfRange
			w := post(`{"subject_id":"42","heart_rate":20}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service is not started", func() {
			deps.sampleErr = app.ErrNotStarted
			w := post(`{"subject_id":"42","heart_rate":72}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest("GET", "/samples", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestWindowsHandler(t *testing.T) {
	Convey("Given a registered API server with persisted windows", t, func() {
		deps := &mockDependencies{
			recent: []model.WindowRecord{
				{SubjectID: "42", SampleCount: 25, AvgHeartRate: 80},
				{SubjectID: "42", SampleCount: 40, AvgHeartRate: 65},
			},
		}
		mux := newTestMux(deps, nil)

		get := func(target string) *httptest.ResponseRecorder {
			req := httptest.NewRequest("GET", target, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		Convey("When fetching a subject's history", func() {
			w := get("/windows?subject_id=42")
			So(w.Code, ShouldEqual, http.StatusOK)

			var got []model.WindowRecord
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[0].AvgHeartRate, ShouldEqual, 80)
		})

		Convey("When limiting the history", func() {
			w := get("/windows?subject_id=42&limit=1")
			So(w.Code, ShouldEqual, http.StatusOK)

			var got []model.WindowRecord
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got, ShouldHaveLength, 1)
		})

		Convey("When the subject has no history", func() {
			deps.recent = nil
			w := get("/windows?subject_id=7")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})

		Convey("When the subject is missing", func() {
			w := get("/windows")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit is not a positive integer", func() {
			So(get("/windows?subject_id=42&limit=abc").Code, ShouldEqual, http.StatusBadRequest)
			So(get("/windows?subject_id=42&limit=0").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the store fails", func() {
			deps.recentErr = errors.New("disk gone")
			w := get("/windows?subject_id=42")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestLiveHandler(t *testing.T) {
	Convey("Given a registered API server with a live hub", t, func() {
		hub := broadcast.NewHub()
		deps := &mockDependencies{hub: hub}
		mux := newTestMux(deps, nil)
		srv := httptest.NewServer(mux)
		defer srv.Close()
		defer func() { _ = hub.Close() }()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

		Convey("When connecting without a subject", func() {
			resp, err := http.Get(srv.URL + "/live")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When connecting with a subject", func() {
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL+"/live?subject_id=42", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			defer conn.Close()

			waitUntil := time.Now().Add(2 * time.Second)
			for hub.SubscriberCount() == 0 && time.Now().Before(waitUntil) {
				time.Sleep(5 * time.Millisecond)
			}
			So(hub.SubscriberCount(), ShouldEqual, 1)

			Convey("Then a published record for that subject is delivered", func() {
				rec := model.WindowRecord{
					SubjectID:    "42",
					WindowStart:  time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC),
					WindowEnd:    time.Date(2026, 5, 2, 10, 1, 0, 0, time.UTC),
					SampleCount:  3,
					AvgHeartRate: 70,
				}
				hub.Publish(context.Background(), rec)

				So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
				var envelope struct {
					SubjectID string             `json:"subject_id"`
					Data      model.WindowRecord `json:"data"`
				}
				So(conn.ReadJSON(&envelope), ShouldBeNil)
				So(envelope.SubjectID, ShouldEqual, "42")
				So(envelope.Data.AvgHeartRate, ShouldEqual, 70)
				So(envelope.Data.SampleCount, ShouldEqual, 3)
			})
		})
	})
}

func TestWrapKind(t *testing.T) {
	Convey("Given a wrapped kind", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.post_sample", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause are recoverable", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "api.post_sample")
		})
	})
}
