package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/roster/internal/adapters/http/api"
	"github.com/okian/roster/internal/adapters/mq/queue"
	"github.com/okian/roster/internal/adapters/repository"
	"github.com/okian/roster/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	submitted  []model.Submission
	submitErr  error
	duplicate  bool
	jobs       map[string]model.Job
	listLimit  int
	resolveErr error
}

func newMockDeps() *mockDeps {
	return &mockDeps{jobs: make(map[string]model.Job)}
}

func (m *mockDeps) Submit(_ context.Context, sub model.Submission) (model.Job, bool, error) { //nolint:gocritic // test double
	if m.submitErr != nil {
		return model.Job{}, false, m.submitErr
	}
	m.submitted = append(m.submitted, sub)
	job := model.Job{ID: fmt.Sprintf("job-%d", len(m.submitted)), Status: model.JobQueued, SubmissionID: sub.SubmissionID}
	m.jobs[job.ID] = job
	return job, m.duplicate, nil
}

func (m *mockDeps) Job(_ context.Context, id string) (model.Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return job, nil
}

func (m *mockDeps) Jobs(_ context.Context, limit int) ([]model.Job, error) {
	m.listLimit = limit
	out := make([]model.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job.Summary())
	}
	return out, nil
}

func (m *mockDeps) ResolveNow(_ context.Context, sub model.Submission) (model.Job, error) { //nolint:gocritic // test double
	if m.resolveErr != nil {
		return model.Job{}, m.resolveErr
	}
	return model.Job{
		ID:          "inline",
		Status:      model.JobCompleted,
		Records:     sub.Records,
		Diagnostics: []string{"Student Alison Means has potential misspelled name Allison Means in semester Spring 2019; using Alison Means"},
	}, nil
}

func (m *mockDeps) GetStats(context.Context) map[string]any {
	return map[string]any{"started": true, "queue_length": 0}
}

const rosterBody = `{
	"submission_id": "upload-1",
	"current_semester": "Spring 2019",
	"records": [
		{"first_name": "Alison", "last_name": "Means", "semester": "Spring 2019", "score_name": "Oral", "score": 3},
		{"first_name": "Allison", "last_name": "Means", "semester": "Spring 2019", "score_name": "Oral", "score": 4}
	]
}`

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		panic(err)
	}
	return out
}

func TestSubmitJob(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When a roster is posted to /jobs", func() {
			w := do(mux, http.MethodPost, "/jobs", rosterBody)

			Convey("Then it is accepted and points at the job", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Header().Get("Location"), ShouldEqual, "/jobs/job-1")
				body := decode(w)
				So(body["duplicate"], ShouldEqual, false)
				So(body["job"].(map[string]any)["status"], ShouldEqual, "queued")
				So(deps.submitted, ShouldHaveLength, 1)
				So(deps.submitted[0].SubmissionID, ShouldEqual, "upload-1")
				So(deps.submitted[0].CurrentSemester, ShouldEqual, "Spring 2019")
				So(deps.submitted[0].Records[1].FirstName, ShouldEqual, "Allison")
			})
		})

		Convey("When the same upload is posted again", func() {
			deps.duplicate = true
			w := do(mux, http.MethodPost, "/jobs", rosterBody)

			Convey("Then it answers 200 with duplicate set", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["duplicate"], ShouldEqual, true)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/jobs", "{")

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When the body has no records", func() {
			w := do(mux, http.MethodPost, "/jobs", `{"records": []}`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["message"], ShouldContainSubstring, "missing records")
		})

		Convey("When the service rejects the records", func() {
			deps.submitErr = fmt.Errorf("%w: record 0: %w", model.ErrInvalidSubmission, model.ErrInvalidSemester)
			w := do(mux, http.MethodPost, "/jobs", rosterBody)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("enqueue job: %w", queue.ErrQueueFull)
			w := do(mux, http.MethodPost, "/jobs", rosterBody)

			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode(w)["code"], ShouldEqual, "backpressure")
		})

		Convey("When the queue is closed", func() {
			deps.submitErr = fmt.Errorf("enqueue job: %w", queue.ErrQueueClosed)
			w := do(mux, http.MethodPost, "/jobs", rosterBody)

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the service fails unexpectedly", func() {
			deps.submitErr = errors.New("disk on fire")
			w := do(mux, http.MethodPost, "/jobs", rosterBody)

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["message"], ShouldContainSubstring, "disk on fire")
		})
	})
}

func TestReadJobs(t *testing.T) {
	Convey("Given an API server with one job", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)
		do(mux, http.MethodPost, "/jobs", rosterBody)

		Convey("When the job is fetched", func() {
			w := do(mux, http.MethodGet, "/jobs/job-1", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["id"], ShouldEqual, "job-1")
		})

		Convey("When an unknown job is fetched", func() {
			w := do(mux, http.MethodGet, "/jobs/missing", "")

			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})

		Convey("When jobs are listed with a limit", func() {
			w := do(mux, http.MethodGet, "/jobs?limit=5", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.listLimit, ShouldEqual, 5)
			So(decode(w)["jobs"], ShouldHaveLength, 1)
		})

		Convey("When jobs are listed without a limit", func() {
			do(mux, http.MethodGet, "/jobs", "")

			So(deps.listLimit, ShouldEqual, 50)
		})

		Convey("When the limit is out of range", func() {
			So(do(mux, http.MethodGet, "/jobs?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/jobs?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/jobs?limit=501", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a route is called with the wrong method", func() {
			w := do(mux, http.MethodDelete, "/jobs/job-1", "")

			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestResolveAndStats(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When a roster is resolved inline", func() {
			w := do(mux, http.MethodPost, "/resolve", rosterBody)

			Convey("Then the finished job is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["status"], ShouldEqual, "completed")
				So(body["records"], ShouldHaveLength, 2)
				So(body["diagnostics"], ShouldHaveLength, 1)
			})
		})

		Convey("When inline resolution is cancelled", func() {
			deps.resolveErr = fmt.Errorf("resolution aborted: %w", context.Canceled)
			w := do(mux, http.MethodPost, "/resolve", rosterBody)

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When stats are requested", func() {
			w := do(mux, http.MethodGet, "/stats", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("When health is checked", func() {
			w := do(mux, http.MethodGet, "/healthz", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("When metrics are scraped after traffic", func() {
			do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "roster_resolver_http_requests_total")
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given API error helpers", t, func() {
		cause := errors.New("boom")

		Convey("WrapKind matches both the kind and the cause", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("NewKind carries only the kind", func() {
			err := api.NewKind("api.op", api.ErrNotFound)
			So(errors.Is(err, api.ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: not found")
		})

		Convey("Wrap keeps nil as nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(errors.Is(api.Wrap("api.op", cause), cause), ShouldBeTrue)
		})
	})
}
