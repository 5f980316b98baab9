package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/roster/internal/adapters/mq/queue"
	"github.com/okian/roster/internal/adapters/mq/worker"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/internal/domain/resolution"
	logging "github.com/okian/roster/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recordingUpdater struct {
	mu   sync.Mutex
	jobs map[string][]model.Job
	err  error
	done chan string
}

func newRecordingUpdater() *recordingUpdater {
	return &recordingUpdater{jobs: make(map[string][]model.Job), done: make(chan string, 10)}
}

func (u *recordingUpdater) Update(_ context.Context, job model.Job) error { //nolint:gocritic // test double
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.jobs[job.ID] = append(u.jobs[job.ID], job)
	if job.Status.Done() {
		u.done <- job.ID
	}
	return nil
}

func (u *recordingUpdater) history(id string) []model.Job {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]model.Job(nil), u.jobs[id]...)
}

type failingResolver struct{}

func (failingResolver) Run(context.Context, []model.ScoreRecord) (resolution.Report, error) {
	return resolution.Report{}, errors.New("boom")
}

func record(first, last, semester string) model.ScoreRecord {
	r, err := model.NewScoreRecord(first, last, semester, "3 - Junior", "Generalist", "Oral", 3)
	if err != nil {
		panic(err)
	}
	return r
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
		return ""
	}
}

func TestPool(t *testing.T) {
	convey.Convey("Given a running pool over a real engine", t, func() {
		_ = logging.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		updater := newRecordingUpdater()
		pool := worker.NewPool(2, q, resolution.New(), updater)
		pool.Start(ctx)
		convey.So(pool.Size(), convey.ShouldEqual, 2)

		convey.Convey("When a job with a misspelling is queued", func() {
			job := model.Job{
				ID:     "job-1",
				Status: model.JobQueued,
				Records: []model.ScoreRecord{
					record("Alison", "Means", "Spring 2019"),
					record("Alison", "Means", "Spring 2019"),
					record("Allison", "Means", "Spring 2019"),
				},
			}
			convey.So(q.Enqueue(ctx, job), convey.ShouldBeNil)
			convey.So(waitFor(t, updater.done), convey.ShouldEqual, "job-1")

			convey.Convey("Then it moves through running to completed", func() {
				history := updater.history("job-1")
				convey.So(history, convey.ShouldHaveLength, 2)
				convey.So(history[0].Status, convey.ShouldEqual, model.JobRunning)

				final := history[1]
				convey.So(final.Status, convey.ShouldEqual, model.JobCompleted)
				convey.So(final.StartedAt, convey.ShouldNotBeNil)
				convey.So(final.CompletedAt, convey.ShouldNotBeNil)
				convey.So(final.Records[2].StudentIdentifier, convey.ShouldEqual, "Alison Means")
				convey.So(final.Diagnostics, convey.ShouldHaveLength, 1)
				convey.So(final.Corrections["misspelling"], convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the pool shuts down", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then the queue is closed and workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerFailures(t *testing.T) {
	convey.Convey("Given a worker whose resolver fails", t, func() {
		_ = logging.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		updater := newRecordingUpdater()
		w := worker.NewInMemoryWorker(q, failingResolver{}, updater, worker.WithName("failing"))
		go w.Run(ctx)

		convey.So(q.Enqueue(ctx, model.Job{ID: "bad"}), convey.ShouldBeNil)
		convey.So(waitFor(t, updater.done), convey.ShouldEqual, "bad")

		convey.Convey("Then the job is stored as failed with the error text", func() {
			history := updater.history("bad")
			final := history[len(history)-1]
			convey.So(final.Status, convey.ShouldEqual, model.JobFailed)
			convey.So(final.Error, convey.ShouldEqual, "boom")
		})

		convey.Convey("Then Shutdown returns once the loop exits", func() {
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestResolve(t *testing.T) {
	convey.Convey("Given a job limited to the current semester", t, func() {
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		now := func() time.Time { return fixed }
		job := model.Job{
			ID:              "job-2",
			CurrentSemester: "Fall 2019",
			Records: []model.ScoreRecord{
				record("Alison", "Means", "Spring 2019"),
				record("Alison", "Means", "Fall 2019"),
				record("Eric", "Snow", "Spring 2019"),
			},
		}

		err := worker.Resolve(context.Background(), resolution.New(), &job, now)

		convey.Convey("Then only students present in that semester are kept", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(job.Status, convey.ShouldEqual, model.JobCompleted)
			convey.So(job.Records, convey.ShouldHaveLength, 2)
			for _, r := range job.Records {
				convey.So(r.StudentIdentifier, convey.ShouldEqual, "Alison Means")
			}
			convey.So(*job.CompletedAt, convey.ShouldEqual, fixed)
		})
	})

	convey.Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		job := model.Job{ID: "job-3", Records: []model.ScoreRecord{record("Eric", "Wood", "Fall 2019")}}

		err := worker.Resolve(ctx, resolution.New(), &job, time.Now)

		convey.Convey("Then the job fails with the context error", func() {
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			convey.So(job.Status, convey.ShouldEqual, model.JobFailed)
		})
	})
}
