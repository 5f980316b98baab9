package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/roster/internal/adapters/repository"
	service "github.com/okian/roster/internal/app"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func record(first, last, semester, standing string) model.ScoreRecord {
	return model.ScoreRecord{
		FirstName:     first,
		LastName:      last,
		Semester:      semester,
		ClassStanding: standing,
		Emphasis:      "Generalist",
		ScoreName:     "Oral",
		Score:         3,
	}
}

func roster() []model.ScoreRecord {
	return []model.ScoreRecord{
		record("Alison", "Means", "Spring 2019", "3 - Junior"),
		record("Alison", "Means", "Spring 2019", "3 - Junior"),
		record("Allison", "Means", "Spring 2019", "4 - Senior"),
		record("Means", "Alison", "Fall 2019", "4 - Senior"),
		record("Eric", "Wood", "Fall 2019", "2 - Sophomore"),
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("job-%d", n)
	}
}

func waitForJob(ctx context.Context, svc *service.Service, id string) model.Job {
	deadline := time.Now().Add(2 * time.Second)
	for {
		job, err := svc.Job(ctx, id)
		if err == nil && job.Status.Done() {
			return job
		}
		if time.Now().After(deadline) {
			panic("timed out waiting for job " + id)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(4),
			service.WithIDGenerator(sequentialIDs()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a roster is submitted", func() {
			job, duplicate, err := svc.Submit(ctx, model.Submission{SubmissionID: "upload-1", Records: roster()})
			So(err, ShouldBeNil)
			So(duplicate, ShouldBeFalse)
			So(job.ID, ShouldEqual, "job-1")
			So(job.Status, ShouldEqual, model.JobQueued)

			Convey("Then the worker pool resolves it", func() {
				done := waitForJob(ctx, svc, job.ID)
				So(done.Status, ShouldEqual, model.JobCompleted)
				So(done.Records, ShouldHaveLength, 5)
				for _, r := range done.Records[:4] {
					So(r.StudentIdentifier, ShouldEqual, "Alison Means")
				}
				So(done.Diagnostics, ShouldResemble, []string{
					"Student Alison Means has multiple class standings for semester Spring 2019; picking 3 - Junior",
					"Student Alison Means has potential misspelled name Allison Means in semester Spring 2019; using Alison Means",
					"Student Alison Means has potential flipped first and last name Means Alison in semester Fall 2019",
				})
				So(done.Corrections, ShouldResemble, map[string]int{
					"class_standing": 1,
					"misspelling":    1,
					"flipped_name":   1,
				})
			})

			Convey("Then resubmitting the same upload returns the first job", func() {
				again, duplicate, err := svc.Submit(ctx, model.Submission{SubmissionID: "upload-1", Records: roster()})
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeTrue)
				So(again.ID, ShouldEqual, "job-1")
			})

			Convey("Then it is listed", func() {
				jobs, err := svc.Jobs(ctx, 10)
				So(err, ShouldBeNil)
				So(jobs, ShouldHaveLength, 1)
				So(jobs[0].Records, ShouldBeNil)
			})
		})

		Convey("When a submission is empty", func() {
			_, _, err := svc.Submit(ctx, model.Submission{})

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(err, model.ErrInvalidSubmission), ShouldBeTrue)
			})
		})

		Convey("When a record has a semester without a space", func() {
			records := roster()
			records[1].Semester = "Spring2019"
			_, _, err := svc.Submit(ctx, model.Submission{SubmissionID: "bad", Records: records})

			Convey("Then the semester error is reported", func() {
				So(errors.Is(err, model.ErrInvalidSubmission), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalidSemester), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "record 1")
			})

			Convey("Then the submission id is not consumed", func() {
				_, duplicate, err := svc.Submit(ctx, model.Submission{SubmissionID: "bad", Records: roster()})
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeFalse)
			})
		})

		Convey("When an unknown job is requested", func() {
			_, err := svc.Job(ctx, "nope")

			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When stats are requested", func() {
			stats := svc.GetStats(ctx)

			So(stats["started"], ShouldEqual, true)
			So(stats["worker_count"], ShouldEqual, 2)
			So(stats["queue_capacity"], ShouldEqual, 4)
			So(stats, ShouldContainKey, "queue_length")
			So(stats, ShouldContainKey, "stored_jobs")
		})
	})
}

func TestService_SubmissionIDAfterEviction(t *testing.T) {
	Convey("Given a service whose store keeps one job", t, func() {
		ctx := context.Background()
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithMaxJobs(1),
			service.WithIDGenerator(sequentialIDs()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		first, _, err := svc.Submit(ctx, model.Submission{SubmissionID: "A", Records: roster()})
		So(err, ShouldBeNil)
		waitForJob(ctx, svc, first.ID)
		second, _, err := svc.Submit(ctx, model.Submission{SubmissionID: "B", Records: roster()})
		So(err, ShouldBeNil)
		waitForJob(ctx, svc, second.ID)

		_, err = svc.Job(ctx, first.ID)
		So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

		Convey("When the evicted upload is submitted again", func() {
			again, duplicate, err := svc.Submit(ctx, model.Submission{SubmissionID: "A", Records: roster()})

			Convey("Then it is accepted as a new job", func() {
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeFalse)
				So(again.ID, ShouldEqual, "job-3")
			})

			Convey("Then a further resubmission returns the new job", func() {
				retry, duplicate, err := svc.Submit(ctx, model.Submission{SubmissionID: "A", Records: roster()})
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeTrue)
				So(retry.ID, ShouldEqual, again.ID)
			})
		})
	})
}

func TestService_ConcurrentDuplicateSubmissions(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(64))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When the same upload is submitted from many goroutines", func() {
			const callers = 16
			var (
				wg         sync.WaitGroup
				mu         sync.Mutex
				ids        = make(map[string]struct{})
				accepted   int
				submitErrs []error
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					job, duplicate, err := svc.Submit(ctx, model.Submission{SubmissionID: "shared", Records: roster()})
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						submitErrs = append(submitErrs, err)
						return
					}
					ids[job.ID] = struct{}{}
					if !duplicate {
						accepted++
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one job is created and every caller sees it", func() {
				So(submitErrs, ShouldBeEmpty)
				So(accepted, ShouldEqual, 1)
				So(ids, ShouldHaveLength, 1)
			})
		})
	})
}

func TestService_Limits(t *testing.T) {
	Convey("Given a service that accepts at most three records", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithMaxRecords(3))

		Convey("When it has not been started", func() {
			_, _, err := svc.Submit(ctx, model.Submission{Records: roster()[:1]})
			_, jobErr := svc.Job(ctx, "x")
			_, listErr := svc.Jobs(ctx, 1)

			Convey("Then job operations fail with ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(errors.Is(jobErr, service.ErrNotStarted), ShouldBeTrue)
				So(errors.Is(listErr, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})

		Convey("When too many records are resolved inline", func() {
			_, err := svc.ResolveNow(ctx, model.Submission{Records: roster()})

			Convey("Then the submission is rejected", func() {
				So(errors.Is(err, model.ErrInvalidSubmission), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "exceeds the limit of 3")
			})
		})
	})
}

func TestService_ResolveNow(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithIDGenerator(sequentialIDs()))

		Convey("When a roster is resolved inline for the current semester", func() {
			records := roster()
			records = append(records, record("Eric", "Snow", "Spring 2019", "1 - Freshman"))
			job, err := svc.ResolveNow(ctx, model.Submission{CurrentSemester: "Fall 2019", Records: records})

			Convey("Then only students active in that semester are returned", func() {
				So(err, ShouldBeNil)
				So(job.Status, ShouldEqual, model.JobCompleted)
				So(job.CurrentSemester, ShouldEqual, "Fall 2019")
				So(job.Records, ShouldHaveLength, 5)
				for _, r := range job.Records {
					So(r.StudentIdentifier, ShouldNotEqual, "Eric Snow")
				}
				So(job.Diagnostics, ShouldHaveLength, 3)
			})
		})

		Convey("When similarity is at its defaults", func() {
			job, err := svc.ResolveNow(ctx, model.Submission{Records: []model.ScoreRecord{
				record("Eric", "Wood", "Fall 2019", "2 - Sophomore"),
				record("Eric", "Wood", "Fall 2019", "2 - Sophomore"),
				record("Eric", "Hood", "Fall 2019", "2 - Sophomore"),
			}})

			Convey("Then the one-letter typo is merged", func() {
				So(err, ShouldBeNil)
				So(job.Records[2].StudentIdentifier, ShouldEqual, "Eric Wood")
				So(job.Corrections["misspelling"], ShouldEqual, 1)
			})
		})

		Convey("When similarity is strict", func() {
			strict := service.New(service.WithSimilarity(0, 0))
			job, err := strict.ResolveNow(ctx, model.Submission{Records: []model.ScoreRecord{
				record("Eric", "Wood", "Fall 2019", "2 - Sophomore"),
				record("Eric", "Wood", "Fall 2019", "2 - Sophomore"),
				record("Eric", "Hood", "Fall 2019", "2 - Sophomore"),
			}})

			Convey("Then a one-letter typo with another initial is left alone", func() {
				So(err, ShouldBeNil)
				So(job.Records[2].StudentIdentifier, ShouldEqual, "Eric Hood")
				So(job.Diagnostics, ShouldBeEmpty)
			})
		})
	})
}

func TestService_SQLiteStore(t *testing.T) {
	Convey("Given a service backed by SQLite", t, func() {
		ctx := context.Background()
		store, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "jobs.db"))
		So(err, ShouldBeNil)

		svc := service.New(service.WithStore(store), service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a roster is submitted", func() {
			job, _, err := svc.Submit(ctx, model.Submission{Records: roster()})
			So(err, ShouldBeNil)

			Convey("Then the completed job is read back from the database", func() {
				done := waitForJob(ctx, svc, job.ID)
				So(done.Status, ShouldEqual, model.JobCompleted)
				So(done.Diagnostics, ShouldHaveLength, 3)
				So(done.Records[2].FirstName, ShouldEqual, "Alison")
			})
		})
	})
}
