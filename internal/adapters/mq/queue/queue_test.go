package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/roster/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("It starts empty and open", func() {
			So(q.Len(ctx), ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("When a job is enqueued and dequeued", func() {
			So(q.Enqueue(ctx, model.Job{ID: "job-1"}), ShouldBeNil)
			So(q.Len(ctx), ShouldEqual, 1)
			job := <-q.Dequeue(ctx)

			Convey("Then the same job comes out", func() {
				So(job.ID, ShouldEqual, "job-1")
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the queue is full", func() {
			So(q.Enqueue(ctx, model.Job{ID: "a"}), ShouldBeNil)
			So(q.Enqueue(ctx, model.Job{ID: "b"}), ShouldBeNil)
			err := q.Enqueue(ctx, model.Job{ID: "c"})

			Convey("Then enqueue fails with ErrQueueFull", func() {
				So(errors.Is(err, ErrQueueFull), ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			So(errors.Is(q.Enqueue(cctx, model.Job{ID: "a"}), context.Canceled), ShouldBeTrue)
		})

		Convey("When the queue is closed with a job pending", func() {
			So(q.Enqueue(ctx, model.Job{ID: "pending"}), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then new jobs are refused", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(errors.Is(q.Enqueue(ctx, model.Job{ID: "late"}), ErrQueueClosed), ShouldBeTrue)
			})

			Convey("Then the pending job drains before the channel closes", func() {
				var ids []string
				for job := range q.Dequeue(ctx) {
					ids = append(ids, job.ID)
				}
				So(ids, ShouldResemble, []string{"pending"})
			})
		})
	})
}
