package similarity_test

import (
	"sync"
	"testing"

	"github.com/okian/roster/internal/domain/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMatcher_Similar(t *testing.T) {
	Convey("Given a matcher with default thresholds", t, func() {
		m := similarity.New()

		Convey("When names share a phonetic code", func() {
			Convey("Then they are similar", func() {
				So(m.Similar("Robert", "Rupert"), ShouldBeTrue)
			})
		})

		Convey("When names differ by a dropped letter", func() {
			Convey("Then they are similar", func() {
				So(m.Similar("Alison", "Allison"), ShouldBeTrue)
				So(m.Similar("Albrecht", "Albrect"), ShouldBeTrue)
			})
		})

		Convey("When names differ only in case", func() {
			Convey("Then they are similar", func() {
				So(m.Similar("Albrecht", "ALbrecht"), ShouldBeTrue)
			})
		})

		Convey("When one name is a plural of the other", func() {
			Convey("Then they are similar", func() {
				So(m.Similar("Wood", "Woods"), ShouldBeTrue)
			})
		})

		Convey("When one name contains the other and starts the same", func() {
			Convey("Then they are similar even with a large length difference", func() {
				So(m.Similar("Chris", "Christopherson"), ShouldBeTrue)
			})
		})

		Convey("When names start with different letters and sound different", func() {
			Convey("Then they are not similar", func() {
				So(m.Similar("Wood", "Snow"), ShouldBeFalse)
				So(m.Similar("Means", "Albrecht"), ShouldBeFalse)
			})
		})

		Convey("When either name is blank", func() {
			Convey("Then they are not similar", func() {
				So(m.Similar("", "Wood"), ShouldBeFalse)
				So(m.Similar("Wood", "  "), ShouldBeFalse)
			})
		})
	})

	Convey("Given a matcher with strict thresholds", t, func() {
		m := similarity.New(
			similarity.WithMaxEditDistance(0),
			similarity.WithMaxLengthDelta(0),
		)

		Convey("When names only differ in length", func() {
			Convey("Then a shared first letter is no longer enough", func() {
				So(m.Similar("Anna", "Andrew"), ShouldBeFalse)
			})
		})

		Convey("When one name contains the other", func() {
			Convey("Then containment still matches", func() {
				So(m.Similar("Wood", "Woodson"), ShouldBeTrue)
			})
		})
	})
}

func TestEqualFold(t *testing.T) {
	Convey("Given two spellings that differ in case", t, func() {
		Convey("Then they are equal under folding", func() {
			So(similarity.EqualFold("ALbrecht", "albrecht"), ShouldBeTrue)
			So(similarity.EqualFold("Means", "Mean"), ShouldBeFalse)
		})
	})
}

func TestFold_Concurrent(t *testing.T) {
	Convey("Given many goroutines folding names at once", t, func() {
		names := []string{"ALbrecht", "Straße", "MEANS", "Ölberg"}
		want := make([]string, len(names))
		for i, n := range names {
			want[i] = similarity.Fold(n)
		}

		var wg sync.WaitGroup
		got := make([][]string, 8)
		for g := range got {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out := make([]string, 0, len(names)*50)
				for i := 0; i < 50; i++ {
					for _, n := range names {
						out = append(out, similarity.Fold(n))
					}
				}
				got[g] = out
			}()
		}
		wg.Wait()

		Convey("Then every result matches the sequential fold", func() {
			So(want[0], ShouldEqual, "albrecht")
			So(want[1], ShouldEqual, "strasse")
			for _, out := range got {
				for i, v := range out {
					So(v, ShouldEqual, want[i%len(names)])
				}
			}
		})
	})
}
