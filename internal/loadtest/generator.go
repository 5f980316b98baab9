package loadtest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
	"github.com/okian/roster/internal/domain/diagnostic"
	"github.com/okian/roster/internal/domain/model"
	"github.com/okian/roster/pkg/logger"
)

var (
	firstNames = []string{
		"Alison", "Benjamin", "Catherine", "Dominic", "Eleanor", "Frederick",
		"Gabriela", "Harrison", "Isabella", "Jonathan", "Katherine", "Leonardo",
		"Margaret", "Nathaniel", "Octavia", "Patrick", "Rosalind", "Sebastian",
		"Theodora", "Valentina", "Winston", "Yolanda", "Zachary",
	}
	// Initials differ from firstNames so distinct students never cluster.
	dashedFirstNames = []string{"Quinn-Ellis", "Uma-Rose", "Xavier-Luc"}
	lastNames        = []string{
		"Abernathy", "Blackwood", "Castellano", "Delacroix", "Everhart", "Fairbanks",
		"Galloway", "Hollister", "Ingersoll", "Jablonski", "Kingsley", "Lockhart",
		"Montgomery", "Northcott", "Oglethorpe", "Pemberton", "Quintero", "Rutherford",
		"Sinclair", "Thornbury", "Underwood", "Vanderbilt", "Whitaker", "Yarborough",
	}
	semesters = []string{
		"Fall 2018", "Spring 2019", "Fall 2019", "Spring 2020", "Fall 2020", "Spring 2021",
	}
	standings = []string{"1 - Freshman", "2 - Sophomore", "3 - Junior", "4 - Senior"}
	emphases  = []string{"Generalist", "Performance", "Education", "Composition"}
	scores    = []string{"Oral", "Written", "Sight Reading"}
)

// student is the ground truth identity of one generated student.
type student struct {
	first    string
	last     string
	standing string
	emphasis string
	start    int
}

// generator builds rosters from a deterministic random source.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed uint64) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *generator) pick(values []string) string {
	return values[g.rng.IntN(len(values))]
}

// students draws n distinct identities. Every seventh student gets a hyphenated
// first name so missing-dash errors can be injected.
func (g *generator) students(n int) []student {
	seen := make(map[string]struct{}, n)
	out := make([]student, 0, n)
	for len(out) < n {
		s := student{
			standing: g.pick(standings),
			emphasis: g.pick(emphases),
			start:    g.rng.IntN(len(semesters) - semestersPerStudent + 1),
		}
		for attempt := 0; ; attempt++ {
			s.first, s.last = g.pick(firstNames), g.pick(lastNames)
			if len(out)%7 == 0 {
				s.first = g.pick(dashedFirstNames)
			}
			if _, dup := seen[s.first+" "+s.last]; !dup {
				break
			}
			if attempt >= maxNameAttempts {
				// Suffixed names cluster with their stem, so this only
				// happens once the pools are exhausted.
				s.last += strconv.Itoa(len(out))
				break
			}
		}
		seen[s.first+" "+s.last] = struct{}{}
		out = append(out, s)
	}
	return out
}

// misspell doubles one interior letter, which stays within the default
// similarity thresholds.
func (g *generator) misspell(name string) string {
	if len(name) < 3 {
		return name + name[len(name)-1:]
	}
	i := 1 + g.rng.IntN(len(name)-2)
	return name[:i] + name[i:i+1] + name[i:]
}

func otherThan(values []string, v string, rng *rand.Rand) string {
	for {
		if c := values[rng.IntN(len(values))]; c != v {
			return c
		}
	}
}

// roster builds one submission. A student spans three consecutive semesters
// with one record per score name. Half of the students carry one error in the
// middle semester; identity errors rewrite all of that semester's records so
// the true spelling stays the majority.
func (g *generator) roster(n int) Roster {
	r := Roster{
		Submission: model.Submission{SubmissionID: uuid.NewString()},
		Injected:   make(map[string]int),
	}
	for idx, s := range g.students(n) {
		noisy := idx%noiseEvery == 1
		kind := diagnostic.Kind("")
		if noisy {
			kind = g.noiseKind(s)
			r.Injected[string(kind)]++
		}
		for offset := 0; offset < semestersPerStudent; offset++ {
			semester := semesters[s.start+offset]
			first, last := s.first, s.last
			if noisy && offset == 1 {
				switch kind {
				case diagnostic.KindFlippedName:
					first, last = last, first
				case diagnostic.KindMissingDash:
					first = replaceDash(first)
				case diagnostic.KindMisspelling:
					last = g.misspell(last)
				}
			}
			for i, scoreName := range scores {
				standing, emphasis := s.standing, s.emphasis
				if noisy && offset == 1 && i == 0 {
					switch kind {
					case diagnostic.KindClassStanding:
						standing = otherThan(standings, standing, g.rng)
					case diagnostic.KindEmphasis:
						emphasis = otherThan(emphases, emphasis, g.rng)
					}
				}
				r.Submission.Records = append(r.Submission.Records, model.ScoreRecord{
					FirstName:     first,
					LastName:      last,
					Semester:      semester,
					ClassStanding: standing,
					Emphasis:      emphasis,
					ScoreName:     scoreName,
					Score:         float64(1 + g.rng.IntN(8)),
				})
			}
		}
	}
	return r
}

func (g *generator) noiseKind(s student) diagnostic.Kind {
	kinds := []diagnostic.Kind{
		diagnostic.KindFlippedName,
		diagnostic.KindMisspelling,
		diagnostic.KindClassStanding,
		diagnostic.KindEmphasis,
	}
	if replaceDash(s.first) != s.first {
		return diagnostic.KindMissingDash
	}
	return kinds[g.rng.IntN(len(kinds))]
}

func replaceDash(name string) string {
	out := []byte(name)
	for i := range out {
		if out[i] == '-' {
			out[i] = ' '
		}
	}
	return string(out)
}

// generateRosters creates config.NumJobs rosters of config.Students students.
func generateRosters(ctx context.Context, config *Config, stats *Stats) ([]Roster, error) {
	logger.Get().Info(ctx, "generating rosters",
		logger.Int("rosters", config.NumJobs),
		logger.Int("students", config.Students))

	g := newGenerator(config.Seed)
	rosters := make([]Roster, 0, config.NumJobs)
	for i := 0; i < config.NumJobs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during roster generation: %w", err)
		}
		r := g.roster(config.Students)
		for k, n := range r.Injected {
			stats.Injected[k] += n
		}
		stats.RecordsGenerated += len(r.Submission.Records)
		rosters = append(rosters, r)
	}

	stats.RostersGenerated = len(rosters)
	logger.Get().Info(ctx, "generated rosters",
		logger.Int("count", len(rosters)),
		logger.Int("records", stats.RecordsGenerated))
	return rosters, nil
}
