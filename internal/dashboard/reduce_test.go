package dashboard

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/alanyoungcy/tontine/internal/domain"
)

type resultShape struct {
	Amount      int
	Active      bool
	Members     int
	MembersFail bool
	Pending     int
	RoundsFail  bool
}

func genResultShape() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 100_000),
		gen.Bool(),
		gen.IntRange(0, 12),
		gen.Weighted([]gen.WeightedGen{{Weight: 4, Gen: gen.Const(false)}, {Weight: 1, Gen: gen.Const(true)}}),
		gen.IntRange(0, 6),
		gen.Weighted([]gen.WeightedGen{{Weight: 4, Gen: gen.Const(false)}, {Weight: 1, Gen: gen.Const(true)}}),
	).Map(func(v []any) resultShape {
		return resultShape{
			Amount:      v[0].(int),
			Active:      v[1].(bool),
			Members:     v[2].(int),
			MembersFail: v[3].(bool),
			Pending:     v[4].(int),
			RoundsFail:  v[5].(bool),
		}
	})
}

func buildResults(shapes []resultShape) []GroupResult {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]GroupResult, len(shapes))
	for i, s := range shapes {
		id := fmt.Sprintf("g%03d", i)
		status := domain.GroupPending
		if s.Active {
			status = domain.GroupActive
		}
		r := GroupResult{Group: domain.Group{ID: id, Status: status, AmountPerMember: float64(s.Amount)}}
		if s.MembersFail {
			r.MembersErr = errors.New("members failed")
		} else {
			r.Members = make([]domain.Member, s.Members)
		}
		if s.RoundsFail {
			r.RoundsErr = errors.New("rounds failed")
		} else {
			for n := 0; n < s.Pending; n++ {
				r.Rounds = append(r.Rounds, domain.Round{
					ID:     fmt.Sprintf("%s-r%d", id, n),
					Number: n + 1,
					Status: domain.RoundPending,
					Date:   base.AddDate(0, 0, (i*7+n*3)%20),
				})
			}
		}
		out[i] = r
	}
	return out
}

func TestReduceIsOrderIndependent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("reduce ignores completion order", prop.ForAll(
		func(shapes []resultShape, seed int64) bool {
			results := buildResults(shapes)
			shuffled := append([]GroupResult(nil), results...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			s1, e1 := Reduce(results)
			s2, e2 := Reduce(shuffled)
			return s1 == s2 && reflect.DeepEqual(e1, e2)
		},
		gen.SliceOf(genResultShape()),
		gen.Int64(),
	))

	properties.Property("upcoming rounds ignore completion order", prop.ForAll(
		func(shapes []resultShape, seed int64) bool {
			results := buildResults(shapes)
			shuffled := append([]GroupResult(nil), results...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			return reflect.DeepEqual(UpcomingRounds(results, 3), UpcomingRounds(shuffled, 3))
		},
		gen.SliceOf(genResultShape()),
		gen.Int64(),
	))

	properties.Property("member total matches successful groups", prop.ForAll(
		func(shapes []resultShape) bool {
			want := 0
			for _, s := range shapes {
				if !s.MembersFail {
					want += s.Members
				}
			}
			stats, _ := Reduce(buildResults(shapes))
			return stats.TotalMemberCount == want
		},
		gen.SliceOf(genResultShape()),
	))

	properties.TestingRun(t)
}
