// Package track normalizes raw forecast samples into per-storm, per-member
// trajectories. It is the first pipeline stage and the only one that sees
// unvalidated input.
package track

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/model"
)

// Result holds the grouped trajectories plus every row rejected on the way.
type Result struct {
	Trajectories []model.Trajectory
	Rejected     []MalformedSampleError
}

// Storms returns the distinct storm IDs in ascending order.
func (r *Result) Storms() []string {
	seen := map[string]bool{}
	var ids []string
	for _, t := range r.Trajectories {
		if !seen[t.StormID] {
			seen[t.StormID] = true
			ids = append(ids, t.StormID)
		}
	}
	sort.Strings(ids)
	return ids
}

// ByStorm returns the trajectories for one storm, ordered by member.
func (r *Result) ByStorm(stormID string) []model.Trajectory {
	var out []model.Trajectory
	for _, t := range r.Trajectories {
		if t.StormID == stormID {
			out = append(out, t)
		}
	}
	return out
}

// Build groups a flat sample collection into trajectories keyed by
// (storm, member), sorted by valid time. Rows with non-finite coordinates,
// a negative or non-finite wind radius, or a duplicate
// (storm, member, valid_time) key are rejected individually. A storm whose
// every row was rejected yields an EmptyTrajectoryError.
func Build(samples []model.TrackSample) (*Result, error) {
	type trajKey struct {
		storm, member string
	}

	grouped := make(map[trajKey][]model.TrackSample)
	seenTimes := make(map[trajKey]map[time.Time]bool)
	stormsSeen := make(map[string]bool)
	res := &Result{}

	for _, s := range samples {
		stormsSeen[s.StormID] = true

		if reason := validate(s); reason != "" {
			res.Rejected = append(res.Rejected, MalformedSampleError{
				StormID:   s.StormID,
				Member:    s.Member,
				ValidTime: s.ValidTime.UTC().Format(time.RFC3339),
				Reason:    reason,
			})
			continue
		}

		k := trajKey{s.StormID, s.Member}
		vt := s.ValidTime.UTC()
		if seenTimes[k] == nil {
			seenTimes[k] = make(map[time.Time]bool)
		}
		if seenTimes[k][vt] {
			res.Rejected = append(res.Rejected, MalformedSampleError{
				StormID:   s.StormID,
				Member:    s.Member,
				ValidTime: vt.Format(time.RFC3339),
				Reason:    "duplicate (storm, member, valid_time) key",
			})
			continue
		}
		seenTimes[k][vt] = true
		grouped[k] = append(grouped[k], s)
	}

	keys := make([]trajKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].storm != keys[j].storm {
			return keys[i].storm < keys[j].storm
		}
		return keys[i].member < keys[j].member
	})

	validStorms := make(map[string]bool)
	for _, k := range keys {
		ss := grouped[k]
		sort.Slice(ss, func(i, j int) bool { return ss[i].ValidTime.Before(ss[j].ValidTime) })
		res.Trajectories = append(res.Trajectories, model.Trajectory{
			StormID: k.storm,
			Member:  k.member,
			Samples: ss,
		})
		validStorms[k.storm] = true
	}

	// A storm that appeared in the input but lost every row is an error,
	// not an empty result.
	empties := make([]string, 0)
	for id := range stormsSeen {
		if !validStorms[id] {
			empties = append(empties, id)
		}
	}
	if len(empties) > 0 {
		sort.Strings(empties)
		return nil, &EmptyTrajectoryError{StormID: empties[0]}
	}

	if len(res.Rejected) > 0 {
		zap.L().Warn("rejected malformed track samples",
			zap.Int("rejected", len(res.Rejected)),
			zap.Int("accepted", len(samples)-len(res.Rejected)))
	}

	return res, nil
}

// validate returns a rejection reason, or "" for a clean sample.
func validate(s model.TrackSample) string {
	if !finite(s.Lat) || !finite(s.Lon) {
		return "non-finite coordinates"
	}
	for _, kt := range model.Thresholds {
		r := s.Radius(kt)
		if r == nil {
			continue
		}
		if !finite(*r) {
			return "non-finite wind radius"
		}
		if *r < 0 {
			return "negative wind radius"
		}
	}
	return ""
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
