package track

import "fmt"

// MalformedSampleError marks a single rejected input row. The row is dropped
// and reported; the rest of the storm continues through the pipeline.
type MalformedSampleError struct {
	StormID   string
	Member    string
	ValidTime string
	Reason    string
}

func (e *MalformedSampleError) Error() string {
	return fmt.Sprintf("malformed sample %s/%s@%s: %s", e.StormID, e.Member, e.ValidTime, e.Reason)
}

// EmptyTrajectoryError reports a storm that appeared in the input but ended
// with zero valid samples. It always propagates: an all-bad storm must never
// silently vanish from the exposure totals.
type EmptyTrajectoryError struct {
	StormID string
}

func (e *EmptyTrajectoryError) Error() string {
	return fmt.Sprintf("storm %s has no valid samples", e.StormID)
}
