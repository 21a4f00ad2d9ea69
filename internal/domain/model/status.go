package model

// JobStatus is a job-progress milestone reported over a booking room.
type JobStatus string

const (
	StatusAccepted   JobStatus = "accepted"
	StatusTraveling  JobStatus = "traveling"
	StatusArrived    JobStatus = "arrived"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusCancelled  JobStatus = "cancelled"
)

func (s JobStatus) Valid() bool {
	switch s {
	case StatusAccepted, StatusTraveling, StatusArrived,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}
