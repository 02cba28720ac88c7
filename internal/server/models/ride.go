package models

import "time"

type RideStatus string

const (
	RideRequested   RideStatus = "requested"
	RideAccepted    RideStatus = "accepted"
	RideDriverOnWay RideStatus = "driver_on_way"
	RideArrived     RideStatus = "arrived"
	RideInProgress  RideStatus = "in_progress"
	RideCompleted   RideStatus = "completed"
	RideCancelled   RideStatus = "cancelled"
)

// lifecycle orders the non-terminal path of a ride; cancelled sits outside it.
var lifecycle = map[RideStatus]int{
	RideRequested:   0,
	RideAccepted:    1,
	RideDriverOnWay: 2,
	RideArrived:     3,
	RideInProgress:  4,
	RideCompleted:   5,
}

func ParseRideStatus(s string) (RideStatus, bool) {
	st := RideStatus(s)
	if _, ok := lifecycle[st]; ok || st == RideCancelled {
		return st, true
	}
	return "", false
}

// Cancellable reports whether a rider may still cancel the ride: any time
// before the trip starts.
func (s RideStatus) Cancellable() bool {
	switch s {
	case RideRequested, RideAccepted, RideDriverOnWay, RideArrived:
		return true
	}
	return false
}

// CanAdvanceTo reports whether the assigned driver may move the ride from s
// to next. Steps may be skipped but never reversed, and a ride must have
// been accepted first.
func (s RideStatus) CanAdvanceTo(next RideStatus) bool {
	from, ok := lifecycle[s]
	if !ok || s == RideRequested || s == RideCompleted {
		return false
	}
	to, ok := lifecycle[next]
	if !ok || next == RideAccepted {
		return false
	}
	return to > from
}

// DriverSettable lists the statuses a driver may report via a status update.
func DriverSettable(s RideStatus) bool {
	switch s {
	case RideDriverOnWay, RideArrived, RideInProgress, RideCompleted:
		return true
	}
	return false
}

type RideType string

const (
	RideEconomy RideType = "economy"
	RideComfort RideType = "comfort"
	RidePremium RideType = "premium"
	RideSUV     RideType = "suv"
)

func ParseRideType(s string) (RideType, bool) {
	switch RideType(s) {
	case "":
		return RideEconomy, true
	case RideEconomy, RideComfort, RidePremium, RideSUV:
		return RideType(s), true
	}
	return "", false
}

// Location is stored as given by the client; no geocoding is done.
type Location struct {
	Address     string    `json:"address"`
	Coordinates []float64 `json:"coordinates,omitempty"`
}

type Fare struct {
	BaseFare     float64 `json:"base_fare"`
	DistanceFare float64 `json:"distance_fare"`
	Total        float64 `json:"total"`
}

type Ride struct {
	ID                 string
	RiderID            string
	DriverID           string
	Pickup             Location
	Destination        Location
	RideType           RideType
	Status             RideStatus
	Distance           float64
	EstimatedDuration  int
	Fare               Fare
	CancellationReason string
	// RiderRating is the score the rider gave the driver, DriverRating the
	// one the driver gave the rider.
	RiderRating  *RideRating
	DriverRating *RideRating
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RatingBy returns the rating left by the given side of the ride.
func (r *Ride) RatingBy(side Role) *RideRating {
	switch side {
	case RoleRider:
		return r.RiderRating
	case RoleDriver:
		return r.DriverRating
	}
	return nil
}

type RideRating struct {
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

// Stats backs the admin dashboard.
type Stats struct {
	TotalUsers   int64 `json:"total_users"`
	TotalDrivers int64 `json:"total_drivers"`
	TotalRides   int64 `json:"total_rides"`
}
