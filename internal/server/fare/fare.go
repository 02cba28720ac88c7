// Package fare quotes prices for ride requests. There is no routing behind
// it: FlatRate returns the same mock trip for every request.
package fare

import (
	"math"

	"github.com/dmitrijs2005/ridehail/internal/server/models"
)

// Request is what a calculator may look at when pricing a ride.
type Request struct {
	Pickup      models.Location
	Destination models.Location
	RideType    models.RideType
}

// Quote is a priced trip estimate. Distance is in kilometres, Duration in
// minutes.
type Quote struct {
	Distance     float64
	Duration     int
	BaseFare     float64
	DistanceFare float64
	Total        float64
}

// Fare converts the money part of the quote into the persisted record.
func (q Quote) Fare() models.Fare {
	return models.Fare{BaseFare: q.BaseFare, DistanceFare: q.DistanceFare, Total: q.Total}
}

type Calculator interface {
	Quote(req Request) Quote
}

// FlatRate prices every ride as the same fixed-length trip.
type FlatRate struct {
	Distance     float64
	Duration     int
	BaseFare     float64
	PerKilometre float64
}

// Default is 5 km, 15 min, 2.50 base plus 1.20/km, total 8.50.
func Default() FlatRate {
	return FlatRate{Distance: 5.0, Duration: 15, BaseFare: 2.50, PerKilometre: 1.20}
}

func (f FlatRate) Quote(Request) Quote {
	distanceFare := round2(f.Distance * f.PerKilometre)
	return Quote{
		Distance:     f.Distance,
		Duration:     f.Duration,
		BaseFare:     f.BaseFare,
		DistanceFare: distanceFare,
		Total:        round2(f.BaseFare + distanceFare),
	}
}

// round2 rounds to cents so 5*1.20 does not leak float noise into totals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
