package models

import "time"

// Period selects the reporting window of earnings and analytics.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod maps an empty value to def.
func ParsePeriod(s string, def Period) (Period, bool) {
	switch Period(s) {
	case "":
		return def, true
	case PeriodWeek, PeriodMonth, PeriodYear:
		return Period(s), true
	}
	return "", false
}

// Window returns the start of the period ending at now and the date_trunc
// unit its buckets are grouped by.
func (p Period) Window(now time.Time) (since time.Time, unit string) {
	switch p {
	case PeriodYear:
		return now.AddDate(-1, 0, 0), "month"
	case PeriodMonth:
		return now.AddDate(0, -1, 0), "day"
	default:
		return now.AddDate(0, 0, -7), "day"
	}
}

// Totals sums completed rides and their fares.
type Totals struct {
	Rides  int64   `json:"rides"`
	Amount float64 `json:"amount"`
}

type EarningsBucket struct {
	Start    time.Time `json:"start"`
	Rides    int64     `json:"rides"`
	Earnings float64   `json:"earnings"`
}

type DriverDashboard struct {
	Today   Totals `json:"today"`
	Week    Totals `json:"week"`
	AllTime Totals `json:"all_time"`
	Rating  Rating `json:"rating"`
}

type RideActivity struct {
	Start     time.Time `json:"start"`
	Total     int64     `json:"total_rides"`
	Completed int64     `json:"completed_rides"`
	Revenue   float64   `json:"revenue"`
}

type Registrations struct {
	Start time.Time `json:"start"`
	Role  Role      `json:"role"`
	Count int64     `json:"count"`
}

type Analytics struct {
	Period        Period          `json:"period"`
	Since         time.Time       `json:"since"`
	Rides         []RideActivity  `json:"rides"`
	Registrations []Registrations `json:"registrations"`
}
