package httpapi

import (
	"time"

	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"github.com/dmitrijs2005/ridehail/internal/server/services"
)

type registerRequest struct {
	FirstName   string              `json:"first_name"`
	LastName    string              `json:"last_name"`
	Email       string              `json:"email"`
	Phone       string              `json:"phone"`
	Password    string              `json:"password"`
	Role        string              `json:"role"`
	UserType    string              `json:"user_type"`
	VehicleInfo *models.VehicleInfo `json:"vehicle_info,omitempty"`
}

func (r registerRequest) input() services.RegisterInput {
	role := r.Role
	if role == "" {
		role = r.UserType
	}
	return services.RegisterInput{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		Password:    r.Password,
		Role:        role,
		VehicleInfo: r.VehicleInfo,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string              `json:"id"`
	FirstName   string              `json:"first_name"`
	LastName    string              `json:"last_name"`
	Email       string              `json:"email"`
	Phone       string              `json:"phone"`
	Role        models.Role         `json:"role"`
	IsVerified  bool                `json:"is_verified"`
	IsActive    bool                `json:"is_active"`
	Rating      models.Rating       `json:"rating"`
	VehicleInfo *models.VehicleInfo `json:"vehicle_info,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toUser(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		IsVerified:  u.IsVerified,
		IsActive:    u.IsActive,
		Rating:      u.Rating,
		VehicleInfo: u.VehicleInfo,
		CreatedAt:   u.CreatedAt,
	}
}

func toUsers(us []*models.User) []userResponse {
	out := make([]userResponse, 0, len(us))
	for _, u := range us {
		out = append(out, toUser(u))
	}
	return out
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

func toToken(res *services.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken: res.Token,
		TokenType:   "bearer",
		ExpiresAt:   res.ExpiresAt,
		User:        toUser(res.User),
	}
}

type rideRequest struct {
	Pickup      models.Location `json:"pickup_location"`
	Destination models.Location `json:"destination"`
	RideType    string          `json:"ride_type"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type rateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type toggleRequest struct {
	IsActive *bool `json:"is_active"`
}

type rideResponse struct {
	ID                 string             `json:"id"`
	RiderID            string             `json:"rider_id"`
	DriverID           *string            `json:"driver_id"`
	Pickup             models.Location    `json:"pickup_location"`
	Destination        models.Location    `json:"destination"`
	RideType           models.RideType    `json:"ride_type"`
	Status             models.RideStatus  `json:"status"`
	Distance           float64            `json:"distance"`
	EstimatedDuration  int                `json:"estimated_duration"`
	Fare               models.Fare        `json:"fare"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	RiderRating        *models.RideRating `json:"rider_rating,omitempty"`
	DriverRating       *models.RideRating `json:"driver_rating,omitempty"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

func toRide(r *models.Ride) rideResponse {
	var driver *string
	if r.DriverID != "" {
		d := r.DriverID
		driver = &d
	}
	return rideResponse{
		ID:                 r.ID,
		RiderID:            r.RiderID,
		DriverID:           driver,
		Pickup:             r.Pickup,
		Destination:        r.Destination,
		RideType:           r.RideType,
		Status:             r.Status,
		Distance:           r.Distance,
		EstimatedDuration:  r.EstimatedDuration,
		Fare:               r.Fare,
		CancellationReason: r.CancellationReason,
		RiderRating:        r.RiderRating,
		DriverRating:       r.DriverRating,
		CompletedAt:        r.CompletedAt,
		CreatedAt:          r.CreatedAt,
	}
}

func toRides(rs []*models.Ride) []rideResponse {
	out := make([]rideResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRide(r))
	}
	return out
}
