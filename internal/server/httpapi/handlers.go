package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/server/auth"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"github.com/dmitrijs2005/ridehail/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Ridehail API",
		"version": s.version,
	})
}

// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// POST /api/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	res, err := s.users.Register(r.Context(), in.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toToken(res))
}

// POST /api/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	res, err := s.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toToken(res))
}

// GET /api/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	user, err := s.users.Me(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(user))
}

// POST /api/rides/request
func (s *Server) handleRequestRide(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var in rideRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ride, err := s.rides.RequestRide(r.Context(), identity, services.RideInput{
		Pickup:      in.Pickup,
		Destination: in.Destination,
		RideType:    in.RideType,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRide(ride))
}

// GET /api/rides/history
func (s *Server) handleRideHistory(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	rides, err := s.rides.History(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": toRides(rides)})
}

// PUT /api/rides/{id}/cancel
func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var in cancelRequest
	if err := decodeJSON(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ride, err := s.rides.Cancel(r.Context(), identity, chi.URLParam(r, "id"), in.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Ride cancelled successfully",
		"ride":    toRide(ride),
	})
}

// GET /api/rides/available
func (s *Server) handleAvailableRides(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	rides, err := s.rides.Available(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": toRides(rides)})
}

// PUT /api/rides/{id}/accept
func (s *Server) handleAcceptRide(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	ride, err := s.rides.Accept(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Ride accepted successfully",
		"ride":    toRide(ride),
	})
}

// PUT /api/rides/{id}/status
func (s *Server) handleRideStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var in statusRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ride, err := s.rides.UpdateStatus(r.Context(), identity, chi.URLParam(r, "id"), in.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Ride status updated successfully",
		"ride":    toRide(ride),
	})
}

// PUT /api/rides/{id}/rate
func (s *Server) handleRateRide(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var in rateRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ride, err := s.rides.Rate(r.Context(), identity, chi.URLParam(r, "id"),
		services.RatingInput{Score: in.Rating, Comment: in.Comment})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Rating submitted successfully",
		"ride":    toRide(ride),
	})
}

// GET /api/drivers/dashboard
func (s *Server) handleDriverDashboard(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	dash, err := s.drivers.Dashboard(r.Context(), identity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": dash})
}

// GET /api/drivers/earnings?period=week|month|year
func (s *Server) handleDriverEarnings(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	buckets, err := s.drivers.Earnings(r.Context(), identity, r.URL.Query().Get("period"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"earnings": buckets})
}

// GET /api/admin/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func pageFromQuery(r *http.Request) services.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("limit"))
	return services.Page{Number: number, Size: size}
}

// allFilter treats "all" like an absent filter.
func allFilter(v string) string {
	if v == "all" {
		return ""
	}
	return v
}

// GET /api/admin/users?role=&page=&limit=
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		role = r.URL.Query().Get("user_type")
	}
	page := pageFromQuery(r)

	users, err := s.admin.ListUsers(r.Context(), allFilter(role), page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(users),
		"page":  max(page.Number, 1),
		"users": toUsers(users),
	})
}

// PUT /api/admin/users/{id}/toggle-status
//
// An optional {"is_active": bool} body sets the flag; without it the flag
// is inverted.
func (s *Server) handleToggleUser(w http.ResponseWriter, r *http.Request) {
	var in toggleRequest
	if err := decodeJSON(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var (
		id       = chi.URLParam(r, "id")
		identity *models.Identity
		err      error
	)
	if in.IsActive != nil {
		identity, err = s.admin.SetUserActive(r.Context(), id, *in.IsActive)
	} else {
		identity, err = s.admin.ToggleUserActive(r.Context(), id)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	msg := "User deactivated successfully"
	if identity.Active {
		msg = "User activated successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   msg,
		"id":        id,
		"is_active": identity.Active,
	})
}

// GET /api/admin/rides?status=&page=&limit=
func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)

	rides, err := s.admin.ListRides(r.Context(), allFilter(r.URL.Query().Get("status")), page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(rides),
		"page":  max(page.Number, 1),
		"rides": toRides(rides),
	})
}

// GET /api/admin/analytics?period=week|month|year
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.admin.Analytics(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}
