package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/addisride/dispatch/internal/adapter/http/handler/dto"
	"github.com/addisride/dispatch/internal/domain/models"
	"github.com/addisride/dispatch/internal/domain/types"
	"github.com/addisride/dispatch/internal/service/trip"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
	"github.com/addisride/dispatch/pkg/validator"
)

// CreateDriverTrip godoc
//
//	@Summary		Create a driver-initiated trip
//	@Description	Creates a trip that is immediately in progress for the calling driver. Never broadcast.
//	@Tags			trips
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.DriverTripRequest	true	"Trip details"
//	@Success		201		{object}	models.Trip
//	@Failure		400		{object}	map[string]string
//	@Failure		401		{object}	map[string]string
//	@Security		BearerAuth
//	@Router			/trips [post]
func (h *TripHandler) CreateDriverTrip(w http.ResponseWriter, r *http.Request) {
	user, _ := models.ContextGetUser(r.Context())

	var req dto.DriverTripRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	created, err := h.trips.CreateDriverTrip(r.Context(), user.ID, trip.DriverTripInput{
		PickupAddress:        req.Pickup.Address,
		Pickup:               models.GeoPoint{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng},
		DropoffAddress:       req.Dropoff.Address,
		Dropoff:              models.GeoPoint{Lat: req.Dropoff.Lat, Lng: req.Dropoff.Lng},
		PassengerPhone:       req.PassengerPhone,
		PassengerName:        req.PassengerName,
		EstimatedDistanceKm:  req.EstimatedDistanceKm,
		EstimatedDurationMin: req.EstimatedDurationMinutes,
		EstimatedFareCents:   toCents(req.EstimatedFare),
		Kind:                 types.TripKind(req.TripType),
		PaymentMethod:        req.PaymentMethod,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{"trip": created}, nil)
}

// CreateDispatcherTrip godoc
//
//	@Summary		File a dispatcher trip
//	@Description	Creates a requested trip and starts broadcasting it to nearby drivers.
//	@Tags			trips
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.DispatcherTripRequest	true	"Trip details"
//	@Success		201		{object}	models.Trip
//	@Failure		400		{object}	map[string]string
//	@Failure		401		{object}	map[string]string
//	@Security		BearerAuth
//	@Router			/trips/dispatcher [post]
func (h *TripHandler) CreateDispatcherTrip(w http.ResponseWriter, r *http.Request) {
	user, _ := models.ContextGetUser(r.Context())

	var req dto.DispatcherTripRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	created, err := h.trips.CreateDispatcherTrip(r.Context(), user, trip.DispatcherTripInput{
		PickupAddress:        req.Pickup.Address,
		Pickup:               models.GeoPoint{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng},
		DropoffAddress:       req.Dropoff.Address,
		Dropoff:              models.GeoPoint{Lat: req.Dropoff.Lat, Lng: req.Dropoff.Lng},
		PassengerPhone:       req.PassengerPhone,
		PassengerFirstName:   req.PassengerFirstName,
		PassengerLastName:    req.PassengerLastName,
		VehicleClassID:       req.VehicleClassID,
		EstimatedDistanceKm:  req.EstimatedDistanceKm,
		EstimatedDurationMin: req.EstimatedDurationMinutes,
		EstimatedFareCents:   toCents(req.EstimatedFare),
		Kind:                 types.TripKind(req.TripType),
		PaymentMethod:        req.PaymentMethod,
		Instructions:         req.Instructions,
		RecipientName:        req.RecipientName,
		PackageInfo:          req.PackageInfo,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{"trip": created}, nil)
}

// ActiveTrip godoc
//
//	@Summary	Get the driver's active trip
//	@Tags		trips
//	@Produce	json
//	@Success	200	{object}	models.Trip
//	@Security	BearerAuth
//	@Router		/trips/active [get]
func (h *TripHandler) ActiveTrip(w http.ResponseWriter, r *http.Request) {
	user, _ := models.ContextGetUser(r.Context())

	active, err := h.trips.Active(r.Context(), user.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"trip": active}, nil)
}

// TripHistory godoc
//
//	@Summary	Paginated driver trip history
//	@Tags		trips
//	@Produce	json
//	@Param		page		query		int		false	"Page number"
//	@Param		limit		query		int		false	"Page size"
//	@Param		status		query		string	false	"Trip status filter"
//	@Param		start_date	query		string	false	"Start date (YYYY-MM-DD)"
//	@Param		end_date	query		string	false	"End date (YYYY-MM-DD)"
//	@Success	200			{object}	map[string]any
//	@Security	BearerAuth
//	@Router		/trips/history [get]
func (h *TripHandler) TripHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := models.ContextGetUser(r.Context())

	v := validator.New()
	filter := models.TripFilter{
		Page:  readInt(r, "page", 1, v),
		Limit: readInt(r, "limit", 20, v),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		v.Check(validator.PermittedValue(status,
			string(types.TripRequested), string(types.TripAccepted), string(types.TripInProgress),
			string(types.TripCompleted), string(types.TripCanceled)),
			"status", "must be a valid trip status")
		filter.Status = types.TripStatus(status)
	}
	filter.StartDate = readDate(r, "start_date", v)
	filter.EndDate = readDate(r, "end_date", v)

	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	trips, total, err := h.trips.History(r.Context(), user.ID, filter)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"trips": trips,
		"pagination": envelope{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	}, nil)
}

// TripStatistics godoc
//
//	@Summary	Aggregate driver statistics
//	@Tags		trips
//	@Produce	json
//	@Param		start_date	query		string	false	"Start date (YYYY-MM-DD)"
//	@Param		end_date	query		string	false	"End date (YYYY-MM-DD)"
//	@Success	200			{object}	models.TripStatistics
//	@Security	BearerAuth
//	@Router		/trips/statistics [get]
func (h *TripHandler) TripStatistics(w http.ResponseWriter, r *http.Request) {
	user, _ := models.ContextGetUser(r.Context())

	v := validator.New()
	start := readDate(r, "start_date", v)
	end := readDate(r, "end_date", v)
	if !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	stats, err := h.trips.Statistics(r.Context(), user.ID, start, end)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"statistics": stats}, nil)
}

// GetTrip godoc
//
//	@Summary	Trip detail with event timeline
//	@Tags		trips
//	@Produce	json
//	@Param		id	path		string	true	"Trip ID"
//	@Success	200	{object}	models.Trip
//	@Failure	400	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/trips/{id} [get]
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	user, _ := models.ContextGetUser(r.Context())

	tripID, ok := h.tripIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.trips.Get(r.Context(), tripID, user)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"trip":     found,
		"timeline": found.Timeline(),
	}, nil)
}

// StartTrip godoc
//
//	@Summary	Start an accepted trip
//	@Tags		trips
//	@Produce	json
//	@Param		id	path		string	true	"Trip ID"
//	@Success	200	{object}	models.Trip
//	@Failure	400	{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/trips/{id}/start [put]
func (h *TripHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	user, _ := models.ContextGetUser(r.Context())

	tripID, ok := h.tripIDParam(w, r)
	if !ok {
		return
	}

	started, err := h.trips.Start(r.Context(), tripID, user.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"trip": started}, nil)
}

// CancelTrip godoc
//
//	@Summary	Cancel a pre-terminal trip
//	@Tags		trips
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Trip ID"
//	@Param		request	body		dto.CancelTripRequest	true	"Cancellation reason"
//	@Success	200		{object}	models.Trip
//	@Failure	400		{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/trips/{id}/cancel [put]
func (h *TripHandler) CancelTrip(w http.ResponseWriter, r *http.Request) {
	user, _ := models.ContextGetUser(r.Context())

	tripID, ok := h.tripIDParam(w, r)
	if !ok {
		return
	}

	var req dto.CancelTripRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	canceled, err := h.trips.Cancel(r.Context(), tripID, user, req.Reason)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"trip": canceled}, nil)
}

// CompleteTrip godoc
//
//	@Summary	Complete an in-progress trip
//	@Tags		trips
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"Trip ID"
//	@Param		request	body		dto.CompleteTripRequest	true	"Actual distance, duration and fare"
//	@Success	200		{object}	models.Trip
//	@Failure	400		{object}	map[string]string
//	@Security	BearerAuth
//	@Router		/trips/{id}/complete [put]
func (h *TripHandler) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	user, _ := models.ContextGetUser(r.Context())

	tripID, ok := h.tripIDParam(w, r)
	if !ok {
		return
	}

	var req dto.CompleteTripRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	if req.Validate(v); !v.Valid() {
		failedValidationResponse(w, v.Errors)
		return
	}

	completed, err := h.trips.Complete(r.Context(), tripID, user.ID, trip.CompleteInput{
		ActualDistanceKm:  req.ActualDistanceKm,
		ActualDurationMin: req.ActualDurationMinutes,
		FinalFare:         req.FinalFare,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"trip": completed}, nil)
}

// tripIDParam validates the id path parameter against the UUID shape.
// A non-matching id is a 400, not a 404.
func (h *TripHandler) tripIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.PathValue("id")
	if !validator.Matches(raw, validator.UUIDRX) {
		badRequestResponse(w, "id must be a valid UUID")
		return uuid.Nil, false
	}

	tripID, err := uuid.Parse(raw)
	if err != nil {
		badRequestResponse(w, "id must be a valid UUID")
		return uuid.Nil, false
	}

	return tripID, true
}

func (h *TripHandler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	code := GetCode(err)
	if code == http.StatusInternalServerError {
		h.log.Error(wrap.ErrorCtx(r.Context(), err), "request failed", err)
		internalErrorResponse(w, "the server encountered a problem")
		return
	}
	errorResponse(w, code, err.Error())
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func readInt(r *http.Request, key string, fallback int, v *validator.Validator) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		v.AddError(key, "must be a positive integer")
		return fallback
	}
	return n
}

func readDate(r *http.Request, key string, v *validator.Validator) *time.Time {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}

	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}

	v.AddError(key, "must be a date in YYYY-MM-DD or RFC3339 format")
	return nil
}
