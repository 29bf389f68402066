package scheduling

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/availability", h.GetAvailability)

	api.POST("/slots", h.CreateSlot)
	api.GET("/slots", h.ListSlots)
	api.GET("/slots/:id", h.GetSlot)
	api.PUT("/slots/:id", h.UpdateSlot)
	api.DELETE("/slots/:id", h.DeleteSlot)

	api.POST("/appointments", h.BookAppointment)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.POST("/appointments/:id/reprogram", h.ReprogramAppointment)
	api.POST("/appointments/:id/transition", h.TransitionAppointment)
}

// mapError translates domain errors into HTTP responses. Alignment errors
// include the nearest grid times, transition errors the allowed targets.
func mapError(err error) error {
	var alignErr *AlignmentError
	if errors.As(err, &alignErr) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{
			"message": alignErr.Error(),
			"nearest": alignErr.Nearest,
		})
	}
	var transErr *TransitionError
	if errors.As(err, &transErr) {
		return echo.NewHTTPError(http.StatusConflict, map[string]any{
			"message": transErr.Error(),
			"allowed": transErr.Allowed,
		})
	}
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrWindowNotFound),
		errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrNoMatchingSlot):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrSlotOverlap):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}

// Availability

func (h *Handler) GetAvailability(c echo.Context) error {
	practitionerID, err := uuid.Parse(c.QueryParam("practitioner_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid practitioner_id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	day, err := h.svc.ComputeAvailability(c.Request().Context(), practitionerID, date)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, day)
}

// Slots

type slotRequest struct {
	PractitionerID  string        `json:"practitioner_id" validate:"required,uuid"`
	BranchID        string        `json:"branch_id" validate:"required,uuid"`
	LocationID      *string       `json:"location_id" validate:"omitempty,uuid"`
	DayOfWeek       string        `json:"day_of_week" validate:"required"`
	DurationMinutes int           `json:"duration_minutes" validate:"omitempty,gt=0"`
	Unavailable     bool          `json:"unavailable"`
	Windows         []WindowInput `json:"windows" validate:"required,min=1,dive"`
}

func (r slotRequest) toInput() SlotInput {
	in := SlotInput{
		PractitionerID:  uuid.MustParse(r.PractitionerID),
		BranchID:        uuid.MustParse(r.BranchID),
		DayOfWeek:       Weekday(r.DayOfWeek),
		DurationMinutes: r.DurationMinutes,
		Unavailable:     r.Unavailable,
		Windows:         r.Windows,
	}
	if r.LocationID != nil {
		lid := uuid.MustParse(*r.LocationID)
		in.LocationID = &lid
	}
	return in
}

func (h *Handler) CreateSlot(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sl, err := h.svc.CreateSlot(c.Request().Context(), req.toInput())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, sl)
}

func (h *Handler) UpdateSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sl, err := h.svc.UpdateSlot(c.Request().Context(), id, req.toInput())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListSlots(c echo.Context) error {
	practitionerID, err := uuid.Parse(c.QueryParam("practitioner_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid practitioner_id")
	}
	pg := pagination.FromContext(c)
	slots, total, err := h.svc.ListSlots(c.Request().Context(), practitionerID, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(slots, total, pg.Limit, pg.Offset))
}

// Appointments

type bookRequest struct {
	PatientID       string  `json:"patient_id" validate:"required,uuid"`
	PractitionerID  string  `json:"practitioner_id" validate:"required,uuid"`
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	Hour            string  `json:"hour" validate:"required,datetime=15:04"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gt=0"`
	Observation     *string `json:"observation"`
	SlotID          *string `json:"slot_id" validate:"omitempty,uuid"`
	ScheduleID      *string `json:"schedule_id" validate:"omitempty,uuid"`
}

// selection builds the explicit slot selection, which needs both ids or
// neither.
func selection(slotID, scheduleID *string) (*SlotSelection, error) {
	if slotID == nil && scheduleID == nil {
		return nil, nil
	}
	if slotID == nil || scheduleID == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "slot_id and schedule_id must be provided together")
	}
	return &SlotSelection{
		SlotID:     uuid.MustParse(*slotID),
		ScheduleID: uuid.MustParse(*scheduleID),
	}, nil
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sel, err := selection(req.SlotID, req.ScheduleID)
	if err != nil {
		return err
	}
	appt, err := h.svc.Book(c.Request().Context(), BookingRequest{
		PatientID:       uuid.MustParse(req.PatientID),
		PractitionerID:  uuid.MustParse(req.PractitionerID),
		Date:            req.Date,
		Hour:            req.Hour,
		DurationMinutes: req.DurationMinutes,
		Observation:     req.Observation,
		Slot:            sel,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

type reprogramRequest struct {
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
	Hour       string  `json:"hour" validate:"required,datetime=15:04"`
	SlotID     *string `json:"slot_id" validate:"omitempty,uuid"`
	ScheduleID *string `json:"schedule_id" validate:"omitempty,uuid"`
}

func (h *Handler) ReprogramAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reprogramRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sel, err := selection(req.SlotID, req.ScheduleID)
	if err != nil {
		return err
	}
	appt, err := h.svc.Reprogram(c.Request().Context(), id, req.Date, req.Hour, sel)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) TransitionAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Transition(c.Request().Context(), id, AppointmentStatus(req.Status))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)

	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		appts, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
	}

	practitionerID := c.QueryParam("practitioner_id")
	date := c.QueryParam("date")
	if practitionerID == "" || date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id or practitioner_id with date is required")
	}
	prid, err := uuid.Parse(practitionerID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid practitioner_id")
	}
	appts, total, err := h.svc.ListByPractitionerDate(c.Request().Context(), prid, date, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg.Limit, pg.Offset))
}
