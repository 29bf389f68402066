package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc), f, echo.New()
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return httpErr.Code
}

func TestHandler_GetAvailability(t *testing.T) {
	h, f, e := newTestHandler()
	prid := uuid.New()
	f.addSlot(t, mondayMorning(prid, strPtr("11:00")))

	req := httptest.NewRequest(http.MethodGet, "/?practitioner_id="+prid.String()+"&date="+mondayDate, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var day AvailableDay
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(day.Available) != 4 {
		t.Errorf("expected 4 available times, got %d", len(day.Available))
	}
}

func TestHandler_GetAvailability_MissingDate(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/?practitioner_id="+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if code := httpStatus(t, h.GetAvailability(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_CreateSlot(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{
		"practitioner_id": "` + uuid.NewString() + `",
		"branch_id": "` + uuid.NewString() + `",
		"day_of_week": "monday",
		"windows": [{"opening_hour": "09:00", "close_hour": "12:00"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var sl RecurringSlot
	if err := json.Unmarshal(rec.Body.Bytes(), &sl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sl.DurationMinutes != DefaultDurationMinutes {
		t.Errorf("expected default duration, got %d", sl.DurationMinutes)
	}
}

func TestHandler_CreateSlot_BadHour(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{
		"practitioner_id": "` + uuid.NewString() + `",
		"branch_id": "` + uuid.NewString() + `",
		"day_of_week": "monday",
		"windows": [{"opening_hour": "9am", "close_hour": "12:00"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if code := httpStatus(t, h.CreateSlot(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_BookAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	prid := uuid.New()
	f.addSlot(t, mondayMorning(prid, nil))

	body := `{
		"patient_id": "` + uuid.NewString() + `",
		"practitioner_id": "` + prid.String() + `",
		"date": "` + mondayDate + `",
		"hour": "09:30"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var appt Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &appt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("expected pending, got %s", appt.Status)
	}
}

func TestHandler_BookAppointment_Conflict(t *testing.T) {
	h, f, e := newTestHandler()
	prid := uuid.New()
	sl := f.addSlot(t, mondayMorning(prid, nil))

	mkCtx := func(body string) echo.Context {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return e.NewContext(req, httptest.NewRecorder())
	}
	base := `"practitioner_id": "` + prid.String() + `",
		"date": "` + mondayDate + `",
		"hour": "09:30"`

	if err := h.BookAppointment(mkCtx(`{"patient_id": "` + uuid.NewString() + `", ` + base + `}`)); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// Auto-resolve no longer finds the taken hour on the grid.
	if code := httpStatus(t, h.BookAppointment(mkCtx(`{"patient_id": "`+uuid.NewString()+`", `+base+`}`))); code != http.StatusNotFound {
		t.Errorf("expected 404 for auto-resolve on a taken hour, got %d", code)
	}

	// An explicit selection of the taken position answers conflict.
	explicit := `{"patient_id": "` + uuid.NewString() + `", ` + base + `,
		"slot_id": "` + sl.ID.String() + `",
		"schedule_id": "` + sl.WindowIDs[0].String() + `"}`
	if code := httpStatus(t, h.BookAppointment(mkCtx(explicit))); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_BookAppointment_HalfSelection(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{
		"patient_id": "` + uuid.NewString() + `",
		"practitioner_id": "` + uuid.NewString() + `",
		"date": "` + mondayDate + `",
		"hour": "09:30",
		"slot_id": "` + uuid.NewString() + `"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if code := httpStatus(t, h.BookAppointment(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 when schedule_id missing, got %d", code)
	}
}

func TestHandler_BookAppointment_Misaligned(t *testing.T) {
	h, f, e := newTestHandler()
	prid := uuid.New()
	sl := f.addSlot(t, mondayMorning(prid, nil))

	body := `{
		"patient_id": "` + uuid.NewString() + `",
		"practitioner_id": "` + prid.String() + `",
		"date": "` + mondayDate + `",
		"hour": "09:10",
		"slot_id": "` + sl.ID.String() + `",
		"schedule_id": "` + sl.WindowIDs[0].String() + `"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.BookAppointment(c)
	if code := httpStatus(t, err); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	var httpErr *echo.HTTPError
	errors.As(err, &httpErr)
	payload, ok := httpErr.Message.(map[string]any)
	if !ok {
		t.Fatalf("expected structured payload, got %T", httpErr.Message)
	}
	if _, ok := payload["nearest"]; !ok {
		t.Error("misalignment payload should list nearest times")
	}
}

func TestHandler_TransitionAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	prid := uuid.New()
	f.addSlot(t, mondayMorning(prid, nil))
	appt, err := f.svc.Book(context.Background(), BookingRequest{
		PatientID:      uuid.New(),
		PractitionerID: prid,
		Date:           mondayDate,
		Hour:           "09:00",
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	body := `{"status": "approved"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	if err := h.TransitionAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	// A disallowed transition reports the allowed targets.
	body = `{"status": "under_review"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c = e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	err = h.TransitionAppointment(c)
	if code := httpStatus(t, err); code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	var httpErr *echo.HTTPError
	errors.As(err, &httpErr)
	payload, ok := httpErr.Message.(map[string]any)
	if !ok || payload["allowed"] == nil {
		t.Error("conflict payload should list allowed states")
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	if code := httpStatus(t, h.GetAppointment(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_ReprogramAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	prid := uuid.New()
	f.addSlot(t, mondayMorning(prid, nil))
	appt, err := f.svc.Book(context.Background(), BookingRequest{
		PatientID:      uuid.New(),
		PractitionerID: prid,
		Date:           mondayDate,
		Hour:           "09:00",
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	body := `{"date": "` + mondayDate + `", "hour": "10:00"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	if err := h.ReprogramAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var moved Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &moved); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if moved.Hour != "10:00" {
		t.Errorf("hour = %s, want 10:00", moved.Hour)
	}
}

func TestHandler_ListAppointments_RequiresFilter(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if code := httpStatus(t, h.ListAppointments(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}
