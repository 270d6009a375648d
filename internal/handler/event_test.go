package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/service"
	"github.com/iliyamo/meeting-room-reservation/internal/timeslot"
)

func newContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func authed(c echo.Context) {
	c.Set("user_id", uint64(1))
	c.Set("branch_id", uint64(1))
	c.Set("role", "user")
}

// The error taxonomy of the reservation workflow maps onto fixed status
// codes: malformed input is 422, a well-formed request that loses on
// business rules is 400, authorization failures are 403 and unknown
// references are 404.
func TestBookingErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &service.ValidationError{Field: "memo", Message: "too long"}, http.StatusUnprocessableEntity},
		{"conversion", &timeslot.ConversionError{Field: "start_time", Value: "garbage", Err: errors.New("parse")}, http.StatusUnprocessableEntity},
		{"invalid range", timeslot.ErrInvalidRange, http.StatusUnprocessableEntity},
		{"misaligned", &timeslot.AlignmentError{Endpoint: "start_time", Local: time.Now()}, http.StatusBadRequest},
		{"slot conflict", service.ErrSlotConflict, http.StatusBadRequest},
		{"wrong branch", service.ErrWrongBranch, http.StatusForbidden},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"room missing", service.ErrRoomNotFound, http.StatusNotFound},
		{"event missing", service.ErrEventNotFound, http.StatusNotFound},
		{"branch missing", service.ErrBranchNotFound, http.StatusNotFound},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(t, http.MethodPost, "/v1/events", "")
			if err := bookingError(c, tc.err); err != nil {
				t.Fatalf("bookingError: %v", err)
			}
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			if !strings.Contains(rec.Body.String(), `"success":false`) {
				t.Errorf("body lacks failure envelope: %s", rec.Body.String())
			}
		})
	}
}

func TestCreateEventRequiresFields(t *testing.T) {
	h := &EventHandler{}
	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing times", `{"branch_id":1,"room_id":2}`},
		{"missing room", `{"branch_id":1,"start_time":"2025-03-10 10:00:00","end_time":"2025-03-10 11:00:00"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(t, http.MethodPost, "/v1/events", tc.body)
			authed(c)
			if err := h.Create(c); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rec.Code)
			}
		})
	}
}

func TestListEventsRequiresBranchID(t *testing.T) {
	h := &EventHandler{}
	for _, target := range []string{"/v1/events", "/v1/events?branch_id=abc", "/v1/events?branch_id=0"} {
		c, rec := newContext(t, http.MethodGet, target, "")
		if err := h.List(c); err != nil {
			t.Fatalf("List: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestCreateEventRejectsAnonymous(t *testing.T) {
	h := &EventHandler{}
	c, rec := newContext(t, http.MethodPost, "/v1/events", `{"branch_id":1}`)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestPathIDParsesNumeric(t *testing.T) {
	c, _ := newContext(t, http.MethodGet, "/v1/events/42", "")
	c.SetParamNames("id")
	c.SetParamValues("42")
	id, err := pathID(c, "id")
	if err != nil || id != 42 {
		t.Fatalf("pathID = %d, %v", id, err)
	}

	c, _ = newContext(t, http.MethodGet, "/v1/events/abc", "")
	c.SetParamNames("id")
	c.SetParamValues("abc")
	if _, err := pathID(c, "id"); err == nil {
		t.Fatal("pathID accepted non-numeric input")
	}
}
