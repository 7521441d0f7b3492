package intervention

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carecal/carecal/internal/domain/person"
)

func newTestHandler() (*Handler, *echo.Echo, *mockDirectory) {
	svc, _, dir, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e, dir
}

func TestHandler_Create(t *testing.T) {
	h, e, dir := newTestHandler()

	patientID := dir.add(&person.Person{FullName: "Jan Kowalski"})
	practitionerID := dir.add(&person.Person{FullName: "Dr Anna Nowak"})
	scheduledAt := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	body := `{"patient_id":"` + patientID.String() + `","practitioner_id":"` + practitionerID.String() +
		`","title":"Routine checkup","scheduled_at":"` + scheduledAt + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/interventions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var iv Intervention
	json.Unmarshal(rec.Body.Bytes(), &iv)
	if iv.Status != StatusPlanned {
		t.Errorf("expected %s, got %s", StatusPlanned, iv.Status)
	}
}

func TestHandler_Create_UnknownPatient(t *testing.T) {
	h, e, dir := newTestHandler()

	practitionerID := dir.add(&person.Person{FullName: "Dr Anna Nowak"})
	scheduledAt := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	body := `{"patient_id":"` + uuid.New().String() + `","practitioner_id":"` + practitionerID.String() +
		`","title":"Routine checkup","scheduled_at":"` + scheduledAt + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/interventions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	if err == nil {
		t.Fatal("expected error for unknown patient")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestHandler_Get(t *testing.T) {
	h, e, dir := newTestHandler()

	iv := testIntervention(dir, time.Now().Add(24*time.Hour))
	if err := h.svc.Create(nil, iv, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(iv.ID.String())

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, e, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.Get(c); err == nil {
		t.Error("expected error for not found")
	}
}

func TestHandler_Reschedule(t *testing.T) {
	h, e, dir := newTestHandler()

	iv := testIntervention(dir, time.Now().Add(24*time.Hour))
	if err := h.svc.Create(nil, iv, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	newTime := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)
	body := `{"scheduled_at":"` + newTime + `"}`
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(iv.ID.String())

	if err := h.Reschedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ChangeStatus(t *testing.T) {
	h, e, dir := newTestHandler()

	iv := testIntervention(dir, time.Now().Add(24*time.Hour))
	if err := h.svc.Create(nil, iv, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	body := `{"status":"CANCELED"}`
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(iv.ID.String())

	if err := h.ChangeStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var updated Intervention
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Status != StatusCanceled {
		t.Errorf("expected %s, got %s", StatusCanceled, updated.Status)
	}
}

func TestHandler_List(t *testing.T) {
	h, e, dir := newTestHandler()

	iv := testIntervention(dir, time.Now().Add(24*time.Hour))
	if err := h.svc.Create(nil, iv, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/interventions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e, _ := newTestHandler()
	api := e.Group("/api/v1")

	h.RegisterRoutes(api)

	routes := e.Routes()
	routePaths := make(map[string]bool)
	for _, r := range routes {
		routePaths[r.Method+":"+r.Path] = true
	}

	expected := []string{
		"POST:/api/v1/interventions",
		"GET:/api/v1/interventions",
		"GET:/api/v1/interventions/:id",
		"PATCH:/api/v1/interventions/:id/schedule",
		"PATCH:/api/v1/interventions/:id/status",
	}
	for _, path := range expected {
		if !routePaths[path] {
			t.Errorf("missing expected route: %s", path)
		}
	}
}
