package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"calibration_console/internal/models"
	"calibration_console/internal/service"
)

func doAuthed(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestActionHandlers_Success(t *testing.T) {
	cases := []struct {
		name       string
		path       string
		body       string
		wantAction string
		wantForm   any
	}{
		{
			name:       "system calibration",
			path:       "/api/v1/actions/system-calibration",
			body:       `{"boardtype":"TB2.1_3"}`,
			wantAction: service.ActionSystemCalibration,
			wantForm:   service.SystemCalibrationForm{BoardType: "TB2.1_3"},
		},
		{
			name:       "standard calibration",
			path:       "/api/v1/actions/standard-calibration",
			body:       `{"boardid":"320","boardtype":"TB2","reference":"ref-1"}`,
			wantAction: service.ActionStandardCalibration,
			wantForm:   service.StandardCalibrationForm{BoardID: "320", BoardType: "TB2", Reference: "ref-1"},
		},
		{
			name:       "raw command",
			path:       "/api/v1/actions/raw",
			body:       `{"input":"gantry home"}`,
			wantAction: service.ActionRawCommand,
			wantForm:   service.RawCommandForm{Input: "gantry home"},
		},
		{
			name:       "drs calibration without body",
			path:       "/api/v1/actions/drs-calib",
			wantAction: service.ActionDRSCalib,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := models.CommandEnvelope{ID: tc.wantAction, Data: map[string]any{"k": "v"}}
			actions := &mockActions{env: env}
			s := &service.Service{Authorization: &mockAuth{parseID: 8}, Actions: actions}
			r := newTestRouter(s)

			w := doAuthed(r, http.MethodPost, tc.path, tc.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
			var resp CommandResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Status != "sent" || resp.Command.ID != tc.wantAction {
				t.Fatalf("unexpected response: %+v", resp)
			}
			if actions.lastAction != tc.wantAction || actions.lastOperator != 8 {
				t.Fatalf("service got action=%q operator=%d", actions.lastAction, actions.lastOperator)
			}
			if tc.wantForm != nil && actions.lastForm != tc.wantForm {
				t.Fatalf("form = %+v, want %+v", actions.lastForm, tc.wantForm)
			}
		})
	}
}

func TestActionHandlers_ErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		wantCode  int
		wantField string
	}{
		{"validation", &service.ValidationError{Field: "boardid", Message: "Board ID not specified"}, http.StatusUnprocessableEntity, "boardid"},
		{"unknown action", fmt.Errorf("%w: laser-settings", models.ErrUnknownAction), http.StatusNotFound, ""},
		{"emit failure", errors.New("emit run-action-cmd: not connected"), http.StatusBadGateway, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &service.Service{Authorization: &mockAuth{parseID: 1}, Actions: &mockActions{err: tc.err}}
			r := newTestRouter(s)

			w := doAuthed(r, http.MethodPost, "/api/v1/actions/standard-calibration", `{}`)
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}
			var out ValidationErrorResponse
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.Field != tc.wantField || out.Error == "" {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestActionHandlers_BadBody(t *testing.T) {
	actions := &mockActions{}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Actions: actions}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodPost, "/api/v1/actions/rerun", `{"detid":"twelve"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if actions.lastAction != "" {
		t.Fatalf("service called for malformed body")
	}
}

func TestActionHandlers_SignOffAndSettingsParams(t *testing.T) {
	actions := &mockActions{env: models.CommandEnvelope{ID: "x"}}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Actions: actions}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodPost, "/api/v1/actions/signoff/standard",
		`{"comments":[{"detid":"1","comment":"ok"}],"user":"shifter","pwd":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("signoff status=%d", w.Code)
	}
	form := actions.lastForm.(service.SignoffForm)
	if actions.lastSession != "standard" || form.Password != "pw" || len(form.Comments) != 1 {
		t.Fatalf("signoff forwarded session=%q form=%+v", actions.lastSession, form)
	}

	body := `{"drs-samples":"1024"}`
	w = doAuthed(r, http.MethodPost, "/api/v1/actions/settings/drs", body)
	if w.Code != http.StatusOK {
		t.Fatalf("settings status=%d", w.Code)
	}
	if actions.lastKind != "drs" || string(actions.lastBody) != body {
		t.Fatalf("settings forwarded kind=%q body=%s", actions.lastKind, actions.lastBody)
	}
}

func TestActionHandlers_CompleteUserAction(t *testing.T) {
	actions := &mockActions{}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, Actions: actions}
	r := newTestRouter(s)

	w := doAuthed(r, http.MethodPost, "/api/v1/actions/complete-user-action", "")
	if w.Code != http.StatusOK || actions.lastAction != models.EventCompleteUserAction {
		t.Fatalf("status=%d action=%q", w.Code, actions.lastAction)
	}

	actions.err = errors.New("not connected")
	w = doAuthed(r, http.MethodPost, "/api/v1/actions/complete-user-action", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestActionHandlers_RequireAuth(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{}, Actions: &mockActions{}}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/raw", bytes.NewBufferString(`{"input":"x"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"ok"`)) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
}
