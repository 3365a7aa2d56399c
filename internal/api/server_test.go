// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/internal/monitor"
	"github.com/ecoplant/ecostat/pkg/params"
)

func doJSON(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	rec := doJSON(t, New(Options{}), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	s := New(Options{BearerToken: "secret"})
	body := `{"generation":"3","frame":"SGC04TC00120;"}`

	if rec := doJSON(t, s, http.MethodPost, "/v1/decode", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/v1/decode", body, "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/v1/decode", body, "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz requires auth: status = %d", rec.Code)
	}
}

func TestDecode(t *testing.T) {
	s := New(Options{Metrics: monitor.NewMetrics()})

	tests := []struct {
		name      string
		body      string
		wantMatch bool
		wantKey   string
		wantValue string
	}{
		{"syrus3", `{"generation":"syrus3","frame":"SGC04TC00120;"}`, true, "filtrado", "2 minutos"},
		{"syrus4", `{"generation":"4","frame":"{\"adc_fil_warning_thr\":2506}","mv_zero":2006}`, true, "valorAlertaFlujo", "5"},
		{"rejection", `{"generation":"3","frame":"RER SED06NA0"}`, true, "filtrado", "Parámetro inválido."},
		{"miss", `{"generation":"3","frame":"hello"}`, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/v1/decode", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			var resp struct {
				Matched bool `json:"matched"`
				Result  struct {
					Key   string `json:"key"`
					Value string `json:"value"`
				} `json:"result"`
			}
			decodeBody(t, rec, &resp)
			if resp.Matched != tt.wantMatch || resp.Result.Key != tt.wantKey || resp.Result.Value != tt.wantValue {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestDecode_Event(t *testing.T) {
	rec := doJSON(t, New(Options{}), http.MethodPost, "/v1/decode", `{"generation":"3","frame":">BL=2506<","mv_zero":2006}`)
	var resp struct {
		Matched bool `json:"matched"`
		Event   struct {
			GPM int `json:"gpm"`
		} `json:"event"`
	}
	decodeBody(t, rec, &resp)
	if resp.Matched || resp.Event.GPM != 5 {
		t.Errorf("response = %s", rec.Body)
	}
}

func TestDecode_BadRequest(t *testing.T) {
	s := New(Options{})
	for _, body := range []string{`{}`, `{"generation":"7","frame":"x"}`, `not json`} {
		if rec := doJSON(t, s, http.MethodPost, "/v1/decode", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d", body, rec.Code)
		}
	}
}

func TestBuildCommand(t *testing.T) {
	s := New(Options{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCmd    string
	}{
		{"syrus3", `{"generation":"3","operation":"filtration","magnitude":5,"unit":"minutos","template":"SGC04TC00120;"}`, http.StatusOK, "SGC04TC00300;"},
		{"syrus4 socket key", `{"generation":"4","operation":"retrolavado","magnitude":2,"unit":"minutos"}`, http.StatusOK, `SXAEC::apx-redis-cli publish user "{"invw_time":120}"`},
		{"out of range", `{"generation":"4","operation":"rinse","magnitude":2,"unit":"horas"}`, http.StatusUnprocessableEntity, ""},
		{"missing template", `{"generation":"3","operation":"rinse","magnitude":2,"unit":"minutos"}`, http.StatusConflict, ""},
		{"bad unit", `{"generation":"4","operation":"rinse","magnitude":2,"unit":"dias"}`, http.StatusBadRequest, ""},
		{"bad operation", `{"generation":"4","operation":"drain","magnitude":2}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/v1/commands", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantCmd == "" {
				return
			}
			var resp struct {
				Command string `json:"command"`
			}
			decodeBody(t, rec, &resp)
			if resp.Command != tt.wantCmd {
				t.Errorf("command = %q, want %q", resp.Command, tt.wantCmd)
			}
		})
	}
}

func TestSchedule(t *testing.T) {
	s := New(Options{})

	rec := doJSON(t, s, http.MethodPost, "/v1/schedule", `{"generation":"3","start":"7:00 a","end":"3:00 p"}`)
	var resp struct {
		Commands []string `json:"commands"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Commands) != 3 || resp.Commands[0] != "SGT001000000120000000000200000;" {
		t.Errorf("commands = %q", resp.Commands)
	}

	if rec := doJSON(t, s, http.MethodPost, "/v1/schedule", `{"generation":"4","start":"25 a","end":"3 p"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid token: status = %d", rec.Code)
	}
}

func TestBulkAndVersion(t *testing.T) {
	s := New(Options{})

	rec := doJSON(t, s, http.MethodPost, "/v1/bulk", `{"text":"FILTRATION_TIME 21600 START_HOURS 8 END_HOURS 8","mv_zero":2006}`)
	var bulk map[string]string
	decodeBody(t, rec, &bulk)
	if bulk["filtrado"] != "6 horas" || bulk["horario"] != "24 horas" || bulk["enjuague"] != "" {
		t.Errorf("bulk = %v", bulk)
	}

	rec = doJSON(t, s, http.MethodPost, "/v1/version", `{"instances":[{"app_name":"ecoplant","version":"2.1"}]}`)
	var version map[string]string
	decodeBody(t, rec, &version)
	if version["version"] != "Ecoplant 2.1 4G" {
		t.Errorf("version = %v", version)
	}

	rec = doJSON(t, s, http.MethodPost, "/v1/version", `{}`)
	decodeBody(t, rec, &version)
	if version["version"] != "No disponible" {
		t.Errorf("version = %v", version)
	}
}

func TestReconcile(t *testing.T) {
	s := New(Options{})
	rec := doJSON(t, s, http.MethodPost, "/v1/reconcile",
		`{"generation":"4","live":{"filtrado":"1 minuto"},"bulk":{"filtrado":"6 horas","enjuague":"45 segundos"},"state":"done"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var set params.ParameterSet
	decodeBody(t, rec, &set)
	if set["filtrado"].Value != "1 minuto" || set["enjuague"].Status != params.StatusSuccess || set["horario"].Status != params.StatusError {
		t.Errorf("set = %+v", set)
	}

	if rec := doJSON(t, s, http.MethodPost, "/v1/reconcile", `{"generation":"4","state":"later"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad state: status = %d", rec.Code)
	}
}

func TestQueries(t *testing.T) {
	rec := doJSON(t, New(Options{}), http.MethodGet, "/v1/queries/syrus4", "")
	var resp struct {
		Commands []string `json:"commands"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Commands) != 1 || resp.Commands[0] != "SXAEC::apx-config-params get" {
		t.Errorf("commands = %q", resp.Commands)
	}
}

func TestSend(t *testing.T) {
	if rec := doJSON(t, New(Options{}), http.MethodPost, "/v1/devices/dev1/commands", `{"commands":["QGC04TC"]}`); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("without executor: status = %d", rec.Code)
	}

	dry := gateway.NewDryRun()
	s := New(Options{Executor: dry, Metrics: monitor.NewMetrics()})

	if rec := doJSON(t, s, http.MethodPost, "/v1/devices/dev1/commands", `{"commands":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty commands: status = %d", rec.Code)
	}

	rec := doJSON(t, s, http.MethodPost, "/v1/devices/dev1/commands", `{"commands":["SGT001","SGT011"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	sent := dry.Sent()
	if len(sent) != 2 || sent[0].DeviceID != "dev1" || sent[1].Command != "SGT011" {
		t.Errorf("sent = %+v", sent)
	}
}
