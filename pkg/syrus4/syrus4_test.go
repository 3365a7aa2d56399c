// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package syrus4

import (
	"errors"
	"strings"
	"testing"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
)

func ptr[T any](v T) *T {
	return &v
}

// ============================================================
// Decoder Tests
// ============================================================

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{\"fil_time\": 120}`, `{"fil_time":120}`},
		{`{ "start_time" : "01-00-pm" , "end_time" : "11-00-pm" }`, `{"start_time":"01-00-pm","end_time":"11-00-pm"}`},
		{`publish user "{"rinse_time":30}"`, `publish user "{"rinse_time":30}"`},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		cal   *int
		want  ecoplant.Result
	}{
		{"filtration", `{"fil_time":120}`, nil, ecoplant.Result{Key: ecoplant.KeyFiltration, Value: "2 minutos"}},
		{"escaped", `SXAEC::apx-redis-cli publish user "{\"invw_time\": 90}"`, nil, ecoplant.Result{Key: ecoplant.KeyBackwash, Value: "1 minuto y 30 segundos"}},
		{"quoted value", `{"rinse_time":"45"}`, nil, ecoplant.Result{Key: ecoplant.KeyRinse, Value: "45 segundos"}},
		{"alert", `{"adc_fil_warning_thr":2506}`, ptr(2006), ecoplant.Result{Key: ecoplant.KeyFlowAlert, Value: "5"}},
		{"alarm", `{"adc_fil_alarm_thr":2206}`, ptr(2006), ecoplant.Result{Key: ecoplant.KeyFlowAlarm, Value: "2"}},
		{"schedule", `{"start_time":"01-00-pm","end_time":"11-00-pm"}`, nil, ecoplant.Result{Key: ecoplant.KeySchedule, Value: "08:00 a.m a 06:00 p.m"}},
		{"all day", `{"start_time":"01-00-pm","end_time":"01-00-pm"}`, nil, ecoplant.Result{Key: ecoplant.KeySchedule, Value: ecoplant.AlwaysOn}},
		{"first key wins", `{"fil_time":60,"rinse_time":30}`, nil, ecoplant.Result{Key: ecoplant.KeyFiltration, Value: "1 minuto"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeFrame(tt.frame, tt.cal)
			if !ok {
				t.Fatalf("DecodeFrame(%q) did not match", tt.frame)
			}
			if got != tt.want {
				t.Errorf("DecodeFrame(%q) = %+v, want %+v", tt.frame, got, tt.want)
			}
		})
	}
}

func TestDecodeFrame_Misses(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		cal   *int
	}{
		{"empty", "", nil},
		{"unknown key", `{"volume":3}`, nil},
		{"alert without calibration", `{"adc_fil_warning_thr":2506}`, nil},
		{"not a number", `{"fil_time":"abc"}`, nil},
		{"start only", `{"start_time":"01-00-pm"}`, nil},
		{"bad token", `{"start_time":"13-00-pm","end_time":"01-00-am"}`, nil},
		{"syrus3 frame", "SGC04TC00120;", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := DecodeFrame(tt.frame, tt.cal); ok {
				t.Errorf("DecodeFrame(%q) = %+v, want miss", tt.frame, got)
			}
		})
	}
}

func TestIsScheduleFrame(t *testing.T) {
	if !IsScheduleFrame(`{\"start_time\":\"01-00-pm\", \"end_time\":\"02-00-am\"}`) {
		t.Error("IsScheduleFrame missed an escaped schedule frame")
	}
	if IsScheduleFrame(`{"start_time":"01-00-pm"}`) {
		t.Error("IsScheduleFrame matched a frame without end_time")
	}
}

func TestParseHourToken(t *testing.T) {
	tests := []struct {
		token string
		want  int
	}{
		{"12-00-am", 0},
		{"01-00-am", 1},
		{"12-00-pm", 12},
		{"01-00-pm", 13},
		{"11-00-PM", 23},
	}
	for _, tt := range tests {
		got, err := ParseHourToken(tt.token)
		if err != nil || got != tt.want {
			t.Errorf("ParseHourToken(%q) = %d, %v; want %d", tt.token, got, err, tt.want)
		}
	}
	for _, token := range []string{"", "13-00-pm", "00-00-am", "1 pm", "01:00-pm"} {
		if _, err := ParseHourToken(token); !errors.Is(err, ecoplant.ErrInvalidHour) {
			t.Errorf("ParseHourToken(%q) error = %v", token, err)
		}
	}
}

// ============================================================
// Command Builder Tests
// ============================================================

func TestBuildSetCommand(t *testing.T) {
	tests := []struct {
		name      string
		code      ecoplant.OperationCode
		magnitude float64
		unit      string
		cal       *int
		want      string
	}{
		{"filtration", ecoplant.Filtration, 6, "horas", nil, `SXAEC::apx-redis-cli publish user "{"fil_time":21600}"`},
		{"backwash", ecoplant.Backwash, 2, "minutos", nil, `SXAEC::apx-redis-cli publish user "{"invw_time":120}"`},
		{"rinse", ecoplant.Rinse, 45, "segundos", nil, `SXAEC::apx-redis-cli publish user "{"rinse_time":45}"`},
		{"alert", ecoplant.FlowAlert, 5, "", ptr(2006), `SXAEC::apx-redis-cli publish user "{"adc_fil_warning_thr":2506}"`},
		{"alarm", ecoplant.InsufficientFlowAlarm, 2, "", ptr(2006), `SXAEC::apx-redis-cli publish user "{"adc_fil_alarm_thr":2206}"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSetCommand(tt.code, tt.magnitude, tt.unit, tt.cal)
			if err != nil {
				t.Fatalf("BuildSetCommand failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildSetCommand = %q, want %q", got, tt.want)
			}

			// Commands decode back to the value that was set
			if _, ok := DecodeFrame(got, tt.cal); !ok {
				t.Errorf("DecodeFrame(%q) missed", got)
			}
		})
	}
}

func TestBuildSetCommand_OutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		code      ecoplant.OperationCode
		magnitude float64
		unit      string
	}{
		{"filtration", ecoplant.Filtration, 86401, "segundos"},
		{"rinse", ecoplant.Rinse, 2, "horas"},
		{"alarm", ecoplant.InsufficientFlowAlarm, 30, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSetCommand(tt.code, tt.magnitude, tt.unit, ptr(2006))
			if err != nil || got != "" {
				t.Errorf("BuildSetCommand = %q, %v; want empty sentinel", got, err)
			}
		})
	}
}

func TestBuildSetCommand_Errors(t *testing.T) {
	if _, err := BuildSetCommand(ecoplant.OperationCode(42), 1, "segundos", nil); !errors.Is(err, ecoplant.ErrUnknownOperation) {
		t.Errorf("unknown operation error = %v", err)
	}
	if _, err := BuildSetCommand(ecoplant.Filtration, 1, "semanas", nil); !errors.Is(err, ecoplant.ErrInvalidUnit) {
		t.Errorf("invalid unit error = %v", err)
	}
	if _, err := BuildSetCommand(ecoplant.FlowAlert, 1, "", nil); !errors.Is(err, ecoplant.ErrMissingCalibration) {
		t.Errorf("missing calibration error = %v", err)
	}
}

func TestBuildWindowCommand(t *testing.T) {
	tests := []struct {
		start, end string
		want       string
	}{
		{"8 a", "8 a", `SXAEC::apx-redis-cli publish user "{"start_time":"01-00-pm","end_time":"01-00-pm"}"`},
		{"7:00 a", "3:00 p", `SXAEC::apx-redis-cli publish user "{"start_time":"12-00-pm","end_time":"08-00-pm"}"`},
		{"10 p", "4 a", `SXAEC::apx-redis-cli publish user "{"start_time":"03-00-am","end_time":"09-00-am"}"`},
		{"7 p", "11 p.m", `SXAEC::apx-redis-cli publish user "{"start_time":"12-00-am","end_time":"04-00-am"}"`},
	}

	for _, tt := range tests {
		t.Run(tt.start+"-"+tt.end, func(t *testing.T) {
			got, err := BuildWindowCommand(tt.start, tt.end)
			if err != nil {
				t.Fatalf("BuildWindowCommand failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildWindowCommand = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := BuildWindowCommand("8 a", "0 p"); !errors.Is(err, ecoplant.ErrInvalidHour) {
		t.Errorf("invalid token error = %v", err)
	}
}

func TestBuildWindowCommand_DecodesBack(t *testing.T) {
	cmd, err := BuildWindowCommand("8 a", "6 p")
	if err != nil {
		t.Fatalf("BuildWindowCommand failed: %v", err)
	}
	got, ok := DecodeFrame(cmd, nil)
	if !ok || got.Value != "08:00 a.m a 06:00 p.m" {
		t.Errorf("DecodeFrame(%q) = %+v, %v", cmd, got, ok)
	}
}

// ============================================================
// Bulk Tests
// ============================================================

func TestDecodeBulkParams(t *testing.T) {
	text := "FILTRATION_TIME 21600\nINV_WASHING_TIME 120\nRINSE_TIME 45\n" +
		"ADC_WARNING_THRESHOLD 2506\nADC_ALARM_THRESHOLD 2206\nSTART_HOURS 8\nEND_HOURS 8\n"

	got := DecodeBulkParams(text, ptr(2006))
	want := BulkParams{
		Filtration: "6 horas",
		Backwash:   "2 minutos",
		Rinse:      "45 segundos",
		Alert:      "5",
		Alarm:      "2",
		Schedule:   "24 horas",
	}
	if got != want {
		t.Errorf("DecodeBulkParams = %+v, want %+v", got, want)
	}
}

func TestDecodeBulkParams_Partial(t *testing.T) {
	got := DecodeBulkParams("FILTRATION_TIME 60 ADC_WARNING_THRESHOLD 2506 START_HOURS 13", nil)
	want := BulkParams{Filtration: "1 minuto"}
	if got != want {
		t.Errorf("DecodeBulkParams = %+v, want %+v", got, want)
	}

	if got := DecodeBulkParams("", nil); got != (BulkParams{}) {
		t.Errorf("DecodeBulkParams(\"\") = %+v", got)
	}
}

func TestDecodeBulkParams_Window(t *testing.T) {
	got := DecodeBulkParams("START_HOURS 13 END_HOURS 23", nil)
	if got.Schedule != "08:00 a.m a 06:00 p.m" {
		t.Errorf("Schedule = %q", got.Schedule)
	}
}

func TestBulkParams_Values(t *testing.T) {
	values := BulkParams{Rinse: "45 segundos", Schedule: "24 horas"}.Values()
	if len(values) != 2 || values[ecoplant.KeyRinse] != "45 segundos" || values[ecoplant.KeySchedule] != "24 horas" {
		t.Errorf("Values() = %v", values)
	}
}

// ============================================================
// Version Tests
// ============================================================

func TestDecodeVersionInfo(t *testing.T) {
	tests := []struct {
		name      string
		instances []Instance
		want      string
	}{
		{"found", []Instance{{AppName: "gps-tracker", Version: "2.0"}, {AppName: "ecoplant-app", Version: "1.4.2"}}, "Ecoplant 1.4.2 4G"},
		{"case insensitive", []Instance{{AppName: "EcoPlant", Version: "3.1"}}, "Ecoplant 3.1 4G"},
		{"not found", []Instance{{AppName: "gps-tracker", Version: "2.0"}}, VersionNotFound},
		{"empty", []Instance{}, VersionMissing},
		{"nil", nil, VersionMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeVersionInfo(tt.instances); got != tt.want {
				t.Errorf("DecodeVersionInfo = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeysAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, code := range ecoplant.Operations {
		key, err := WireKey(code)
		if err != nil {
			t.Fatalf("WireKey(%v) failed: %v", code, err)
		}
		bulk, err := BulkKey(code)
		if err != nil {
			t.Fatalf("BulkKey(%v) failed: %v", code, err)
		}
		if seen[key] || seen[bulk] {
			t.Errorf("duplicate key for %v", code)
		}
		seen[key], seen[bulk] = true, true
		if strings.ToUpper(key) == key {
			t.Errorf("wire key %q should be lower case", key)
		}
	}
}
