// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"errors"
	"sync"
	"testing"

	"github.com/ecoplant/ecostat/pkg/ecoplant"
	"github.com/ecoplant/ecostat/pkg/syrus4"
)

func ptr[T any](v T) *T {
	return &v
}

// ============================================================
// Dispatch Tests
// ============================================================

func TestParseGeneration(t *testing.T) {
	tests := []struct {
		in   string
		want Generation
	}{
		{"3", Syrus3},
		{"syrus3", Syrus3},
		{"Syrus-3", Syrus3},
		{" 4 ", Syrus4},
		{"SYRUS4", Syrus4},
	}
	for _, tt := range tests {
		got, err := ParseGeneration(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseGeneration(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseGeneration("5"); !errors.Is(err, ErrUnknownGeneration) {
		t.Errorf("ParseGeneration(\"5\") error = %v", err)
	}
}

func TestDecode_SameShapeForBothGenerations(t *testing.T) {
	r3, ok3 := Decode(Syrus3, "SGC04TC00120;", ptr(2006))
	r4, ok4 := Decode(Syrus4, `{"fil_time":120}`, ptr(2006))
	if !ok3 || !ok4 {
		t.Fatalf("decode missed: syrus3=%v syrus4=%v", ok3, ok4)
	}
	want := ecoplant.Result{Key: ecoplant.KeyFiltration, Value: "2 minutos"}
	if r3 != want || r4 != want {
		t.Errorf("Decode = %+v / %+v, want %+v", r3, r4, want)
	}

	if _, ok := Decode(Generation(9), "SGC04TC00120;", nil); ok {
		t.Error("Decode matched for an unknown generation")
	}
	if _, ok := Decode(Syrus4, "SGC04TC00120;", nil); ok {
		t.Error("Syrus 4 decoded a Syrus 3 frame")
	}
}

func TestBuildCommand(t *testing.T) {
	cmd, err := BuildCommand(Syrus3, ecoplant.Filtration, 5, "minutos", nil, "SGC04TC00120;")
	if err != nil || cmd != "SGC04TC00300;" {
		t.Errorf("BuildCommand(Syrus3) = %q, %v", cmd, err)
	}

	cmd, err = BuildCommand(Syrus4, ecoplant.Filtration, 5, "minutos", nil, "ignored")
	if err != nil || cmd != `SXAEC::apx-redis-cli publish user "{"fil_time":300}"` {
		t.Errorf("BuildCommand(Syrus4) = %q, %v", cmd, err)
	}

	if _, err := BuildCommand(Syrus3, ecoplant.Filtration, 5, "minutos", nil, ""); !errors.Is(err, ecoplant.ErrMissingTemplate) {
		t.Errorf("BuildCommand without template error = %v", err)
	}
	if _, err := BuildCommand(Generation(0), ecoplant.Filtration, 5, "minutos", nil, ""); !errors.Is(err, ErrUnknownGeneration) {
		t.Errorf("BuildCommand unknown generation error = %v", err)
	}
}

func TestBuildCommand_OutOfRangeBothGenerations(t *testing.T) {
	for _, gen := range []Generation{Syrus3, Syrus4} {
		cmd, err := BuildCommand(gen, ecoplant.Backwash, 2, "horas", nil, "SGC07TC00060;")
		if err != nil {
			t.Fatalf("%v: BuildCommand failed: %v", gen, err)
		}
		if !IsOutOfRange(cmd) {
			t.Errorf("%v: BuildCommand = %q, want out of range", gen, cmd)
		}
	}
}

func TestBuildWindowCommand(t *testing.T) {
	cmds, err := BuildWindowCommand(Syrus3, "7:00 a", "3:00 p")
	if err != nil || len(cmds) != 3 {
		t.Fatalf("BuildWindowCommand(Syrus3) = %v, %v", cmds, err)
	}
	for i, cmd := range cmds {
		if len(cmd) != 31 {
			t.Errorf("command %d length = %d, want 31", i, len(cmd))
		}
	}

	cmds, err = BuildWindowCommand(Syrus4, "8 a", "8 a")
	if err != nil || len(cmds) != 1 {
		t.Fatalf("BuildWindowCommand(Syrus4) = %v, %v", cmds, err)
	}
	if want := `SXAEC::apx-redis-cli publish user "{"start_time":"01-00-pm","end_time":"01-00-pm"}"`; cmds[0] != want {
		t.Errorf("BuildWindowCommand(Syrus4) = %q, want %q", cmds[0], want)
	}

	if _, err := BuildWindowCommand(Syrus4, "8 a", "nope"); !errors.Is(err, ecoplant.ErrInvalidHour) {
		t.Errorf("invalid token error = %v", err)
	}
}

func TestQueryCommands(t *testing.T) {
	cmds, err := QueryCommands(Syrus3)
	if err != nil {
		t.Fatalf("QueryCommands(Syrus3) failed: %v", err)
	}
	want := []string{"QGC04TC", "QGC07TC", "QGC10TC", "QXAGA03V", "QXAGA00V", "QGT001", "QGT011", "QGT021"}
	if len(cmds) != len(want) {
		t.Fatalf("QueryCommands(Syrus3) = %v", cmds)
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("QueryCommands(Syrus3)[%d] = %q, want %q", i, cmds[i], want[i])
		}
	}

	cmds, err = QueryCommands(Syrus4)
	if err != nil || len(cmds) != 1 || cmds[0] != syrus4.BulkQueryCommand {
		t.Errorf("QueryCommands(Syrus4) = %v, %v", cmds, err)
	}
}

func TestQueryCommand(t *testing.T) {
	got, err := QueryCommand(Syrus3, ecoplant.Rinse)
	if err != nil || got != "QGC10TC" {
		t.Errorf("QueryCommand(Syrus3, Rinse) = %q, %v", got, err)
	}
	got, err = QueryCommand(Syrus4, ecoplant.Rinse)
	if err != nil || got != syrus4.BulkQueryCommand {
		t.Errorf("QueryCommand(Syrus4, Rinse) = %q, %v", got, err)
	}
	if _, err := QueryCommand(Syrus4, ecoplant.OperationCode(42)); !errors.Is(err, ecoplant.ErrUnknownOperation) {
		t.Errorf("QueryCommand(Syrus4, 42) error = %v", err)
	}
	if _, err := QueryCommand(Generation(9), ecoplant.Rinse); !errors.Is(err, ErrUnknownGeneration) {
		t.Errorf("QueryCommand(9) error = %v", err)
	}
}

// ============================================================
// Template Cache Tests
// ============================================================

func TestTemplateCache(t *testing.T) {
	c := NewTemplateCache()
	if c.Observe("dev1", "RER SED06NA0") {
		t.Error("cached a rejection frame")
	}
	if c.Observe("dev1", "RGT001000000130000000000230000;") {
		t.Error("cached a schedule frame")
	}
	if !c.Observe("dev1", ">SGC04TC00120;ID=1<") {
		t.Fatal("query response was not cached")
	}
	c.Observe("dev1", "SGC04TC00240;")
	c.Observe("dev2", "SGC04TC00060;")

	if got, ok := c.Template("dev1", ecoplant.Filtration); !ok || got != "SGC04TC00240;" {
		t.Errorf("Template(dev1) = %q, %v", got, ok)
	}
	if got, ok := c.Template("dev2", ecoplant.Filtration); !ok || got != "SGC04TC00060;" {
		t.Errorf("Template(dev2) = %q, %v", got, ok)
	}
	if _, ok := c.Template("dev1", ecoplant.Rinse); ok {
		t.Error("Template returned a frame for an unseen parameter")
	}

	c.Forget("dev1")
	if _, ok := c.Template("dev1", ecoplant.Filtration); ok {
		t.Error("Forget left a template behind")
	}
	if _, ok := c.Template("dev2", ecoplant.Filtration); !ok {
		t.Error("Forget removed another device's template")
	}
}

// ============================================================
// Session Tests
// ============================================================

func TestSession_Syrus3(t *testing.T) {
	s := NewSession("dev1", Syrus3, nil)

	if _, err := s.BuildCommand(ecoplant.Filtration, 5, "minutos"); !errors.Is(err, ecoplant.ErrMissingTemplate) {
		t.Fatalf("BuildCommand before observe error = %v", err)
	}
	if s.HasTemplate(ecoplant.Filtration) {
		t.Error("HasTemplate before observe")
	}

	r, ok := s.Observe(">SGC04TC00120;ID=356612022312345<")
	if !ok || r.Value != "2 minutos" {
		t.Fatalf("Observe = %+v, %v", r, ok)
	}
	if !s.HasTemplate(ecoplant.Filtration) {
		t.Error("HasTemplate after observe")
	}

	cmd, err := s.BuildCommand(ecoplant.Filtration, 5, "minutos")
	if err != nil || cmd != "SGC04TC00300;" {
		t.Errorf("BuildCommand = %q, %v", cmd, err)
	}

	// Schedule slots only produce a result once complete
	for i, frame := range []string{
		"RGT001000000130000000000230000;",
		"RGT011000000130000000000230000;",
	} {
		if _, ok := s.Observe(frame); ok {
			t.Fatalf("frame %d produced a result", i)
		}
	}
	r, ok = s.Observe("RGT021000000130000000000230000;")
	if !ok || r.Key != ecoplant.KeySchedule || r.Value != "08:00 a.m a 06:00 p.m" {
		t.Errorf("Observe(slot 2) = %+v, %v", r, ok)
	}

	r, ok = s.Observe("RER SED14NV0")
	if !ok || r.Key != ecoplant.KeyBackwash || r.Value != ecoplant.InvalidParameter {
		t.Errorf("Observe(rejection) = %+v, %v", r, ok)
	}
	if !s.IsRejection("RER SED14NV0") {
		t.Error("IsRejection = false")
	}

	live := s.Live()
	if live[ecoplant.KeyFiltration] != "2 minutos" || live[ecoplant.KeySchedule] != "08:00 a.m a 06:00 p.m" {
		t.Errorf("Live() = %v", live)
	}
}

func TestSession_Calibration(t *testing.T) {
	s := NewSession("dev1", Syrus4, nil)
	if _, ok := s.Observe(`{"adc_fil_warning_thr":2506}`); ok {
		t.Error("threshold decoded without calibration")
	}
	if !s.CalibrationFromDescription("Equipo norte\nmv_zero: 2006\nEND_PARAMS\nmv_zero: 1") {
		t.Fatal("calibration not found")
	}
	if cal := s.Calibration(); cal == nil || *cal != 2006 {
		t.Fatalf("Calibration() = %v", cal)
	}
	r, ok := s.Observe(`{"adc_fil_warning_thr":2506}`)
	if !ok || r.Value != "5" {
		t.Errorf("Observe = %+v, %v", r, ok)
	}
	if s.CalibrationFromDescription("no parameters") {
		t.Error("calibration found in a description without mv_zero")
	}
}

func TestSession_SwitchDeviceClearsState(t *testing.T) {
	s := NewSession("dev1", Syrus3, ptr(2006))
	s.Observe("SGC04TC00120;")
	s.Observe("RGT001000000130000000000230000;")
	s.Observe("RGT011000000130000000000230000;")

	s.SwitchDevice("dev2", Syrus3, nil)

	if len(s.Live()) != 0 {
		t.Errorf("Live() = %v after switch", s.Live())
	}
	if s.HasTemplate(ecoplant.Filtration) {
		t.Error("template survived device switch")
	}
	if _, ok := s.Observe("RGT021000000130000000000230000;"); ok {
		t.Error("schedule assembled with slots from the previous device")
	}
	if s.DeviceID() != "dev2" || s.Calibration() != nil {
		t.Errorf("session = %s, %v", s.DeviceID(), s.Calibration())
	}

	s.SwitchDevice("dev3", Syrus4, nil)
	if s.Generation() != Syrus4 || !s.HasTemplate(ecoplant.Filtration) {
		t.Error("Syrus 4 sessions never need templates")
	}
}

func TestSession_ObserveBulkKeepsLiveValues(t *testing.T) {
	s := NewSession("dev1", Syrus4, ptr(2006))
	s.Observe(`{"fil_time":60}`)

	bulk := s.ObserveBulk("FILTRATION_TIME 21600 RINSE_TIME 45 START_HOURS 8 END_HOURS 8")
	if bulk.Filtration != "6 horas" {
		t.Errorf("bulk.Filtration = %q", bulk.Filtration)
	}

	live := s.Live()
	if live[ecoplant.KeyFiltration] != "1 minuto" {
		t.Errorf("bulk overwrote live value: %q", live[ecoplant.KeyFiltration])
	}
	if live[ecoplant.KeyRinse] != "45 segundos" || live[ecoplant.KeySchedule] != "24 horas" {
		t.Errorf("Live() = %v", live)
	}
}

func TestSession_Concurrent(t *testing.T) {
	s := NewSession("dev1", Syrus3, ptr(2006))
	frames := []string{
		"SGC04TC00120;",
		"SGC07TC00060;",
		"SGC10TC00030;",
		"RXAGA03V02506;",
		"RXAGA00V02206;",
		"RGT001000000130000000000230000;",
		"RGT011000000130000000000230000;",
		"RGT021000000130000000000230000;",
	}

	var wg sync.WaitGroup
	for _, frame := range frames {
		wg.Add(1)
		go func(f string) {
			defer wg.Done()
			s.Observe(f)
		}(frame)
	}
	wg.Wait()

	set := Reconcile(s.Live(), nil, Syrus3, QueryDone)
	if !set.Complete() {
		t.Errorf("Reconcile = %+v, want complete", set)
	}
}

// ============================================================
// Reconcile Tests
// ============================================================

func TestReconcile(t *testing.T) {
	live := map[ecoplant.SocketKey]string{ecoplant.KeyFiltration: "1 minuto"}
	bulk := &syrus4.BulkParams{Filtration: "6 horas", Rinse: "45 segundos"}

	tests := []struct {
		name  string
		gen   Generation
		state QueryState
		want  ParameterSet
	}{
		{"syrus4 pending", Syrus4, QueryPending, ParameterSet{
			ecoplant.KeyFiltration: {Value: "1 minuto", Status: StatusSuccess},
			ecoplant.KeyBackwash:   {Status: StatusLoading},
			ecoplant.KeyRinse:      {Value: "45 segundos", Status: StatusSuccess},
			ecoplant.KeyFlowAlert:  {Status: StatusLoading},
			ecoplant.KeyFlowAlarm:  {Status: StatusLoading},
			ecoplant.KeySchedule:   {Status: StatusLoading},
		}},
		{"syrus3 ignores bulk", Syrus3, QueryFailed, ParameterSet{
			ecoplant.KeyFiltration: {Value: "1 minuto", Status: StatusSuccess},
			ecoplant.KeyBackwash:   {Status: StatusError},
			ecoplant.KeyRinse:      {Status: StatusError},
			ecoplant.KeyFlowAlert:  {Status: StatusError},
			ecoplant.KeyFlowAlarm:  {Status: StatusError},
			ecoplant.KeySchedule:   {Status: StatusError},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(live, bulk, tt.gen, tt.state)
			if len(got) != len(tt.want) {
				t.Fatalf("Reconcile returned %d keys, want %d", len(got), len(tt.want))
			}
			for key, want := range tt.want {
				if got[key] != want {
					t.Errorf("Reconcile[%s] = %+v, want %+v", key, got[key], want)
				}
			}
		})
	}
}

func TestReconcile_NilInputs(t *testing.T) {
	set := Reconcile(nil, nil, Syrus4, QueryDone)
	for _, key := range ecoplant.SocketKeys {
		if set[key].Status != StatusError {
			t.Errorf("Reconcile[%s] = %+v, want error", key, set[key])
		}
	}
	if set.Complete() {
		t.Error("empty set reported complete")
	}
}
