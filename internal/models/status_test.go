package models

import (
	"errors"
	"testing"
)

func TestDecodeStatusSnapshot(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
		check   func(t *testing.T, s StatusSnapshot)
	}{
		{
			name: "full payload",
			body: `{"start":"2024/01/02/ 10:00:00","time":125,"temp1":20.1,"temp2":21.4,"volt1":1200,"volt2":900,"coord":[10,20,30]}`,
			check: func(t *testing.T, s StatusSnapshot) {
				if s.Time != 125 || s.Temp1 != 20.1 || s.Volt1 != 1200 {
					t.Fatalf("unexpected snapshot: %+v", s)
				}
				if s.Coord != [3]float64{10, 20, 30} {
					t.Fatalf("unexpected coord: %v", s.Coord)
				}
				if s.Start != "2024/01/02/ 10:00:00" {
					t.Fatalf("unexpected start: %q", s.Start)
				}
			},
		},
		{
			name: "start is optional",
			body: `{"time":1,"temp1":1,"temp2":1,"volt1":1,"volt2":1,"coord":[0,0,0]}`,
			check: func(t *testing.T, s StatusSnapshot) {
				if s.Start != "" {
					t.Fatalf("expected empty start, got %q", s.Start)
				}
			},
		},
		{name: "missing temp2", body: `{"time":1,"temp1":1,"volt1":1,"volt2":1,"coord":[0,0,0]}`, wantErr: true},
		{name: "missing coord", body: `{"time":1,"temp1":1,"temp2":1,"volt1":1,"volt2":1}`, wantErr: true},
		{name: "short coord", body: `{"time":1,"temp1":1,"temp2":1,"volt1":1,"volt2":1,"coord":[1,2]}`, wantErr: true},
		{name: "empty object", body: `{}`, wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeStatusSnapshot([]byte(tc.body))
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("expected ErrMalformedPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.check(t, got)
		})
	}
}

func TestDecodeDebugHistogram(t *testing.T) {
	h, err := DecodeDebugHistogram([]byte(`{"bincontent":[1,2],"binedge":[0,1,2],"rms":0.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.BinContent) != 2 || h.RMS != 0.5 {
		t.Fatalf("unexpected histogram: %+v", h)
	}

	for _, body := range []string{`{}`, `{"bincontent":[1],"binedge":[0,1]}`, `{"bincontent":[1,2],"binedge":[0,1],"rms":1}`} {
		if _, err := DecodeDebugHistogram([]byte(body)); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("%s: expected ErrMalformedPayload, got %v", body, err)
		}
	}
}

func TestSessionStateString(t *testing.T) {
	want := map[SessionState]string{
		StateIdle:       "IDLE",
		StateRunProcess: "PROCESSING",
		StateWaitUser:   "WAITING USER ACTION",
		StateExecCmd:    "EXECUTING COMMAND",
		SessionState(9): "",
	}
	for st, label := range want {
		if got := st.String(); got != label {
			t.Errorf("state %d: got %q, want %q", int(st), got, label)
		}
	}
}
