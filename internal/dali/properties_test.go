package dali

import (
	"math"
	"testing"
)

func TestBrightnessConversions(t *testing.T) {
	tests := []struct {
		name     string
		permille int
		percent  float64
	}{
		{"off", 0, 0},
		{"half", 500, 50},
		{"full", 1000, 100},
		{"quarter", 250, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BrightnessToPercent(tt.permille); got != tt.percent {
				t.Errorf("BrightnessToPercent(%d) = %v, want %v", tt.permille, got, tt.percent)
			}
			if got := PercentToBrightness(tt.percent); got != tt.permille {
				t.Errorf("PercentToBrightness(%v) = %d, want %d", tt.percent, got, tt.permille)
			}
		})
	}
}

func TestBrightnessClamping(t *testing.T) {
	if got := BrightnessToPercent(1500); got != 100 {
		t.Errorf("BrightnessToPercent(1500) = %v, want 100", got)
	}
	if got := BrightnessToPercent(-5); got != 0 {
		t.Errorf("BrightnessToPercent(-5) = %v, want 0", got)
	}
	if got := PercentToBrightness(120); got != 1000 {
		t.Errorf("PercentToBrightness(120) = %d, want 1000", got)
	}
}

func TestEncodeHSV(t *testing.T) {
	tests := []struct {
		name string
		hue  float64
		sat  float64
		val  float64
		want string
	}{
		{"black", 0, 0, 0, "000000000000"},
		{"full red", 0, 1, 1, "000003e803e8"},
		{"mid hue", 180, 0.5, 1, "0b4001f403e8"},
		{"max hue", 360, 1, 1, "168003e803e8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeHSV(tt.hue, tt.sat, tt.val); got != tt.want {
				t.Errorf("EncodeHSV(%v,%v,%v) = %q, want %q", tt.hue, tt.sat, tt.val, got, tt.want)
			}
		})
	}
}

func TestDecodeHSVRoundTrip(t *testing.T) {
	cases := []struct{ h, s, v float64 }{
		{0, 0, 0},
		{120, 0.25, 0.75},
		{359, 1, 1},
		{42.5, 0.5, 0.5},
	}

	for _, c := range cases {
		encoded := EncodeHSV(c.h, c.s, c.v)
		h, s, v, err := DecodeHSV(encoded)
		if err != nil {
			t.Fatalf("DecodeHSV(%q) error = %v", encoded, err)
		}
		// Quantisation: hue to 1/16 degree, sat and val to permille.
		if math.Abs(h-c.h) > 1.0/16 {
			t.Errorf("hue round trip: got %v, want %v", h, c.h)
		}
		if math.Abs(s-c.s) > 0.001 {
			t.Errorf("sat round trip: got %v, want %v", s, c.s)
		}
		if math.Abs(v-c.v) > 0.001 {
			t.Errorf("val round trip: got %v, want %v", v, c.v)
		}
	}
}

func TestDecodeHSVInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"short", "00ff"},
		{"long", "0000000000000"},
		{"non-hex", "zzzz03e803e8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := DecodeHSV(tt.in); err == nil {
				t.Errorf("DecodeHSV(%q) = nil error, want error", tt.in)
			}
		})
	}
}

func TestButtonActionForDpid(t *testing.T) {
	tests := []struct {
		dpid   int
		action ButtonAction
		ok     bool
	}{
		{1, ActionPress, true},
		{2, ActionHold, true},
		{3, ActionDoublePress, true},
		{4, ActionRotate, true},
		{5, ActionRelease, true},
		{6, "", false},
		{0, "", false},
	}

	for _, tt := range tests {
		action, ok := ButtonActionForDpid(tt.dpid)
		if ok != tt.ok || action != tt.action {
			t.Errorf("ButtonActionForDpid(%d) = %q,%v, want %q,%v",
				tt.dpid, action, ok, tt.action, tt.ok)
		}
	}
}

func TestPropertyBuilders(t *testing.T) {
	if p := SwitchProperty(true); p.Dpid != DpidSwitch || p.Value != true || p.DataType != "bool" {
		t.Errorf("SwitchProperty(true) = %+v", p)
	}
	if p := BrightnessProperty(50); p.Dpid != DpidBrightness || p.Value != 500 {
		t.Errorf("BrightnessProperty(50) = %+v", p)
	}
	if p := ColorTempProperty(500); p.Value != ColorTempMin {
		t.Errorf("ColorTempProperty(500) = %+v, want clamped to %d", p, ColorTempMin)
	}
	if p := ColorTempProperty(9000); p.Value != ColorTempMax {
		t.Errorf("ColorTempProperty(9000) = %+v, want clamped to %d", p, ColorTempMax)
	}
	if p := WhiteLevelProperty(300); p.Value != 255 {
		t.Errorf("WhiteLevelProperty(300) = %+v, want clamped to 255", p)
	}
	if p := ColorProperty(0, 1, 1); p.Value != "000003e803e8" {
		t.Errorf("ColorProperty(0,1,1) = %+v", p)
	}
}

func TestPropertyCode(t *testing.T) {
	if got := (Property{Dpid: 22}).Code(); got != 22 {
		t.Errorf("Code() with dpid = %d, want 22", got)
	}
	if got := (Property{AltID: 24}).Code(); got != 24 {
		t.Errorf("Code() with id = %d, want 24", got)
	}
	// dpid wins when the firmware sends both.
	if got := (Property{Dpid: 20, AltID: 24}).Code(); got != 20 {
		t.Errorf("Code() with both = %d, want 20", got)
	}
}

func TestMotionStateFromCode(t *testing.T) {
	tests := []struct {
		code int
		want MotionState
	}{
		{0, MotionNoMotion},
		{1, MotionDetected},
		{2, MotionVacant},
		{3, MotionPresence},
		{4, MotionOccupancy},
		{99, MotionNoMotion},
	}

	for _, tt := range tests {
		if got := MotionStateFromCode(tt.code); got != tt.want {
			t.Errorf("MotionStateFromCode(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
