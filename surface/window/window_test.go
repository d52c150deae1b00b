package window

import (
	"slices"
	"testing"

	"github.com/gogpu/colorconvert/surface"
)

func TestDisplayAvailable(t *testing.T) {
	tests := []struct {
		goos string
		env  map[string]string
		want bool
	}{
		{"linux", nil, false},
		{"linux", map[string]string{"DISPLAY": ":0"}, true},
		{"linux", map[string]string{"WAYLAND_DISPLAY": "wayland-0"}, true},
		{"freebsd", map[string]string{"DISPLAY": ":1"}, true},
		{"windows", nil, true},
		{"darwin", nil, true},
		{"js", nil, false},
	}
	for _, tt := range tests {
		getenv := func(k string) string { return tt.env[k] }
		if got := displayAvailable(tt.goos, getenv); got != tt.want {
			t.Errorf("displayAvailable(%s, %v) = %v, want %v", tt.goos, tt.env, got, tt.want)
		}
	}
}

type plainConfig struct{ title string }

type fullscreenConfig struct {
	title      string
	fullscreen bool
}

func (c fullscreenConfig) WithFullscreen(on bool) fullscreenConfig {
	c.fullscreen = on
	return c
}

func TestWithFullscreen(t *testing.T) {
	cfg, ok := withFullscreen(fullscreenConfig{title: "x"})
	if !ok || !cfg.fullscreen || cfg.title != "x" {
		t.Errorf("withFullscreen = %+v, %v; want fullscreen applied", cfg, ok)
	}

	plain, ok := withFullscreen(plainConfig{title: "y"})
	if ok || plain.title != "y" {
		t.Errorf("withFullscreen(plain) = %+v, %v; want unchanged, false", plain, ok)
	}
}

func TestRegisteredAheadOfOffscreen(t *testing.T) {
	names := surface.List()
	wi := slices.Index(names, Name)
	oi := slices.Index(names, surface.OffscreenName)
	if wi < 0 || oi < 0 {
		t.Fatalf("List() = %v, want both %q and %q", names, Name, surface.OffscreenName)
	}
	if wi > oi {
		t.Errorf("List() = %v, want %q before %q", names, Name, surface.OffscreenName)
	}
}

func TestNewRejectsInvalidSize(t *testing.T) {
	if _, err := New(surface.Options{Width: 0, Height: 720}); err == nil {
		t.Error("New accepted a zero width")
	}
}
