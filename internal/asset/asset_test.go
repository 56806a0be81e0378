package asset

import (
	"errors"
	"testing"
)

func TestManifestURL(t *testing.T) {
	got, err := ManifestURL("http://localhost:8080/api/v1/", "vid123")
	if err != nil {
		t.Fatalf("ManifestURL: %v", err)
	}
	want := "http://localhost:8080/api/v1/video/vid123/index.m3u8"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestManifestURL_escapes_id(t *testing.T) {
	got, err := ManifestURL("http://localhost:8080/api/v1", "a/b")
	if err != nil {
		t.Fatalf("ManifestURL: %v", err)
	}
	want := "http://localhost:8080/api/v1/video/a%2Fb/index.m3u8"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestManifestURL_rejects_bad_input(t *testing.T) {
	t.Run("empty_id", func(t *testing.T) {
		if _, err := ManifestURL("http://h", ""); !errors.Is(err, ErrEmptyID) {
			t.Errorf("expected ErrEmptyID, got %v", err)
		}
	})
	t.Run("blank_id", func(t *testing.T) {
		if _, err := ManifestURL("http://h", "   "); !errors.Is(err, ErrEmptyID) {
			t.Errorf("expected ErrEmptyID, got %v", err)
		}
	})
	t.Run("dot_segment", func(t *testing.T) {
		if _, err := ManifestURL("http://h", ".."); !errors.Is(err, ErrInvalidID) {
			t.Errorf("expected ErrInvalidID, got %v", err)
		}
	})
	t.Run("relative_base", func(t *testing.T) {
		if _, err := ManifestURL("/api/v1", "x"); err == nil {
			t.Error("expected error for relative base")
		}
	})
}
