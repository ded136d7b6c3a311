package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestBoundingBoxValidity(t *testing.T) {
	for _, tc := range []struct {
		name string
		box  BoundingBox
		want bool
	}{
		{"normal", BoundingBox{52.4, 13.2, 52.6, 13.6}, true},
		{"inverted lat", BoundingBox{52.6, 13.2, 52.4, 13.6}, false},
		{"zero area", BoundingBox{52.4, 13.2, 52.4, 13.6}, false},
		{"lat out of range", BoundingBox{-91, 13.2, 52.6, 13.6}, false},
		{"lng out of range", BoundingBox{52.4, 13.2, 52.6, 181}, false},
	} {
		if got := tc.box.IsValid(); got != tc.want {
			t.Errorf("%s: IsValid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBoundingBoxContainsEdges(t *testing.T) {
	box := BoundingBox{MinLat: 52.4, MinLng: 13.2, MaxLat: 52.6, MaxLng: 13.6}

	// Minimum edges are inside, maximum edges are outside, so adjacent
	// boxes tile without double-counting a point on the seam.
	if !box.Contains(52.4, 13.2) {
		t.Error("min corner excluded")
	}
	if box.Contains(52.6, 13.4) {
		t.Error("max-lat edge included")
	}
	if box.Contains(52.5, 13.6) {
		t.Error("max-lng edge included")
	}
	if !box.Contains(52.5, 13.4) {
		t.Error("interior point excluded")
	}
}

func TestValidationErrorAccumulates(t *testing.T) {
	var ve ValidationError
	if ve.HasErrors() {
		t.Error("fresh ValidationError reports errors")
	}
	ve.Add("level_db", "is required")
	ve.Add("timestamp", "is in the future")

	if !ve.HasErrors() {
		t.Error("HasErrors() = false after Add")
	}
	msg := ve.Error()
	if !strings.Contains(msg, "level_db") || !strings.Contains(msg, "timestamp") {
		t.Errorf("Error() = %q, missing accumulated fields", msg)
	}
}

func TestIsRetryable(t *testing.T) {
	storage := &StorageError{Op: "append", Err: errors.New("connection reset")}
	if !IsRetryable(storage) {
		t.Error("StorageError not retryable")
	}
	if !IsRetryable(fmt.Errorf("append event: %w", storage)) {
		t.Error("wrapped StorageError not retryable")
	}

	for _, err := range []error{
		ErrNotFound,
		ErrConflict,
		ErrRevoked,
		&ValidationError{Errors: []FieldError{{Field: "x", Message: "y"}}},
		&RateLimitedError{DeviceID: "dev-a", RetryAfter: time.Second},
		&TooLargeError{SizeBytes: 11 << 20, MaxBytes: 10 << 20},
		&UnsupportedCodecError{Codec: "aac"},
	} {
		if IsRetryable(err) {
			t.Errorf("%T reported retryable", err)
		}
	}
}

func TestTrustStateValidity(t *testing.T) {
	for _, trust := range []TrustState{TrustPending, TrustActive, TrustRevoked} {
		if !trust.IsValid() {
			t.Errorf("%q reported invalid", trust)
		}
	}
	if TrustState("friendly").IsValid() {
		t.Error("unknown trust state reported valid")
	}
}

func TestClassificationValidity(t *testing.T) {
	for _, c := range []Classification{ClassTraffic, ClassConstruction, ClassVoice, ClassMusic, ClassNature, ClassUnknown} {
		if !c.IsValid() {
			t.Errorf("%q reported invalid", c)
		}
	}
	if Classification("thunder").IsValid() {
		t.Error("unknown classification reported valid")
	}
}
