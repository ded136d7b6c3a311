package ingest

import (
	"fmt"
	"math"
	"time"

	"github.com/opennoisenet/noisenet/internal/idgen"
	"github.com/opennoisenet/noisenet/internal/model"
)

// RawEvent is the untyped submission payload as the transport hands it
// over. Every field is a pointer so "absent" and "zero" stay distinct.
type RawEvent struct {
	DeviceID       *string    `json:"device_id"`
	Timestamp      *time.Time `json:"timestamp"`
	LevelDB        *float64   `json:"level_db"`
	PeakDB         *float64   `json:"peak_db"`
	Classification *string    `json:"classification"`
	Confidence     *float64   `json:"confidence"`
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
}

// Validator normalizes raw submissions into NoiseEvents, accumulating every
// violated rule so the device learns about all of them in one response.
type Validator struct {
	maxPastSkew   time.Duration
	maxFutureSkew time.Duration
}

// NewValidator returns a validator accepting timestamps within
// [now-maxPastSkew, now+maxFutureSkew].
func NewValidator(maxPastSkew, maxFutureSkew time.Duration) *Validator {
	return &Validator{
		maxPastSkew:   maxPastSkew,
		maxFutureSkew: maxFutureSkew,
	}
}

// Validate checks the raw submission against the device record and returns
// a normalized NoiseEvent: UTC timestamp, geolocation defaulted from the
// device when the payload omits it, and a freshly generated ID. On failure
// it returns a *model.ValidationError listing every violated rule.
func (v *Validator) Validate(raw RawEvent, device *model.Device, now time.Time) (*model.NoiseEvent, error) {
	var ve model.ValidationError

	if raw.Timestamp == nil {
		ve.Add("timestamp", "is required")
	} else {
		ts := raw.Timestamp.UTC()
		if ts.Before(now.Add(-v.maxPastSkew)) {
			ve.Add("timestamp", fmt.Sprintf("is older than the accepted window of %s", v.maxPastSkew))
		}
		if ts.After(now.Add(v.maxFutureSkew)) {
			ve.Add("timestamp", fmt.Sprintf("is more than %s in the future", v.maxFutureSkew))
		}
	}

	if raw.LevelDB == nil {
		ve.Add("level_db", "is required")
	} else if math.IsNaN(*raw.LevelDB) || math.IsInf(*raw.LevelDB, 0) {
		ve.Add("level_db", "must be a finite number")
	} else if *raw.LevelDB < model.MinLevelDB || *raw.LevelDB > model.MaxLevelDB {
		ve.Add("level_db", fmt.Sprintf("must be in [%g, %g], got %g", model.MinLevelDB, model.MaxLevelDB, *raw.LevelDB))
	}

	if raw.PeakDB != nil {
		if math.IsNaN(*raw.PeakDB) || math.IsInf(*raw.PeakDB, 0) {
			ve.Add("peak_db", "must be a finite number")
		} else if *raw.PeakDB < model.MinLevelDB || *raw.PeakDB > model.MaxLevelDB {
			ve.Add("peak_db", fmt.Sprintf("must be in [%g, %g], got %g", model.MinLevelDB, model.MaxLevelDB, *raw.PeakDB))
		}
	}

	classification := model.Classification("")
	if raw.Classification != nil && *raw.Classification != "" {
		classification = model.Classification(*raw.Classification)
		if !classification.IsValid() {
			ve.Add("classification", fmt.Sprintf("invalid value %q", *raw.Classification))
		}
	}

	if raw.Confidence != nil {
		if math.IsNaN(*raw.Confidence) || math.IsInf(*raw.Confidence, 0) {
			ve.Add("confidence", "must be a finite number")
		} else if *raw.Confidence < 0 || *raw.Confidence > 1 {
			ve.Add("confidence", fmt.Sprintf("must be in [0, 1], got %g", *raw.Confidence))
		}
	}

	if (raw.Latitude == nil) != (raw.Longitude == nil) {
		ve.Add("location", "latitude and longitude must be provided together")
	}
	if raw.Latitude != nil {
		if math.IsNaN(*raw.Latitude) || math.IsInf(*raw.Latitude, 0) {
			ve.Add("latitude", "must be a finite number")
		} else if *raw.Latitude < -90 || *raw.Latitude > 90 {
			ve.Add("latitude", fmt.Sprintf("must be in [-90, 90], got %g", *raw.Latitude))
		}
	}
	if raw.Longitude != nil {
		if math.IsNaN(*raw.Longitude) || math.IsInf(*raw.Longitude, 0) {
			ve.Add("longitude", "must be a finite number")
		} else if *raw.Longitude < -180 || *raw.Longitude > 180 {
			ve.Add("longitude", fmt.Sprintf("must be in [-180, 180], got %g", *raw.Longitude))
		}
	}

	// Geolocation falls back to the device's registered position.
	lat, lng := raw.Latitude, raw.Longitude
	if lat == nil && lng == nil {
		lat, lng = device.Latitude, device.Longitude
		if lat == nil || lng == nil {
			ve.Add("location", "submission has no geolocation and the device has none registered")
		}
	}

	if ve.HasErrors() {
		return nil, &ve
	}

	id, err := idgen.Event()
	if err != nil {
		return nil, err
	}

	var peak *float64
	if raw.PeakDB != nil {
		p := *raw.PeakDB
		peak = &p
	}
	var confidence *float64
	if raw.Confidence != nil {
		c := *raw.Confidence
		confidence = &c
	}

	return &model.NoiseEvent{
		ID:             id,
		DeviceID:       device.ID,
		RecordedAt:     raw.Timestamp.UTC(),
		LevelDB:        *raw.LevelDB,
		PeakDB:         peak,
		Classification: classification,
		Confidence:     confidence,
		Latitude:       *lat,
		Longitude:      *lng,
		CreatedAt:      now.UTC(),
	}, nil
}
