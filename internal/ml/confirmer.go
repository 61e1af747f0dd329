package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Confirmation is the window confirmer verdict.
type Confirmation struct {
	ReconstructionError float64 `json:"reconstructionError"`
	IsAnomaly           bool    `json:"isAnomaly"`
}

// Confirmer validates a fixed-length window of feature values, oldest first.
type Confirmer interface {
	Confirm(ctx context.Context, values []float64) (Confirmation, error)
}

// InvalidWindowSizeError means the caller passed a window of the wrong length.
type InvalidWindowSizeError struct {
	Want, Got int
}

func (e *InvalidWindowSizeError) Error() string {
	return fmt.Sprintf("window must be %d values long, got %d", e.Want, e.Got)
}

// Profile is the on-disk model: a scaler fitted on normal traffic plus the
// error threshold computed at training time (mean + 3*std of training errors).
type Profile struct {
	Window    int     `json:"window"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Threshold float64 `json:"threshold"`
}

func DefaultProfile(window int) Profile {
	return Profile{Window: window, Mean: 0, Std: 1, Threshold: 3}
}

// LoadProfile reads a JSON profile. Zero fields fall back to DefaultProfile(window).
func LoadProfile(path string, window int) (Profile, error) {
	p := DefaultProfile(window)
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read model: %w", err)
	}
	var raw Profile
	if err := json.Unmarshal(b, &raw); err != nil {
		return p, fmt.Errorf("decode model %s: %w", path, err)
	}
	if raw.Window > 0 && raw.Window != window {
		return p, fmt.Errorf("model %s was trained for window %d, configured %d", path, raw.Window, window)
	}
	p.Mean = raw.Mean
	if raw.Std > 0 {
		p.Std = raw.Std
	}
	if raw.Threshold > 0 {
		p.Threshold = raw.Threshold
	}
	return p, nil
}

// Reconstructor scales the window with the profile scaler and reconstructs every
// point as the trained normal level. The reconstruction error is the MSE in
// scaled space, so both single spikes and sustained level shifts raise it.
type Reconstructor struct {
	p Profile
}

func NewReconstructor(p Profile) *Reconstructor {
	if p.Std <= 0 {
		p.Std = 1
	}
	return &Reconstructor{p: p}
}

func (r *Reconstructor) Window() int { return r.p.Window }

func (r *Reconstructor) Confirm(ctx context.Context, values []float64) (Confirmation, error) {
	if len(values) != r.p.Window {
		return Confirmation{}, &InvalidWindowSizeError{Want: r.p.Window, Got: len(values)}
	}
	if err := ctx.Err(); err != nil {
		return Confirmation{}, err
	}
	var sum float64
	for _, v := range values {
		z := (v - r.p.Mean) / r.p.Std
		sum += z * z
	}
	mse := sum / float64(len(values))
	return Confirmation{ReconstructionError: mse, IsAnomaly: mse > r.p.Threshold}, nil
}
