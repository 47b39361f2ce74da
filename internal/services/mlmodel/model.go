// Package mlmodel wraps the pre-trained fraud classifier. The model
// artifact is a logistic regression exported by the offline training
// pipeline: a weight per feature, a bias, and the scaler statistics.
// Training happens elsewhere; this package only serves.
package mlmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"fraudsentry/internal/models"
)

// ErrModelUnavailable signals degraded mode: no model is loaded or
// inference failed. Callers fall back to rules-only scoring.
var ErrModelUnavailable = errors.New("ml model unavailable")

// artifact is the on-disk model format produced by the training pipeline.
type artifact struct {
	Version string    `json:"version"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Mean    []float64 `json:"mean"`
	Stddev  []float64 `json:"stddev"`
}

// Model serves fraud probability predictions. The loaded artifact lives
// behind an atomic pointer: reads are unsynchronized, and Reload swaps
// the whole handle rather than mutating in place.
type Model struct {
	current atomic.Pointer[artifact]
}

// New creates an empty model. Predict returns ErrModelUnavailable until
// a successful Load.
func New() *Model { return &Model{} }

// Load reads and validates a model artifact, then installs it atomically.
// An invalid artifact leaves any previously loaded model in place.
func (m *Model) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decode model artifact: %w", err)
	}

	if len(a.Weights) != FeatureCount {
		return fmt.Errorf("model artifact has %d weights, want %d", len(a.Weights), FeatureCount)
	}
	if len(a.Mean) != FeatureCount || len(a.Stddev) != FeatureCount {
		return fmt.Errorf("model artifact scaler does not cover %d features", FeatureCount)
	}

	m.current.Store(&a)
	return nil
}

// Reload is Load under its documented name: a new model version swaps the
// handle atomically while in-flight predictions finish on the old one.
func (m *Model) Reload(path string) error { return m.Load(path) }

// Available reports whether a model is loaded.
func (m *Model) Available() bool { return m.current.Load() != nil }

// Version returns the loaded model version, or empty when degraded.
func (m *Model) Version() string {
	if a := m.current.Load(); a != nil {
		return a.Version
	}
	return ""
}

// Predict returns the fraud probability in [0,1] for a transaction.
// It never panics: a missing model or a malformed prediction surfaces
// as ErrModelUnavailable so the scorer can degrade to rules only.
func (m *Model) Predict(tx *models.Transaction) (float64, error) {
	a := m.current.Load()
	if a == nil {
		return 0, ErrModelUnavailable
	}

	features := Features(tx)

	z := a.Bias
	for i, x := range features {
		sd := a.Stddev[i]
		if sd == 0 {
			sd = 1
		}
		z += a.Weights[i] * ((x - a.Mean[i]) / sd)
	}

	p := sigmoid(z)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: non-finite prediction", ErrModelUnavailable)
	}
	return p, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
