package asr

import (
	"context"
	"errors"
)

// ErrEngine marks a failed recognition call.
var ErrEngine = errors.New("transcription engine error")

// Task selects between same-language transcription and translation to English.
type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// ParseTask validates a task name. An empty name selects TaskTranslate.
func ParseTask(s string) (Task, bool) {
	switch Task(s) {
	case "":
		return TaskTranslate, true
	case TaskTranscribe, TaskTranslate:
		return Task(s), true
	default:
		return "", false
	}
}

// Segment is a span of recognized text. Offsets are in seconds relative to the
// start of the window passed to the engine; zero means the engine did not
// report a bound.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Options tunes a single recognition call.
type Options struct {
	// Language is the ISO 639-1 source language. Empty requests auto-detection.
	Language string
	Task     Task
	// VADFilter suppresses output for non-speech audio.
	VADFilter bool
	// BeamSize is the decoder search width; 1 is greedy decoding.
	BeamSize int
}

// ModelProfile names a deployment profile that maps to a model size.
type ModelProfile string

const (
	ModelCPUBasic    ModelProfile = "cpu-basic"
	ModelCPUAdvanced ModelProfile = "cpu-advanced"
	ModelGPU         ModelProfile = "gpu-accelerated"
)

var profileModels = map[ModelProfile]string{
	ModelCPUBasic:    "tiny",
	ModelCPUAdvanced: "small",
	ModelGPU:         "large-v3",
}

// ResolveModel maps a profile name to a model size. Anything that is not a
// known profile is treated as a model size and returned unchanged.
func ResolveModel(name string) string {
	if model, ok := profileModels[ModelProfile(name)]; ok {
		return model
	}
	if name == "" {
		return "tiny"
	}
	return name
}

// HealthStatus represents the health of a component.
type HealthStatus struct {
	Healthy     bool   `json:"healthy"`
	Message     string `json:"message,omitempty"`
	ModelLoaded bool   `json:"modelLoaded"`
}

// Engine maps one window of audio to an ordered list of timed segments. It may
// return no segments for a silent or filtered window.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error)
}
