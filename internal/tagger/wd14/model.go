// Copyright 2026 The Booru Ingest Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wd14 adapts a WD14-family ONNX tagger model, invoked as an
// external inference subprocess, to internal/tagger.Model.
package wd14

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/boorudev/ingestpipe/internal/tagger"
)

// Runner executes the inference subprocess and captures its JSON
// stdout. Mirrors internal/extractor.Runner so tests can substitute
// canned output instead of loading a real model.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error)
}

// ExecRunner runs the real inference subprocess.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return exec.CommandContext(runCtx, name, args...).Output()
}

// Model runs the configured WD14 checkpoint via scriptPath, a CLI tool
// that accepts an image path and prints one JSON object per call.
type Model struct {
	runner     Runner
	scriptPath string
	modelName  string
	timeout    time.Duration
}

// Load constructs a Model bound to modelName, suitable for use as a
// tagger.ModelLoader:
//
//	tagger.New(ctx, cfg, func(ctx context.Context) (tagger.Model, error) {
//		return wd14.Load(ExecRunner{}, scriptPath, modelName, timeout), nil
//	}, extractor)
func Load(runner Runner, scriptPath, modelName string, timeout time.Duration) *Model {
	return &Model{runner: runner, scriptPath: scriptPath, modelName: modelName, timeout: timeout}
}

type inferenceOutput struct {
	General   map[string]float64 `json:"general"`
	Character map[string]float64 `json:"character"`
	Rating    map[string]float64 `json:"rating"`
}

// TagFrame implements tagger.Model.
func (m *Model) TagFrame(ctx context.Context, path string) (tagger.FrameResult, error) {
	out, err := m.runner.Run(ctx, m.timeout, m.scriptPath, "--model", m.modelName, "--image", path)
	if err != nil {
		return tagger.FrameResult{}, fmt.Errorf("wd14: inference subprocess: %w", err)
	}

	var parsed inferenceOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return tagger.FrameResult{}, fmt.Errorf("wd14: parse inference output: %w", err)
	}

	return tagger.FrameResult{
		General:   scoredTagsFrom(parsed.General),
		Character: scoredTagsFrom(parsed.Character),
		Rating:    topRating(parsed.Rating),
	}, nil
}

func scoredTagsFrom(m map[string]float64) []tagger.ScoredTag {
	out := make([]tagger.ScoredTag, 0, len(m))
	for label, confidence := range m {
		out = append(out, tagger.ScoredTag{Label: label, Confidence: confidence})
	}

	return out
}

func topRating(m map[string]float64) string {
	best, bestScore := "general", -1.0
	for rating, score := range m {
		if score > bestScore {
			best, bestScore = rating, score
		}
	}

	return best
}
