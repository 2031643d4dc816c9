/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package interview

import (
	"context"
	"errors"
	"time"
)

// Stage names one step of the turn pipeline
type Stage string

const (
	StageTranscode  Stage = "transcode"
	StageTranscribe Stage = "transcribe"
	StageSummarize  Stage = "summarize"
	StageSynthesize Stage = "synthesize"
)

// ErrUnavailable marks a capability that was never configured or failed to start
var ErrUnavailable = errors.New("capability unavailable")

// Outcome is the tagged result of one stage: a value, or the reason it failed
type Outcome[T any] struct {
	Stage Stage
	Value T
	Err   error
}

// Succeeded wraps a stage value
func Succeeded[T any](stage Stage, value T) Outcome[T] {
	return Outcome[T]{Stage: stage, Value: value}
}

// Failed wraps a stage failure
func Failed[T any](stage Stage, err error) Outcome[T] {
	return Outcome[T]{Stage: stage, Err: err}
}

// OK reports whether the stage produced a value
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Or returns the value, or fallback when the stage failed
func (o Outcome[T]) Or(fallback T) T {
	if o.Err != nil {
		return fallback
	}
	return o.Value
}

// runStage calls fn under its own time budget. A zero budget only inherits
// the parent deadline.
func runStage[T any](ctx context.Context, stage Stage, budget time.Duration, fn func(context.Context) (T, error)) Outcome[T] {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	value, err := fn(ctx)
	if err != nil {
		return Failed[T](stage, err)
	}
	return Succeeded(stage, value)
}
