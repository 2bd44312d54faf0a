// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reason estimates progress through a model's reasoning phase.
//
// The backend streams reasoning tokens before the answer with no length
// hint, so the client predicts a reasoning budget from the request size
// and maps the accumulated reasoning length onto a 0-100 bar. Once the
// accumulated length overshoots half the budget the curve flattens so the
// bar keeps moving without reaching 100 until the phase actually closes.
package reason

import (
	"math"
	"sync"

	"github.com/jeranaias/ragchat-tui/internal/util"
)

// ProgressIdle is the sentinel reported while no reasoning phase is
// active. The UI renders no bar for it.
const ProgressIdle = -1

// maxBudget caps the predicted reasoning length in characters.
const maxBudget = 1000

// =============================================================================
// BUDGET PREDICTION
// =============================================================================

// BudgetFor predicts the reasoning budget for a request. serialized is the
// exact messages JSON sent upstream; fileBytes is the total size of the
// attached documents.
//
// The request weight is the word count of the serialized history, plus one
// unit per kilobyte of attachments, plus a constant floor of 200. The
// budget is 40% of that, capped at maxBudget.
func BudgetFor(serialized string, fileBytes int64) int {
	words := float64(util.WordCount(serialized))
	totalChars := math.Trunc(words + float64(fileBytes)/1000 + 200)
	budget := int(math.Trunc(totalChars*0.4)) + 1
	if budget > maxBudget {
		budget = maxBudget
	}
	if budget < 1 {
		budget = 1
	}
	return budget
}

// =============================================================================
// ESTIMATOR
// =============================================================================

// Estimator tracks one reasoning phase. Safe for concurrent use: the
// stream callback advances it while the render loop polls Progress.
type Estimator struct {
	mu     sync.Mutex
	budget int
	length int
	active bool
	closed bool
}

// NewEstimator creates an estimator for the given budget. The phase is
// inactive until Start is called.
func NewEstimator(budget int) *Estimator {
	if budget < 1 {
		budget = 1
	}
	return &Estimator{budget: budget}
}

// Start marks the reasoning phase as active.
func (e *Estimator) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = true
	e.closed = false
}

// Observe records the accumulated reasoning length in runes. The length
// never moves backwards.
func (e *Estimator) Observe(length int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if length > e.length {
		e.length = length
	}
}

// Close snaps the phase to completion. Progress reports 100 afterwards
// until Reset.
func (e *Estimator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		e.closed = true
	}
}

// Reset returns the estimator to the idle state for the next turn.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.length = 0
	e.active = false
	e.closed = false
}

// Budget returns the predicted reasoning budget.
func (e *Estimator) Budget() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.budget
}

// Progress reports the current phase progress: ProgressIdle while
// inactive, 100 after Close, otherwise a value in [0, 99].
//
// Below half the budget the bar advances linearly. Past that point the
// curve switches to L*100/(budget/2 + L), which approaches but never
// reaches 100 no matter how far the model overshoots the prediction.
func (e *Estimator) Progress() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return ProgressIdle
	}
	if e.closed {
		return 100
	}

	l := float64(e.length)
	half := float64(e.budget) * 0.5
	if l > half {
		return int(math.Trunc(l * 100 / (half + l)))
	}
	return int(math.Trunc(l * 100 / float64(e.budget)))
}
