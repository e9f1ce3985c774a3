package model

import (
	"fmt"
	"time"
)

// Pipeline stage names used in failure reasons.
const (
	StageDraft  = "draft"
	StageRender = "render"
	StagePlace  = "place"
)

// StageError marks a per-posting failure at a named pipeline stage. It is
// caught at the per-job boundary and converted into a failed Outcome; it
// never aborts the run.
type StageError struct {
	Stage string // draft, render, or place
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
