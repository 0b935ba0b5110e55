package monitor

import (
	"errors"
	"fmt"
)

var ErrAlreadyRun = errors.New("render loop has already run")

// ConnectionError reports that the stream could not be established.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// StreamReadError reports that an established stream failed before the remote side closed it.
type StreamReadError struct {
	Err      error
	Received int
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("stream read failed after %d readings: %v", e.Received, e.Err)
}

func (e *StreamReadError) Unwrap() error {
	return e.Err
}

// RenderError reports that the rendering surface rejected an update.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
