package service

import (
	"errors"
	"fmt"
)

// Pipeline stages, in execution order.
const (
	StageAccount = "account"
	StageAcquire = "acquire"
	StageUpload  = "upload"
	StageCreate  = "create"
	StageProcess = "process"
	StagePublish = "publish"
)

// Failure kinds. Match with errors.Is.
var (
	ErrAcquisitionFailed       = errors.New("AcquisitionFailed")
	ErrUploadFailed            = errors.New("UploadFailed")
	ErrNoConnectedAccount      = errors.New("NoConnectedAccount")
	ErrRemoteCreate            = errors.New("RemoteCreateError")
	ErrRemoteProcessing        = errors.New("RemoteProcessingError")
	ErrRemoteProcessingTimeout = errors.New("RemoteProcessingTimeout")
	ErrRemotePublish           = errors.New("RemotePublishError")
)

// PipelineError is the single failure type a pipeline stage reports.
type PipelineError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stageError(stage string, kind, err error) *PipelineError {
	return &PipelineError{Stage: stage, Kind: kind, Err: err}
}

// ValidationError is returned by the scheduling surface for bad input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
