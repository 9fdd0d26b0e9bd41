package monitor

import "codeberg.org/mutker/airco2ctl/internal/errors"

const (
	ErrNilTransport   = errors.ErrorCode("monitor_nil_transport")
	ErrAlreadyStarted = errors.ErrorCode("monitor_already_started")
	ErrAcquisition    = errors.ErrorCode("monitor_acquisition_failed")
)
