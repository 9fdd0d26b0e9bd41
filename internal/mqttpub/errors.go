package mqttpub

import "codeberg.org/mutker/airco2ctl/internal/errors"

const (
	ErrInvalidBroker = errors.ErrorCode("mqtt_invalid_broker")
	ErrInvalidTopic  = errors.ErrorCode("mqtt_invalid_topic")
	ErrConnect       = errors.ErrorCode("mqtt_connect_failed")
)
