package device

import "codeberg.org/mutker/airco2ctl/internal/errors"

const (
	ErrFeatureReport = errors.ErrorCode("device_feature_report_failed")
)
