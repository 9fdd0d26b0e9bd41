// Package device opens the AIRCO2NTROL monitor over USB HID and exposes
// the raw report read primitive consumed by the acquisition engine.
package device

import (
	"time"

	"codeberg.org/mutker/airco2ctl/internal/errors"
	"codeberg.org/mutker/airco2ctl/internal/logger"
	"github.com/sstallion/go-hid"
)

// USB identity of the TFA Dostmann AIRCO2NTROL Mini/Coach.
const (
	VendorID  = 0x04d9
	ProductID = 0xa052
)

// ReportSize is the fixed length of one raw report.
const ReportSize = 8

// initReport is written once as a feature report to switch the monitor
// into its unencrypted reporting mode.
var initReport = []byte{0x00, 0x00}

type Device struct {
	dev *hid.Device
}

// Open initializes the HID subsystem and opens the monitor by its fixed
// vendor and product identity. There is no retry; failures are surfaced
// to the caller as-is.
func Open() (*Device, error) {
	errFactory := errors.New()

	if err := hid.Init(); err != nil {
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}

	dev, err := hid.OpenFirst(VendorID, ProductID)
	if err != nil {
		_ = hid.Exit()
		return nil, errFactory.Wrap(errors.ErrOpenDevice, err)
	}

	if _, err := dev.SendFeatureReport(initReport); err != nil {
		_ = dev.Close()
		_ = hid.Exit()
		return nil, errFactory.Wrap(ErrFeatureReport, err)
	}

	if product, err := dev.GetProductStr(); err == nil {
		logger.Info().Msgf("Detected monitor: %v", product)
	} else {
		logger.Warn().Msgf("Failed to get product string: %v", err)
	}

	return &Device{dev: dev}, nil
}

// ReadReport performs one blocking read with the given timeout. A timeout
// is reported as (0, nil); the caller decides whether to keep waiting.
// Any other failure is a hard device fault.
func (d *Device) ReadReport(p []byte, timeout time.Duration) (int, error) {
	n, err := d.dev.ReadWithTimeout(p, timeout)
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrReadDevice, err)
	}

	return n, nil
}

// Close releases the device handle and finalizes the HID subsystem.
func (d *Device) Close() error {
	errFactory := errors.New()

	if err := d.dev.Close(); err != nil {
		_ = hid.Exit()
		return errFactory.Wrap(errors.ErrCloseDevice, err)
	}
	if err := hid.Exit(); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
