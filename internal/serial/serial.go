// Package serial ingests raw readings from the sensor's serial byte stream.
// The real implementation opens a hardware port; the fake allows testing
// without a device attached.
package serial

import "io"

// Port is a line-oriented byte stream from the sensor.
type Port interface {
	io.Reader

	// Close releases the port.
	Close() error
}

// DefaultBaudRate matches the sensor firmware's serial configuration.
const DefaultBaudRate = 115200
