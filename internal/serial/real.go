package serial

import (
	"fmt"

	hw "go.bug.st/serial"
)

// Open connects to the sensor device at the given baud rate.
// A missing or busy device is fatal for the hardware source: the caller logs
// the error and the rest of the system keeps running on fallback data.
func Open(device string, baud int) (Port, error) {
	port, err := hw.Open(device, &hw.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return port, nil
}
