package clock

import "time"

// Now returns the current UTC time in the wire timestamp format.
func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
