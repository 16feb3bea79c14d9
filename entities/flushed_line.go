package entities

import "time"

// FlushedLine carries the exact text written to the connection.
type FlushedLine struct {
	Contents  string
	Timestamp time.Time
}
