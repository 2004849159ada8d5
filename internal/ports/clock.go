package ports

import "time"

// Clock abstracts wall-clock time so knock deadlines can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
