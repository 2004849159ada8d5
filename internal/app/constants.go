package app

import "time"

// DefaultReapInterval is how often the Reaper looks for expired knock windows.
const DefaultReapInterval = time.Second

// maxReadAttempts bounds how often View re-reads when a commit lands between its reads.
const maxReadAttempts = 3

// Draw sources reported in CardDrawnPayload.
const (
	DrawSourceStock   = "stock"
	DrawSourceDiscard = "discard"
)

const (
	rollbackGaveUp  = "gave_up"
	rollbackExpired = "expired"
)
