package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		ObserveHTTP("/api/v1/cars", "GET", 200, 15*time.Millisecond)
		IncBookingCreated("user")
		IncBookingConflict()
		IncLoginFailure("bad_password")
		IncSyncTask("completed")
		IncNotification("sent")
	})
}
