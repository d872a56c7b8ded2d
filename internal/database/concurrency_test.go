package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carrental/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	car := createTestCar(t, db, "DL01ZZ0001", 75)
	customer := createTestCustomer(t, db, "Rush", "9111111111", "rush@example.com")

	start := models.NewDate(2025, time.November, 1)
	end := models.NewDate(2025, time.November, 4)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(offset int) {
			defer wg.Done()
			// every request overlaps November 4th
			b := newTestBooking(car, customer, start.AddDays(offset%3), end)
			results <- db.CreateBookingWithLock(ctx, b)
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.True(t, errors.Is(err, ErrCarNotAvailable), "unexpected error: %v", err)
	}

	assert.Equal(t, 1, successCount, "only one overlapping booking may succeed")

	bookings, err := db.GetBookingsInRange(ctx, start, end)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}
