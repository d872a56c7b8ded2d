package service

import (
	"context"
	"testing"

	"carrental/internal/database"
	"carrental/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerService(t *testing.T) {
	db := setupDB(t)
	svc := NewCustomerService(db, testLogger())
	ctx := context.Background()

	c := &models.Customer{CustomerName: " Ravi ", CustomerCity: "Pune", MobileNo: "9800000001", Email: "Ravi@Example.com"}
	require.NoError(t, svc.CreateCustomer(ctx, c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Ravi", c.CustomerName)
	assert.Equal(t, "ravi@example.com", c.Email)

	t.Run("Duplicates", func(t *testing.T) {
		err := svc.CreateCustomer(ctx, &models.Customer{CustomerName: "R2", MobileNo: "9800000001", Email: "r2@example.com"})
		assert.ErrorIs(t, err, ErrCustomerExists)

		err = svc.CreateCustomer(ctx, &models.Customer{CustomerName: "R3", MobileNo: "9800000002", Email: "ravi@example.com"})
		assert.ErrorIs(t, err, ErrCustomerExists)
	})

	t.Run("UserEmailReserved", func(t *testing.T) {
		seedUser(t, db, "member@example.com", "9800000100", models.RoleUser)
		err := svc.CreateCustomer(ctx, &models.Customer{CustomerName: "M", MobileNo: "9800000101", Email: "member@example.com"})
		assert.ErrorIs(t, err, ErrCustomerExists)
	})

	t.Run("Validation", func(t *testing.T) {
		for _, in := range []models.Customer{
			{MobileNo: "1", Email: "a@b.co"},
			{CustomerName: "n", Email: "a@b.co"},
			{CustomerName: "n", MobileNo: "1"},
			{CustomerName: "n", MobileNo: "1", Email: "bad"},
		} {
			in := in
			assert.True(t, IsValidation(svc.CreateCustomer(ctx, &in)))
		}
	})

	t.Run("Update", func(t *testing.T) {
		upd := *c
		upd.CustomerCity = "Nagpur"
		require.NoError(t, svc.UpdateCustomer(ctx, &upd))

		got, err := svc.GetCustomer(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Nagpur", got.CustomerCity)

		missing := upd
		missing.ID = uuid.NewString()
		missing.MobileNo = "9800000999"
		missing.Email = "nobody@example.com"
		assert.ErrorIs(t, svc.UpdateCustomer(ctx, &missing), ErrCustomerNotFound)
	})

	t.Run("List", func(t *testing.T) {
		list, err := svc.ListCustomers(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("DeleteInUse", func(t *testing.T) {
		car := seedCar(t, db, "MH12AA0001", 1200)
		b := &models.Booking{
			ID:              uuid.NewString(),
			BookingUID:      uuid.NewString(),
			CarID:           car.ID,
			CustomerID:      c.ID,
			StartDate:       models.NewDate(2031, 1, 1),
			EndDate:         models.NewDate(2031, 1, 2),
			TotalBillAmount: 2400,
		}
		require.NoError(t, db.CreateBookingWithLock(ctx, b))

		assert.ErrorIs(t, svc.DeleteCustomer(ctx, c.ID), database.ErrInUse)

		require.NoError(t, db.DeleteBooking(ctx, b.ID))
		require.NoError(t, svc.DeleteCustomer(ctx, c.ID))
		_, err := svc.GetCustomer(ctx, c.ID)
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})
}

func TestCustomerService_GetProfile(t *testing.T) {
	db := setupDB(t)
	svc := NewCustomerService(db, testLogger())
	ctx := context.Background()

	admin := seedUser(t, db, "admin@example.com", "9810000001", models.RoleAdmin)
	user := seedUser(t, db, "user@example.com", "9810000002", models.RoleUser)

	own, err := svc.GetProfile(ctx, user, "")
	require.NoError(t, err)
	assert.Equal(t, user.UserID, own.ID)
	assert.Equal(t, "user@example.com", own.Email)

	_, err = svc.GetProfile(ctx, user, admin.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	other, err := svc.GetProfile(ctx, admin, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "9810000002", other.MobileNo)

	_, err = svc.GetProfile(ctx, admin, "nobody")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}
