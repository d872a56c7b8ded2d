package database

import (
	"context"
	"testing"

	"carrental/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(email, role string) *models.User {
	return &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         role,
	}
}

func TestRegisterUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := newTestUser("  Jane@Example.com ", models.RoleUser)
	customer := &models.Customer{CustomerName: "Jane", CustomerCity: "Goa", MobileNo: "9000011111"}
	require.NoError(t, db.RegisterUser(ctx, user, customer))

	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, user.ID, customer.ID)

	gotUser, err := db.GetUserByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotUser.ID)
	assert.Equal(t, "hash", gotUser.PasswordHash)

	gotCustomer, err := db.GetCustomer(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", gotCustomer.Email)
	assert.Equal(t, "Goa", gotCustomer.CustomerCity)
}

func TestRegisterUser_RollsBackOnDuplicateMobile(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestCustomer(t, db, "Existing", "9000022222", "existing@example.com")

	user := newTestUser("new@example.com", models.RoleUser)
	err := db.RegisterUser(ctx, user, &models.Customer{CustomerName: "New", MobileNo: "9000022222"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = db.GetUserByEmail(ctx, "new@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUser_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateUser(ctx, newTestUser("dup@example.com", models.RoleAdmin)))
	err := db.CreateUser(ctx, newTestUser("DUP@example.com", models.RoleUser))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserUpdates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := newTestUser("role@example.com", models.RoleUser)
	require.NoError(t, db.CreateUser(ctx, user))

	require.NoError(t, db.UpdateUserRole(ctx, user.ID, models.RoleAdmin))

	got, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	assert.ErrorIs(t, db.UpdateUserRole(ctx, "missing", models.RoleUser), ErrNotFound)

	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, db.DeleteUser(ctx, user.ID))
	_, err = db.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteUser(ctx, user.ID), ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := newTestUser("profile@example.com", models.RoleUser)
	customer := &models.Customer{CustomerName: "Pro", MobileNo: "9000033333"}
	require.NoError(t, db.RegisterUser(ctx, user, customer))

	user.Name = "Pro File"
	user.Email = "Renamed@Example.com"
	customer.CustomerCity = "Delhi"
	require.NoError(t, db.UpdateProfile(ctx, user, customer))

	gotCustomer, err := db.GetCustomer(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed@example.com", gotCustomer.Email)
	assert.Equal(t, "Delhi", gotCustomer.CustomerCity)

	gotUser, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pro File", gotUser.Name)

	t.Run("WithoutCustomer", func(t *testing.T) {
		user.Name = "Only User"
		require.NoError(t, db.UpdateProfile(ctx, user, nil))
	})

	t.Run("MissingUser", func(t *testing.T) {
		ghost := newTestUser("ghost@example.com", models.RoleUser)
		assert.ErrorIs(t, db.UpdateProfile(ctx, ghost, nil), ErrNotFound)
	})
}

func TestEmailAndMobileTaken(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := newTestUser("taken@example.com", models.RoleUser)
	require.NoError(t, db.CreateUser(ctx, user))
	customer := createTestCustomer(t, db, "Cust", "9000044444", "cust@example.com")

	taken, err := db.EmailTaken(ctx, "TAKEN@example.com", "")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = db.EmailTaken(ctx, "taken@example.com", user.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = db.EmailTaken(ctx, "cust@example.com", "")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = db.MobileTaken(ctx, " 9000044444 ", "")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = db.MobileTaken(ctx, "9000044444", customer.ID)
	require.NoError(t, err)
	assert.False(t, taken)
}
