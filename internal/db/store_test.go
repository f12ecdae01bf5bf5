package db

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/models"
)

// StoreTestSuite runs the repository against a migrated in-memory SQLite database.
type StoreTestSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (suite *StoreTestSuite) SetupTest() {
	suite.ctx = context.Background()

	conn, err := Connect(suite.ctx, Options{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(suite.T(), err, "failed to open test database")
	require.NoError(suite.T(), Migrate(conn, DriverSQLite, ""), "failed to migrate test database")

	suite.store = NewStore(conn)
}

func (suite *StoreTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *StoreTestSuite) createUser(name, email string, role models.Role) models.User {
	u := models.User{Name: name, Email: email, Password: "hash", Role: role}
	require.NoError(suite.T(), suite.store.CreateUser(suite.ctx, &u))
	return u
}

func (suite *StoreTestSuite) createMovement(userID, amount string, typ models.MovementType, date time.Time) models.Movement {
	m := models.Movement{
		UserID:      userID,
		Amount:      decimal.RequireFromString(amount),
		Description: "entry " + amount,
		Type:        typ,
		Date:        date,
	}
	require.NoError(suite.T(), suite.store.CreateMovement(suite.ctx, &m))
	return m
}

func (suite *StoreTestSuite) TestCreateAndFindUser() {
	u := suite.createUser("Ada", "  Ada@Example.com ", models.RoleAdmin)
	assert.NotEmpty(suite.T(), u.ID)
	assert.Equal(suite.T(), "ada@example.com", u.Email)

	byID, err := suite.store.UserByID(suite.ctx, u.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Ada", byID.Name)
	assert.Equal(suite.T(), models.RoleAdmin, byID.Role)
	assert.False(suite.T(), byID.EmailVerified)
	assert.WithinDuration(suite.T(), u.CreatedAt, byID.CreatedAt, time.Millisecond)

	byEmail, err := suite.store.UserByEmail(suite.ctx, "ADA@example.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), u.ID, byEmail.ID)
}

func (suite *StoreTestSuite) TestUserNotFound() {
	_, err := suite.store.UserByID(suite.ctx, "missing")
	assert.Equal(suite.T(), apperr.NotFound, apperr.KindOf(err))

	_, err = suite.store.UpdateUser(suite.ctx, "missing", models.UserUpdate{Name: strPtr("x")})
	assert.Equal(suite.T(), apperr.NotFound, apperr.KindOf(err))
}

func (suite *StoreTestSuite) TestDuplicateEmailIsConflict() {
	suite.createUser("A", "dup@example.com", models.RoleUser)

	u := models.User{Name: "B", Email: "DUP@example.com", Password: "hash"}
	err := suite.store.CreateUser(suite.ctx, &u)
	assert.Equal(suite.T(), apperr.Conflict, apperr.KindOf(err))
}

func (suite *StoreTestSuite) TestEmailTaken() {
	a := suite.createUser("A", "a@example.com", models.RoleUser)
	b := suite.createUser("B", "b@example.com", models.RoleUser)

	taken, err := suite.store.EmailTaken(suite.ctx, "a@example.com", b.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), taken)

	taken, err = suite.store.EmailTaken(suite.ctx, "a@example.com", a.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), taken)

	taken, err = suite.store.EmailTaken(suite.ctx, "free@example.com", "")
	require.NoError(suite.T(), err)
	assert.False(suite.T(), taken)
}

func (suite *StoreTestSuite) TestUpdateUser() {
	a := suite.createUser("A", "a@example.com", models.RoleUser)
	b := suite.createUser("B", "b@example.com", models.RoleUser)

	admin := models.RoleAdmin
	got, err := suite.store.UpdateUser(suite.ctx, a.ID, models.UserUpdate{Name: strPtr("Alice"), Role: &admin})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Alice", got.Name)
	assert.Equal(suite.T(), models.RoleAdmin, got.Role)
	assert.Equal(suite.T(), "a@example.com", got.Email)
	assert.False(suite.T(), got.UpdatedAt.Before(a.UpdatedAt))

	_, err = suite.store.UpdateUser(suite.ctx, a.ID, models.UserUpdate{Email: strPtr(b.Email)})
	assert.Equal(suite.T(), apperr.Conflict, apperr.KindOf(err))
}

func (suite *StoreTestSuite) TestListUsersWithCounts() {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := suite.createUser("Alice", "alice@example.com", models.RoleUser)
	b := suite.createUser("Bob", "bob@example.com", models.RoleUser)
	suite.createUser("Carol", "carol@corp.io", models.RoleAdmin)

	suite.createMovement(a.ID, "10", models.Income, base)
	suite.createMovement(a.ID, "5", models.Expense, base)
	suite.createMovement(b.ID, "1", models.Income, base)

	users, total, err := suite.store.ListUsers(suite.ctx, "", 0, 10)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 3, total)
	require.Len(suite.T(), users, 3)

	counts := map[string]int{}
	for _, u := range users {
		counts[u.Name] = u.MovementCount
	}
	assert.Equal(suite.T(), map[string]int{"Alice": 2, "Bob": 1, "Carol": 0}, counts)

	users, total, err = suite.store.ListUsers(suite.ctx, "EXAMPLE", 0, 1)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, total)
	assert.Len(suite.T(), users, 1)
}

func (suite *StoreTestSuite) TestListUsersSearchIsLiteral() {
	suite.createUser("Alice", "alice@example.com", models.RoleUser)
	suite.createUser("snake_case", "snake@example.com", models.RoleUser)
	suite.createUser("Full 100%", "full@example.com", models.RoleUser)

	tests := []struct {
		search string
		want   int
	}{
		{"_", 1},
		{"%", 1},
		{"e_c", 1},
		{`\`, 0},
		{"a", 3},
	}
	for _, tt := range tests {
		_, total, err := suite.store.ListUsers(suite.ctx, tt.search, 0, 10)
		require.NoError(suite.T(), err, tt.search)
		assert.Equal(suite.T(), tt.want, total, tt.search)
	}
}

func (suite *StoreTestSuite) TestMovementsFilterAndOrder() {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := suite.createUser("Alice", "alice@example.com", models.RoleUser)
	b := suite.createUser("Bob", "bob@example.com", models.RoleUser)

	suite.createMovement(a.ID, "100.50", models.Income, base.Add(48*time.Hour))
	suite.createMovement(a.ID, "40", models.Expense, base)
	suite.createMovement(b.ID, "7.25", models.Income, base.Add(24*time.Hour))

	all, err := suite.store.Movements(suite.ctx, models.MovementFilter{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), all, 3)
	assert.True(suite.T(), all[0].Date.Equal(base))
	assert.Equal(suite.T(), "Alice", all[0].OwnerName)
	assert.Equal(suite.T(), "bob@example.com", all[1].OwnerEmail)
	assert.True(suite.T(), decimal.RequireFromString("100.5").Equal(all[2].Amount))

	mine, err := suite.store.Movements(suite.ctx, models.MovementFilter{UserIDs: []string{a.ID}, Newest: true})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), mine, 2)
	for _, m := range mine {
		assert.Equal(suite.T(), a.ID, m.UserID)
	}
	assert.True(suite.T(), mine[0].Date.After(mine[1].Date))

	since := base.Add(time.Hour)
	until := base.Add(30 * time.Hour)
	window, err := suite.store.Movements(suite.ctx, models.MovementFilter{Since: &since, Until: &until})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), window, 1)
	assert.Equal(suite.T(), b.ID, window[0].UserID)

	incomes, err := suite.store.CountMovements(suite.ctx, models.MovementFilter{Type: models.Income})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, incomes)

	page, err := suite.store.Movements(suite.ctx, models.MovementFilter{Limit: 2, Offset: 2})
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), page, 1)
}

func (suite *StoreTestSuite) TestMovementNeedsOwner() {
	m := models.Movement{
		UserID:      "ghost",
		Amount:      decimal.NewFromInt(1),
		Description: "orphan",
		Type:        models.Income,
		Date:        time.Now(),
	}
	assert.Error(suite.T(), suite.store.CreateMovement(suite.ctx, &m))
}

func (suite *StoreTestSuite) TestRotateRefreshToken() {
	u := suite.createUser("A", "a@example.com", models.RoleUser)
	exp := time.Now().Add(time.Hour)

	require.NoError(suite.T(), suite.store.SaveRefreshToken(suite.ctx, u.ID, "first", exp))
	require.NoError(suite.T(), suite.store.RotateRefreshToken(suite.ctx, u.ID, "first", "second", exp))

	err := suite.store.RotateRefreshToken(suite.ctx, u.ID, "first", "third", exp)
	assert.Equal(suite.T(), apperr.Unauthenticated, apperr.KindOf(err), "used token must not rotate twice")

	require.NoError(suite.T(), suite.store.DeleteRefreshToken(suite.ctx, "second"))
	err = suite.store.RotateRefreshToken(suite.ctx, u.ID, "second", "fourth", exp)
	assert.Equal(suite.T(), apperr.Unauthenticated, apperr.KindOf(err))
}

func (suite *StoreTestSuite) TestExpiredRefreshTokenRejected() {
	u := suite.createUser("A", "a@example.com", models.RoleUser)
	require.NoError(suite.T(), suite.store.SaveRefreshToken(suite.ctx, u.ID, "old", time.Now().Add(-time.Minute)))

	err := suite.store.RotateRefreshToken(suite.ctx, u.ID, "old", "new", time.Now().Add(time.Hour))
	assert.Equal(suite.T(), apperr.Unauthenticated, apperr.KindOf(err))
}

func (suite *StoreTestSuite) TestPing() {
	assert.NoError(suite.T(), suite.store.Ping(suite.ctx))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), Options{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func strPtr(s string) *string { return &s }

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)&_time_format=sqlite", sqliteDSN(":memory:"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=foreign_keys(1)&_time_format=sqlite", sqliteDSN("file:x.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=foreign_keys(0)&_time_format=sqlite", sqliteDSN("x.db?_pragma=foreign_keys(0)&_time_format=sqlite"))
}
