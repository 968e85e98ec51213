package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/identity"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepository(mock)
}

func TestGetByID(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	dietitianID := uuid.New()
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "email", "name", "role", "dietitian_id", "health_counselor_id",
		"assigned_dietitians", "timezone", "created_at", "updated_at",
	}).AddRow(id, "c@example.com", "Casey", "client", &dietitianID, (*uuid.UUID)(nil),
		[]uuid.UUID{dietitianID}, "UTC", now, now)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(rows)

	u, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, identity.RoleClient, u.Role)
	require.True(t, u.AssignedToDietitian(dietitianID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "email", "name", "role", "dietitian_id", "health_counselor_id",
			"assigned_dietitians", "timezone", "created_at", "updated_at",
		}))

	_, err := repo.GetByID(context.Background(), id)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAvailabilityOrdering(t *testing.T) {
	mock, repo := newMockRepo(t)

	providerID := uuid.New()
	rows := pgxmock.NewRows([]string{"weekday", "start_time", "end_time"}).
		AddRow(int16(1), "09:00", "12:00").
		AddRow(int16(1), "13:00", "17:00")

	mock.ExpectQuery(`SELECT weekday, start_time, end_time`).
		WithArgs(providerID).
		WillReturnRows(rows)

	windows, err := repo.Availability(context.Background(), providerID)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	require.Equal(t, time.Monday, windows[0].Weekday)
	require.Equal(t, "13:00", windows[1].StartTime)
}

func TestEnsureCounselorAssignment(t *testing.T) {
	mock, repo := newMockRepo(t)

	clientID := uuid.New()
	counselorID := uuid.New()

	mock.ExpectExec(`UPDATE users`).
		WithArgs(clientID, counselorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.EnsureCounselorAssignment(context.Background(), clientID, counselorID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEnsureCounselorAssignmentTakenByOther(t *testing.T) {
	mock, repo := newMockRepo(t)

	clientID := uuid.New()
	counselorID := uuid.New()

	mock.ExpectExec(`UPDATE users`).
		WithArgs(clientID, counselorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.EnsureCounselorAssignment(context.Background(), clientID, counselorID)
	require.NoError(t, err)
	require.False(t, ok)
}
