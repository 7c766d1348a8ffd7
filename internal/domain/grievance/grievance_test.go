package grievance

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() NewGrievanceInput {
	return NewGrievanceInput{
		UserID:   uuid.New(),
		Problem:  "Streetlight broken",
		City:     "MG Road",
		MailBody: "I would like to report that Streetlight broken in MG Road.",
	}
}

func deliveredGrievance(t *testing.T) *Grievance {
	t.Helper()
	g, err := NewGrievance(validInput())
	require.NoError(t, err)
	require.NoError(t, g.MarkDelivered())
	g.ClearDomainEvents()
	return g
}

func TestNewGrievance(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*NewGrievanceInput)
		errorMsg string
	}{
		{name: "valid", mutate: func(*NewGrievanceInput) {}},
		{name: "nil owner", mutate: func(in *NewGrievanceInput) { in.UserID = uuid.Nil }, errorMsg: "Owner cannot be empty"},
		{name: "blank problem", mutate: func(in *NewGrievanceInput) { in.Problem = "   " }, errorMsg: "Problem description cannot be empty"},
		{name: "blank body", mutate: func(in *NewGrievanceInput) { in.MailBody = "\n" }, errorMsg: "Mail body missing"},
		{name: "problem too long", mutate: func(in *NewGrievanceInput) { in.Problem = strings.Repeat("x", MaxProblemLength+1) }, errorMsg: "too long"},
		{name: "request id too long", mutate: func(in *NewGrievanceInput) { in.RequestID = strings.Repeat("r", MaxRequestIDLength+1) }, errorMsg: "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)

			g, err := NewGrievance(input)
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, g)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, g.ID)
			assert.Equal(t, StatusPending, g.Status)
			assert.Equal(t, DeliveryPending, g.Delivery)
			assert.False(t, g.IsVisible())
			assert.Equal(t, 1, g.Version)
			assert.Empty(t, g.DomainEvents())
		})
	}
}

func TestNewGrievance_DefaultsCity(t *testing.T) {
	input := validInput()
	input.City = ""

	g, err := NewGrievance(input)
	require.NoError(t, err)
	assert.Equal(t, DefaultCity, g.City)
}

func TestGrievance_MarkDelivered(t *testing.T) {
	g, err := NewGrievance(validInput())
	require.NoError(t, err)

	require.NoError(t, g.MarkDelivered())
	assert.True(t, g.IsVisible())
	assert.NotNil(t, g.DeliveredAt)
	assert.Equal(t, 2, g.Version)

	events := g.DomainEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(*GrievanceCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, g.ID, created.Grievance.ID)
	assert.Equal(t, g.UserID, created.OwnerID())
	assert.Equal(t, StatusPending, created.Current().Status)

	err = g.MarkDelivered()
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestGrievance_MarkDeliveryFailed(t *testing.T) {
	g, err := NewGrievance(validInput())
	require.NoError(t, err)

	require.NoError(t, g.MarkDeliveryFailed("smtp: connection refused"))
	assert.Equal(t, DeliveryFailed, g.Delivery)
	assert.False(t, g.IsVisible())
	assert.Empty(t, g.DomainEvents())

	assert.Error(t, g.MarkDelivered())
}

func TestGrievance_ChangeStatus(t *testing.T) {
	admin := uuid.New()

	t.Run("allowed transition records event", func(t *testing.T) {
		g := deliveredGrievance(t)
		version := g.Version

		changed, err := g.ChangeStatus(StatusInProgress, admin, false)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusInProgress, g.Status)
		assert.Equal(t, version+1, g.Version)
		require.NotNil(t, g.StatusChangedBy)
		assert.Equal(t, admin, *g.StatusChangedBy)

		events := g.DomainEvents()
		require.Len(t, events, 1)
		changedEvent := events[0].(*GrievanceStatusChangedEvent)
		assert.Equal(t, StatusPending, changedEvent.OldStatus)
		assert.Equal(t, StatusInProgress, changedEvent.NewStatus)
		assert.False(t, changedEvent.Forced)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		g := deliveredGrievance(t)
		changed, err := g.ChangeStatus(StatusPending, admin, false)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Empty(t, g.DomainEvents())
	})

	t.Run("workflow rejects reopening a rejected grievance as resolved", func(t *testing.T) {
		g := deliveredGrievance(t)
		_, err := g.ChangeStatus(StatusRejected, admin, false)
		require.NoError(t, err)

		_, err = g.ChangeStatus(StatusResolved, admin, false)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, CodeInvalidTransition, domainErr.Code)
		assert.Equal(t, StatusRejected, g.Status)
	})

	t.Run("force bypasses the workflow", func(t *testing.T) {
		g := deliveredGrievance(t)
		_, err := g.ChangeStatus(StatusResolved, admin, false)
		require.NoError(t, err)

		changed, err := g.ChangeStatus(StatusRejected, admin, true)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusRejected, g.Status)
	})

	t.Run("invalid status", func(t *testing.T) {
		g := deliveredGrievance(t)
		_, err := g.ChangeStatus(Status("Closed"), admin, true)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("undelivered grievance cannot change", func(t *testing.T) {
		g, err := NewGrievance(validInput())
		require.NoError(t, err)
		_, err = g.ChangeStatus(StatusResolved, admin, true)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})
}
