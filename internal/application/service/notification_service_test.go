package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/grc-approval/internal/application/port"
	"github.com/garyjia/grc-approval/internal/domain/entity"
	"github.com/garyjia/grc-approval/internal/domain/errs"
)

func TestNotificationService_Notify(t *testing.T) {
	t.Run("stores one unread notification per recipient", func(t *testing.T) {
		repo := &mockNotificationRepo{}
		svc := NewNotificationService(repo, &mockLogger{})

		err := svc.Notify(context.Background(), port.Notice{
			Recipients:        []string{"alice", "bob"},
			Title:             "New Approval Required",
			Message:           `A new risk "Vendor breach" requires your approval.`,
			RelatedEntityType: "risk",
			RelatedEntityID:   "risk-42",
		})

		require.NoError(t, err)
		require.Len(t, repo.created, 2)
		assert.Equal(t, "alice", repo.created[0].UserID)
		assert.Equal(t, "bob", repo.created[1].UserID)
		for _, n := range repo.created {
			assert.NotEmpty(t, n.ID)
			assert.Equal(t, entity.NotificationTypeInfo, n.Type)
			assert.Equal(t, entity.NotificationStatusUnread, n.Status)
			assert.Equal(t, "risk-42", n.RelatedEntityID)
		}
	})

	t.Run("attempts every recipient and joins failures", func(t *testing.T) {
		repo := &mockNotificationRepo{
			createFunc: func(ctx context.Context, n *entity.Notification) error {
				if n.UserID == "alice" {
					return errors.New("constraint failed")
				}
				return nil
			},
		}
		logger := &mockLogger{}
		svc := NewNotificationService(repo, logger)

		err := svc.Notify(context.Background(), port.Notice{
			Recipients: []string{"alice", "bob"},
			Title:      "Approval Rejected",
			Type:       entity.NotificationTypeError,
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "notify alice")
		require.Len(t, repo.created, 1)
		assert.Equal(t, "bob", repo.created[0].UserID)
		assert.Contains(t, logger.errors, "Failed to store notification")
	})
}

func TestNotificationService_ListForUser(t *testing.T) {
	repo := &mockNotificationRepo{
		listByUserFunc: func(ctx context.Context, userID, status string, limit int) ([]*entity.Notification, error) {
			return []*entity.Notification{{ID: "n1", UserID: userID, Status: status}}, nil
		},
	}
	svc := NewNotificationService(repo, &mockLogger{})

	list, err := svc.ListForUser(context.Background(), "alice", entity.NotificationStatusUnread, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].UserID)

	_, err = svc.ListForUser(context.Background(), "", "", 10)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.ListForUser(context.Background(), "alice", "deleted", 10)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestNotificationService_StatusChanges(t *testing.T) {
	var got []string
	repo := &mockNotificationRepo{
		updateStatusFunc: func(ctx context.Context, id, status string) error {
			if id == "missing" {
				return errs.NotFound("notification", id)
			}
			got = append(got, id+":"+status)
			return nil
		},
	}
	svc := NewNotificationService(repo, &mockLogger{})

	require.NoError(t, svc.MarkRead(context.Background(), "n1"))
	require.NoError(t, svc.Archive(context.Background(), "n2"))
	assert.Equal(t, []string{"n1:read", "n2:archived"}, got)

	assert.ErrorIs(t, svc.MarkRead(context.Background(), "missing"), errs.ErrNotFound)
}
