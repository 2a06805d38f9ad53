package services

import (
	"context"
	"testing"

	"habitquest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRequestLifecycle(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice", 0)
	bob := createUser(t, db, "bob", 0)

	req, err := svc.friends.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, req.Status)
	assert.True(t, svc.published.has("friend_request.received", bob.ID))

	// pending in either direction blocks a new request
	_, err = svc.friends.SendFriendRequest(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.friends.SendFriendRequest(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// only the receiver may answer
	_, err = svc.friends.RespondToFriendRequest(ctx, req.ID, alice.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)

	accepted, err := svc.friends.RespondToFriendRequest(ctx, req.ID, bob.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, accepted.Status)
	assert.NotNil(t, accepted.RespondedAt)

	// terminal: answering again fails and creates nothing
	_, err = svc.friends.RespondToFriendRequest(ctx, req.ID, bob.ID, true)
	assert.ErrorIs(t, err, ErrRequestNotPending)
	_, err = svc.friends.RespondToFriendRequest(ctx, req.ID, bob.ID, false)
	assert.ErrorIs(t, err, ErrRequestNotPending)

	var rows int64
	require.NoError(t, db.Model(&models.Friendship{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	ab, err := svc.friends.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	ba, err := svc.friends.AreFriends(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ab)
	assert.Equal(t, ab, ba)

	aliceFriends, err := svc.friends.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)
	assert.Equal(t, bob.ID, aliceFriends[0].ID)
	bobFriends, err := svc.friends.ListFriends(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, alice.ID, bobFriends[0].ID)

	_, err = svc.friends.SendFriendRequest(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, svc.friends.RemoveFriend(ctx, bob.ID, alice.ID))
	assert.ErrorIs(t, svc.friends.RemoveFriend(ctx, alice.ID, bob.ID), ErrNotFound)
	ab, err = svc.friends.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ab)
}

func TestRejectedRequestAllowsNewRequest(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	carol := createUser(t, db, "carol", 0)
	dave := createUser(t, db, "dave", 0)

	req, err := svc.friends.SendFriendRequest(ctx, carol.ID, dave.ID)
	require.NoError(t, err)
	rejected, err := svc.friends.RespondToFriendRequest(ctx, req.ID, dave.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestRejected, rejected.Status)
	assert.True(t, svc.published.has("friend_request.rejected", carol.ID))

	friends, err := svc.friends.AreFriends(ctx, carol.ID, dave.ID)
	require.NoError(t, err)
	assert.False(t, friends)

	_, err = svc.friends.SendFriendRequest(ctx, dave.ID, carol.ID)
	require.NoError(t, err)

	pending, err := svc.friends.ListPendingRequests(ctx, carol.ID)
	require.NoError(t, err)
	assert.Len(t, pending.Incoming, 1)
	assert.Empty(t, pending.Outgoing)
	require.NotNil(t, pending.Incoming[0].Sender)
	assert.Equal(t, "dave", pending.Incoming[0].Sender.Username)
}

func TestSendFriendRequestValidation(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	erin := createUser(t, db, "erin", 0)

	_, err := svc.friends.SendFriendRequest(ctx, erin.ID, erin.ID)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.friends.SendFriendRequest(ctx, erin.ID, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.friends.SendFriendRequest(ctx, erin.ID, "6f1c1f0e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelFriendRequest(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	frank := createUser(t, db, "frank", 0)
	gina := createUser(t, db, "gina", 0)

	req, err := svc.friends.SendFriendRequest(ctx, frank.ID, gina.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.friends.CancelFriendRequest(ctx, req.ID, gina.ID), ErrNotFound)
	require.NoError(t, svc.friends.CancelFriendRequest(ctx, req.ID, frank.ID))
	assert.ErrorIs(t, svc.friends.CancelFriendRequest(ctx, req.ID, frank.ID), ErrNotFound)
}
