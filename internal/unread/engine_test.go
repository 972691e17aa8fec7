package unread

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"inbox-service/internal/faults"
	"inbox-service/internal/localstore"
	"inbox-service/internal/mocks"
	"inbox-service/internal/models"
	"inbox-service/internal/preferences"
	"inbox-service/internal/repositories"
)

func newTestEngine(t *testing.T) (*Engine, *mocks.ParticipantRepositoryMock, *mocks.MessageRepositoryMock) {
	t.Helper()
	participants := new(mocks.ParticipantRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	prefs := preferences.NewController(participants, localstore.NewMemory())
	engine := NewEngine(prefs, messages, participants, localstore.NewMemory())
	return engine, participants, messages
}

func TestUnreadCountWithoutReadPositionCountsEverything(t *testing.T) {
	engine, participants, messages := newTestEngine(t)

	participants.On("Get", mock.Anything, 3, 1).
		Return(models.ParticipantState{ThreadID: 3, UserID: 1}, nil).Once()
	messages.On("CountSince", mock.Anything, 3, 1, time.Time{}).Return(12, nil).Once()

	count, err := engine.UnreadCount(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	messages.AssertExpectations(t)
}

func TestUnreadCountUsesLastReadPosition(t *testing.T) {
	engine, participants, messages := newTestEngine(t)

	lastRead := time.Now().Add(-time.Hour)
	participants.On("Get", mock.Anything, 3, 1).
		Return(models.ParticipantState{ThreadID: 3, UserID: 1, LastReadAt: &lastRead}, nil).Once()
	messages.On("CountSince", mock.Anything, 3, 1, lastRead).Return(2, nil).Once()

	count, err := engine.UnreadCount(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMarkReadAdvancesPositionAndClearsManualFlag(t *testing.T) {
	engine, participants, _ := newTestEngine(t)

	require.NoError(t, engine.MarkUnread(3, 1))

	participants.On("Get", mock.Anything, 3, 1).
		Return(models.ParticipantState{ThreadID: 3, UserID: 1}, nil).Once()
	participants.On("ApplyPatch", mock.Anything, 3, 1, mock.MatchedBy(func(p models.ParticipantPatch) bool {
		return p.LastReadAt != nil && !p.LastReadAt.IsZero()
	})).Return(nil).Once()

	require.NoError(t, engine.MarkRead(context.Background(), 3, 1))

	manual, err := engine.ManualUnread(3, 1)
	require.NoError(t, err)
	assert.False(t, manual)
	participants.AssertExpectations(t)
}

func TestMarkReadNeverMovesBackward(t *testing.T) {
	engine, participants, _ := newTestEngine(t)

	// A concurrent reader already advanced past this session's clock.
	ahead := time.Now().Add(time.Hour)
	participants.On("Get", mock.Anything, 3, 1).
		Return(models.ParticipantState{ThreadID: 3, UserID: 1, LastReadAt: &ahead}, nil).Once()

	require.NoError(t, engine.MarkRead(context.Background(), 3, 1))
	participants.AssertNotCalled(t, "ApplyPatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestManualUnreadIsDeviceLocal(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	manual, err := engine.ManualUnread(3, 1)
	require.NoError(t, err)
	assert.False(t, manual)

	require.NoError(t, engine.MarkUnread(3, 1))
	manual, err = engine.ManualUnread(3, 1)
	require.NoError(t, err)
	assert.True(t, manual)
}

func TestReceiptsWithoutCounterpartPosition(t *testing.T) {
	engine, participants, _ := newTestEngine(t)

	participants.On("LastRead", mock.Anything, 3, 2).Return(nil, nil).Once()

	receipt, err := engine.Receipts(context.Background(), 3, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, receipt.CounterpartLastRead)
	assert.Zero(t, receipt.LatestSeenMessageID)
}

func TestReceiptsAnchorSeenMarker(t *testing.T) {
	engine, participants, messages := newTestEngine(t)

	lastRead := time.Now().Add(-time.Minute)
	participants.On("LastRead", mock.Anything, 3, 2).Return(&lastRead, nil).Once()
	messages.On("LatestOwnBefore", mock.Anything, 3, 1, lastRead).
		Return(models.Message{ID: 41, ThreadID: 3, SenderID: 1}, nil).Once()

	receipt, err := engine.Receipts(context.Background(), 3, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, receipt.CounterpartLastRead)
	assert.True(t, lastRead.Equal(*receipt.CounterpartLastRead))
	assert.Equal(t, 41, receipt.LatestSeenMessageID)
}

func TestReceiptsWithoutConfirmedOutgoingMessage(t *testing.T) {
	engine, participants, messages := newTestEngine(t)

	lastRead := time.Now()
	participants.On("LastRead", mock.Anything, 3, 2).Return(&lastRead, nil).Once()
	messages.On("LatestOwnBefore", mock.Anything, 3, 1, lastRead).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	receipt, err := engine.Receipts(context.Background(), 3, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, receipt.CounterpartLastRead)
	assert.Zero(t, receipt.LatestSeenMessageID)
}

func TestReceiptsDegradeWithoutParticipantStore(t *testing.T) {
	engine, participants, messages := newTestEngine(t)

	participants.On("LastRead", mock.Anything, 3, 2).
		Return(nil, &faults.CapabilityError{Relation: "thread_participants"}).Once()

	receipt, err := engine.Receipts(context.Background(), 3, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, receipt.CounterpartLastRead)
	assert.Zero(t, receipt.LatestSeenMessageID)
	messages.AssertNotCalled(t, "LatestOwnBefore", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReceiptsPropagateStoreErrors(t *testing.T) {
	engine, participants, messages := newTestEngine(t)

	lastRead := time.Now()
	participants.On("LastRead", mock.Anything, 3, 2).Return(&lastRead, nil).Once()
	messages.On("LatestOwnBefore", mock.Anything, 3, 1, lastRead).
		Return(models.Message{}, assert.AnError).Once()

	_, err := engine.Receipts(context.Background(), 3, 1, 2)
	assert.ErrorIs(t, err, assert.AnError)
}
