package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"inbox-service/internal/directory"
	"inbox-service/internal/models"
	"inbox-service/internal/repositories"
)

type ThreadRepositoryMock struct {
	mock.Mock
}

func (m *ThreadRepositoryMock) Resolve(ctx context.Context, kind models.ThreadKind, scopeID int) (models.Thread, error) {
	args := m.Called(ctx, kind, scopeID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) Get(ctx context.Context, threadID int) (models.Thread, error) {
	args := m.Called(ctx, threadID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) ListByScopes(ctx context.Context, kind models.ThreadKind, scopeIDs []int) ([]models.Thread, error) {
	args := m.Called(ctx, kind, scopeIDs)
	var threads []models.Thread
	if val := args.Get(0); val != nil {
		threads = val.([]models.Thread)
	}
	return threads, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, threadID int, senderID int, body string, dailyLimit int) (models.Message, error) {
	args := m.Called(ctx, threadID, senderID, body, dailyLimit)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) List(ctx context.Context, threadID int, limit int) ([]models.Message, error) {
	args := m.Called(ctx, threadID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Remove(ctx context.Context, messageID int, requesterID int) error {
	args := m.Called(ctx, messageID, requesterID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Latest(ctx context.Context, threadID int) (models.Message, error) {
	args := m.Called(ctx, threadID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) CountSince(ctx context.Context, threadID int, exceptSenderID int, since time.Time) (int, error) {
	args := m.Called(ctx, threadID, exceptSenderID, since)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) LatestOwnBefore(ctx context.Context, threadID int, senderID int, cutoff time.Time) (models.Message, error) {
	args := m.Called(ctx, threadID, senderID, cutoff)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) Toggle(ctx context.Context, messageID int, reactorID int, emoji string) ([]models.ReactionAggregate, error) {
	args := m.Called(ctx, messageID, reactorID, emoji)
	var aggs []models.ReactionAggregate
	if val := args.Get(0); val != nil {
		aggs = val.([]models.ReactionAggregate)
	}
	return aggs, args.Error(1)
}

func (m *ReactionRepositoryMock) Aggregate(ctx context.Context, messageID int, viewerID int) ([]models.ReactionAggregate, error) {
	args := m.Called(ctx, messageID, viewerID)
	var aggs []models.ReactionAggregate
	if val := args.Get(0); val != nil {
		aggs = val.([]models.ReactionAggregate)
	}
	return aggs, args.Error(1)
}

func (m *ReactionRepositoryMock) AggregateForMessages(ctx context.Context, messageIDs []int, viewerID int) (map[int][]models.ReactionAggregate, error) {
	args := m.Called(ctx, messageIDs, viewerID)
	var aggs map[int][]models.ReactionAggregate
	if val := args.Get(0); val != nil {
		aggs = val.(map[int][]models.ReactionAggregate)
	}
	return aggs, args.Error(1)
}

type ParticipantRepositoryMock struct {
	mock.Mock
}

func (m *ParticipantRepositoryMock) Ensure(ctx context.Context, threadID int, userID int) error {
	args := m.Called(ctx, threadID, userID)
	return args.Error(0)
}

func (m *ParticipantRepositoryMock) ApplyPatch(ctx context.Context, threadID int, userID int, patch models.ParticipantPatch) error {
	args := m.Called(ctx, threadID, userID, patch)
	return args.Error(0)
}

func (m *ParticipantRepositoryMock) Get(ctx context.Context, threadID int, userID int) (models.ParticipantState, error) {
	args := m.Called(ctx, threadID, userID)
	var state models.ParticipantState
	if val := args.Get(0); val != nil {
		state = val.(models.ParticipantState)
	}
	return state, args.Error(1)
}

func (m *ParticipantRepositoryMock) LastRead(ctx context.Context, threadID int, userID int) (*time.Time, error) {
	args := m.Called(ctx, threadID, userID)
	var lastRead *time.Time
	if val := args.Get(0); val != nil {
		lastRead = val.(*time.Time)
	}
	return lastRead, args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) VerifyToken(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

func (m *DirectoryMock) VisibleConnections(ctx context.Context, viewerID int) ([]directory.Connection, error) {
	args := m.Called(ctx, viewerID)
	var conns []directory.Connection
	if val := args.Get(0); val != nil {
		conns = val.([]directory.Connection)
	}
	return conns, args.Error(1)
}

func (m *DirectoryMock) AcceptedTripIDs(ctx context.Context, viewerID int) ([]int, error) {
	args := m.Called(ctx, viewerID)
	var trips []int
	if val := args.Get(0); val != nil {
		trips = val.([]int)
	}
	return trips, args.Error(1)
}

var _ repositories.ThreadRepository = (*ThreadRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ReactionRepository = (*ReactionRepositoryMock)(nil)
var _ repositories.ParticipantRepository = (*ParticipantRepositoryMock)(nil)
var _ directory.Service = (*DirectoryMock)(nil)
