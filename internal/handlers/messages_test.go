package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"inbox-service/internal/directory"
	"inbox-service/internal/faults"
	"inbox-service/internal/localstore"
	"inbox-service/internal/mocks"
	"inbox-service/internal/models"
	"inbox-service/internal/preferences"
	"inbox-service/internal/registry"
	"inbox-service/internal/repositories"
	"inbox-service/internal/ws"
)

type messageTestEnv struct {
	threads      *mocks.ThreadRepositoryMock
	messages     *mocks.MessageRepositoryMock
	reactions    *mocks.ReactionRepositoryMock
	participants *mocks.ParticipantRepositoryMock
	dir          *mocks.DirectoryMock
	router       *gin.Engine
}

func newMessageTestEnv() *messageTestEnv {
	gin.SetMode(gin.TestMode)

	env := &messageTestEnv{
		threads:      new(mocks.ThreadRepositoryMock),
		messages:     new(mocks.MessageRepositoryMock),
		reactions:    new(mocks.ReactionRepositoryMock),
		participants: new(mocks.ParticipantRepositoryMock),
		dir:          new(mocks.DirectoryMock),
	}

	prefs := preferences.NewController(env.participants, localstore.NewMemory())
	reg := registry.New(env.threads, env.dir, prefs)
	handler := NewMessageHandler(reg, env.messages, env.reactions, ws.NewHub(), nil, 200)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/threads/:token/messages", handler.GetMessages)
	r.POST("/threads/:token/messages", handler.PostMessage)
	r.DELETE("/threads/:token/messages/:message_id", handler.DeleteMessage)
	r.POST("/threads/:token/messages/:message_id/reactions", handler.ToggleReaction)
	env.router = r
	return env
}

// expectConnectionThread wires resolution of conn:5 to thread 3 with
// counterpart 2 for viewer 1.
func (env *messageTestEnv) expectConnectionThread() {
	env.dir.On("VisibleConnections", mock.Anything, 1).
		Return([]directory.Connection{{ConnectionID: 5, CounterpartID: 2}}, nil)
	env.threads.On("Resolve", mock.Anything, models.KindConnection, 5).
		Return(models.Thread{ID: 3, Kind: models.KindConnection, ScopeID: 5}, nil)
	env.participants.On("Ensure", mock.Anything, 3, mock.Anything).Return(nil)
}

func TestGetMessagesDecoratesRepliesAndRemovals(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	env.messages.On("List", mock.Anything, 3, 100).Return([]models.Message{
		{ID: 1, ThreadID: 3, SenderID: 2, Body: "shall we dance?"},
		{ID: 2, ThreadID: 3, SenderID: 1, Body: "[[reply:1]]\nabsolutely"},
		{ID: 3, ThreadID: 3, SenderID: 2, Body: "oops", Removed: true},
	}, nil).Once()
	env.reactions.On("AggregateForMessages", mock.Anything, []int{1, 2, 3}, 1).
		Return(map[int][]models.ReactionAggregate{
			1: {{Emoji: "❤️", Count: 2, Mine: true}},
		}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/threads/conn:5/messages", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []struct {
			ID        int    `json:"id"`
			Body      string `json:"body"`
			Text      string `json:"text"`
			ReplyToID string `json:"reply_to_id"`
			Removed   bool   `json:"removed"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 3)

	assert.Equal(t, "shall we dance?", resp.Messages[0].Text)
	assert.Empty(t, resp.Messages[0].ReplyToID)

	assert.Equal(t, "absolutely", resp.Messages[1].Text)
	assert.Equal(t, "1", resp.Messages[1].ReplyToID)

	assert.True(t, resp.Messages[2].Removed)
	assert.Empty(t, resp.Messages[2].Body)
	assert.Empty(t, resp.Messages[2].Text)

	env.messages.AssertExpectations(t)
	env.reactions.AssertExpectations(t)
}

func TestGetMessagesInvalidToken(t *testing.T) {
	env := newMessageTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/threads/bogus/messages", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesAccessDenied(t *testing.T) {
	env := newMessageTestEnv()
	env.dir.On("VisibleConnections", mock.Anything, 1).
		Return([]directory.Connection{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/threads/conn:5/messages", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	env.threads.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageSuccess(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	env.messages.On("Append", mock.Anything, 3, 1, "[[reply:7]]\nsee you at eight", 200).
		Return(models.Message{ID: 12, ThreadID: 3, SenderID: 1, Body: "[[reply:7]]\nsee you at eight"}, nil).Once()

	body := bytes.NewBufferString(`{"content":"see you at eight","reply_to_id":"7"}`)
	req := httptest.NewRequest(http.MethodPost, "/threads/conn:5/messages", body)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		ID        int    `json:"id"`
		Text      string `json:"text"`
		ReplyToID string `json:"reply_to_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 12, resp.ID)
	assert.Equal(t, "see you at eight", resp.Text)
	assert.Equal(t, "7", resp.ReplyToID)
	env.messages.AssertExpectations(t)
}

func TestPostMessageDailyLimit(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	env.messages.On("Append", mock.Anything, 3, 1, "one more", 200).
		Return(models.Message{}, faults.ErrDailyLimitReached).Once()

	body := bytes.NewBufferString(`{"content":"one more"}`)
	req := httptest.NewRequest(http.MethodPost, "/threads/conn:5/messages", body)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp["reset_at"])
}

func TestPostMessageEmptyContentRejected(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	req := httptest.NewRequest(http.MethodPost, "/threads/conn:5/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessageBySender(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	env.messages.On("Get", mock.Anything, 12).
		Return(models.Message{ID: 12, ThreadID: 3, SenderID: 1, Body: "typo"}, nil).Once()
	env.messages.On("Remove", mock.Anything, 12, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/threads/conn:5/messages/12", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	env.messages.AssertExpectations(t)
}

func TestDeleteMessageByNonSenderIsForbidden(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	env.messages.On("Get", mock.Anything, 12).
		Return(models.Message{ID: 12, ThreadID: 3, SenderID: 2, Body: "theirs"}, nil).Once()
	env.messages.On("Remove", mock.Anything, 12, 1).Return(faults.ErrForbidden).Once()

	req := httptest.NewRequest(http.MethodDelete, "/threads/conn:5/messages/12", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteMessageOutsideThreadRejected(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	env.messages.On("Get", mock.Anything, 12).
		Return(models.Message{ID: 12, ThreadID: 99, SenderID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/threads/conn:5/messages/12", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env.messages.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessageNotFound(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	env.messages.On("Get", mock.Anything, 404).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/threads/conn:5/messages/404", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleReactionReturnsAggregates(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	env.messages.On("Get", mock.Anything, 12).
		Return(models.Message{ID: 12, ThreadID: 3, SenderID: 2}, nil).Once()
	env.reactions.On("Toggle", mock.Anything, 12, 1, "❤️").
		Return([]models.ReactionAggregate{{Emoji: "❤️", Count: 1, Mine: true}}, nil).Once()

	body := bytes.NewBufferString(`{"emoji":"❤️"}`)
	req := httptest.NewRequest(http.MethodPost, "/threads/conn:5/messages/12/reactions", body)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Reactions []models.ReactionAggregate `json:"reactions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Reactions, 1)
	assert.True(t, resp.Reactions[0].Mine)
	env.reactions.AssertExpectations(t)
}

func TestToggleReactionMissingEmojiRejected(t *testing.T) {
	env := newMessageTestEnv()
	env.expectConnectionThread()

	req := httptest.NewRequest(http.MethodPost, "/threads/conn:5/messages/12/reactions", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env.reactions.AssertNotCalled(t, "Toggle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
