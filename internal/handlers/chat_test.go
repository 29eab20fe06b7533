package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chopmeet-service/internal/mocks"
	"chopmeet-service/internal/models"
	"chopmeet-service/internal/repositories"
)

func setupChatRouter(handler *ChatHandler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	r.GET("/meals/:meal_id/messages", handler.GetMessages)
	r.POST("/meals/:meal_id/messages", handler.PostMessage)
	r.POST("/meals/:meal_id/read", handler.MarkRead)
	r.GET("/chats", handler.ListChats)
	return r
}

func TestGetMessagesSuccess(t *testing.T) {
	mealRepo := new(mocks.MealRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(mealRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(handler, "u1")

	mealRepo.On("IsParticipant", mock.Anything, "m1", "u1").Return(true, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, "m1").Return([]models.ChatMessage{
		{ID: 1, MealID: "m1", SenderID: "u2", Text: "hey", Timestamp: 100},
		{ID: 2, MealID: "m1", SenderID: "u1", Text: "hi", Timestamp: 200},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/meals/m1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	require.True(t, sort.SliceIsSorted(resp.Messages, func(i, j int) bool {
		return resp.Messages[i].Timestamp < resp.Messages[j].Timestamp
	}))
	mealRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestGetMessagesNotParticipant(t *testing.T) {
	mealRepo := new(mocks.MealRepositoryMock)
	handler := NewChatHandler(mealRepo, new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(handler, "outsider")

	mealRepo.On("IsParticipant", mock.Anything, "m1", "outsider").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/meals/m1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostMessageSuccess(t *testing.T) {
	mealRepo := new(mocks.MealRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserProviderMock)
	handler := NewChatHandler(mealRepo, messageRepo, users, nil, nil)
	router := setupChatRouter(handler, "u1")

	mealRepo.On("IsParticipant", mock.Anything, "m1", "u1").Return(true, nil).Once()
	users.On("GetUser", mock.Anything, "u1").Return(models.User{ID: "u1", DisplayName: "Ada"}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, "m1", "u1", "Ada", "see you there").
		Return(models.ChatMessage{ID: 7, MealID: "m1", SenderID: "u1", SenderName: "Ada", Text: "see you there", Timestamp: 1000, ReadBy: []string{"u1"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/meals/m1/messages", bytes.NewBufferString(`{"text":"see you there"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.ChatMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, []string{"u1"}, []string(msg.ReadBy))
	mealRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestPostMessageBlankText(t *testing.T) {
	mealRepo := new(mocks.MealRepositoryMock)
	handler := NewChatHandler(mealRepo, new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(handler, "u1")

	mealRepo.On("IsParticipant", mock.Anything, "m1", "u1").Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/meals/m1/messages", bytes.NewBufferString(`{"text":"   "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadSuccess(t *testing.T) {
	mealRepo := new(mocks.MealRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(mealRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(handler, "u1")

	mealRepo.On("IsParticipant", mock.Anything, "m1", "u1").Return(true, nil).Once()
	messageRepo.On("MarkAllRead", mock.Anything, "m1", "u1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/meals/m1/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestMarkReadNotParticipant(t *testing.T) {
	mealRepo := new(mocks.MealRepositoryMock)
	handler := NewChatHandler(mealRepo, new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(handler, "outsider")

	mealRepo.On("IsParticipant", mock.Anything, "m1", "outsider").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/meals/m1/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListChatsSuccess(t *testing.T) {
	mealRepo := new(mocks.MealRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(mealRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(handler, "u1")

	mealRepo.On("ListMealsForUser", mock.Anything, "u1").Return([]models.Meal{
		{ID: "m1", Title: "Ramen night", CreatorID: "u1"},
		{ID: "m2", Title: "Hotpot", CreatorID: "u2", JoinedIDs: []string{"u1"}},
	}, nil).Once()
	messageRepo.On("LastMessage", mock.Anything, "m1").Return((*models.ChatMessage)(nil), nil).Once()
	messageRepo.On("UnreadCount", mock.Anything, "m1", "u1").Return(0, nil).Once()
	messageRepo.On("LastMessage", mock.Anything, "m2").Return(&models.ChatMessage{ID: 9, MealID: "m2", SenderID: "u2", Text: "coming?", Timestamp: 500}, nil).Once()
	messageRepo.On("UnreadCount", mock.Anything, "m2", "u1").Return(3, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Chats []models.MealChatSummary `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 2)
	assert.Nil(t, resp.Chats[0].LastMessage)
	assert.Equal(t, 0, resp.Chats[0].UnreadCount)
	assert.Equal(t, 3, resp.Chats[1].UnreadCount)
	assert.Equal(t, "coming?", resp.Chats[1].LastMessage.Text)
	mealRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	mealRepo := new(mocks.MealRepositoryMock)
	handler := NewChatHandler(mealRepo, new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(handler, "u1")

	mealRepo.On("ListMealsForUser", mock.Anything, "u1").Return(([]models.Meal)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMarkAllReadIdempotentAndAdditive(t *testing.T) {
	mealRepo := mocks.NewInMemoryMealRepo()
	messageRepo := mocks.NewInMemoryMessageRepo()
	ctx := context.Background()

	meal, err := mealRepo.CreateMeal(ctx, models.Meal{Title: "Ramen night", MealType: models.MealTypeBuddy, Max: 4, CreatorID: "creator"})
	require.NoError(t, err)
	require.NoError(t, mealRepo.Join(ctx, meal.ID, "u1"))
	require.NoError(t, mealRepo.Join(ctx, meal.ID, "u2"))

	for i := 0; i < 3; i++ {
		_, err := messageRepo.CreateMessage(ctx, meal.ID, "u2", "Bea", "hello")
		require.NoError(t, err)
	}

	require.NoError(t, messageRepo.MarkAllRead(ctx, meal.ID, "u1"))
	first, err := messageRepo.ListMessages(ctx, meal.ID)
	require.NoError(t, err)

	require.NoError(t, messageRepo.MarkAllRead(ctx, meal.ID, "u1"))
	second, err := messageRepo.ListMessages(ctx, meal.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, msg := range second {
		assert.Contains(t, []string(msg.ReadBy), "u1")
		assert.Contains(t, []string(msg.ReadBy), "u2")
	}
}

func TestUnreadCountAfterMarkRead(t *testing.T) {
	mealRepo := mocks.NewInMemoryMealRepo()
	messageRepo := mocks.NewInMemoryMessageRepo()
	handler := NewChatHandler(mealRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(handler, "u1")
	ctx := context.Background()

	meal, err := mealRepo.CreateMeal(ctx, models.Meal{Title: "Hotpot", MealType: models.MealTypeOpenToMore, Max: 4, CreatorID: "creator"})
	require.NoError(t, err)
	require.NoError(t, mealRepo.Join(ctx, meal.ID, "u1"))
	require.NoError(t, mealRepo.Join(ctx, meal.ID, "u2"))

	_, err = messageRepo.CreateMessage(ctx, meal.ID, "u2", "Bea", "coming?")
	require.NoError(t, err)
	_, err = messageRepo.CreateMessage(ctx, meal.ID, "u2", "Bea", "we start at 7")
	require.NoError(t, err)
	_, err = messageRepo.CreateMessage(ctx, meal.ID, "u1", "Ada", "on my way")
	require.NoError(t, err)

	unread, err := messageRepo.UnreadCount(ctx, meal.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	req := httptest.NewRequest(http.MethodPost, "/meals/"+meal.ID+"/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	unread, err = messageRepo.UnreadCount(ctx, meal.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	// u2's own view never counts their sent messages.
	unread, err = messageRepo.UnreadCount(ctx, meal.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestDeleteMealRemovesChatLog(t *testing.T) {
	mealRepo := mocks.NewInMemoryMealRepo()
	messageRepo := mocks.NewInMemoryMessageRepo()
	mealRepo.AttachMessages(messageRepo)
	handler := NewMealHandler(mealRepo, nil, nil)
	router := setupMealRouter(handler, "creator")
	ctx := context.Background()

	meal, err := mealRepo.CreateMeal(ctx, models.Meal{Title: "Ramen night", MealType: models.MealTypeBuddy, Max: 4, CreatorID: "creator"})
	require.NoError(t, err)
	_, err = messageRepo.CreateMessage(ctx, meal.ID, "u1", "Ada", "hello")
	require.NoError(t, err)
	_, err = messageRepo.CreateMessage(ctx, meal.ID, "u2", "Bea", "hi")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/meals/"+meal.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err = mealRepo.GetMeal(ctx, meal.ID)
	assert.ErrorIs(t, err, repositories.ErrMealNotFound)

	msgs, err := messageRepo.ListMessages(ctx, meal.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	last, err := messageRepo.LastMessage(ctx, meal.ID)
	require.NoError(t, err)
	assert.Nil(t, last)
}
