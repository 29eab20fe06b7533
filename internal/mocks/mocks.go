package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chopmeet-service/internal/models"
	"chopmeet-service/internal/repositories"
)

type MealRepositoryMock struct {
	mock.Mock
}

func (m *MealRepositoryMock) CreateMeal(ctx context.Context, meal models.Meal) (models.Meal, error) {
	args := m.Called(ctx, meal)
	var out models.Meal
	if val := args.Get(0); val != nil {
		out = val.(models.Meal)
	}
	return out, args.Error(1)
}

func (m *MealRepositoryMock) GetMeal(ctx context.Context, mealID string) (models.Meal, error) {
	args := m.Called(ctx, mealID)
	var out models.Meal
	if val := args.Get(0); val != nil {
		out = val.(models.Meal)
	}
	return out, args.Error(1)
}

func (m *MealRepositoryMock) ListMeals(ctx context.Context, filter repositories.MealFilter) ([]models.Meal, error) {
	args := m.Called(ctx, filter)
	var out []models.Meal
	if val := args.Get(0); val != nil {
		out = val.([]models.Meal)
	}
	return out, args.Error(1)
}

func (m *MealRepositoryMock) ListMealsForUser(ctx context.Context, userID string) ([]models.Meal, error) {
	args := m.Called(ctx, userID)
	var out []models.Meal
	if val := args.Get(0); val != nil {
		out = val.([]models.Meal)
	}
	return out, args.Error(1)
}

func (m *MealRepositoryMock) UpdateMeal(ctx context.Context, mealID string, upd models.MealUpdate) (models.Meal, error) {
	args := m.Called(ctx, mealID, upd)
	var out models.Meal
	if val := args.Get(0); val != nil {
		out = val.(models.Meal)
	}
	return out, args.Error(1)
}

func (m *MealRepositoryMock) DeleteMeal(ctx context.Context, mealID string) error {
	args := m.Called(ctx, mealID)
	return args.Error(0)
}

func (m *MealRepositoryMock) Join(ctx context.Context, mealID string, userID string) error {
	args := m.Called(ctx, mealID, userID)
	return args.Error(0)
}

func (m *MealRepositoryMock) Leave(ctx context.Context, mealID string, userID string) error {
	args := m.Called(ctx, mealID, userID)
	return args.Error(0)
}

func (m *MealRepositoryMock) IsParticipant(ctx context.Context, mealID string, userID string) (bool, error) {
	args := m.Called(ctx, mealID, userID)
	return args.Bool(0), args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, mealID string, senderID string, senderName string, text string) (models.ChatMessage, error) {
	args := m.Called(ctx, mealID, senderID, senderName, text)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, mealID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, mealID)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkAllRead(ctx context.Context, mealID string, viewerID string) error {
	args := m.Called(ctx, mealID, viewerID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, mealID string, viewerID string) (int, error) {
	args := m.Called(ctx, mealID, viewerID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) LastMessage(ctx context.Context, mealID string) (*models.ChatMessage, error) {
	args := m.Called(ctx, mealID)
	var msg *models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(*models.ChatMessage)
	}
	return msg, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, email string, displayName string, passwordHash string) (models.User, error) {
	args := m.Called(ctx, email, displayName, passwordHash)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpdateDisplayName(ctx context.Context, userID string, displayName string) error {
	args := m.Called(ctx, userID, displayName)
	return args.Error(0)
}

type UserProviderMock struct {
	mock.Mock
}

func (m *UserProviderMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type IdentityServiceMock struct {
	mock.Mock
}

func (m *IdentityServiceMock) SignUp(ctx context.Context, email string, displayName string, password string) (models.User, string, error) {
	args := m.Called(ctx, email, displayName, password)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.String(1), args.Error(2)
}

func (m *IdentityServiceMock) SignIn(ctx context.Context, email string, password string) (models.User, string, error) {
	args := m.Called(ctx, email, password)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.String(1), args.Error(2)
}

func (m *IdentityServiceMock) SignOut(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *IdentityServiceMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *IdentityServiceMock) UpdateDisplayName(ctx context.Context, userID string, displayName string) error {
	args := m.Called(ctx, userID, displayName)
	return args.Error(0)
}
