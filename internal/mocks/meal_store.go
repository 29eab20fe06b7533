package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"chopmeet-service/internal/models"
	"chopmeet-service/internal/repositories"
)

// InMemoryMealRepo implements repositories.MealRepository with the same
// membership contract as the SQL implementation: every join decision is
// taken atomically against current state. Used to drive concurrent-join
// tests without a database.
type InMemoryMealRepo struct {
	mu       sync.Mutex
	meals    map[string]*models.Meal
	messages *InMemoryMessageRepo
}

func NewInMemoryMealRepo() *InMemoryMealRepo {
	return &InMemoryMealRepo{meals: make(map[string]*models.Meal)}
}

// AttachMessages links a message store so DeleteMeal drops the meal's
// chat log, mirroring the SQL foreign-key cascade.
func (r *InMemoryMealRepo) AttachMessages(messages *InMemoryMessageRepo) {
	r.messages = messages
}

func (r *InMemoryMealRepo) CreateMeal(ctx context.Context, meal models.Meal) (models.Meal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meal.ID = uuid.NewString()
	meal.JoinedIDs = []string{}
	stored := meal
	r.meals[meal.ID] = &stored
	return meal, nil
}

func (r *InMemoryMealRepo) GetMeal(ctx context.Context, mealID string) (models.Meal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meal, ok := r.meals[mealID]
	if !ok {
		return models.Meal{}, repositories.ErrMealNotFound
	}
	return snapshot(meal), nil
}

func (r *InMemoryMealRepo) ListMeals(ctx context.Context, filter repositories.MealFilter) ([]models.Meal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Meal
	for _, meal := range r.meals {
		if filter.MealType != "" && meal.MealType != filter.MealType {
			continue
		}
		out = append(out, snapshot(meal))
	}
	return out, nil
}

func (r *InMemoryMealRepo) ListMealsForUser(ctx context.Context, userID string) ([]models.Meal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Meal
	for _, meal := range r.meals {
		if meal.CreatorID == userID || contains(meal.JoinedIDs, userID) {
			out = append(out, snapshot(meal))
		}
	}
	return out, nil
}

func (r *InMemoryMealRepo) UpdateMeal(ctx context.Context, mealID string, upd models.MealUpdate) (models.Meal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meal, ok := r.meals[mealID]
	if !ok {
		return models.Meal{}, repositories.ErrMealNotFound
	}
	if upd.Title != nil {
		meal.Title = *upd.Title
	}
	if upd.MealType != nil {
		meal.MealType = *upd.MealType
	}
	if upd.Location != nil {
		meal.Location = *upd.Location
	}
	if upd.Cuisine != nil {
		meal.Cuisine = *upd.Cuisine
	}
	if upd.Budget != nil {
		meal.Budget = *upd.Budget
	}
	if upd.Date != nil {
		meal.Date = *upd.Date
	}
	if upd.Time != nil {
		meal.Time = *upd.Time
	}
	if upd.Max != nil {
		meal.Max = *upd.Max
	}
	if upd.Vibes != nil {
		meal.Vibes = *upd.Vibes
	}
	return snapshot(meal), nil
}

func (r *InMemoryMealRepo) DeleteMeal(ctx context.Context, mealID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.meals[mealID]; !ok {
		return repositories.ErrMealNotFound
	}
	delete(r.meals, mealID)
	if r.messages != nil {
		r.messages.dropMeal(mealID)
	}
	return nil
}

func (r *InMemoryMealRepo) Join(ctx context.Context, mealID string, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meal, ok := r.meals[mealID]
	if !ok {
		return repositories.ErrMealNotFound
	}
	if meal.CreatorID == userID {
		return nil
	}
	if contains(meal.JoinedIDs, userID) {
		return nil
	}
	if len(meal.JoinedIDs) >= meal.Max {
		return repositories.ErrMealFull
	}
	meal.JoinedIDs = append(meal.JoinedIDs, userID)
	return nil
}

func (r *InMemoryMealRepo) Leave(ctx context.Context, mealID string, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meal, ok := r.meals[mealID]
	if !ok {
		return repositories.ErrMealNotFound
	}
	if meal.CreatorID == userID {
		return repositories.ErrCreatorLeave
	}
	for i, id := range meal.JoinedIDs {
		if id == userID {
			meal.JoinedIDs = append(meal.JoinedIDs[:i], meal.JoinedIDs[i+1:]...)
			break
		}
	}
	return nil
}

func (r *InMemoryMealRepo) IsParticipant(ctx context.Context, mealID string, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meal, ok := r.meals[mealID]
	if !ok {
		return false, nil
	}
	return meal.CreatorID == userID || contains(meal.JoinedIDs, userID), nil
}

func snapshot(meal *models.Meal) models.Meal {
	out := *meal
	out.JoinedIDs = append([]string(nil), meal.JoinedIDs...)
	return out
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
