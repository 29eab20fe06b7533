package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chopmeet-service/internal/models"
	"chopmeet-service/internal/observability"
	"chopmeet-service/internal/repositories"
	"chopmeet-service/internal/telemetry"
	"chopmeet-service/internal/ws"
)

// MealHandler manages meal-registry and membership endpoints.
type MealHandler struct {
	mealRepo repositories.MealRepository
	hub      *ws.Hub
	audit    *telemetry.AuditEmitter
}

// NewMealHandler constructs a MealHandler.
func NewMealHandler(mealRepo repositories.MealRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *MealHandler {
	return &MealHandler{mealRepo: mealRepo, hub: hub, audit: audit}
}

func validMealType(mealType string) bool {
	return mealType == models.MealTypeBuddy || mealType == models.MealTypeOpenToMore
}

// CreateMeal handles POST /meals.
func (h *MealHandler) CreateMeal(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Title    string   `json:"title" binding:"required"`
		MealType string   `json:"meal_type" binding:"required"`
		Location string   `json:"location" binding:"required"`
		Cuisine  string   `json:"cuisine"`
		Budget   string   `json:"budget"`
		Date     string   `json:"date" binding:"required"`
		Time     string   `json:"time" binding:"required"`
		Max      int      `json:"max" binding:"required,gt=0"`
		Vibes    []string `json:"vibes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validMealType(req.MealType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown meal type"})
		return
	}

	meal, err := h.mealRepo.CreateMeal(c.Request.Context(), models.Meal{
		Title:     req.Title,
		MealType:  req.MealType,
		Location:  req.Location,
		Cuisine:   req.Cuisine,
		Budget:    req.Budget,
		Date:      req.Date,
		Time:      req.Time,
		Max:       req.Max,
		CreatorID: userID,
		Vibes:     req.Vibes,
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create meal"})
		return
	}

	h.broadcastFeed(models.MealFeedEvent{Type: "meal_created", Meal: &meal, MealID: meal.ID})
	h.emitAudit(c, "INFO", "Meal created")
	c.JSON(http.StatusCreated, meal)
}

// ListMeals handles GET /meals with optional meal_type and vibe filters.
func (h *MealHandler) ListMeals(c *gin.Context) {
	filter := repositories.MealFilter{
		MealType: c.Query("meal_type"),
		Vibes:    c.QueryArray("vibe"),
	}
	if filter.MealType != "" && !validMealType(filter.MealType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown meal type"})
		return
	}

	meals, err := h.mealRepo.ListMeals(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": meals})
}

// ListMyMeals handles GET /meals/mine.
func (h *MealHandler) ListMyMeals(c *gin.Context) {
	userID := c.GetString("userID")
	meals, err := h.mealRepo.ListMealsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": meals})
}

// GetMeal handles GET /meals/:meal_id.
func (h *MealHandler) GetMeal(c *gin.Context) {
	meal, err := h.mealRepo.GetMeal(c.Request.Context(), c.Param("meal_id"))
	if err != nil {
		if errors.Is(err, repositories.ErrMealNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meal"})
		return
	}
	c.JSON(http.StatusOK, meal)
}

// JoinMeal handles POST /meals/:meal_id/join. Joining twice is a no-op
// success; joining a full meal is rejected without touching membership.
func (h *MealHandler) JoinMeal(c *gin.Context) {
	mealID := c.Param("meal_id")
	userID := c.GetString("userID")

	err := h.mealRepo.Join(c.Request.Context(), mealID, userID)
	switch {
	case errors.Is(err, repositories.ErrMealNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
		return
	case errors.Is(err, repositories.ErrMealFull):
		observability.IncJoinRejection("capacity")
		h.emitAudit(c, "ERROR", "join rejected, meal full")
		c.JSON(http.StatusConflict, gin.H{"error": "meal has reached the maximum number of participants"})
		return
	case err != nil:
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join meal"})
		return
	}

	h.broadcastMembership(c, mealID)
	h.emitAudit(c, "INFO", "Meal joined")
	c.JSON(http.StatusOK, gin.H{"status": "joined", "meal_id": mealID})
}

// LeaveMeal handles POST /meals/:meal_id/leave. The creator cannot leave
// their own meal; leaving a meal never joined is a no-op.
func (h *MealHandler) LeaveMeal(c *gin.Context) {
	mealID := c.Param("meal_id")
	userID := c.GetString("userID")

	err := h.mealRepo.Leave(c.Request.Context(), mealID, userID)
	switch {
	case errors.Is(err, repositories.ErrMealNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
		return
	case errors.Is(err, repositories.ErrCreatorLeave):
		h.emitAudit(c, "ERROR", "creator attempted to leave own meal")
		c.JSON(http.StatusForbidden, gin.H{"error": "creator cannot leave own meal"})
		return
	case err != nil:
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave meal"})
		return
	}

	h.broadcastMembership(c, mealID)
	h.emitAudit(c, "INFO", "Meal left")
	c.JSON(http.StatusOK, gin.H{"status": "left", "meal_id": mealID})
}

// UpdateMeal handles PATCH /meals/:meal_id, a creator-only partial merge.
func (h *MealHandler) UpdateMeal(c *gin.Context) {
	mealID := c.Param("meal_id")
	userID := c.GetString("userID")

	meal, err := h.mealRepo.GetMeal(c.Request.Context(), mealID)
	if err != nil {
		if errors.Is(err, repositories.ErrMealNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meal"})
		return
	}
	if meal.CreatorID != userID {
		h.emitAudit(c, "ERROR", "not allowed to edit meal")
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator may edit"})
		return
	}

	var upd models.MealUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if upd.MealType != nil && !validMealType(*upd.MealType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown meal type"})
		return
	}
	if upd.Max != nil && *upd.Max <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max must be positive"})
		return
	}

	updated, err := h.mealRepo.UpdateMeal(c.Request.Context(), mealID, upd)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update meal"})
		return
	}

	h.broadcastFeed(models.MealFeedEvent{Type: "meal_updated", Meal: &updated, MealID: updated.ID})
	h.emitAudit(c, "INFO", "Meal updated")
	c.JSON(http.StatusOK, updated)
}

// DeleteMeal handles DELETE /meals/:meal_id, creator-only. The chat log
// and read receipts are removed with the meal.
func (h *MealHandler) DeleteMeal(c *gin.Context) {
	mealID := c.Param("meal_id")
	userID := c.GetString("userID")

	meal, err := h.mealRepo.GetMeal(c.Request.Context(), mealID)
	if err != nil {
		if errors.Is(err, repositories.ErrMealNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meal"})
		return
	}
	if meal.CreatorID != userID {
		h.emitAudit(c, "ERROR", "not allowed to delete meal")
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator may delete"})
		return
	}

	if err := h.mealRepo.DeleteMeal(c.Request.Context(), mealID); err != nil {
		if errors.Is(err, repositories.ErrMealNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete meal"})
		return
	}

	h.broadcastFeed(models.MealFeedEvent{Type: "meal_deleted", MealID: mealID})
	h.emitAudit(c, "INFO", "Meal deleted")
	c.Status(http.StatusNoContent)
}

func (h *MealHandler) broadcastMembership(c *gin.Context, mealID string) {
	if h.hub == nil {
		return
	}
	meal, err := h.mealRepo.GetMeal(c.Request.Context(), mealID)
	if err != nil {
		return
	}
	h.broadcastFeed(models.MealFeedEvent{Type: "membership_changed", Meal: &meal, MealID: mealID})
}

func (h *MealHandler) broadcastFeed(event models.MealFeedEvent) {
	if h.hub == nil {
		return
	}
	h.hub.BroadcastFeedEvent(event)
}

func (h *MealHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), telemetry.Entry{
		Level:     level,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c),
		MealID:    c.Param("meal_id"),
	})
}
