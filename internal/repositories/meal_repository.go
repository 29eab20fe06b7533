package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chopmeet-service/internal/models"
)

var (
	ErrMealNotFound = errors.New("meal not found")
	ErrMealFull     = errors.New("meal is full")
	ErrCreatorLeave = errors.New("creator cannot leave own meal")
)

// MealFilter narrows ListMeals. Zero values mean no filtering.
type MealFilter struct {
	MealType string
	Vibes    []string
}

// MealRepository abstracts meal persistence and membership.
type MealRepository interface {
	CreateMeal(ctx context.Context, meal models.Meal) (models.Meal, error)
	GetMeal(ctx context.Context, mealID string) (models.Meal, error)
	ListMeals(ctx context.Context, filter MealFilter) ([]models.Meal, error)
	ListMealsForUser(ctx context.Context, userID string) ([]models.Meal, error)
	UpdateMeal(ctx context.Context, mealID string, upd models.MealUpdate) (models.Meal, error)
	DeleteMeal(ctx context.Context, mealID string) error
	Join(ctx context.Context, mealID string, userID string) error
	Leave(ctx context.Context, mealID string, userID string) error
	IsParticipant(ctx context.Context, mealID string, userID string) (bool, error)
}

// MealRepo is a sqlx implementation of MealRepository.
type MealRepo struct {
	db *sqlx.DB
}

// NewMealRepo constructs a MealRepo.
func NewMealRepo(db *sqlx.DB) *MealRepo {
	return &MealRepo{db: db}
}

const mealColumns = `m.id, m.title, m.meal_type, m.location, m.cuisine, m.budget, m.meal_date, m.meal_time, m.max_guests, m.creator_id, m.vibes, m.created_at`

type mealRow struct {
	models.Meal
	Members pq.StringArray `db:"joined_ids"`
}

func (r mealRow) toMeal() models.Meal {
	meal := r.Meal
	meal.JoinedIDs = []string(r.Members)
	if meal.JoinedIDs == nil {
		meal.JoinedIDs = []string{}
	}
	return meal
}

// CreateMeal assigns an id and stores the meal. The creator is not added
// to the membership set.
func (r *MealRepo) CreateMeal(ctx context.Context, meal models.Meal) (models.Meal, error) {
	meal.ID = uuid.NewString()
	meal.JoinedIDs = []string{}
	meal.CreatedAt = time.Now().UTC()
	if meal.Vibes == nil {
		meal.Vibes = pq.StringArray{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meals (id, title, meal_type, location, cuisine, budget, meal_date, meal_time, max_guests, creator_id, vibes, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		meal.ID, meal.Title, meal.MealType, meal.Location, meal.Cuisine, meal.Budget,
		meal.Date, meal.Time, meal.Max, meal.CreatorID, meal.Vibes, meal.CreatedAt)
	if err != nil {
		return models.Meal{}, err
	}
	return meal, nil
}

// GetMeal fetches a single meal with its membership set.
func (r *MealRepo) GetMeal(ctx context.Context, mealID string) (models.Meal, error) {
	var row mealRow
	err := r.db.GetContext(ctx, &row, `SELECT `+mealColumns+`,
        COALESCE(array_agg(mm.user_id ORDER BY mm.joined_at) FILTER (WHERE mm.user_id IS NOT NULL), '{}') AS joined_ids
        FROM meals m LEFT JOIN meal_members mm ON mm.meal_id = m.id
        WHERE m.id=$1
        GROUP BY m.id`, mealID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Meal{}, ErrMealNotFound
	}
	if err != nil {
		return models.Meal{}, err
	}
	return row.toMeal(), nil
}

// ListMeals returns all meals matching the filter, newest first.
func (r *MealRepo) ListMeals(ctx context.Context, filter MealFilter) ([]models.Meal, error) {
	query := `SELECT ` + mealColumns + `,
        COALESCE(array_agg(mm.user_id ORDER BY mm.joined_at) FILTER (WHERE mm.user_id IS NOT NULL), '{}') AS joined_ids
        FROM meals m LEFT JOIN meal_members mm ON mm.meal_id = m.id`
	var conds []string
	var args []interface{}
	if filter.MealType != "" {
		args = append(args, filter.MealType)
		conds = append(conds, fmt.Sprintf("m.meal_type=$%d", len(args)))
	}
	if len(filter.Vibes) > 0 {
		args = append(args, pq.StringArray(filter.Vibes))
		conds = append(conds, fmt.Sprintf("m.vibes @> $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " GROUP BY m.id ORDER BY m.created_at DESC"

	var rows []mealRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	meals := make([]models.Meal, 0, len(rows))
	for _, row := range rows {
		meals = append(meals, row.toMeal())
	}
	return meals, nil
}

// ListMealsForUser returns meals the user created or joined, newest first.
func (r *MealRepo) ListMealsForUser(ctx context.Context, userID string) ([]models.Meal, error) {
	var rows []mealRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+mealColumns+`,
        COALESCE(array_agg(mm.user_id ORDER BY mm.joined_at) FILTER (WHERE mm.user_id IS NOT NULL), '{}') AS joined_ids
        FROM meals m LEFT JOIN meal_members mm ON mm.meal_id = m.id
        WHERE m.creator_id=$1 OR EXISTS(SELECT 1 FROM meal_members x WHERE x.meal_id=m.id AND x.user_id=$1)
        GROUP BY m.id ORDER BY m.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	meals := make([]models.Meal, 0, len(rows))
	for _, row := range rows {
		meals = append(meals, row.toMeal())
	}
	return meals, nil
}

// UpdateMeal applies a partial field merge. Membership, creator and id
// are not touched through this path.
func (r *MealRepo) UpdateMeal(ctx context.Context, mealID string, upd models.MealUpdate) (models.Meal, error) {
	if upd.Empty() {
		return r.GetMeal(ctx, mealID)
	}

	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.MealType != nil {
		add("meal_type", *upd.MealType)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.Cuisine != nil {
		add("cuisine", *upd.Cuisine)
	}
	if upd.Budget != nil {
		add("budget", *upd.Budget)
	}
	if upd.Date != nil {
		add("meal_date", *upd.Date)
	}
	if upd.Time != nil {
		add("meal_time", *upd.Time)
	}
	if upd.Max != nil {
		add("max_guests", *upd.Max)
	}
	if upd.Vibes != nil {
		add("vibes", pq.StringArray(*upd.Vibes))
	}

	args = append(args, mealID)
	query := fmt.Sprintf(`UPDATE meals SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Meal{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Meal{}, err
	}
	if count == 0 {
		return models.Meal{}, ErrMealNotFound
	}
	return r.GetMeal(ctx, mealID)
}

// DeleteMeal removes the meal. Members, messages and read receipts go
// with it through the ON DELETE CASCADE constraints.
func (r *MealRepo) DeleteMeal(ctx context.Context, mealID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meals WHERE id=$1`, mealID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMealNotFound
	}
	return nil
}

// Join adds the user to the membership set. Already-joined users and the
// creator are no-op successes. The meal row is locked for the duration of
// the transaction so concurrent joins near capacity cannot lose updates
// or overshoot max_guests.
func (r *MealRepo) Join(ctx context.Context, mealID string, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var meal struct {
		CreatorID string `db:"creator_id"`
		Max       int    `db:"max_guests"`
	}
	if err = tx.GetContext(ctx, &meal, `SELECT creator_id, max_guests FROM meals WHERE id=$1 FOR UPDATE`, mealID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMealNotFound
		}
		return err
	}

	// creator has implicit access and never occupies a seat
	if meal.CreatorID == userID {
		err = tx.Commit()
		return err
	}

	var member bool
	if err = tx.GetContext(ctx, &member, `SELECT EXISTS(SELECT 1 FROM meal_members WHERE meal_id=$1 AND user_id=$2)`, mealID, userID); err != nil {
		return err
	}
	if member {
		err = tx.Commit()
		return err
	}

	var count int
	if err = tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM meal_members WHERE meal_id=$1`, mealID); err != nil {
		return err
	}
	if count >= meal.Max {
		err = ErrMealFull
		return err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO meal_members (meal_id, user_id) VALUES ($1, $2)`, mealID, userID); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// Leave removes the user from the membership set. Leaving a meal the user
// never joined is a no-op; the creator is rejected explicitly.
func (r *MealRepo) Leave(ctx context.Context, mealID string, userID string) error {
	var creatorID string
	err := r.db.GetContext(ctx, &creatorID, `SELECT creator_id FROM meals WHERE id=$1`, mealID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMealNotFound
	}
	if err != nil {
		return err
	}
	if creatorID == userID {
		return ErrCreatorLeave
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM meal_members WHERE meal_id=$1 AND user_id=$2`, mealID, userID)
	return err
}

// IsParticipant reports whether the user is the creator or a member.
func (r *MealRepo) IsParticipant(ctx context.Context, mealID string, userID string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT
        EXISTS(SELECT 1 FROM meals WHERE id=$1 AND creator_id=$2)
        OR EXISTS(SELECT 1 FROM meal_members WHERE meal_id=$1 AND user_id=$2)`, mealID, userID)
	return ok, err
}
