package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/me/brigade/pkg/model"
)

const (
	historyWeight  = 0.9
	observedWeight = 0.1
	minPrepMinutes = 1
)

// SkipReason explains why an observation did not change the estimate.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipNoDish          SkipReason = "task_has_no_dish"
	SkipImplausible     SkipReason = "non_positive_duration"
	SkipDishNotFound    SkipReason = "dish_not_found"
	SkipEstimateSettled SkipReason = "estimate_unchanged"
	SkipEstimateEdited  SkipReason = "estimate_edited_concurrently"
)

// Observation is the outcome of feeding one completion to the estimator.
type Observation struct {
	DishID          string     `json:"dish_id"`
	ObservedMinutes int        `json:"observed_minutes"`
	Previous        int        `json:"previous_minutes"`
	Updated         int        `json:"updated_minutes"`
	Skipped         SkipReason `json:"skipped,omitempty"`
}

// Estimator refines a dish's expected preparation time from the latency of
// completed tasks using an exponential moving average.
type Estimator struct {
	dishes DishRepository
	logger *slog.Logger
}

// NewEstimator creates an estimator writing back through dishes.
func NewEstimator(dishes DishRepository, logger *slog.Logger) *Estimator {
	return &Estimator{
		dishes: dishes,
		logger: logger.With("component", "estimator"),
	}
}

// ObservedMinutes is the whole number of minutes between placement and
// completion, truncated toward zero.
func ObservedMinutes(placedAt, completedAt time.Time) int {
	return int(completedAt.Sub(placedAt) / time.Minute)
}

// NextEstimate applies the moving average. ok is false when observed is
// not a plausible signal and the old estimate stands.
func NextEstimate(old, observed int) (next int, ok bool) {
	if observed <= 0 {
		return old, false
	}
	next = int(math.Round(float64(old)*historyWeight + float64(observed)*observedWeight))
	return max(minPrepMinutes, next), true
}

// Observe updates the dish behind task given that it completed at
// completedAt. Implausible durations and missing dishes are skipped, never
// returned as errors; only store failures are.
func (e *Estimator) Observe(ctx context.Context, task model.Task, completedAt time.Time) (Observation, error) {
	obs := Observation{
		DishID:          task.DishID,
		ObservedMinutes: ObservedMinutes(task.PlacedAt, completedAt),
	}
	if task.DishID == "" || e.dishes == nil {
		obs.Skipped = SkipNoDish
		return obs, nil
	}
	if obs.ObservedMinutes <= 0 {
		obs.Skipped = SkipImplausible
		e.logger.Debug("ignoring implausible duration", "task_id", task.ID, "observed_minutes", obs.ObservedMinutes)
		return obs, nil
	}

	dish, err := e.dishes.GetDish(ctx, task.DishID)
	if err != nil {
		return obs, fmt.Errorf("get dish %s: %w", task.DishID, err)
	}
	if dish == nil {
		// Dish deleted since placement.
		obs.Skipped = SkipDishNotFound
		e.logger.Warn("dish missing for completed task", "task_id", task.ID, "dish_id", task.DishID)
		return obs, nil
	}

	obs.Previous = dish.PrepMinutes
	obs.Updated, _ = NextEstimate(dish.PrepMinutes, obs.ObservedMinutes)
	if obs.Updated == obs.Previous {
		obs.Skipped = SkipEstimateSettled
		return obs, nil
	}

	ok, err := e.dishes.UpdateDishPrepMinutes(ctx, dish.ID, obs.Previous, obs.Updated)
	if err != nil {
		return obs, fmt.Errorf("update dish %s: %w", dish.ID, err)
	}
	if !ok {
		// Someone edited or deleted the dish after we read it; their write wins.
		obs.Skipped = SkipEstimateEdited
		e.logger.Warn("estimate not applied, dish changed", "task_id", task.ID, "dish_id", dish.ID)
		return obs, nil
	}
	e.logger.Info("adaptive estimate updated",
		"dish", dish.Name,
		"dish_id", dish.ID,
		"observed_minutes", obs.ObservedMinutes,
		"previous_minutes", obs.Previous,
		"updated_minutes", obs.Updated,
	)
	return obs, nil
}
