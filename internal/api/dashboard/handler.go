// Package dashboard provides REST API handlers for the coach dashboard.
// It exposes endpoints for the profile and its unlocks, tasks, the shop, personality
// switching, milestone history and on-demand reply processing.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/task-coach/internal/lock"
	"github.com/aimd54/task-coach/internal/models"
	"github.com/aimd54/task-coach/internal/parser"
	"github.com/aimd54/task-coach/internal/service/coach"
	"github.com/aimd54/task-coach/internal/service/ledger"
	"github.com/aimd54/task-coach/internal/service/milestone"
	"github.com/aimd54/task-coach/internal/service/shop"
	"github.com/aimd54/task-coach/internal/service/tasks"
	"github.com/aimd54/task-coach/internal/service/unlock"
	"github.com/aimd54/task-coach/pkg/logger"
)

// requestTimeout bounds every handler's service calls.
const requestTimeout = 60 * time.Second

// ProfileService reads the gamification profile.
type ProfileService interface {
	Profile(ctx context.Context, owner string) (*models.UserGamification, error)
}

// TaskService lists tasks.
type TaskService interface {
	List(ctx context.Context, owner string, statuses ...models.TaskStatus) ([]models.Task, error)
}

// ShopService interface for shop operations.
type ShopService interface {
	Catalog(ctx context.Context) ([]models.ShopItem, error)
	Inventory(ctx context.Context, owner string) ([]models.UserInventory, error)
	Purchase(ctx context.Context, owner, query string) (*shop.Receipt, error)
}

// PersonalityService switches the coach personality.
type PersonalityService interface {
	SwitchPersonality(ctx context.Context, owner string, target models.Personality) (*models.UserGamification, error)
}

// MilestoneService lists granted milestone rewards.
type MilestoneService interface {
	History(ctx context.Context, owner string) ([]models.PersistenceReward, error)
}

// ReplyService processes a free-text progress reply.
type ReplyService interface {
	ProcessReply(ctx context.Context, owner, reply string) (*coach.ReplyResult, error)
}

// Services groups the handler's dependencies.
type Services struct {
	Profiles    ProfileService
	Tasks       TaskService
	Shop        ShopService
	Personality PersonalityService
	Milestones  MilestoneService
	Replies     ReplyService
}

// Handler handles dashboard API requests.
type Handler struct {
	svc Services
	log *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(svc Services, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts the API under r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	v1.GET("/users/:owner/profile", h.GetProfile)
	v1.GET("/users/:owner/tasks", h.GetTasks)
	v1.POST("/users/:owner/replies", h.PostReply)
	v1.PUT("/users/:owner/personality", h.SwitchPersonality)
	v1.GET("/users/:owner/milestones", h.GetMilestones)
	v1.GET("/users/:owner/inventory", h.GetInventory)
	v1.POST("/users/:owner/purchases", h.Purchase)
	v1.GET("/shop/items", h.GetShopItems)
}

// GetProfile returns the profile, the features it has unlocked and the next unlock.
// GET /api/v1/users/:owner/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	owner := c.Param("owner")
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	p, err := h.svc.Profiles.Profile(ctx, owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to get profile")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve profile")
		return
	}

	var features []string
	for _, m := range unlock.UnlocksBetween(0, p.Level) {
		features = append(features, m.Features...)
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":                 p,
		"required_exp":            ledger.RequiredExp(p.Level),
		"unlocked_features":       features,
		"available_personalities": unlock.AvailablePersonalities(p.Level),
		"next_unlock":             unlock.NextUnlockInfo(p.Level, p.CurrentExp, 0),
		"next_streak_reward":      nextStreakReward(p.ConsecutiveReplyDays),
		"generated_at":            time.Now().UTC(),
	})
}

func nextStreakReward(days int) *milestone.Reward {
	r, ok := milestone.NextReward(days)
	if !ok {
		return nil
	}
	return &r
}

// GetTasks lists tasks, optionally filtered by status.
// GET /api/v1/users/:owner/tasks?status=active.
func (h *Handler) GetTasks(c *gin.Context) {
	owner := c.Param("owner")

	var statuses []models.TaskStatus
	if status := c.Query("status"); status != "" {
		s := models.TaskStatus(status)
		switch s {
		case models.TaskStatusActive, models.TaskStatusPaused, models.TaskStatusCompleted:
			statuses = append(statuses, s)
		default:
			h.errorResponse(c, http.StatusBadRequest, "invalid status: "+status+" (valid: active, paused, completed)")
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	list, err := h.svc.Tasks.List(ctx, owner, statuses...)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to list tasks")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve tasks")
		return
	}

	items := make([]gin.H, 0, len(list))
	for _, t := range list {
		items = append(items, gin.H{"code": t.Code(), "task": t})
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":       items,
		"total_tasks": len(items),
	})
}

type replyRequest struct {
	Text string `json:"text" binding:"required"`
}

// PostReply processes a free-text progress reply.
// POST /api/v1/users/:owner/replies {"text": "..."}.
func (h *Handler) PostReply(c *gin.Context) {
	owner := c.Param("owner")

	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "text is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.svc.Replies.ProcessReply(ctx, owner, req.Text)
	if err != nil {
		h.log.Warn().Err(err).Str("owner", owner).Msg("Failed to process reply")
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type personalityRequest struct {
	Personality string `json:"personality" binding:"required"`
}

// SwitchPersonality changes the coach personality.
// PUT /api/v1/users/:owner/personality {"personality": "strict"}.
func (h *Handler) SwitchPersonality(c *gin.Context) {
	owner := c.Param("owner")

	var req personalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "personality is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	p, err := h.svc.Personality.SwitchPersonality(ctx, owner, models.Personality(req.Personality))
	if err != nil {
		h.serviceError(c, err)
		return
	}

	h.log.Info().
		Str("owner", owner).
		Str("personality", req.Personality).
		Msg("Switched personality")

	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// GetMilestones lists granted streak milestone rewards.
// GET /api/v1/users/:owner/milestones.
func (h *Handler) GetMilestones(c *gin.Context) {
	owner := c.Param("owner")
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	rewards, err := h.svc.Milestones.History(ctx, owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to list milestone rewards")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve milestone rewards")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rewards":    rewards,
		"milestones": milestone.Rewards,
	})
}

// GetShopItems returns the catalog.
// GET /api/v1/shop/items.
func (h *Handler) GetShopItems(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	items, err := h.svc.Shop.Catalog(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get shop catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve shop items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"total_items": len(items),
	})
}

// GetInventory returns what the owner has bought.
// GET /api/v1/users/:owner/inventory.
func (h *Handler) GetInventory(c *gin.Context) {
	owner := c.Param("owner")
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	inv, err := h.svc.Shop.Inventory(ctx, owner)
	if err != nil {
		h.log.Error().Err(err).Str("owner", owner).Msg("Failed to get inventory")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve inventory")
		return
	}

	c.JSON(http.StatusOK, gin.H{"inventory": inv})
}

type purchaseRequest struct {
	Item string `json:"item" binding:"required"`
}

// Purchase buys an item by code or fuzzy name.
// POST /api/v1/users/:owner/purchases {"item": "coffee"}.
func (h *Handler) Purchase(c *gin.Context) {
	owner := c.Param("owner")

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "item is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	receipt, err := h.svc.Shop.Purchase(ctx, owner, req.Item)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": receipt})
}

// Health reports liveness.
// GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// serviceError maps domain errors to status codes.
func (h *Handler) serviceError(c *gin.Context, err error) {
	var (
		levelErr *ledger.LevelInsufficientError
		coinsErr *ledger.CoinsInsufficientError
		usageErr *shop.UsageLimitExceededError
		conflict *ledger.ConcurrencyError
	)
	switch {
	case errors.As(err, &levelErr):
		h.errorResponse(c, http.StatusForbidden, err.Error())
	case errors.As(err, &coinsErr):
		h.errorResponse(c, http.StatusPaymentRequired, err.Error())
	case errors.As(err, &usageErr):
		h.errorResponse(c, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &conflict), errors.Is(err, lock.ErrLocked), errors.Is(err, unlock.ErrNoOp):
		h.errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, shop.ErrItemNotFound), errors.Is(err, tasks.ErrTaskNotFound):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, unlock.ErrUnknownPersonality):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, parser.ErrUnparseable):
		h.errorResponse(c, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Request failed")
		h.errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
