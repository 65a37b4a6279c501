// Package http exposes the giveaway operations over gin.
package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"reward-giveaway-backend/internal/common/cache"
	apperrors "reward-giveaway-backend/internal/common/errors"
	"reward-giveaway-backend/internal/common/logger"
	"reward-giveaway-backend/internal/common/middleware"
	"reward-giveaway-backend/internal/concurrency"
	"reward-giveaway-backend/internal/features/draw"
	"reward-giveaway-backend/internal/features/giveaway/models"
	"reward-giveaway-backend/internal/features/giveaway/storage"
	"reward-giveaway-backend/internal/features/payment"
	"reward-giveaway-backend/internal/features/permission"
	"reward-giveaway-backend/internal/features/registration"
)

type Handler struct {
	registration *registration.Service
	payments     *payment.Service
	draws        *draw.Service
	store        *storage.Store
	cache        *cache.CacheService
	locks        *concurrency.Manager
	gate         permission.Gate
	types        models.TypeTable
	statsTTL     time.Duration
	logger       zerolog.Logger
}

func NewHandler(
	reg *registration.Service,
	payments *payment.Service,
	draws *draw.Service,
	store *storage.Store,
	cacheService *cache.CacheService,
	locks *concurrency.Manager,
	gate permission.Gate,
	types models.TypeTable,
	statsTTL time.Duration,
) *Handler {
	return &Handler{
		registration: reg,
		payments:     payments,
		draws:        draws,
		store:        store,
		cache:        cacheService,
		locks:        locks,
		gate:         gate,
		types:        types,
		statsTTL:     statsTTL,
		logger:       logger.With("http"),
	}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, botToken string) {
	authed := router.Group("", middleware.TelegramInitData(botToken))

	giveaways := authed.Group("/giveaways")
	{
		giveaways.POST("/:type/register", h.register)
		giveaways.GET("/:type/stats", h.stats)
		giveaways.GET("/:type/winners", h.winners)
	}

	users := authed.Group("/users")
	{
		users.GET("/me/stats", h.myStats)
	}

	admin := authed.Group("/admin")
	{
		admin.POST("/giveaways/:type/draw",
			middleware.AdminOnly(h.gate, permission.ActionExecuteDraw), h.executeDraw)
		admin.POST("/winners/:type/:id/confirm",
			middleware.AdminOnly(h.gate, permission.ActionConfirmPayment), h.confirmPayment)
		admin.GET("/operations",
			middleware.AdminOnly(h.gate, permission.ActionExecuteDraw), h.activeOperations)
	}
}

type registerRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

// @Summary Register for a giveaway
// @Description Submit a trading account id for the current period of a giveaway type. Runs the full validation pipeline.
// @Tags giveaways
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param type path string true "Giveaway type" Enums(daily, weekly, monthly)
// @Param request body registerRequest true "Registration payload"
// @Success 200 {object} models.RegistrationResult
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Failure 429 {object} middleware.ErrorResponse
// @Router /giveaways/{type}/register [post]
func (h *Handler) register(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid request body"), h.logger)
		return
	}

	typeID := models.TypeID(c.Param("type"))
	result, err := h.registration.Register(c.Request.Context(), userID, displayNameOf(c), req.AccountID, typeID)
	if err != nil {
		middleware.HandleError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

type statsResponse struct {
	GiveawayType string  `json:"giveaway_type"`
	Prize        float64 `json:"prize"`
	Participants int     `json:"participants"`
	TotalDraws   int     `json:"total_draws"`
}

// @Summary Giveaway statistics
// @Tags giveaways
// @Produce json
// @Security TelegramInitData
// @Param type path string true "Giveaway type" Enums(daily, weekly, monthly)
// @Success 200 {object} statsResponse
// @Router /giveaways/{type}/stats [get]
func (h *Handler) stats(c *gin.Context) {
	typeID := models.TypeID(c.Param("type"))
	gt, ok := h.types.Get(typeID)
	if !ok {
		middleware.HandleError(c, apperrors.New(apperrors.ErrCodeBadRequest, "Unknown giveaway type"), h.logger)
		return
	}

	var resp statsResponse
	err := h.cache.GetOrSet(c.Request.Context(), "stats:"+string(typeID), &resp, h.statsTTL,
		func() (interface{}, error) {
			participants, err := h.store.ActiveParticipants(typeID)
			if err != nil {
				return nil, err
			}
			winners, err := h.store.ConfirmedWinners(typeID)
			if err != nil {
				return nil, err
			}
			return statsResponse{
				GiveawayType: string(typeID),
				Prize:        gt.Prize,
				Participants: len(participants),
				TotalDraws:   len(winners),
			}, nil
		})
	if err != nil {
		middleware.HandleError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Confirmed winners of a giveaway type
// @Tags giveaways
// @Produce json
// @Security TelegramInitData
// @Param type path string true "Giveaway type" Enums(daily, weekly, monthly)
// @Success 200 {array} models.ConfirmedWinner
// @Router /giveaways/{type}/winners [get]
func (h *Handler) winners(c *gin.Context) {
	typeID := models.TypeID(c.Param("type"))
	if _, ok := h.types.Get(typeID); !ok {
		middleware.HandleError(c, apperrors.New(apperrors.ErrCodeBadRequest, "Unknown giveaway type"), h.logger)
		return
	}

	var winners []models.ConfirmedWinner
	err := h.cache.GetOrSet(c.Request.Context(), "winners:"+string(typeID), &winners, h.statsTTL,
		func() (interface{}, error) {
			return h.store.ConfirmedWinners(typeID)
		})
	if err != nil {
		middleware.HandleError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, winners)
}

type userStatsResponse struct {
	UserID              int64 `json:"user_id"`
	TotalParticipations int   `json:"total_participations"`
	UniqueAccounts      int   `json:"unique_accounts"`
}

// @Summary Current user's participation statistics
// @Tags users
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} userStatsResponse
// @Router /users/me/stats [get]
func (h *Handler) myStats(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	participations, accounts, err := h.store.UserStats(userID)
	if err != nil {
		middleware.HandleError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, userStatsResponse{
		UserID:              userID,
		TotalParticipations: participations,
		UniqueAccounts:      len(accounts),
	})
}

// @Summary Execute a draw manually
// @Description Admin-only. Subject to the type's execution window.
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param type path string true "Giveaway type" Enums(daily, weekly, monthly)
// @Success 200 {object} models.PendingWinner
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /admin/giveaways/{type}/draw [post]
func (h *Handler) executeDraw(c *gin.Context) {
	typeID := models.TypeID(c.Param("type"))
	winner, err := h.draws.ExecuteManual(c.Request.Context(), middleware.Actor(c), typeID)
	if err != nil {
		middleware.HandleError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "winner": winner})
}

// @Summary Confirm a winner's payout
// @Description Admin-only. Transitions the pending winner to payment_confirmed exactly once.
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param type path string true "Giveaway type" Enums(daily, weekly, monthly)
// @Param id path string true "Pending winner id"
// @Success 200 {object} models.ConfirmResult
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /admin/winners/{type}/{id}/confirm [post]
func (h *Handler) confirmPayment(c *gin.Context) {
	typeID := models.TypeID(c.Param("type"))
	winnerID := c.Param("id")

	result, err := h.payments.Confirm(c.Request.Context(), middleware.Actor(c), typeID, winnerID)
	if err != nil {
		middleware.HandleError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// @Summary Active lock-protected operations
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} map[string]interface{}
// @Router /admin/operations [get]
func (h *Handler) activeOperations(c *gin.Context) {
	ops := h.locks.ActiveOperations()
	c.JSON(http.StatusOK, gin.H{"count": len(ops), "operations": ops})
}

func displayNameOf(c *gin.Context) string {
	if u, exists := c.Get("user"); exists {
		if user, ok := u.(initdata.User); ok {
			name := strings.TrimSpace(user.FirstName + " " + user.LastName)
			if name == "" {
				name = user.Username
			}
			return name
		}
	}
	return ""
}
