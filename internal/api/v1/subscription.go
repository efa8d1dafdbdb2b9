package v1

import (
	"net/http"

	"github.com/flexprice/residence-billing/internal/api/dto"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/rest/middleware"
	"github.com/flexprice/residence-billing/internal/service"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	checkout  service.CheckoutService
	saga      service.RankingSubscriptionSaga
	freePlan  service.FreePlanService
	validator service.EntitlementValidator
	log       *logger.Logger
}

func NewSubscriptionHandler(
	checkout service.CheckoutService,
	saga service.RankingSubscriptionSaga,
	freePlan service.FreePlanService,
	validator service.EntitlementValidator,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		checkout:  checkout,
		saga:      saga,
		freePlan:  freePlan,
		validator: validator,
		log:       log,
	}
}

// @Summary Create a residence subscription checkout
// @Description Open a hosted checkout for the residence tier
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateResidenceCheckoutRequest true "Checkout request"
// @Success 201 {object} dto.CheckoutSessionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/residence [post]
func (h *SubscriptionHandler) CreateResidenceCheckout(c *gin.Context) {
	var req dto.CreateResidenceCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	req.UserID = types.GetUserID(c.Request.Context())
	req.Email = middleware.GetUserEmail(c)

	resp, err := h.checkout.CreateResidenceCheckout(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Create a ranking subscription checkout
// @Description Open a hosted checkout for one ranking category. Requires an active residence subscription.
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateRankingCheckoutRequest true "Checkout request"
// @Success 201 {object} dto.CheckoutSessionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/ranking [post]
func (h *SubscriptionHandler) CreateRankingCheckout(c *gin.Context) {
	var req dto.CreateRankingCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	req.UserID = types.GetUserID(c.Request.Context())
	req.Email = middleware.GetUserEmail(c)

	resp, err := h.checkout.CreateRankingCheckout(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Subscribe to ranking categories directly
// @Description Create ranking subscriptions off-session with a saved payment method
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateDirectRankingSubscriptionRequest true "Direct subscription request"
// @Success 201 {object} dto.DirectRankingSubscriptionResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/ranking/direct [post]
func (h *SubscriptionHandler) CreateDirectRankingSubscription(c *gin.Context) {
	var req dto.CreateDirectRankingSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	req.UserID = types.GetUserID(c.Request.Context())
	req.Email = middleware.GetUserEmail(c)

	resp, err := h.saga.Subscribe(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Assign the free residence plan
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param residenceId path string true "Residence ID"
// @Success 200 {object} dto.EntitlementResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/residence/{residenceId}/free [post]
func (h *SubscriptionHandler) AssignFreePlan(c *gin.Context) {
	resp, err := h.freePlan.AssignFreePlan(c.Request.Context(), types.GetUserID(c.Request.Context()), c.Param("residenceId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get residence subscription status
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param residenceId path string true "Residence ID"
// @Success 200 {object} dto.SubscriptionStatusResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/residence/{residenceId}/status [get]
func (h *SubscriptionHandler) GetResidenceSubscriptionStatus(c *gin.Context) {
	resp, err := h.checkout.GetResidenceSubscriptionStatus(c.Request.Context(), types.GetUserID(c.Request.Context()), c.Param("residenceId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List entitlement records of a residence
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param residenceId path string true "Residence ID"
// @Success 200 {object} dto.ListResponse[dto.EntitlementResponse]
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/residence/{residenceId} [get]
func (h *SubscriptionHandler) ListEntitlements(c *gin.Context) {
	resp, err := h.checkout.ListEntitlements(c.Request.Context(), types.GetUserID(c.Request.Context()), c.Param("residenceId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Check whether a residence may apply for ranking
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param residenceId path string true "Residence ID"
// @Success 200 {object} dto.CanApplyResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/residence/{residenceId}/validate-ranking [get]
func (h *SubscriptionHandler) ValidateRankingApplication(c *gin.Context) {
	resp, err := h.validator.ValidateRankingApplication(c.Request.Context(), types.GetUserID(c.Request.Context()), c.Param("residenceId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Check whether a residence may apply in a ranking category
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param residenceId path string true "Residence ID"
// @Param rankingCategoryId path string true "Ranking category ID"
// @Success 200 {object} dto.CategoryApplicationResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/residence/{residenceId}/ranking-category/{rankingCategoryId}/validate-application [get]
func (h *SubscriptionHandler) ValidateCategoryApplication(c *gin.Context) {
	resp, err := h.validator.ValidateCategoryApplication(
		c.Request.Context(),
		types.GetUserID(c.Request.Context()),
		c.Param("residenceId"),
		c.Param("rankingCategoryId"),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
