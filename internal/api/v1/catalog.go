package v1

import (
	"net/http"

	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/service"
	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	service service.CatalogService
	log     *logger.Logger
}

func NewCatalogHandler(service service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{service: service, log: log}
}

// @Summary List residence products
// @Tags Catalog
// @Produce json
// @Success 200 {object} dto.ListResponse[dto.ProductResponse]
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/products/residence [get]
func (h *CatalogHandler) ListResidenceProducts(c *gin.Context) {
	resp, err := h.service.ListResidenceProducts(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List ranking products
// @Tags Catalog
// @Produce json
// @Success 200 {object} dto.ListResponse[dto.ProductResponse]
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/products/ranking [get]
func (h *CatalogHandler) ListRankingProducts(c *gin.Context) {
	resp, err := h.service.ListRankingProducts(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List ranking categories open for subscription
// @Tags Catalog
// @Produce json
// @Success 200 {object} dto.ListResponse[dto.RankingCategoryResponse]
// @Failure 500 {object} ierr.ErrorResponse
// @Router /subscriptions/ranking-categories [get]
func (h *CatalogHandler) ListRankingCategories(c *gin.Context) {
	resp, err := h.service.ListRankingCategories(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
