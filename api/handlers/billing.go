package handlers

import (
	"errors"
	"net/http"

	"github.com/BaSui01/imageflow/api"
	"github.com/BaSui01/imageflow/billing"
	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💳 结账 Handler
// =============================================================================

// BillingHandler 处理结账配置查询与结账会话创建
type BillingHandler struct {
	service *billing.Service
	logger  *zap.Logger
}

// NewBillingHandler 创建结账处理器
func NewBillingHandler(service *billing.Service, logger *zap.Logger) *BillingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingHandler{
		service: service,
		logger:  logger.With(zap.String("handler", "billing")),
	}
}

// HandleConfig 返回结账模式摘要
// @Summary 结账配置
// @Tags 结账
// @Produce json
// @Success 200 {object} api.BillingConfigResponse "结账模式"
// @Router /api/billing/config [get]
func (h *BillingHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.service.Status())
}

// HandleCheckout 创建结账链接
// @Summary 创建结账
// @Tags 结账
// @Accept json
// @Produce json
// @Param request body api.CheckoutRequest true "套餐"
// @Success 200 {object} api.CheckoutResponse "结账链接"
// @Failure 400 {object} api.MessageResponse "套餐无效或未配置"
// @Failure 502 {object} api.UpstreamErrorResponse "结账服务错误"
// @Router /api/billing/checkout [post]
func (h *BillingHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req api.CheckoutRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	plan, ok := billing.ParsePlan(req.Plan)
	if !ok {
		WriteJSON(w, http.StatusBadRequest, api.MessageResponse{Message: "invalid_plan"})
		return
	}

	checkout := billing.CheckoutRequest{
		Plan:   plan,
		Origin: billing.Origin(h.service.AppURL(), r.Header, r.Host),
	}
	if id, ok := types.IdentityFromContext(r.Context()); ok {
		checkout.Customer = billing.Customer{UserID: id.UserID, Email: id.Email}
	}

	url, err := h.service.Checkout(r.Context(), checkout)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, api.CheckoutResponse{URL: url})
}

func (h *BillingHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	var upErr *billing.UpstreamError

	switch {
	case errors.Is(err, billing.ErrInvalidPlan):
		WriteJSON(w, http.StatusBadRequest, api.MessageResponse{Message: "invalid_plan"})

	case errors.Is(err, billing.ErrNotConfigured):
		WriteJSON(w, http.StatusBadRequest, api.MessageResponse{Message: "creem_not_configured"})

	case errors.As(err, &upErr):
		h.logger.Warn("checkout failed",
			zap.Int("status", upErr.Status),
			zap.Bool("aborted", upErr.Aborted))
		WriteJSON(w, http.StatusBadGateway, api.UpstreamErrorResponse{
			Message: upErr.Tag(),
			Detail:  upErr.Detail,
		})

	default:
		h.logger.Error("checkout error", zap.Error(err))
		WriteJSON(w, http.StatusInternalServerError, api.MessageResponse{Message: err.Error()})
	}
}
