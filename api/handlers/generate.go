package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BaSui01/imageflow/api"
	"github.com/BaSui01/imageflow/llm/image"
	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// DefaultCredentialName 是缺少网关凭证时错误消息中使用的变量名
const DefaultCredentialName = "OPENROUTER_API_KEY"

// ImageEditor 是 GenerateHandler 依赖的编辑器接口，由 *image.Editor 实现。
type ImageEditor interface {
	Edit(ctx context.Context, req image.EditRequest) (*image.EditResult, error)
}

// =============================================================================
// 🖼️ 图片编辑 Handler
// =============================================================================

// GenerateHandler 处理 POST /api/generate
type GenerateHandler struct {
	editor         ImageEditor
	logger         *zap.Logger
	credentialName string
}

// NewGenerateHandler 创建图片编辑处理器
func NewGenerateHandler(editor ImageEditor, logger *zap.Logger) *GenerateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateHandler{
		editor:         editor,
		logger:         logger.With(zap.String("handler", "generate")),
		credentialName: DefaultCredentialName,
	}
}

// HandleGenerate 执行一次图片编辑检索
// @Summary 图片编辑
// @Description 在多个模型与请求变体之间顺序检索，返回第一个产出图片的结果
// @Tags 图片
// @Accept json
// @Produce json
// @Param request body api.GenerateRequest true "编辑请求"
// @Success 200 {object} api.GenerateResponse "编辑结果"
// @Failure 400 {object} api.ErrorResponse "缺少 prompt 或 image"
// @Failure 500 {object} api.ErrorResponse "网关凭证未配置"
// @Failure 502 {object} api.NoImageResponse "未找到图片"
// @Router /api/generate [post]
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result, err := h.editor.Edit(r.Context(), image.EditRequest{
		Prompt: req.Prompt,
		Image:  req.Image,
		Model:  req.Model,
	})
	if err != nil {
		h.writeEditError(w, err)
		return
	}

	h.logger.Info("image edit succeeded",
		zap.String("model", result.Model),
		zap.String("variant", string(result.Variant)),
		zap.Int("images", len(result.Images)))

	WriteJSON(w, http.StatusOK, api.GenerateResponse{
		Images: result.Images,
		Texts:  nonNil(result.Texts),
		Raw:    result.Raw,
	})
}

func (h *GenerateHandler) writeEditError(w http.ResponseWriter, err error) {
	var authErr *image.UpstreamAuthError
	var exhausted *image.ExhaustedError

	switch {
	case errors.Is(err, image.ErrMissingInput):
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "Missing 'prompt' or 'image'", h.logger)

	case errors.Is(err, image.ErrNotConfigured):
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrProviderNotSet,
			h.credentialName+" is not set on the server", h.logger)

	case errors.As(err, &authErr):
		h.logger.Warn("upstream rejected credentials",
			zap.Int("status", authErr.Status),
			zap.String("model", authErr.Attempt.Model),
			zap.String("variant", string(authErr.Attempt.Variant)))
		WriteJSON(w, http.StatusBadGateway, api.UpstreamErrorResponse{
			Message: authErr.Tag(),
			Detail:  authErr.Detail,
		})

	case errors.As(err, &exhausted):
		WriteJSON(w, http.StatusBadGateway, api.NoImageResponse{
			Error: "No image found in model output",
			Hint:  image.ExhaustedHint,
			Reason: api.FailureReason{
				Code:   string(exhausted.Reason.Code),
				Detail: exhausted.Reason.Detail,
			},
			RawPreview: exhausted.RawPreview,
			Tried:      nonNil(exhausted.Tried),
		})

	default:
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
	}
}

// nonNil 保证切片序列化为 [] 而不是 null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
