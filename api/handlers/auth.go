package handlers

import (
	"net/http"

	"github.com/BaSui01/imageflow/api"
	"github.com/BaSui01/imageflow/types"
)

// HandleAuthUser 返回当前请求的用户身份。匿名请求返回 {"user": null}，状态码始终为 200。
// @Summary 当前用户
// @Tags 身份
// @Produce json
// @Success 200 {object} api.UserResponse "当前用户"
// @Router /api/auth/user [get]
func HandleAuthUser(w http.ResponseWriter, r *http.Request) {
	resp := api.UserResponse{}
	if id, ok := types.IdentityFromContext(r.Context()); ok {
		resp.User = &id
	}
	WriteJSON(w, http.StatusOK, resp)
}
