package handlers

import (
	"log/slog"
	"net/http"
	"zhutan/internal/middleware"
	"zhutan/internal/services"
	"zhutan/internal/utils"

	"github.com/gin-gonic/gin"
)

// respondError 按错误码返回 JSON；存储错误只记日志，不暴露细节
func respondError(c *gin.Context, err error) {
	code := utils.ErrorCode(err)
	status := utils.AppErrorToHTTPStatus(code)

	message := err.Error()
	if code == utils.ErrStore {
		slog.Error("store failure", "path", c.FullPath(), "request_id", c.GetString(middleware.RequestIDKey), "error", err)
		message = "internal error, please try again later"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": utils.ErrValidation, "message": message}})
}

// currentUserID 只在 AuthRequired 之后调用
func currentUserID(c *gin.Context) uint {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return 0
	}
	return user.ID
}

// pathID 解析路径参数，非法时直接写 400
func pathID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseUintParam(c.Param(name))
	if !ok {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryUint 可选的数字查询参数
func queryUint(c *gin.Context, name string) (*uint, bool) {
	v, ok := utils.OptionalUint(c.Query(name))
	if !ok {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return v, true
}

func pageFromQuery(c *gin.Context) services.Page {
	return services.Page{
		Limit:  utils.StringToInt(c.Query("limit")),
		Offset: utils.StringToInt(c.Query("offset")),
	}
}

// respondStale 投票已记录但聚合值待刷新：202 并带上已记录的状态
func respondStale(c *gin.Context, err error, body any) bool {
	if !utils.IsErrorCode(err, utils.ErrStaleAggregate) {
		return false
	}
	c.JSON(http.StatusAccepted, gin.H{
		"data":  body,
		"error": gin.H{"code": utils.ErrStaleAggregate, "message": "recorded, counts will refresh shortly"},
	})
	return true
}
