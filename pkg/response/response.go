package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// 业务错误码
const (
	CodeOK                  = 0
	CodeBadRequest          = 40000
	CodeUnauthorized        = 40100
	CodeInsufficientBalance = 40200
	CodeForbidden           = 40300
	CodeNotFound            = 40400
	CodeConflict            = 40900
	CodeTooManyRequests     = 42900
	CodeInternal            = 50000
	CodeUnavailable         = 50300
)

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: CodeOK, Message: "created", Data: data})
}

// Error 以指定 HTTP 状态与业务码返回
func Error(c *gin.Context, status, code int, message string, data interface{}) {
	c.AbortWithStatusJSON(status, Response{Code: code, Message: message, Data: data})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeBadRequest, message, nil)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message, nil)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message, nil)
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, CodeConflict, message, nil)
}

func TooManyRequests(c *gin.Context, message string) {
	Error(c, http.StatusTooManyRequests, CodeTooManyRequests, message, nil)
}

func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, CodeUnavailable, message, nil)
}

// InternalError 记录错误并返回 500；错误详情不回传给客户端
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	Error(c, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
}

// NoStore 聚合快照的新鲜度由应用层 TTL 控制，禁止 HTTP 缓存
func NoStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store, max-age=0")
}

// Snapshot 直接返回快照对象（不包 envelope）
func Snapshot(c *gin.Context, v interface{}) {
	NoStore(c)
	c.JSON(http.StatusOK, v)
}

// SnapshotError 快照端点失败时统一返回 500 {error}
func SnapshotError(c *gin.Context, err error) {
	NoStore(c)
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
