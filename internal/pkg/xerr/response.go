package xerr

import "github.com/gin-gonic/gin"

// Response 统一 JSON 响应结构
// 业务码与 HTTP 状态码分离，客户端按 Code 判断业务结果
type Response struct {
	Code    int    `json:"code"`    // 业务状态码
	Message string `json:"message"` // 消息
	Data    any    `json:"data"`    // 响应数据
}

// Success 成功响应
func Success(c *gin.Context, httpStatus int, message string, data any) {
	c.JSON(httpStatus, Response{
		Code:    SuccessCode,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

// AbortWithError 终止请求并发送错误响应，用于中间件
func AbortWithError(c *gin.Context, httpStatus int, code int, message string) {
	Error(c, httpStatus, code, message)
	c.Abort()
}
