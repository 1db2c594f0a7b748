package handlers

import (
	"errors"
	"net/http"

	"github.com/gbbspro/gbbs-archive/internal/middlewares"
	"github.com/gbbspro/gbbs-archive/internal/pkg/xerr"
	"github.com/gbbspro/gbbs-archive/internal/services/admin"
	"github.com/gin-gonic/gin"
)

// RegisterRequest 用户注册请求体
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Role     string `json:"role"`
}

// LoginRequest 用户登录请求体
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// InitRegisterHandler 用户注册
// @Summary 用户注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 200 {object} xerr.Response
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 409 {object} xerr.Response "用户已存在"
// @Router /api/v1/auth/register [post]
func InitRegisterHandler(authSvc admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.ValidationFailedCode, err.Error())
			return
		}

		user, err := authSvc.Register(req.Username, req.Password, req.Email, req.Role)
		if err != nil {
			switch {
			case errors.Is(err, xerr.ErrUserAlreadyExists):
				xerr.Error(c, http.StatusConflict, xerr.UserAlreadyExistsCode, err.Error())
			case errors.Is(err, xerr.ErrInvalidParams):
				xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			default:
				xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "注册失败")
			}
			return
		}

		xerr.Success(c, http.StatusOK, "注册成功", gin.H{
			"user_id":  user.ID,
			"username": user.Username,
			"role":     user.Role,
		})
	}
}

// InitLoginHandler 用户登录
// @Summary 用户登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录凭证"
// @Success 200 {object} xerr.Response "返回 JWT Token"
// @Failure 401 {object} xerr.Response "凭证错误"
// @Router /api/v1/auth/login [post]
func InitLoginHandler(authSvc admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.ValidationFailedCode, err.Error())
			return
		}

		token, user, err := authSvc.Login(req.Username, req.Password)
		if err != nil {
			if errors.Is(err, xerr.ErrInvalidCredentials) {
				xerr.Error(c, http.StatusUnauthorized, xerr.InvalidCredentialsCode, err.Error())
				return
			}
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "登录失败")
			return
		}

		xerr.Success(c, http.StatusOK, "登录成功", gin.H{
			"token":    token,
			"user_id":  user.ID,
			"username": user.Username,
			"role":     user.Role,
		})
	}
}

// InitMeHandler 当前用户信息
// @Summary 查询当前登录用户
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response
// @Failure 401 {object} xerr.Response
// @Router /api/v1/auth/me [get]
func InitMeHandler(authSvc admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middlewares.CurrentUserID(c)
		if userID == nil {
			xerr.Error(c, http.StatusUnauthorized, xerr.UnauthorizedCode, xerr.ErrUnauthorized.Error())
			return
		}

		user, err := authSvc.GetUser(*userID)
		if err != nil {
			if errors.Is(err, xerr.ErrUserNotFound) {
				xerr.Error(c, http.StatusNotFound, xerr.UserNotFoundCode, err.Error())
				return
			}
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "查询用户失败")
			return
		}

		xerr.Success(c, http.StatusOK, "ok", gin.H{
			"user_id":  user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		})
	}
}
