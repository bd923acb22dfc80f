package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/auth-service/services"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// CookieOptions controls how token cookies are written.
type CookieOptions struct {
	Domain string
	Secure bool
}

type AuthController struct {
	service services.AuthService
	cookies CookieOptions
}

func NewAuthController(service services.AuthService, cookies CookieOptions) *AuthController {
	return &AuthController{service: service, cookies: cookies}
}

func (ctrl *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	result, err := ctrl.service.Register(c.Request.Context(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	ctrl.setCookies(c, result)
	c.JSON(http.StatusCreated, tokenResponse(result))
}

func (ctrl *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	result, err := ctrl.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	ctrl.setCookies(c, result)
	c.JSON(http.StatusOK, tokenResponse(result))
}

// Token implements the OAuth2 password grant (form encoded username/password).
func (ctrl *AuthController) Token(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	result, err := ctrl.service.Login(c.Request.Context(), username, password)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    "bearer",
		"expires_in":    result.ExpiresIn,
	})
}

func (ctrl *AuthController) Refresh(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)

	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookie)
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token is required"})
		return
	}

	result, err := ctrl.service.Refresh(c.Request.Context(), token)
	if err != nil {
		ctrl.clearCookies(c)
		apperrors.Respond(c, err)
		return
	}

	ctrl.setCookies(c, result)
	c.JSON(http.StatusOK, tokenResponse(result))
}

func (ctrl *AuthController) Logout(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)

	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookie)
	}
	_ = ctrl.service.Logout(c.Request.Context(), token)

	ctrl.clearCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (ctrl *AuthController) Me(c *gin.Context) {
	user, err := ctrl.service.GetUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func tokenResponse(result *services.AuthResult) gin.H {
	return gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    "bearer",
		"expires_in":    result.ExpiresIn,
		"user":          result.User,
	}
}

func (ctrl *AuthController) setCookies(c *gin.Context, result *services.AuthResult) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, result.AccessToken, int(result.ExpiresIn), "/", ctrl.cookies.Domain, ctrl.cookies.Secure, true)
	c.SetCookie(refreshCookie, result.RefreshToken, int(time.Until(result.RefreshExpiresAt).Seconds()), "/", ctrl.cookies.Domain, ctrl.cookies.Secure, true)
}

func (ctrl *AuthController) clearCookies(c *gin.Context) {
	c.SetCookie(accessCookie, "", -1, "/", ctrl.cookies.Domain, ctrl.cookies.Secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", ctrl.cookies.Domain, ctrl.cookies.Secure, true)
}
