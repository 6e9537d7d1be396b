package http

import (
	"net/http"
	"time"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/services"
	"relaychat/internal/infrastructure/middleware"
	apperrors "relaychat/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	authService services.AuthService
	cookie      CookieConfig
	mediaLimit  int64
	logger      *zap.SugaredLogger
}

func NewAuthHandler(authService services.AuthService, cookie CookieConfig, mediaLimit int64, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
		mediaLimit:  mediaLimit,
		logger:      logger,
	}
}

func (h *AuthHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/auth")
	{
		api.POST("/signup", h.Signup)
		api.POST("/login", h.Login)
		api.POST("/logout", h.Logout)

		protected := api.Group("", middleware.AuthMiddleware(h.authService, h.cookie.Name))
		protected.PUT("/update-profile", h.UpdateProfile)
		protected.GET("/check", h.Check)
	}
}

type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

// authResponse is the user plus the token that was also set as a cookie,
// for clients that cannot read cookies.
type authResponse struct {
	*domain.User
	Token string `json:"token"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := bindJSON(c, &req, 64*1024); err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}

	user, err := h.authService.Signup(c.Request.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}

	token, ok := h.issueToken(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, authResponse{User: user, Token: token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req, 64*1024); err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}

	user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}

	token, ok := h.issueToken(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, authResponse{User: user, Token: token})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("unauthorized"))
		return
	}

	var req UpdateProfileRequest
	if err := bindJSON(c, &req, bodyLimit(h.mediaLimit)); err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}

	user, err := h.authService.UpdateProfilePic(c.Request.Context(), userID, req.ProfilePic)
	if err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Check(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("unauthorized"))
		return
	}

	user, err := h.authService.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) issueToken(c *gin.Context, user *domain.User) (string, bool) {
	token, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		h.logger.Errorw("failed to sign token", "user_id", user.ID, "error", err)
		c.Error(apperrors.NewInternalError("failed to generate token"))
		return "", false
	}
	h.setCookie(c, token, int(h.authService.TokenTTL()/time.Second))
	return token, true
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
