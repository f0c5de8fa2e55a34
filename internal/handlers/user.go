package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/services"
)

type UserHandler struct {
	log         *logger.Logger
	userService services.UserService
	authService services.AuthService
}

func NewUserHandler(log *logger.Logger, userService services.UserService, authService services.AuthService) *UserHandler {
	return &UserHandler{
		log:         log.With("handler", "UserHandler"),
		userService: userService,
		authService: authService,
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Register creates a new user and answers 201 with the public projection.
func (uh *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorEnvelope{Detail: "Invalid registration payload."})
		return
	}
	user, err := uh.userService.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Token exchanges OAuth2 password-grant form credentials for a bearer JWT.
func (uh *UserHandler) Token(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := uh.userService.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		RespondError(c, err)
		return
	}
	if user == nil {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, ErrorEnvelope{Detail: "Incorrect username or password"})
		return
	}
	token, err := uh.authService.CreateAccessToken(user.Username)
	if err != nil {
		uh.log.Error("failed to mint access token", "error", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me returns the authenticated user's public projection.
func (uh *UserHandler) Me(c *gin.Context) {
	me, err := uh.userService.GetMe(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, me)
}
