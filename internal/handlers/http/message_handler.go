package http

import (
	"net/http"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
	"relaychat/internal/infrastructure/middleware"
	apperrors "relaychat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	chat       ports.ChatService
	mediaLimit int64
}

func NewMessageHandler(chat ports.ChatService, mediaLimit int64) *MessageHandler {
	return &MessageHandler{
		chat:       chat,
		mediaLimit: mediaLimit,
	}
}

// SetupRoutes mounts the message API behind auth.
func (h *MessageHandler) SetupRoutes(router gin.IRouter, auth gin.HandlerFunc) {
	api := router.Group("/api/messages", auth)
	{
		api.GET("/users", h.ListContacts)
		api.GET("/:id", h.Conversation)
		api.POST("/send/:id", h.Send)
	}
}

type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (h *MessageHandler) ListContacts(c *gin.Context) {
	self, ok := middleware.UserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("unauthorized"))
		return
	}

	users, err := h.chat.ListContacts(c.Request.Context(), self)
	if err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *MessageHandler) Conversation(c *gin.Context) {
	self, ok := middleware.UserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("unauthorized"))
		return
	}

	messages, err := h.chat.Conversation(c.Request.Context(), self, domain.UserID(c.Param("id")))
	if err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) Send(c *gin.Context) {
	self, ok := middleware.UserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("unauthorized"))
		return
	}

	var req SendMessageRequest
	if err := bindJSON(c, &req, bodyLimit(h.mediaLimit)); err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), self, domain.UserID(c.Param("id")), req.Text, req.Image)
	if err != nil {
		c.Error(toAppError(err, h.mediaLimit))
		return
	}
	c.JSON(http.StatusCreated, msg)
}
