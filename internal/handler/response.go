package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"Circle_Social/internal/authz"
	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
	"Circle_Social/internal/service"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// 顺序即优先级
var errorMappings = []errorMapping{
	{service.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{engine.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
	{service.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{engine.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{engine.ErrCircleNotFound, http.StatusNotFound, "NOT_FOUND"},
	{engine.ErrMembershipNotFound, http.StatusNotFound, "MEMBERSHIP_NOT_FOUND"},
	{engine.ErrAlreadyPending, http.StatusBadRequest, "ALREADY_PENDING"},
	{engine.ErrAlreadyMember, http.StatusBadRequest, "ALREADY_MEMBER"},
	{engine.ErrNotPending, http.StatusBadRequest, "NOT_PENDING"},
	{engine.ErrOwnerCannotLeave, http.StatusBadRequest, "OWNER_CANNOT_LEAVE"},
	{engine.ErrInvalidReactionType, http.StatusBadRequest, "INVALID_REACTION_TYPE"},
	{engine.ErrInvalidCircleType, http.StatusBadRequest, "INVALID_CIRCLE_TYPE"},
	{engine.ErrCircleNameRequired, http.StatusBadRequest, "INVALID_INPUT"},
	{engine.ErrDuplicateEntry, http.StatusBadRequest, "INVALID_INPUT"},
	{service.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{service.ErrVersionConflict, http.StatusConflict, "VERSION_CONFLICT"},
}

// fail 把业务错误映射成状态码；未知错误统一 500，不暴露内部信息
func fail(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"msg": err.Error(), "code": m.code})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error", "code": "INTERNAL"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": msg, "code": "INVALID_INPUT"})
}

// MessageView 返回给前端的消息，匿名消息对作者以外的人隐藏 author
type MessageView struct {
	ID          string           `json:"id"`
	Content     string           `json:"content"`
	Author      uint64           `json:"author,omitempty"`
	IsAnonymous bool             `json:"isAnonymous"`
	Circle      string           `json:"circle,omitempty"`
	Reactions   []model.Reaction `json:"reactions"`
	Favorites   []model.Favorite `json:"favorites"`
	Version     uint64           `json:"version"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func toView(actor uint64, m *model.Message) MessageView {
	v := MessageView{
		ID:          m.ID,
		Content:     m.Content,
		IsAnonymous: m.IsAnonymous,
		Circle:      m.Circle,
		Reactions:   m.Reactions,
		Favorites:   m.Favorites,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if author, ok := authz.AuthorView(actor, m); ok {
		v.Author = author
	}
	if v.Reactions == nil {
		v.Reactions = []model.Reaction{}
	}
	if v.Favorites == nil {
		v.Favorites = []model.Favorite{}
	}
	return v
}
