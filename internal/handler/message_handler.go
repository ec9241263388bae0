package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"Circle_Social/internal/middleware"
	"Circle_Social/internal/model"
	"Circle_Social/internal/service"
)

type MessageHandler struct {
	svc *service.MessageService
}

type CreateMessageReq struct {
	Content     string `json:"content"`
	Circle      string `json:"circle"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// PatchMessageReq 未出现的字段不修改；reactions / favorites 出现时整体替换
type PatchMessageReq struct {
	Content   *string          `json:"content"`
	Reactions []model.Reaction `json:"reactions"`
	Favorites []model.Favorite `json:"favorites"`
	Version   *uint64          `json:"version"`
}

type ReactionReq struct {
	Type model.ReactionType `json:"type"`
}

func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// Create 发布消息
func (h *MessageHandler) Create(c *gin.Context) {
	var req CreateMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	uid := middleware.UserID(c)
	m, err := h.svc.Create(c.Request.Context(), uid, req.Content, req.Circle, req.IsAnonymous)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(uid, m))
}

func (h *MessageHandler) Get(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(middleware.UserID(c), m))
}

// List 游标分页：last_id + last_created_at(RFC3339Nano)
func (h *MessageHandler) List(c *gin.Context) {
	var lastCreatedAt time.Time
	if ts := c.Query("last_created_at"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			badRequest(c, "invalid last_created_at")
			return
		}
		lastCreatedAt = t
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil {
		badRequest(c, "invalid size")
		return
	}

	list, err := h.svc.List(c.Request.Context(), c.Query("circle"), c.Query("last_id"), lastCreatedAt, size)
	if err != nil {
		fail(c, err)
		return
	}
	uid := middleware.UserID(c)
	views := make([]MessageView, 0, len(list))
	for i := range list {
		views = append(views, toView(uid, &list[i]))
	}
	resp := gin.H{"list": views}
	if n := len(list); n > 0 {
		resp["next_last_id"] = list[n-1].ID
		resp["next_created_at"] = list[n-1].CreatedAt.Format(time.RFC3339Nano)
	}
	c.JSON(http.StatusOK, resp)
}

// Patch 整体替换 reactions / favorites（兼容旧客户端），可选 version 做乐观锁
func (h *MessageHandler) Patch(c *gin.Context) {
	var req PatchMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	uid := middleware.UserID(c)
	m, err := h.svc.Patch(c.Request.Context(), uid, c.Param("id"), service.PatchInput{
		Content:   req.Content,
		Reactions: req.Reactions,
		Favorites: req.Favorites,
		Version:   req.Version,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(uid, m))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}

// SetReaction 服务端按用户切换 reaction
func (h *MessageHandler) SetReaction(c *gin.Context) {
	var req ReactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	uid := middleware.UserID(c)
	m, err := h.svc.ToggleReaction(c.Request.Context(), uid, c.Param("id"), req.Type)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(uid, m))
}

func (h *MessageHandler) ToggleFavorite(c *gin.Context) {
	uid := middleware.UserID(c)
	m, err := h.svc.ToggleFavorite(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(uid, m))
}

func (h *MessageHandler) Reactions(c *gin.Context) {
	counts, err := h.svc.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": counts})
}
