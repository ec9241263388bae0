package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"Circle_Social/internal/middleware"
	"Circle_Social/internal/model"
	"Circle_Social/internal/service"
)

type CircleHandler struct {
	svc *service.CircleService
}

type CircleCreateReq struct {
	Name     string           `json:"name"`
	Type     model.CircleType `json:"type"`
	Category string           `json:"category"`
}

func NewCircleHandler(svc *service.CircleService) *CircleHandler {
	return &CircleHandler{svc: svc}
}

// Create 创建社区
func (h *CircleHandler) Create(c *gin.Context) {
	var req CircleCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	circle, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), req.Name, req.Type, req.Category)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, circle)
}

func (h *CircleHandler) Get(c *gin.Context) {
	circle, err := h.svc.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, circle)
}

func (h *CircleHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	list, err := h.svc.List(c.Request.Context(), middleware.UserID(c), page, size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list, "page": page, "size": size})
}

func (h *CircleHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}

// Join 加入社区：公开社区直接成为成员，其余进入待审批
func (h *CircleHandler) Join(c *gin.Context) {
	status, err := h.svc.Join(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	msg := "joined circle"
	if status == model.StatusPending {
		msg = "join request submitted, waiting for approval"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "status": status})
}

func (h *CircleHandler) Leave(c *gin.Context) {
	if err := h.svc.Leave(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "left circle"})
}

func (h *CircleHandler) Approve(c *gin.Context) {
	target, err := strconv.ParseUint(c.Param("userID"), 10, 64)
	if err != nil || target == 0 {
		badRequest(c, "invalid user id")
		return
	}
	if err := h.svc.Approve(c.Request.Context(), middleware.UserID(c), c.Param("id"), target); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "approved"})
}
