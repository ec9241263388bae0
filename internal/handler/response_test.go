package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
	"Circle_Social/internal/service"
)

func TestFail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{engine.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{engine.ErrAlreadyPending, http.StatusBadRequest, "ALREADY_PENDING"},
		{engine.ErrAlreadyMember, http.StatusBadRequest, "ALREADY_MEMBER"},
		{fmt.Errorf("%w: duplicate", service.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT"},
		{service.ErrVersionConflict, http.StatusConflict, "VERSION_CONFLICT"},
		{fmt.Errorf("%w: disk full", service.ErrPersistence), http.StatusInternalServerError, "INTERNAL"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		fail(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Contains(t, w.Body.String(), `"code":"`+tc.code+`"`)
	}
}

func TestToView(t *testing.T) {
	m := &model.Message{ID: "m1", Author: 4, IsAnonymous: true}

	v := toView(5, m)
	assert.Zero(t, v.Author)
	assert.NotNil(t, v.Reactions)
	assert.NotNil(t, v.Favorites)

	v = toView(4, m)
	assert.Equal(t, uint64(4), v.Author)
}
