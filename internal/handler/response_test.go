package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "campus_connect/pkg/errors"
)

func testContext(t *testing.T, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, recorder
}

func TestPaginationParamsDefaults(t *testing.T) {
	c, _ := testContext(t, "/chats")

	page, limit := paginationParams(c)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageLimit, limit)
}

func TestPaginationParamsClampsBadInput(t *testing.T) {
	cases := map[string]string{
		"negative page":     "/chats?page=-3&limit=10",
		"zero limit":        "/chats?page=2&limit=0",
		"oversized limit":   "/chats?page=2&limit=5000",
		"non-numeric input": "/chats?page=abc&limit=xyz",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := testContext(t, target)
			page, limit := paginationParams(c)
			assert.GreaterOrEqual(t, page, 1)
			assert.GreaterOrEqual(t, limit, 1)
			assert.LessOrEqual(t, limit, maxPageLimit)
		})
	}
}

func TestRespondPageComputesTotalPages(t *testing.T) {
	c, recorder := testContext(t, "/chats")

	respondPage(c, []string{"a", "b"}, 1, 20, 45)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Page       int `json:"page"`
			Limit      int `json:"limit"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 45, body.Data.Total)
	assert.Equal(t, 3, body.Data.TotalPages)
}

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperrors.ErrNotParticipant, http.StatusForbidden},
		{apperrors.ErrChatNotFound, http.StatusNotFound},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrConflict, http.StatusConflict},
	}
	for _, tc := range cases {
		c, recorder := testContext(t, "/chats")
		respondError(c, tc.err)
		assert.Equal(t, tc.status, recorder.Code, tc.err.Error())
	}
}
