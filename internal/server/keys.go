package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"keygate/internal/db"
	"keygate/internal/service"
)

// The management surface returns full key values; it is only reachable
// through the admin auth middleware and is what the dashboard consumes.

type createKeyRequest struct {
	Name       string `json:"name" binding:"required"`
	UsageLimit int    `json:"usage_limit"`
}

type updateKeyRequest struct {
	Name       *string `json:"name"`
	Status     *string `json:"status"`
	UsageLimit *int    `json:"usage_limit"`
}

// ListKeysHandler returns all key records, newest first.
// GET /admin/keys
func (s *Server) ListKeysHandler(c *gin.Context) {
	keys, err := s.keys.ListKeys(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list API keys"})
		return
	}
	c.JSON(http.StatusOK, keys)
}

// CreateKeyHandler creates a new key with a generated value.
// POST /admin/keys
func (s *Server) CreateKeyHandler(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	key, err := s.keys.CreateKey(c.Request.Context(), req.Name, req.UsageLimit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid name or usage limit"})
		case errors.Is(err, db.ErrDuplicateKey):
			c.JSON(http.StatusConflict, gin.H{"error": "Generated key value collided, please retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
		}
		return
	}
	c.JSON(http.StatusCreated, key)
}

// GetKeyHandler returns a single key record.
// GET /admin/keys/:id
func (s *Server) GetKeyHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	key, err := s.keys.GetKey(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get API key"})
		return
	}
	c.JSON(http.StatusOK, key)
}

// UpdateKeyHandler applies a partial update of name, status or usage limit.
// PUT /admin/keys/:id
func (s *Server) UpdateKeyHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	key, err := s.keys.UpdateKey(c.Request.Context(), id, service.UpdateParams{
		Name:       req.Name,
		Status:     req.Status,
		UsageLimit: req.UsageLimit,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid name, status or usage limit"})
		case errors.Is(err, db.ErrKeyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update API key"})
		}
		return
	}
	c.JSON(http.StatusOK, key)
}

// DeleteKeyHandler permanently removes a key.
// DELETE /admin/keys/:id
func (s *Server) DeleteKeyHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.keys.DeleteKey(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete API key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key deleted"})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key ID"})
		return 0, false
	}
	return uint(id), true
}
