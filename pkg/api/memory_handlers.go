package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/omniwaifu/dere-sub005/pkg/store"
)

const defaultMemoryCharLimit = 8192

// memoryEditHandler handles POST /memory/core/edit.
func (s *Server) memoryEditHandler(c *gin.Context) {
	var req MemoryEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	charLimit := req.CharLimit
	if charLimit <= 0 {
		charLimit = defaultMemoryCharLimit
	}

	block, err := s.resolveMemoryBlock(c, req.Scope, req.UserID, req.SessionID, req.BlockType, charLimit, now)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "rewrite"
	}
	actor := extractAuthor(c)
	updated, err := s.memory.ApplyEdit(c.Request.Context(), s.db, block.ID, block.CurrentVersion, req.Content, reason, actor, now)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMemoryBlockResponse(updated))
}

// memoryHistoryHandler handles GET /memory/core/history?block_type&scope&...&limit.
func (s *Server) memoryHistoryHandler(c *gin.Context) {
	scope := c.Query("scope")
	blockType := c.Query("block_type")
	userID := c.Query("user_id")
	sessionID := c.Query("session_id")

	block, err := s.resolveMemoryBlock(c, scope, userID, sessionID, blockType, defaultMemoryCharLimit, time.Now().UTC())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	versions, err := s.memory.ListVersions(c.Request.Context(), block.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit < len(versions) {
		versions = versions[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"block_id": block.ID, "versions": versions})
}

// memoryRollbackHandler handles POST /memory/core/rollback.
func (s *Server) memoryRollbackHandler(c *gin.Context) {
	var req MemoryRollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	block, err := s.resolveMemoryBlock(c, req.Scope, req.UserID, req.SessionID, req.BlockType, defaultMemoryCharLimit, now)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	actor := extractAuthor(c)
	updated, err := s.memory.Rollback(c.Request.Context(), s.db, block.ID, req.TargetVersion, actor, now)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMemoryBlockResponse(updated))
}

func (s *Server) resolveMemoryBlock(c *gin.Context, scope, userID, sessionID, blockType string, charLimit int, now time.Time) (*store.CoreMemoryBlock, error) {
	if scope == "session" {
		return s.memory.GetOrCreateSessionBlock(c.Request.Context(), s.db, userID, sessionID, blockType, charLimit, now)
	}
	return s.memory.GetOrCreateUserBlock(c.Request.Context(), s.db, userID, blockType, charLimit, now)
}

func toMemoryBlockResponse(b *store.CoreMemoryBlock) MemoryBlockResponse {
	return MemoryBlockResponse{
		ID:             b.ID,
		BlockType:      b.BlockType,
		Content:        b.Content,
		CurrentVersion: b.CurrentVersion,
		CharLimit:      b.CharLimit,
	}
}
