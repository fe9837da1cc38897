package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// writeServiceError maps a store/domain-layer error to an HTTP error
// response and writes it, mirroring the teacher's mapServiceError but
// against this repo's store-level error types rather than a services
// package.
func writeServiceError(c *gin.Context, err error) {
	var validErr *store.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validErr.Error()})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "resource already exists"})
		return
	}
	if errors.Is(err, store.ErrVersionConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "stale version, reload and retry"})
		return
	}
	if errors.Is(err, store.ErrNotClaimed) {
		c.JSON(http.StatusConflict, gin.H{"error": "nothing available to claim"})
		return
	}

	slog.Error("unexpected service error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
