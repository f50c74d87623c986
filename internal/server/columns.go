package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/storage/sqlite"
)

type columnRequest struct {
	Name       *string `json:"name"`
	Color      *string `json:"color"`
	OrderIndex *int64  `json:"order_index"`
}

type reorderRequest struct {
	ColumnOrders []sqlite.ColumnOrder `json:"column_orders"`
}

// handleListColumns returns all columns in display order.
func (s *Server) handleListColumns(c *gin.Context) {
	columns, err := s.store.ListColumns(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"columns": columns})
}

// handleCreateColumn appends a new column unless an order index is given.
func (s *Server) handleCreateColumn(c *gin.Context) {
	var req columnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	column, err := s.store.CreateColumn(c.Request.Context(), getString(req.Name), getString(req.Color), req.OrderIndex)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"column": column})
}

// handleUpdateColumn renames or recolors an existing column.
func (s *Server) handleUpdateColumn(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req columnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	column, err := s.store.UpdateColumn(c.Request.Context(), id, sqlite.ColumnUpdate{Name: req.Name, Color: req.Color})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"column": column})
}

// handleDeleteColumn removes an empty column.
func (s *Server) handleDeleteColumn(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteColumn(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleReorderColumns assigns new order indexes to several columns at once.
func (s *Server) handleReorderColumns(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	columns, err := s.store.ReorderColumns(c.Request.Context(), req.ColumnOrders)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"columns": columns})
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
