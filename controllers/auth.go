package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"floorops/repository"
	"floorops/utils"

	"github.com/gin-gonic/gin"
)

// Login exchanges a staff phone and password for a token.
func (h *Controller) Login(c *gin.Context) {
	var input struct {
		Phone    string `json:"telefone" binding:"required"`
		Password string `json:"senha" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	staff, err := h.Staff.FindByPhone(ctx, input.Phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.respondError(c, "login", err)
		return
	}
	if err := utils.VerifyPassword(staff.Password, input.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.Tokens.GenerateToken(staff.ID.Hex(), staff.Role, staff.Name)
	if err != nil {
		h.respondError(c, "login", err)
		return
	}
	h.Log.Info(ctx, "login", "staff logged in", slog.String("funcionario", staff.ID.Hex()), slog.String("cargo", staff.Role))
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"staffID":  staff.ID.Hex(),
		"role":     staff.Role,
		"fullName": staff.Name,
	})
}

func (h *Controller) ListMenu(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	items, err := h.Menu.List(ctx)
	if err != nil {
		h.respondError(c, "list_menu", err)
		return
	}
	c.JSON(http.StatusOK, items)
}
