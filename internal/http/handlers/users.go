package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/markmehq/markme/internal/config"
	"github.com/markmehq/markme/internal/domain/user"
	"github.com/markmehq/markme/internal/http/middlewares"
	"github.com/markmehq/markme/internal/qr"
	"github.com/markmehq/markme/internal/security"
)

type UserDirectory interface {
	Create(ctx context.Context, u user.User) error
	GetByID(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
}

type UsersHandler struct {
	users UserDirectory
}

func NewUsersHandler(users UserDirectory) *UsersHandler {
	return &UsersHandler{users: users}
}

type CreateUserRequest struct {
	FullName string `json:"fullName" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=ADMIN STUDENT"`
}

func (h *UsersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.users.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"count": len(users),
		"users": users,
	})
}

// Create lets an admin register a user directly, optionally as another admin.
func (h *UsersHandler) Create(ctx *gin.Context) {
	var req CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	role := user.RoleStudent

	if req.Role != "" {
		parsed, err := user.ParseRole(req.Role)

		if err != nil {
			RespondBadRequest(ctx, "Invalid role", nil)
			return
		}

		role = parsed
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	email := user.NormalizeEmail(req.Email)
	u := user.New(req.FullName, email, role, security.HashPassword(email, req.Password))

	err := h.users.Create(cctx, u)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"user": u})
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	u, ok := h.currentUser(ctx)

	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// MyQR renders the caller's personal QR code as a PNG. The encoded value is
// the opaque scan token, not the user id.
func (h *UsersHandler) MyQR(ctx *gin.Context) {
	u, ok := h.currentUser(ctx)

	if !ok {
		return
	}

	size := 512

	if s := ctx.Query("size"); s != "" {
		parsed, err := strconv.Atoi(s)

		if err != nil || parsed < 64 || parsed > 2048 {
			RespondBadRequest(ctx, "Invalid size, expected 64-2048", nil)
			return
		}

		size = parsed
	}

	png, err := qr.PNG(u.QRToken, size)

	if err != nil {
		RespondInternal(ctx, "Could not render QR code")
		return
	}

	ctx.Header("Cache-Control", "private, max-age=3600")
	ctx.Data(http.StatusOK, "image/png", png)
}

func (h *UsersHandler) currentUser(ctx *gin.Context) (user.User, bool) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return user.User{}, false
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
			return user.User{}, false
		}

		RespondInternal(ctx, "Could not load user")
		return user.User{}, false
	}

	return u, true
}
