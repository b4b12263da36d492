package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"freshstock-system/internal/database/models"
	"freshstock-system/internal/gateway/middleware"
	"freshstock-system/internal/ledger"
	"freshstock-system/internal/utils"
)

// UserHandler is the authentication collaborator: it issues the tokens
// whose username becomes the actor on every audit-log row, and manages the
// accounts themselves (manager only).
type UserHandler struct {
	db       *gorm.DB
	ledger   *ledger.Service
	logg     *logrus.Logger
	tokenTTL time.Duration
}

func NewUserHandler(db *gorm.DB, ledgerSvc *ledger.Service, logg *logrus.Logger, tokenTTL time.Duration) *UserHandler {
	return &UserHandler{
		db:       db,
		ledger:   ledgerSvc,
		logg:     logg,
		tokenTTL: tokenTTL,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=4"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role,omitempty"`
}

type UpdateUserRequest struct {
	Role     *string `json:"role,omitempty"`
	Password *string `json:"password,omitempty"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userToResponse(u models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func normalizeRole(role string) string {
	if role == models.RoleManager {
		return models.RoleManager
	}
	return models.RoleStaff
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).
		Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("Invalid credentials"))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("Invalid credentials"))
		return
	}

	token, exp, err := utils.GenerateToken(user.ID, user.Username, user.Role, h.tokenTTL)
	if err != nil {
		h.logg.WithFields(logrus.Fields{"op": "login"}).Error(err.Error())
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, successResponse("Logged in", gin.H{
		"token":      token,
		"expires_at": exp,
		"user":       userToResponse(user),
	}))
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = userToResponse(u)
	}
	c.JSON(http.StatusOK, successResponse("Users", out))
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("username, password and full_name are required"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to hash password"))
		return
	}

	user := models.User{
		Username: req.Username,
		Password: string(hash),
		FullName: req.FullName,
		Role:     normalizeRole(req.Role),
	}

	actor := c.GetString(middleware.ContextUsername)
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		extra := fmt.Sprintf("%s (%s)", user.Username, user.Role)
		return h.ledger.RecordTx(tx, ledger.ActionCreateUser, nil, nil, actor, extra)
	})
	if err != nil {
		c.JSON(http.StatusConflict, errorResponse("Username already exists or could not be created"))
		return
	}

	c.JSON(http.StatusCreated, successResponse("User created", userToResponse(user)))
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid user id"))
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Role == nil && req.Password == nil) {
		c.JSON(http.StatusBadRequest, errorResponse("Nothing to update"))
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("User not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	if req.Role != nil {
		user.Role = normalizeRole(*req.Role)
	}
	if req.Password != nil {
		hash, herr := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if herr != nil {
			c.JSON(http.StatusInternalServerError, errorResponse("Failed to hash password"))
			return
		}
		user.Password = string(hash)
	}

	if err := h.db.WithContext(c.Request.Context()).Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to update user"))
		return
	}

	c.JSON(http.StatusOK, successResponse("User updated", userToResponse(user)))
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid user id"))
		return
	}

	if userID == c.GetInt64(middleware.ContextUserID) {
		c.JSON(http.StatusBadRequest, errorResponse("Cannot delete your own account"))
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("User not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}

	actor := c.GetString(middleware.ContextUsername)
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.User{}, userID).Error; err != nil {
			return err
		}
		extra := fmt.Sprintf("%s (%s)", user.Username, user.Role)
		return h.ledger.RecordTx(tx, ledger.ActionDeleteUser, nil, nil, actor, extra)
	})
	if err != nil {
		h.logg.WithFields(logrus.Fields{"op": "delete-user", "user_id": userID}).Error(err.Error())
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to delete user"))
		return
	}

	c.JSON(http.StatusOK, successResponse("User deleted", nil))
}
