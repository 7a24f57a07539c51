package http

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rideshare-registry/internal/domain"
	"rideshare-registry/internal/service"
)

const sessionKey = "session"

// Handler wires HTTP routes to domain services.
type Handler struct {
	users        service.UserService
	limiter      *LoginLimiter
	logger       *logrus.Logger
	maxBodyBytes int64
}

// NewHandler builds the HTTP handler. limiter may be nil to disable login
// rate limiting.
func NewHandler(users service.UserService, limiter *LoginLimiter, maxUploadBytes int64, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:   users,
		limiter: limiter,
		logger:  logger,
		// room for the form fields around the file part
		maxBodyBytes: maxUploadBytes + 1<<20,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestLogger(h.logger))

	api := router.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/register-school", h.registerSchool)
		api.GET("/users", h.listUsers)
		api.POST("/login", h.limiter.Middleware(), h.login)
		api.POST("/logout", h.logout)
		api.GET("/protected", h.requireSession(), h.protected)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Debug("request")
	}
}

type registerRequest struct {
	Email           string     `json:"email" form:"email"`
	Username        string     `json:"username" form:"username"`
	Password        string     `json:"password" form:"password"`
	Role            string     `json:"role" form:"role"`
	PhoneNumber     string     `json:"phonenumber" form:"phonenumber"`
	Age             flexString `json:"age" form:"age"`
	LicenseID       string     `json:"licenseid" form:"licenseid"`
	AttendingSchool string     `json:"attending_school" form:"attending_school"`
}

func (r registerRequest) toRegistration() domain.Registration {
	return domain.Registration{
		Email:           r.Email,
		Username:        r.Username,
		Password:        r.Password,
		Role:            r.Role,
		PhoneNumber:     r.PhoneNumber,
		Age:             string(r.Age),
		LicenseID:       r.LicenseID,
		AttendingSchool: r.AttendingSchool,
	}
}

func (h *Handler) register(c *gin.Context) {
	var (
		req        registerRequest
		attachment *service.Attachment
	)

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}

		file, err := c.FormFile("license_file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license_file part"})
			return
		default:
			att, closeFn, err := openAttachment(file)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license_file part"})
				return
			}
			defer closeFn()
			attachment = att
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.toRegistration(), attachment)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Successfully registered as " + string(user.Role),
		"username": user.Username,
	})
}

func openAttachment(file *multipart.FileHeader) (*service.Attachment, func(), error) {
	f, err := file.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.Attachment{
		Filename: file.Filename,
		Size:     file.Size,
		Content:  f,
	}, func() { _ = f.Close() }, nil
}

type registerSchoolRequest struct {
	SchoolName     string `json:"school_name"`
	Address        string `json:"address"`
	Email          string `json:"email"`
	Representative string `json:"representative"`
	MechanicalCode string `json:"mechanical_code"`
}

func (h *Handler) registerSchool(c *gin.Context) {
	var req registerSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}

	if _, err := h.users.RegisterSchool(c.Request.Context(), domain.SchoolApplication{
		SchoolName:      req.SchoolName,
		Address:         req.Address,
		Email:           req.Email,
		Representative:  req.Representative,
		InstitutionCode: req.MechanicalCode,
	}); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "School registration submitted"})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}

	res, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Login successful",
		"user":         userToResponse(*res.User),
		"access_token": res.Token,
	})
}

// logout only acknowledges; tokens are stateless and expire on their own.
func (h *Handler) logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		session, err := h.users.VerifySession(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			h.writeError(c, err)
			c.Abort()
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

func (h *Handler) protected(c *gin.Context) {
	session := c.MustGet(sessionKey).(domain.Session)
	c.JSON(http.StatusOK, gin.H{
		"message":       "Access granted",
		"user_identity": session.Identity,
		"user_claims": gin.H{
			"sub":  session.Identity,
			"role": session.Role,
			"jti":  session.TokenID,
			"iat":  session.IssuedAt.Unix(),
			"exp":  session.ExpiresAt.Unix(),
		},
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		conflictErr   *domain.ConflictError
		authErr       *domain.AuthError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrInvalidCredentials.Error()})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Error()})
	default:
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Errorf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
