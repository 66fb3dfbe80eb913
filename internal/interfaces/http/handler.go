package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"pagechat/internal/repository"
	"pagechat/internal/usecases"
)

// Handler serves the guest widget API. Guest routes are unauthenticated; the
// guest token presented in X-Guest-ID (or ?guestId=) selects the session.
type Handler struct {
	sessions      *usecases.SessionManager
	publicBaseURL string
}

func NewHandler(sessions *usecases.SessionManager, publicBaseURL string) *Handler {
	return &Handler{
		sessions:      sessions,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func SetupRoutes(r *gin.Engine, sessions *usecases.SessionManager, auth *usecases.AuthUsecase, middleware *Middleware, publicBaseURL string) {
	h := NewHandler(sessions, publicBaseURL)
	adminHandler := NewAdminHandler(sessions)

	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20)) // 1MB max request size
	r.Use(middleware.CORSMiddleware())

	// Public Auth Routes
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var loginReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := auth.Login(loginReq.Username, loginReq.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})

		// Only an admin can provision agent accounts.
		authGroup.POST("/register", middleware.AuthRequired(), middleware.RequireRole("admin"), func(c *gin.Context) {
			var registerReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&registerReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			if !ValidateLength(registerReq.Username, 1, MaxUsernameLength) || len(registerReq.Password) < 8 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password"})
				return
			}
			if err := auth.Register(registerReq.Username, registerReq.Password); err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"username": registerReq.Username})
		})
	}

	// Guest widget routes; rate-limited per guest token
	chat := r.Group("/api/chat/:pageID")
	chat.Use(middleware.RateLimitPerClient(5, 10))
	{
		chat.POST("/open", h.OpenChat)
		chat.POST("/register", h.RegisterGuest)
		chat.GET("/messages", h.GetSnapshot)
		chat.POST("/messages", h.SendMessage)
		chat.POST("/messages/:messageID/feedback", h.SendFeedback)
		chat.DELETE("/messages/:messageID", h.DeleteMessage)
		chat.POST("/end", h.EndSession)
	}

	r.GET("/api/widget/:pageID/qr", h.WidgetQR)

	// Admin console routes
	admin := r.Group("/api/admin/:pageID")
	admin.Use(middleware.AuthRequired())
	admin.Use(middleware.RequireRole("admin"))
	{
		admin.GET("/threads", adminHandler.ListThreads)
		admin.POST("/threads/:guestID/select", adminHandler.SelectThread)
		admin.DELETE("/threads/:guestID", adminHandler.DeleteThread)
		admin.POST("/threads/clear-selection", adminHandler.ClearSelection)
		admin.POST("/messages", adminHandler.SendMessage)
		admin.GET("/messages", adminHandler.GetSnapshot)
		admin.POST("/ai-toggle", adminHandler.ToggleAI)
	}
}

// guestSession resolves the page id and guest token of a request and returns
// the live engine. A missing token on /open mints one; everywhere else it is
// a 400.
func (h *Handler) guestSession(c *gin.Context, mint bool) (*usecases.Engine, string, string, bool) {
	pageID := c.Param("pageID")
	if !ValidPageID(pageID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page id"})
		return nil, "", "", false
	}

	guestID := c.GetHeader("X-Guest-ID")
	if guestID == "" {
		guestID = c.Query("guestId")
	}
	if guestID != "" && !ValidGuestID(guestID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid guest id"})
		return nil, "", "", false
	}
	if guestID == "" {
		if !mint {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Guest id required"})
			return nil, "", "", false
		}
		guestID = repository.NewGuestID()
	}

	engine := h.sessions.GetOrCreateSession(pageID, guestID, usecases.RoleGuest)
	return engine, pageID, guestID, true
}

// OpenChat boots (or resumes) a widget session and returns the first
// snapshot. New visitors get their guest token minted here; the client is
// expected to store it and present it on every later call.
func (h *Handler) OpenChat(c *gin.Context) {
	engine, _, guestID, ok := h.guestSession(c, true)
	if !ok {
		return
	}

	engine.Open(c.Request.Context())
	engine.StartPolling()

	c.JSON(http.StatusOK, gin.H{
		"guestId":  guestID,
		"snapshot": engine.Snapshot(),
	})
}

func (h *Handler) RegisterGuest(c *gin.Context) {
	engine, _, _, ok := h.guestSession(c, false)
	if !ok {
		return
	}

	var req struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email"`
		Company string `json:"company"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	name := TruncateString(SanitizeString(req.Name), MaxNameLength)
	phone := TruncateString(SanitizeString(req.Phone), MaxPhoneLength)
	email := TruncateString(SanitizeString(req.Email), MaxEmailLength)
	company := TruncateString(SanitizeString(req.Company), MaxCompanyLength)

	if err := engine.Register(c.Request.Context(), name, phone, email, company); err != nil {
		if errors.Is(err, usecases.ErrInvalidRegistration) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshot": engine.Snapshot()})
}

func (h *Handler) GetSnapshot(c *gin.Context) {
	engine, _, _, ok := h.guestSession(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": engine.Snapshot()})
}

func (h *Handler) SendMessage(c *gin.Context) {
	engine, _, _, ok := h.guestSession(c, false)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	text := TruncateString(SanitizeString(req.Text), MaxMessageLength)
	if err := engine.SendMessage(c.Request.Context(), text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Send failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshot": engine.Snapshot()})
}

func (h *Handler) SendFeedback(c *gin.Context) {
	engine, _, _, ok := h.guestSession(c, false)
	if !ok {
		return
	}

	var req struct {
		Positive bool `json:"positive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	accepted := engine.SendFeedback(c.Request.Context(), c.Param("messageID"), req.Positive)
	c.JSON(http.StatusOK, gin.H{"accepted": accepted})
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	engine, _, _, ok := h.guestSession(c, false)
	if !ok {
		return
	}

	confirmed := c.Query("confirm") == "true"
	if err := engine.DeleteMessage(c.Request.Context(), c.Param("messageID"), confirmed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": engine.Snapshot()})
}

// EndSession wipes the device-local identity and drops the live session.
// Server-side conversation data stays untouched.
func (h *Handler) EndSession(c *gin.Context) {
	engine, pageID, guestID, ok := h.guestSession(c, false)
	if !ok {
		return
	}

	engine.EndSession()
	h.sessions.Remove(pageID, guestID, usecases.RoleGuest)
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

// WidgetQR returns a QR code PNG pointing at the tenant's hosted chat page,
// for print material linking straight into the widget.
func (h *Handler) WidgetQR(c *gin.Context) {
	pageID := c.Param("pageID")
	if !ValidPageID(pageID) {
		c.String(http.StatusBadRequest, "Invalid page id")
		return
	}

	url := h.publicBaseURL + "/chat/" + pageID
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
