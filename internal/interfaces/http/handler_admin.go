package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pagechat/internal/usecases"
)

// AdminHandler serves the agent console: thread list, thread takeover, manual
// replies and the AI toggles. One admin session exists per (page, agent).
type AdminHandler struct {
	sessions *usecases.SessionManager
}

func NewAdminHandler(sessions *usecases.SessionManager) *AdminHandler {
	return &AdminHandler{sessions: sessions}
}

// adminSession resolves the console session for the authenticated agent.
func (h *AdminHandler) adminSession(c *gin.Context) (*usecases.Engine, bool) {
	pageID := c.Param("pageID")
	if !ValidPageID(pageID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page id"})
		return nil, false
	}

	username, _ := c.Get("username")
	agent, ok := username.(string)
	if !ok || agent == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user"})
		return nil, false
	}

	engine := h.sessions.GetOrCreateSession(pageID, agent, usecases.RoleAdmin)
	engine.Open(c.Request.Context())
	return engine, true
}

// ListThreads refreshes and returns the page's conversation list. Reserved
// settings records never appear here.
func (h *AdminHandler) ListThreads(c *gin.Context) {
	engine, ok := h.adminSession(c)
	if !ok {
		return
	}

	_ = engine.LoadConversation(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"snapshot": engine.Snapshot()})
}

func (h *AdminHandler) SelectThread(c *gin.Context) {
	engine, ok := h.adminSession(c)
	if !ok {
		return
	}

	guestID := c.Param("guestID")
	if !ValidGuestID(guestID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid guest id"})
		return
	}

	if err := engine.SelectThread(c.Request.Context(), guestID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Thread load failed"})
		return
	}
	engine.StartPolling()
	c.JSON(http.StatusOK, gin.H{"snapshot": engine.Snapshot()})
}

func (h *AdminHandler) ClearSelection(c *gin.Context) {
	engine, ok := h.adminSession(c)
	if !ok {
		return
	}

	_ = engine.ClearSelection(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"snapshot": engine.Snapshot()})
}

// DeleteThread removes a guest's whole conversation. Requires ?confirm=true;
// without it nothing happens.
func (h *AdminHandler) DeleteThread(c *gin.Context) {
	engine, ok := h.adminSession(c)
	if !ok {
		return
	}

	guestID := c.Param("guestID")
	if !ValidGuestID(guestID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid guest id"})
		return
	}

	confirmed := c.Query("confirm") == "true"
	if err := engine.DeleteThread(c.Request.Context(), guestID, confirmed); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Thread delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": engine.Snapshot()})
}

// SendMessage posts a manual agent reply into the selected thread.
func (h *AdminHandler) SendMessage(c *gin.Context) {
	engine, ok := h.adminSession(c)
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

func (h *AdminHandler) GetSnapshot(c *gin.Context) {
	engine, ok := h.adminSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": engine.Snapshot()})
}

// ToggleAI flips AI auto-reply: per-conversation when a thread is selected,
// tenant-wide otherwise.
func (h *AdminHandler) ToggleAI(c *gin.Context) {
	engine, ok := h.adminSession(c)
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := engine.ToggleAI(c.Request.Context(), req.Enabled); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Toggle failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": req.Enabled})
}
