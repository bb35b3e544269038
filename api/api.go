// Package api exposes the blog over JSON HTTP. The acting user lives in a
// signed cookie session and is handed to the content repository on every call.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"inkwell/cache"
	"inkwell/common"
	"inkwell/content"
	"inkwell/identity"
	"inkwell/session"
)

const (
	sessionName = "inkwell-session"
	keyUserID   = "user_id"
	keyUsername = "username"
	keySession  = "session"
)

type Module struct {
	identity *identity.Store
	content  *content.Repository
	cache    *cache.ViewCache
	log      *slog.Logger
}

func NewModule(ids *identity.Store, repo *content.Repository, views *cache.ViewCache, log *slog.Logger) *Module {
	return &Module{
		identity: ids,
		content:  repo,
		cache:    views,
		log:      log,
	}
}

// NewRouter builds the gin engine with request logging, cookie sessions and
// every route registered.
func NewRouter(m *Module, sessionSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), m.requestLogger())

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})
	router.Use(sessions.Sessions(sessionName, store))

	m.RegisterRoutes(router)
	return router
}

func (m *Module) RegisterRoutes(router *gin.Engine) {
	router.POST("/register", m.register)
	router.POST("/login", m.login)
	router.POST("/logout", m.logout)

	router.GET("/posts", m.listPosts)
	router.GET("/posts/:id", m.cache.Middleware(m.log), m.viewPost)
	router.GET("/categories", m.listCategories)

	authed := router.Group("/")
	authed.Use(m.requireAuth)
	{
		authed.POST("/posts", m.createPost)
		authed.PATCH("/posts/:id", m.editPost)
		authed.DELETE("/posts/:id", m.deletePost)
		authed.POST("/posts/:id/comments", m.addComment)
		authed.GET("/posts/:id/comments/pending", m.pendingComments)
		authed.POST("/posts/:id/categories", m.addCategory)
		authed.POST("/comments/:id/approve", m.approveComment)
	}
}

func (m *Module) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		m.log.Info("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (m *Module) requireAuth(c *gin.Context) {
	sess := sessions.Default(c)
	userID, ok := sess.Get(keyUserID).(uint)
	if !ok || userID == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	username, _ := sess.Get(keyUsername).(string)

	c.Set(keySession, session.New(userID, username))
	c.Next()
}

func currentSession(c *gin.Context) session.Session {
	if s, ok := c.Get(keySession); ok {
		return s.(session.Session)
	}
	return session.Anonymous
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (m *Module) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := m.identity.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		m.fail(c, err)
		return
	}

	m.log.Info("user registered", "user_id", id)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (m *Module) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s, err := m.identity.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		m.fail(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(keyUserID, s.UserID)
	sess.Set(keyUsername, s.Username)
	if err := sess.Save(); err != nil {
		m.log.Error("save session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
		return
	}

	c.JSON(http.StatusOK, s)
}

func (m *Module) logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := sess.Save(); err != nil {
		m.log.Error("clear session", "error", err)
	}
	c.Status(http.StatusNoContent)
}

func (m *Module) listPosts(c *gin.Context) {
	posts, err := m.content.ListPosts(c.Request.Context())
	if err != nil {
		m.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (m *Module) viewPost(c *gin.Context) {
	postID, ok := m.idParam(c)
	if !ok {
		return
	}

	view, err := m.content.GetPostView(c.Request.Context(), postID)
	if err != nil {
		m.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (m *Module) listCategories(c *gin.Context) {
	categories, err := m.content.ListCategories(c.Request.Context())
	if err != nil {
		m.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (m *Module) createPost(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := m.content.CreatePost(c.Request.Context(), currentSession(c), req.Title, req.Content)
	if err != nil {
		m.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (m *Module) editPost(c *gin.Context) {
	postID, ok := m.idParam(c)
	if !ok {
		return
	}

	var update content.PostUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := m.content.EditPost(c.Request.Context(), currentSession(c), postID, update); err != nil {
		m.fail(c, err)
		return
	}
	m.invalidate(postID)
	c.Status(http.StatusNoContent)
}

func (m *Module) deletePost(c *gin.Context) {
	postID, ok := m.idParam(c)
	if !ok {
		return
	}

	if err := m.content.DeletePost(c.Request.Context(), currentSession(c), postID); err != nil {
		m.fail(c, err)
		return
	}
	m.invalidate(postID)
	c.Status(http.StatusNoContent)
}

func (m *Module) addComment(c *gin.Context) {
	postID, ok := m.idParam(c)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := m.content.AddComment(c.Request.Context(), currentSession(c), postID, req.Text)
	if err != nil {
		m.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "status": "pending"})
}

func (m *Module) pendingComments(c *gin.Context) {
	postID, ok := m.idParam(c)
	if !ok {
		return
	}

	comments, err := m.content.ListPendingComments(c.Request.Context(), currentSession(c), postID)
	if err != nil {
		m.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (m *Module) approveComment(c *gin.Context) {
	commentID, ok := m.idParam(c)
	if !ok {
		return
	}

	if err := m.content.ApproveComment(c.Request.Context(), currentSession(c), commentID); err != nil {
		m.fail(c, err)
		return
	}
	// the comment id does not name the post, so every cached view goes
	if err := m.cache.ClearAll(); err != nil {
		m.log.Warn("clear view cache", "error", err)
	}
	c.Status(http.StatusNoContent)
}

func (m *Module) addCategory(c *gin.Context) {
	postID, ok := m.idParam(c)
	if !ok {
		return
	}

	var req struct {
		CategoryID uint `json:"category_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := m.content.AddCategoryToPost(c.Request.Context(), currentSession(c), postID, req.CategoryID); err != nil {
		m.fail(c, err)
		return
	}
	m.invalidate(postID)
	c.Status(http.StatusNoContent)
}

func (m *Module) idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (m *Module) invalidate(postID uint) {
	if err := m.cache.Clear(postID); err != nil {
		m.log.Warn("clear cached view", "post_id", postID, "error", err)
	}
}

// fail writes the status that matches the error's kind.
func (m *Module) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		m.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
