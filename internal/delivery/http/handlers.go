package http

import (
	"net/http"
	"strings"

	"fiction-server/internal/domain"
	"fiction-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StoryHandler обслуживает HTML-страницы и JSON API историй.
type StoryHandler struct {
	service *service.StoryService
	logger  *zap.Logger
}

// NewStoryHandler создает обработчик.
func NewStoryHandler(svc *service.StoryService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		service: svc,
		logger:  logger.Named("StoryHandler"),
	}
}

// RegisterRoutes регистрирует маршруты страниц, API и healthcheck.
func (h *StoryHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.health)

	// Страницы
	router.GET("/", h.index)
	router.POST("/create", h.create)
	router.GET("/play/:id", h.play)
	router.POST("/play/:id", h.playTurn)

	// JSON API
	api := router.Group("/api")
	{
		api.GET("/stories", h.listStoriesAPI)
		api.POST("/stories", h.createStoryAPI)
		api.GET("/stories/:id", h.getStoryAPI)
		api.POST("/stories/:id/turns", h.playTurnAPI)
	}
}

func (h *StoryHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Страницы --- //

type indexItem struct {
	ID    string
	Title string
	Steps int
}

func (h *StoryHandler) index(c *gin.Context) {
	stories, err := h.service.ListStories(c.Request.Context())
	if err != nil {
		h.renderError(c, "", err)
		return
	}

	items := make([]indexItem, 0, len(stories))
	for _, s := range stories {
		title := s.Title
		if title == "" {
			title = domain.UntitledStory
		}
		items = append(items, indexItem{ID: s.ID, Title: title, Steps: s.Steps})
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"PageTitle": "Stories",
		"Stories":   items,
	})
}

func (h *StoryHandler) create(c *gin.Context) {
	id, err := h.service.CreateStory(c.Request.Context(), c.PostForm("title"), c.PostForm("background"))
	if err != nil {
		h.renderError(c, "", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/play/"+id)
}

func (h *StoryHandler) play(c *gin.Context) {
	id := c.Param("id")
	state, err := h.service.GetStory(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, id, err)
		return
	}

	engine := h.service.Engine()
	c.HTML(http.StatusOK, "play.html", gin.H{
		"PageTitle": state.DisplayTitle(),
		"ID":        id,
		"Title":     state.DisplayTitle(),
		"Steps":     state.Steps,
		"StepLimit": engine.StepLimit(),
		"Ended":     engine.Phase(state) == domain.PhaseEnded,
		"Entries":   state.Log,
	})
}

func (h *StoryHandler) playTurn(c *gin.Context) {
	id := c.Param("id")
	choice := strings.TrimSpace(c.PostForm("choice"))

	if _, err := h.service.PlayTurn(c.Request.Context(), id, choice); err != nil {
		h.renderError(c, id, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/play/"+id)
}

func (h *StoryHandler) renderError(c *gin.Context, id string, err error) {
	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.HTML(status, "error.html", gin.H{
		"PageTitle": "Error",
		"Status":    status,
		"Message":   message,
		"ID":        id,
	})
}

// --- JSON API --- //

type createStoryRequest struct {
	Title      string `json:"title"`
	Background string `json:"background"`
}

type createStoryResponse struct {
	ID string `json:"id"`
}

type playTurnRequest struct {
	Choice string `json:"choice"`
}

// storyResponse - состояние истории в ответах API.
type storyResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Mode      string            `json:"mode"`
	Steps     int               `json:"steps"`
	StepLimit int               `json:"step_limit"`
	Ended     bool              `json:"ended"`
	Log       []domain.LogEntry `json:"log"`
}

func (h *StoryHandler) toResponse(id string, state domain.StoryState) storyResponse {
	engine := h.service.Engine()
	log := state.Log
	if log == nil {
		log = []domain.LogEntry{}
	}
	return storyResponse{
		ID:        id,
		Title:     state.Title,
		Mode:      state.Mode,
		Steps:     state.Steps,
		StepLimit: engine.StepLimit(),
		Ended:     engine.Phase(state) == domain.PhaseEnded,
		Log:       log,
	}
}

func (h *StoryHandler) listStoriesAPI(c *gin.Context) {
	stories, err := h.service.ListStories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if stories == nil {
		stories = []domain.StorySummary{}
	}
	c.JSON(http.StatusOK, stories)
}

func (h *StoryHandler) createStoryAPI(c *gin.Context) {
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	id, err := h.service.CreateStory(c.Request.Context(), req.Title, req.Background)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createStoryResponse{ID: id})
}

func (h *StoryHandler) getStoryAPI(c *gin.Context) {
	id := c.Param("id")
	state, err := h.service.GetStory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(id, state))
}

func (h *StoryHandler) playTurnAPI(c *gin.Context) {
	var req playTurnRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}

	id := c.Param("id")
	state, err := h.service.PlayTurn(c.Request.Context(), id, req.Choice)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(id, state))
}

func (h *StoryHandler) respondError(c *gin.Context, err error) {
	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: message})
}
