package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"querydeck/internal/project"
)

type ProjectHandler struct {
	projects *project.Service
	logger   zerolog.Logger
}

func NewProjectHandler(projects *project.Service, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

type createProjectRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	DBUser       string `json:"db_user" binding:"required"`
	DBPassword   string `json:"db_password" binding:"required"`
	DBHost       string `json:"db_host" binding:"required"`
	DBPort       string `json:"db_port" binding:"required"`
	DBName       string `json:"db_name" binding:"required"`
	TableName    string `json:"table_name" binding:"required"`
	GeminiAPIKey string `json:"gemini_api_key" binding:"required"`
	GeminiModel  string `json:"gemini_model" binding:"required"`
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "all connection fields, the table name, and the model settings are required"})
		return
	}

	p, err := h.projects.Create(c.Request.Context(), userID(c), project.Input{
		Name:         req.Name,
		Description:  req.Description,
		DBUser:       req.DBUser,
		DBPassword:   req.DBPassword,
		DBHost:       req.DBHost,
		DBPort:       req.DBPort,
		DBName:       req.DBName,
		TableName:    req.TableName,
		GeminiAPIKey: req.GeminiAPIKey,
		GeminiModel:  req.GeminiModel,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProjectHandler) List(c *gin.Context) {
	list, err := h.projects.List(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": list})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandler) Connection(c *gin.Context) {
	view, err := h.projects.Connection(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type toggleColumnRequest struct {
	Allow *bool `json:"allow" binding:"required"`
}

func (h *ProjectHandler) ToggleColumn(c *gin.Context) {
	var req toggleColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "allow flag is required"})
		return
	}

	sc, err := h.projects.ToggleColumn(c.Request.Context(), userID(c), c.Param("id"), c.Param("column"), *req.Allow)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"db_context": sc})
}

func (h *ProjectHandler) SaveCardDesign(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := h.projects.SaveCardDesign(c.Request.Context(), userID(c), c.Param("id"), json.RawMessage(body)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
