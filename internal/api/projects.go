package api

import (
	"net/http"

	"audioscribe/internal/utils"

	"github.com/gin-gonic/gin"
)

func (s *Server) saveItem(c *gin.Context) {
	id := c.Param("id")
	if err := s.projects.SaveByID(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	item, _ := s.items.Get(id)
	utils.Success(c, gin.H{"item": s.view(item)})
}

// listProjects returns saved projects, newest first
func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.projects.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	utils.Success(c, gin.H{
		"projects": projects,
		"count":    len(projects),
	})
}

// loadProject restores a saved project as the active, read-only item
func (s *Server) loadProject(c *gin.Context) {
	item, err := s.projects.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	utils.Success(c, gin.H{"item": s.view(item)})
}

func (s *Server) deleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := s.projects.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
