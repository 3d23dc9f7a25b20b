package api

import (
	"net/http"
	"strings"
	"time"

	"audioscribe/internal/audio"
	"audioscribe/internal/engine"
	"audioscribe/internal/model"
	"audioscribe/internal/utils"

	"github.com/gin-gonic/gin"
)

// itemView is an item plus its save indicator.
type itemView struct {
	model.MediaItem
	Saved persistState `json:"save_state"`
}

type persistState struct {
	LastSavedAt *time.Time `json:"last_saved_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Unsaved     bool       `json:"unsaved"`
}

func (s *Server) view(item model.MediaItem) itemView {
	v := itemView{MediaItem: item}
	if s.projects == nil {
		v.Saved.Unsaved = true
		return v
	}
	st := s.projects.State(item.ID)
	if !st.LastSavedAt.IsZero() {
		saved := st.LastSavedAt
		v.Saved.LastSavedAt = &saved
	}
	v.Saved.LastError = st.LastError
	v.Saved.Unsaved = st.LastSavedAt.IsZero() || item.UpdatedAt.After(st.LastSavedAt) || st.LastError != ""
	return v
}

// healthCheck returns server health status
func (s *Server) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "audioscribe",
	})
}

func (s *Server) listItems(c *gin.Context) {
	items := s.items.List()
	out := make([]itemView, 0, len(items))
	for _, item := range items {
		out = append(out, s.view(item))
	}
	active := ""
	if item, ok := s.items.Active(); ok {
		active = item.ID
	}
	utils.Success(c, gin.H{
		"items":     out,
		"active_id": active,
	})
}

func (s *Server) getItem(c *gin.Context) {
	item, ok := s.items.Get(c.Param("id"))
	if !ok {
		utils.Error(c, http.StatusNotFound, "item not found")
		return
	}
	utils.Success(c, gin.H{"item": s.view(item)})
}

// uploadItem handles audio file upload
func (s *Server) uploadItem(c *gin.Context) {
	file, err := c.FormFile("audio_file")
	if err != nil {
		// Try alternative field names
		if file, err = c.FormFile("audio"); err != nil {
			if file, err = c.FormFile("file"); err != nil {
				utils.Error(c, http.StatusBadRequest, "audio_file is required")
				return
			}
		}
	}
	if !audio.IsSupported(file.Filename) {
		utils.Error(c, http.StatusBadRequest, "unsupported audio format. Supported: "+strings.Join(audio.SupportedExtensions, ", "))
		return
	}

	item, err := s.uploader.SaveUpload(file)
	if err != nil {
		s.logger.Error("upload failed", "file", file.Filename, "error", err)
		utils.Error(c, http.StatusInternalServerError, "failed to save audio file")
		return
	}
	if err := s.items.SetActive(item.ID); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("audio uploaded", "item_id", item.ID, "file", item.FileName, "bytes", file.Size)
	utils.Respond(c, http.StatusCreated, gin.H{"item": s.view(item)})
}

func (s *Server) selectItem(c *gin.Context) {
	if err := s.items.SetActive(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	utils.Success(c, gin.H{"active_id": c.Param("id")})
}

type transcribeRequest struct {
	Resume bool `json:"resume"`
	// Decision answers the prior-progress question: "continue" or "restart".
	Decision string `json:"decision"`
}

func (s *Server) startTranscription(c *gin.Context) {
	var req transcribeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	opts := engine.StartOptions{Resume: req.Resume}
	switch strings.ToLower(req.Decision) {
	case "":
	case "continue":
		opts.Decide = engine.Always(engine.DecisionContinue)
	case "restart":
		opts.Decide = engine.Always(engine.DecisionRestart)
	default:
		utils.Error(c, http.StatusBadRequest, "decision must be continue or restart")
		return
	}

	id := c.Param("id")
	if err := s.tr.Start(id, opts); err != nil {
		s.fail(c, err)
		return
	}
	item, _ := s.items.Get(id)
	utils.Respond(c, http.StatusAccepted, gin.H{"item": s.view(item)})
}

func (s *Server) pauseTranscription(c *gin.Context) {
	id := c.Param("id")
	if err := s.tr.Pause(id); err != nil {
		s.fail(c, err)
		return
	}
	item, _ := s.items.Get(id)
	utils.Success(c, gin.H{"item": s.view(item)})
}

type stageRequest struct {
	Kind     string `json:"kind" binding:"required"`
	ParentID string `json:"parent_id" binding:"required"`
	Prompt   string `json:"prompt"`
}

func (s *Server) startStage(c *gin.Context) {
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	versionID, err := s.stager.Start(c.Param("id"), engine.StageRequest{
		Kind:     model.StageKind(strings.ToUpper(req.Kind)),
		ParentID: req.ParentID,
		Prompt:   req.Prompt,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if versionID == "" {
		// Unknown parent: nothing was started.
		utils.Success(c, gin.H{"started": false})
		return
	}
	utils.Respond(c, http.StatusAccepted, gin.H{"started": true, "version_id": versionID})
}

type currentVersionRequest struct {
	VersionID string `json:"version_id" binding:"required"`
}

func (s *Server) setCurrentVersion(c *gin.Context) {
	var req currentVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	item, err := s.items.Update(c.Param("id"), func(m *model.MediaItem) error {
		return m.SetCurrentVersion(req.VersionID)
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	utils.Success(c, gin.H{"item": s.view(item)})
}

func (s *Server) getCredential(c *gin.Context) {
	_, ok := s.creds.Get()
	utils.Success(c, gin.H{"configured": ok})
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) setCredential(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.creds.Set(req.APIKey)
	_, ok := s.creds.Get()
	s.logger.Info("credential updated", "configured", ok)
	utils.Success(c, gin.H{"configured": ok})
}

func (s *Server) connectivity(c *gin.Context) {
	if s.netw == nil {
		utils.Success(c, gin.H{"online": true})
		return
	}
	online, checked := s.netw.Online()
	data := gin.H{"online": online}
	if !checked.IsZero() {
		data["checked_at"] = checked
	}
	utils.Success(c, data)
}
