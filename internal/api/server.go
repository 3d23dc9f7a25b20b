// Package api exposes media items, transcription, stages and saved projects
// over HTTP.
package api

import (
	"context"
	"log/slog"
	"time"

	"audioscribe/internal/credential"
	"audioscribe/internal/engine"
	"audioscribe/internal/events"
	"audioscribe/internal/model"
	"audioscribe/internal/persist"
	"audioscribe/internal/storage"

	"github.com/gin-gonic/gin"
)

// Transcriber starts and pauses transcription loops.
type Transcriber interface {
	Start(id string, opts engine.StartOptions) error
	Pause(id string) error
}

// Stager starts text stages.
type Stager interface {
	Start(itemID string, req engine.StageRequest) (string, error)
}

// Projects is the persistence gateway as seen by handlers.
type Projects interface {
	SaveByID(ctx context.Context, id string) error
	State(id string) persist.SaveState
	List(ctx context.Context) ([]model.ProjectSummary, error)
	Delete(ctx context.Context, id string) error
	Load(ctx context.Context, id string) (model.MediaItem, error)
}

// Connectivity reports the last probe result.
type Connectivity interface {
	Online() (bool, time.Time)
}

// Deps wires a Server.
type Deps struct {
	Items        *storage.Items
	Uploader     *storage.Uploader
	Bus          *events.Bus
	Credentials  *credential.Holder
	Transcriber  Transcriber
	Stager       Stager
	Projects     Projects
	Connectivity Connectivity
	Logger       *slog.Logger
}

// Server holds the handler dependencies.
type Server struct {
	items    *storage.Items
	uploader *storage.Uploader
	bus      *events.Bus
	creds    *credential.Holder
	tr       Transcriber
	stager   Stager
	projects Projects
	netw     Connectivity
	logger   *slog.Logger
}

// NewServer creates the API server.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		items:    d.Items,
		uploader: d.Uploader,
		bus:      d.Bus,
		creds:    d.Credentials,
		tr:       d.Transcriber,
		stager:   d.Stager,
		projects: d.Projects,
		netw:     d.Connectivity,
		logger:   logger.With("component", "api"),
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	// Health check
	r.GET("/health", s.healthCheck)

	// API v1
	v1 := r.Group("/api/v1")
	{
		v1.GET("/items", s.listItems)
		v1.POST("/items", s.uploadItem)
		v1.GET("/items/:id", s.getItem)
		v1.POST("/items/:id/select", s.selectItem)
		v1.POST("/items/:id/transcribe", s.startTranscription)
		v1.POST("/items/:id/pause", s.pauseTranscription)
		v1.POST("/items/:id/stages", s.startStage)
		v1.PUT("/items/:id/current-version", s.setCurrentVersion)
		v1.POST("/items/:id/save", s.saveItem)

		v1.GET("/projects", s.listProjects)
		v1.POST("/projects/:id/load", s.loadProject)
		v1.DELETE("/projects/:id", s.deleteProject)

		v1.GET("/credential", s.getCredential)
		v1.PUT("/credential", s.setCredential)
		v1.GET("/connectivity", s.connectivity)

		v1.GET("/events", s.pollEvents)
		v1.GET("/events/ws", s.streamEvents)
	}
}
