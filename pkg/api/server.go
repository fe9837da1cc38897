// Package api provides the daemon's HTTP surface: conversation capture,
// context build/get, session lifecycle, status, notifications, core memory,
// recall, search, and mission CRUD — the external interface described in
// SPEC_FULL.md §6. Routing is gin (the teacher's cmd/tarsy/main.go router),
// ported from the teacher's Echo v5 server.go: Set*-wiring, ValidateWiring,
// health aggregation and graceful Start/Shutdown all follow the same shape.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxpkg "github.com/omniwaifu/dere-sub005/pkg/context"
	"github.com/omniwaifu/dere-sub005/pkg/database"
	"github.com/omniwaifu/dere-sub005/pkg/events"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/ingest"
	"github.com/omniwaifu/dere-sub005/pkg/mission"
	"github.com/omniwaifu/dere-sub005/pkg/orchestrator"
	"github.com/omniwaifu/dere-sub005/pkg/presence"
	"github.com/omniwaifu/dere-sub005/pkg/store"
	"github.com/omniwaifu/dere-sub005/pkg/taskwarrior"
	"github.com/omniwaifu/dere-sub005/pkg/tasks"
	"github.com/omniwaifu/dere-sub005/pkg/version"
)

// Server is the daemon's HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	db *sql.DB

	ingestor    *ingest.Ingestor
	context     *ctxpkg.Builder
	sessions    *store.SessionStore
	convos      *store.ConversationStore
	memory      *store.CoreMemoryStore
	missions    *mission.Service
	queue       *tasks.Runtime
	presence    *presence.Service
	notifs      *store.NotificationStore
	findings    *store.FindingStore
	daemon      *store.DaemonStateStore
	graph       graph.Adapter // nil if no knowledge graph backend is wired
	notifyHub   *NotificationHub
	conns       *events.ConnectionManager  // nil if no timeline event stream is wired
	sessionEvents *events.EventPublisher   // nil if session.status events aren't wired
	orch        *orchestrator.Orchestrator // nil if no ambient orchestrator is wired
	emotion     *store.EmotionStore
	taskwarrior *taskwarrior.Client // nil if no taskwarrior integration is configured
}

// NewServer wires the non-optional collaborators and registers every route.
func NewServer(
	db *sql.DB,
	ingestor *ingest.Ingestor,
	contextBuilder *ctxpkg.Builder,
	missions *mission.Service,
	queue *tasks.Runtime,
	presenceSvc *presence.Service,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		engine:   e,
		db:       db,
		ingestor: ingestor,
		context:  contextBuilder,
		sessions: store.NewSessionStore(db),
		convos:   store.NewConversationStore(db),
		memory:   store.NewCoreMemoryStore(db),
		missions: missions,
		queue:    queue,
		presence: presenceSvc,
		notifs:   store.NewNotificationStore(db),
		findings: store.NewFindingStore(db),
		daemon:   store.NewDaemonStateStore(db),
		emotion:  store.NewEmotionStore(db),
	}
	s.setupRoutes()
	return s
}

// SetGraphAdapter wires the knowledge graph adapter used by /search/hybrid
// and /kg/entities. Left nil, those routes degrade to "graph unavailable"
// rather than failing the whole server.
func (s *Server) SetGraphAdapter(g graph.Adapter) {
	s.graph = g
}

// SetNotificationHub wires the websocket hub used to stream ambient
// notification delivery status to connected frontends.
func (s *Server) SetNotificationHub(hub *NotificationHub) {
	s.notifyHub = hub
}

// SetConnectionManager wires the general timeline/session event stream used
// by /events/ws (distinct from the ambient-notification NotificationHub).
// Left nil, that route degrades to "stream unavailable".
func (s *Server) SetConnectionManager(cm *events.ConnectionManager) {
	s.conns = cm
}

// SetEventPublisher wires the publisher used to persist and broadcast
// session.status events when a session starts or ends. Left nil, session
// lifecycle changes happen silently (no event, no error).
func (s *Server) SetEventPublisher(p *events.EventPublisher) {
	s.sessionEvents = p
}

// SetOrchestrator wires the ambient orchestrator used by GET /activity/state
// to report a user's derived engagement state and activity streak. Left
// nil, that route degrades to "activity tracking unavailable".
func (s *Server) SetOrchestrator(o *orchestrator.Orchestrator) {
	s.orch = o
}

// SetTaskwarrior wires the taskwarrior integration used by
// GET /taskwarrior/tasks. Left nil, that route degrades to "taskwarrior not
// configured" rather than failing the whole server.
func (s *Server) SetTaskwarrior(c *taskwarrior.Client) {
	s.taskwarrior = c
}

// ValidateWiring checks that every non-optional collaborator was supplied to
// NewServer, so a wiring gap surfaces at startup rather than as a nil-pointer
// panic on the first request.
func (s *Server) ValidateWiring() error {
	var errs []error
	if s.ingestor == nil {
		errs = append(errs, fmt.Errorf("ingestor not set"))
	}
	if s.context == nil {
		errs = append(errs, fmt.Errorf("context builder not set"))
	}
	if s.missions == nil {
		errs = append(errs, fmt.Errorf("mission service not set"))
	}
	if s.queue == nil {
		errs = append(errs, fmt.Errorf("queue runtime not set"))
	}
	if s.presence == nil {
		errs = append(errs, fmt.Errorf("presence service not set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("server wiring incomplete: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	s.engine.POST("/conversation/capture", s.captureHandler)

	s.engine.POST("/context/build", s.contextBuildHandler)
	s.engine.POST("/context/get", s.contextGetHandler)
	s.engine.POST("/context/build_session_start", s.contextSessionStartHandler)

	s.engine.POST("/sessions/create", s.sessionCreateHandler)
	s.engine.POST("/sessions/find_or_create", s.sessionFindOrCreateHandler)
	s.engine.POST("/sessions/:id/end", s.sessionEndHandler)
	s.engine.POST("/sessions/:id/claude_session", s.sessionClaudeSessionHandler)
	s.engine.POST("/sessions/:id/message", s.sessionMessageHandler)
	s.engine.GET("/sessions/:id/history", s.sessionHistoryHandler)
	s.engine.GET("/sessions/context", s.sessionsContextHandler)

	s.engine.POST("/status/get", s.statusGetHandler)

	s.engine.POST("/notifications/recent_unacknowledged", s.notificationsRecentHandler)
	s.engine.GET("/notifications/ws", s.notificationsWSHandler)
	s.engine.GET("/events/ws", s.eventsWSHandler)

	s.engine.POST("/search/hybrid", s.searchHybridHandler)
	s.engine.GET("/kg/entities", s.kgEntitiesHandler)

	s.engine.GET("/activity/state", s.activityStateHandler)
	s.engine.GET("/emotion/summary", s.emotionSummaryHandler)
	s.engine.GET("/taskwarrior/tasks", s.taskwarriorTasksHandler)
	s.engine.GET("/conversations/last_dm/:user_id", s.conversationsLastDMHandler)

	s.engine.POST("/memory/core/edit", s.memoryEditHandler)
	s.engine.GET("/memory/core/history", s.memoryHistoryHandler)
	s.engine.POST("/memory/core/rollback", s.memoryRollbackHandler)

	s.engine.GET("/recall/search", s.recallSearchHandler)
	s.engine.POST("/recall/findings/surface", s.recallSurfaceHandler)

	missions := s.engine.Group("/missions")
	missions.POST("", s.missionCreateHandler)
	missions.GET("", s.missionListHandler)
	missions.GET("/:id", s.missionGetHandler)
	missions.POST("/:id/pause", s.missionPauseHandler)
	missions.POST("/:id/resume", s.missionResumeHandler)
	missions.POST("/:id/archive", s.missionArchiveHandler)
	missions.POST("/:id/executions", s.missionExecutionStartHandler)
	missions.GET("/:id/executions", s.missionExecutionListHandler)
}

// Handler exposes the underlying gin engine for test servers that need to
// drive requests without binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]HealthCheck{}
	status := "healthy"

	if _, err := database.Health(reqCtx, s.db); err != nil {
		status = "unhealthy"
		checks["database"] = HealthCheck{Status: "unhealthy", Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: "healthy"}
	}

	if s.queue != nil {
		if stats, err := s.queue.Stats(reqCtx); err != nil {
			checks["queue"] = HealthCheck{Status: "degraded", Message: err.Error()}
		} else {
			checks["queue"] = HealthCheck{Status: "healthy", Message: fmt.Sprintf("%d pending", stats.PendingTotal)}
		}
	}

	httpStatus := http.StatusOK
	if status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, HealthResponse{Status: status, Version: version.Full(), Checks: checks})
}
