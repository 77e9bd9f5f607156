package server

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wfunc/thiefhunt/broadcast"
	"github.com/wfunc/thiefhunt/config"
	"github.com/wfunc/thiefhunt/hub"
	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/models"
	"github.com/wfunc/thiefhunt/monitor"
	"github.com/wfunc/thiefhunt/network"
	"github.com/wfunc/thiefhunt/persistence"
	"github.com/wfunc/thiefhunt/room"
	gameserver_rpc "github.com/wfunc/thiefhunt/rpc"
	"github.com/wfunc/thiefhunt/services"
	"github.com/wfunc/thiefhunt/session"
	"github.com/wfunc/thiefhunt/shuffle"
	"github.com/wfunc/thiefhunt/state"
	"github.com/wfunc/thiefhunt/timer"
)

type GameServer struct {
	cfg            *config.Config
	router         *gin.Engine
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	rooms          *services.RoomService
	catalog        *services.CatalogService
	broadcaster    broadcast.Broadcaster
	hub            *hub.Hub
	monitor        *monitor.Monitor
	janitor        *services.Janitor
	rpcServer      *gameserver_rpc.Server
	ctx            context.Context
	cancel         context.CancelFunc
	shutdownOnce   sync.Once
}

func NewGameServer(cfg *config.Config, db persistence.Store) (*GameServer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &GameServer{
		cfg:            cfg,
		roomManager:    room.NewRoomManager(),
		sessionManager: session.NewManager(),
		catalog:        services.NewCatalogService(db),
		rooms: services.NewRoomService(db, services.RoomDefaults{
			MaxRounds:    cfg.Game.DefaultMaxRounds,
			TimerSeconds: cfg.Game.RoundSeconds,
		}),
		monitor: monitor.NewMonitor(cfg.Monitor.Namespace),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	// 初始化广播器
	roomBroadcaster := broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)
	s.broadcaster = roomBroadcaster

	engine := state.NewEngine(db, s.catalog)
	s.hub = hub.New(
		s.rooms,
		s.catalog,
		engine,
		timer.NewManager(cfg.Game.TickInterval),
		s.roomManager,
		s.sessionManager,
		roomBroadcaster,
		s.monitor,
		hub.Config{
			MessagesPerSecond:     cfg.Game.MessagesPerSecond,
			MessageBurst:          cfg.Game.MessageBurst,
			HeartbeatInterval:     cfg.Game.HeartbeatInterval,
			MaxConnectionsPerRoom: 2 * shuffle.MaxPlayers,
		},
	)
	s.janitor = services.NewJanitor(db, cfg.Janitor.Schedule, cfg.Janitor.MaxAge, s.hub.IsLive)

	// 初始化RPC服务器
	rpcServer, err := gameserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := rpcServer.Register("CatalogService", gameserver_rpc.NewCatalogService(s.catalog)); err != nil {
		rpcServer.Stop()
		cancel()
		return nil, err
	}
	s.rpcServer = rpcServer

	s.router = s.routes()
	s.httpServer = &http.Server{Addr: cfg.Server.HTTPAddress, Handler: s.router}
	return s, nil
}

// Handler exposes the HTTP routes, mainly for tests.
func (s *GameServer) Handler() http.Handler {
	return s.router
}

func (s *GameServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.Server.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type"},
		}))
	} else {
		r.Use(cors.Default())
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(s.monitor.Handler()))
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	api := r.Group("/api")
	api.POST("/rooms", s.handleCreateRoom)
	api.POST("/rooms/:code/join", s.handleJoinRoom)
	api.GET("/rooms/:code", s.handleGetRoom)

	r.GET("/ws/:code", s.handleWebSocket)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		logger.Log.Infow("request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// checkOrigin allows any origin unless allowed_origins is configured.
func (s *GameServer) checkOrigin(r *http.Request) bool {
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	if err := s.janitor.Start(); err != nil {
		return err
	}

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.broadcaster.BroadcastToAll(network.NewError("server shutting down"))
		s.cancel()
		err = s.httpServer.Shutdown(ctx)
		s.hub.Shutdown()
		s.janitor.Stop()
		s.rpcServer.Stop()
	})
	return err
}

type roomRequest struct {
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	SessionID string `json:"session_id"`
}

// roomResponse is the only place a session id is handed out, and only to
// the player it belongs to.
type roomResponse struct {
	RoomCode  string `json:"room_code"`
	SessionID string `json:"session_id"`
	PlayerID  uint   `json:"player_id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
}

// bindRoomRequest rejects a bad avatar before anything is written.
func bindRoomRequest(c *gin.Context) (*roomRequest, bool) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if req.Avatar != "" {
		avatar, err := services.NormalizeAvatar(req.Avatar)
		if err != nil {
			writeError(c, err)
			return nil, false
		}
		req.Avatar = avatar
	}
	return &req, true
}

func (s *GameServer) applyAvatar(c *gin.Context, player *models.Player, avatar string) bool {
	if avatar == "" || avatar == player.Avatar {
		return true
	}
	if err := s.rooms.SetAvatar(c.Request.Context(), player.ID, avatar); err != nil {
		writeError(c, err)
		return false
	}
	player.Avatar = avatar
	return true
}

func (s *GameServer) handleCreateRoom(c *gin.Context) {
	req, ok := bindRoomRequest(c)
	if !ok {
		return
	}
	dbRoom, host, err := s.rooms.CreateRoom(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	if !s.applyAvatar(c, host, req.Avatar) {
		return
	}
	c.JSON(http.StatusCreated, roomResponse{
		RoomCode:  dbRoom.Code,
		SessionID: host.SessionID,
		PlayerID:  host.ID,
		Name:      host.Name,
		Avatar:    host.Avatar,
	})
}

func (s *GameServer) handleJoinRoom(c *gin.Context) {
	req, ok := bindRoomRequest(c)
	if !ok {
		return
	}
	player, err := s.rooms.JoinRoom(c.Request.Context(), c.Param("code"), req.Name, req.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !s.applyAvatar(c, player, req.Avatar) {
		return
	}
	c.JSON(http.StatusOK, roomResponse{
		RoomCode:  strings.ToUpper(c.Param("code")),
		SessionID: player.SessionID,
		PlayerID:  player.ID,
		Name:      player.Name,
		Avatar:    player.Avatar,
	})
}

func (s *GameServer) handleGetRoom(c *gin.Context) {
	ctx := c.Request.Context()
	dbRoom, err := s.rooms.GetRoom(ctx, c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	players, err := s.rooms.Roster(ctx, dbRoom.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	roster := make([]network.PlayerInfo, 0, len(players))
	host := ""
	for _, p := range players {
		roster = append(roster, network.PlayerInfo{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Score: p.TotalScore, IsHost: p.IsHost})
		if p.IsHost {
			host = p.Name
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"room_code":     dbRoom.Code,
		"status":        dbRoom.Status,
		"host":          host,
		"max_rounds":    dbRoom.MaxRounds,
		"timer_seconds": dbRoom.TimerSeconds,
		"live":          s.hub.IsLive(dbRoom.Code),
		"players":       roster,
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRoomFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidName), errors.Is(err, services.ErrInvalidAvatar):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Log.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *GameServer) handleWebSocket(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	wsConn := network.NewWSConnection(conn)
	if err := s.hub.Serve(s.ctx, wsConn, code, sessionID); err != nil {
		logger.Log.Warnf("Connection for %s in room %s ended: %v", sessionID, code, err)
	}
}
