// Package web exposes the HTTP API, the MJPEG video feed, and the
// status websocket.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/lumenlabs/go-lumen/pkg/auth"
	"github.com/lumenlabs/go-lumen/pkg/hub"
	"github.com/lumenlabs/go-lumen/pkg/perception"
	"github.com/lumenlabs/go-lumen/pkg/reason"
	"github.com/lumenlabs/go-lumen/pkg/store"
)

// Controller starts and stops the perception loop.
type Controller interface {
	SetActive(active bool) error
}

// Audio controls the announcement channel.
type Audio interface {
	SetMuted(muted bool)
	IsMuted() bool
	Pending() int
}

// Asker answers questions about recent detections.
type Asker interface {
	Ask(ctx context.Context, question string) string
	Stats() reason.SessionStats
}

// EventLog reads back recent detection events for the dashboard.
type EventLog interface {
	FormatRecent(n int) ([]string, error)
}

// Users is the account surface the handlers need. Satisfied by
// *store.Store.
type Users interface {
	CreateUser(u *store.User) error
	UserByEmail(email string) (*store.User, error)
	UserByID(id uint) (*store.User, error)
	UpsertGoogleUser(googleID, email, name, avatarURL string) (*store.User, error)
	UpdateSettings(userID uint, settings string) error
	AddFace(userID uint, name string, image []byte) (*store.ReferenceFace, error)
	Faces(userID uint) ([]store.ReferenceFace, error)
	DeleteFace(userID, faceID uint) error
}

// Deps wires the server to the rest of the system.
type Deps struct {
	State    *perception.State
	Loop     Controller
	Audio    Audio
	Asker    Asker
	Events   EventLog // optional
	Users    Users
	Sessions *auth.Sessions
	Google   *auth.Google // nil disables Google login
	Active   *auth.ActiveUser
	Logger   *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	app    *fiber.App
	deps   Deps
	logger *slog.Logger

	statusHub *hub.Hub
}

// NewServer builds the fiber app and routes.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		deps:      deps,
		logger:    deps.Logger.With("component", "web"),
		statusHub: hub.New("status", deps.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Lumen",
		DisableStartupMessage: true,
		BodyLimit:             10 * 1024 * 1024, // face image uploads
	})

	app.Use(cors.New())
	app.Use(auth.Middleware(deps.Sessions, deps.Users))

	app.Post("/api/auth/signup", s.handleSignup)
	app.Post("/api/auth/login", s.handleLogin)
	app.Post("/api/auth/logout", s.handleLogout)
	if deps.Google != nil {
		app.Get("/auth/google", s.handleGoogleLogin)
		app.Get("/auth/google/callback", s.handleGoogleCallback)
	}

	app.Get("/api/status", s.handleStatus)
	app.Get("/api/system/state", s.handleSystemState)
	app.Get("/api/audio/state", s.handleAudioState)
	app.Get("/video_feed", s.handleVideoFeed)

	api := app.Group("/api", auth.RequireUser())
	api.Post("/system/state", s.handleSetSystemState)
	api.Post("/audio/state", s.handleSetAudioState)
	api.Post("/ask", s.handleAsk)
	api.Get("/summary", s.handleSummary)
	api.Get("/user/me", s.handleUserMe)
	api.Post("/settings/overlays", s.handleSetOverlays)
	api.Put("/settings", s.handleUpdateSettings)
	api.Get("/faces", s.handleListFaces)
	api.Post("/faces", s.handleAddFace)
	api.Delete("/faces/:id", s.handleDeleteFace)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on addr and blocks.
func (s *Server) Start(addr string) error {
	go s.statusHub.Run()
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// BroadcastStatus pushes state snapshots to websocket clients until
// ctx is canceled.
func (s *Server) BroadcastStatus(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastJSON(s.statusPayload()); err != nil {
				s.logger.Warn("status broadcast failed", "error", err)
			}
		}
	}
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	client.Run()
}
