package web

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lumenlabs/go-lumen/pkg/auth"
	"github.com/lumenlabs/go-lumen/pkg/detect"
	"github.com/lumenlabs/go-lumen/pkg/perception"
	"github.com/lumenlabs/go-lumen/pkg/store"
)

type statusPayload struct {
	perception.Snapshot
	AudioMuted   bool     `json:"audio_muted"`
	AudioPending int      `json:"audio_pending"`
	RecentLogs   []string `json:"recent_logs"`
}

func (s *Server) statusPayload() statusPayload {
	payload := statusPayload{
		Snapshot:     s.deps.State.Snapshot(),
		AudioMuted:   s.deps.Audio.IsMuted(),
		AudioPending: s.deps.Audio.Pending(),
	}
	if s.deps.Events != nil {
		lines, err := s.deps.Events.FormatRecent(10)
		if err != nil {
			s.logger.Warn("read recent events failed", "error", err)
		} else {
			payload.RecentLogs = lines
		}
	}
	return payload
}

// handleStatus returns the full perception and audio status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.statusPayload())
}

func (s *Server) handleSystemState(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"active": s.deps.State.Active(),
		"status": s.deps.State.Status(),
	})
}

func (s *Server) handleSetSystemState(c *fiber.Ctx) error {
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := s.deps.Loop.SetActive(req.Active); err != nil {
		s.logger.Error("set system state failed", "active", req.Active, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"active": s.deps.State.Active(),
		"status": s.deps.State.Status(),
	})
}

func (s *Server) handleAudioState(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"muted":   s.deps.Audio.IsMuted(),
		"pending": s.deps.Audio.Pending(),
	})
}

func (s *Server) handleSetAudioState(c *fiber.Ctx) error {
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	s.deps.Audio.SetMuted(req.Muted)
	return c.JSON(fiber.Map{
		"muted":   s.deps.Audio.IsMuted(),
		"pending": s.deps.Audio.Pending(),
	})
}

func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		return badRequest(c, "question is required")
	}
	answer := s.deps.Asker.Ask(c.UserContext(), req.Question)
	return c.JSON(fiber.Map{"answer": answer})
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	stats := s.deps.Asker.Stats()
	return c.JSON(fiber.Map{
		"duration_seconds": int(stats.Duration.Seconds()),
		"dangerous_events": stats.DangerousCount,
		"object_counts":    stats.LabelCounts,
	})
}

// handleUserMe returns the logged-in user and marks them as the
// active user for the perception loop.
func (s *Server) handleUserMe(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	if s.deps.Active != nil {
		s.deps.Active.Set(user.ID)
	}
	return c.JSON(user)
}

func (s *Server) handleSetOverlays(c *fiber.Ctx) error {
	var req struct {
		ShowOverlays bool `json:"show_overlays"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	s.deps.State.SetShowOverlays(req.ShowOverlays)
	return c.JSON(fiber.Map{"show_overlays": req.ShowOverlays})
}

func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	body := c.Body()
	if !json.Valid(body) {
		return badRequest(c, "settings must be valid JSON")
	}
	if err := s.deps.Users.UpdateSettings(user.ID, string(body)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not save settings",
		})
	}
	return c.JSON(fiber.Map{"saved": true})
}

func (s *Server) handleListFaces(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	faces, err := s.deps.Users.Faces(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not list faces",
		})
	}
	return c.JSON(faces)
}

func (s *Server) handleAddFace(c *fiber.Ctx) error {
	user := auth.UserFrom(c)

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return badRequest(c, "name is required")
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "image file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "could not read image")
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return badRequest(c, "could not read image")
	}

	face, err := s.deps.Users.AddFace(user.ID, name, image)
	if err != nil {
		s.logger.Error("add face failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not save face",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(face)
}

func (s *Server) handleDeleteFace(c *fiber.Ctx) error {
	user := auth.UserFrom(c)
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid face id")
	}
	if err := s.deps.Users.DeleteFace(user.ID, uint(id)); err != nil {
		if err == store.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "face not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not delete face",
		})
	}
	return c.JSON(fiber.Map{"deleted": true})
}

func (s *Server) handleSignup(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		return badRequest(c, "email and a password of at least 8 characters are required")
	}

	if _, err := s.deps.Users.UserByEmail(req.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "account already exists",
		})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not create account",
		})
	}
	user := &store.User{Email: req.Email, Name: req.Name, PasswordHash: hash}
	if err := s.deps.Users.CreateUser(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not create account",
		})
	}

	if err := s.setSession(c, user.ID); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	user, err := s.deps.Users.UserByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil || user.PasswordHash == "" {
		return unauthorized(c)
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return unauthorized(c)
	}

	if err := s.setSession(c, user.ID); err != nil {
		return err
	}
	return c.JSON(user)
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"logged_out": true})
}

const oauthStateCookie = "lumen_oauth_state"

func (s *Server) handleGoogleLogin(c *fiber.Ctx) error {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not start login",
		})
	}
	state := hex.EncodeToString(buf)
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
	})
	return c.Redirect(s.deps.Google.AuthURL(state))
}

func (s *Server) handleGoogleCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" || state != c.Cookies(oauthStateCookie) {
		return badRequest(c, "invalid oauth state")
	}
	code := c.Query("code")
	if code == "" {
		return badRequest(c, "missing code")
	}

	profile, err := s.deps.Google.Exchange(c.UserContext(), code)
	if err != nil {
		s.logger.Error("google exchange failed", "error", err)
		return unauthorized(c)
	}

	user, err := s.deps.Users.UpsertGoogleUser(profile.ID, profile.Email, profile.Name, profile.Picture)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not sign in",
		})
	}

	if err := s.setSession(c, user.ID); err != nil {
		return err
	}
	return c.Redirect("/")
}

func (s *Server) setSession(c *fiber.Ctx, userID uint) error {
	token, err := s.deps.Sessions.Issue(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not create session",
		})
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  time.Now().Add(s.deps.Sessions.TTL()),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return nil
}

var (
	placeholderInactive = detect.Placeholder("Camera inactive", color.RGBA{R: 120, G: 120, B: 120, A: 255})
	placeholderStarting = detect.Placeholder("Starting camera...", color.RGBA{R: 80, G: 160, B: 80, A: 255})
)

// handleVideoFeed streams MJPEG frames. Placeholder cards are served
// while the loop is inactive or warming up, so the feed never breaks.
func (s *Server) handleVideoFeed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary=frame")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	state := s.deps.State
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		for {
			frame := s.feedFrame(state)
			if err := writeMJPEGPart(w, frame); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
	})
	return nil
}

func (s *Server) feedFrame(state *perception.State) []byte {
	snap := state.Snapshot()
	switch {
	case snap.Status == perception.StatusInactive:
		return placeholderInactive
	case len(snap.Frame) == 0:
		return placeholderStarting
	}

	if snap.ShowOverlays && len(snap.Detections) > 0 {
		overlaid, err := detect.DrawOverlays(snap.Frame, snap.Detections)
		if err == nil {
			return overlaid
		}
		s.logger.Warn("overlay render failed", "error", err)
	}
	return snap.Frame
}

func writeMJPEGPart(w *bufio.Writer, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
}
