package http

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/auth"
	"github.com/nstepura/Ring/internal/core"
	"github.com/nstepura/Ring/internal/domain"
	"github.com/nstepura/Ring/internal/history"
	"github.com/nstepura/Ring/internal/notify"
)

// API bundles the REST surface around the relay: private-room
// provisioning, call history and the client log sink.
type API struct {
	Registry *core.Registry
	Notifier notify.Notifier
	Verifier *auth.Verifier
	History  *history.Store

	WebAppURL      string
	PrivateRoomTTL time.Duration
	LogsPath       string
}

type createRoomRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// CreatePrivateRoom provisions a capacity-2 room, delivers the invite
// link out of band and arms the fixed-lifetime expiry. No delivery,
// no room.
func (a *API) CreatePrivateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "user_id is required"})
		return
	}

	roomID := uuid.NewString()
	link := strings.TrimSuffix(a.WebAppURL, "/") + "/call/" + roomID

	if err := a.Notifier.SendInviteLink(c.Request.Context(), req.UserID, link); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Int64("user_id", req.UserID).Msg("invite link delivery failed")
		c.JSON(http.StatusBadGateway, gin.H{"detail": "failed to deliver invite link"})
		return
	}

	a.Registry.GetOrCreate(domain.RoomID(roomID), domain.VisibilityPrivate)
	a.Registry.ScheduleExpiry(domain.RoomID(roomID), a.PrivateRoomTTL)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "room_id": roomID, "link": link})
}

func (a *API) verifyPathInitData(c *gin.Context) (*domain.User, bool) {
	initData, err := url.PathUnescape(c.Param("init_data"))
	if err != nil {
		initData = c.Param("init_data")
	}
	user, err := a.Verifier.Verify(initData)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Forbidden"})
		return nil, false
	}
	return user, true
}

// GetHistory returns the caller's past calls, most recent first.
func (a *API) GetHistory(c *gin.Context) {
	user, ok := a.verifyPathInitData(c)
	if !ok {
		return
	}
	records, err := a.History.List(user.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("user", string(user.ID)).Msg("could not read history")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "could not read history"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// AppendHistory stores one call record for the caller.
func (a *API) AppendHistory(c *gin.Context) {
	user, ok := a.verifyPathInitData(c)
	if !ok {
		return
	}
	var rec history.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "bad call record"})
		return
	}
	if err := a.History.Append(user.ID, rec); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("user", string(user.ID)).Msg("could not save history")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "could not save history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type clientLogRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	RoomID  string `json:"room_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// ClientLog appends a client-side diagnostic line to the per-room log
// file.
func (a *API) ClientLog(c *gin.Context) {
	var req clientLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "bad log payload"})
		return
	}

	// Base strips any path components a hostile client may send.
	name := filepath.Base(req.RoomID) + ".log"
	path := filepath.Join(a.LogsPath, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err == nil {
		_, err = fmt.Fprintf(f, "[%s] %s\n", req.UserID, req.Message)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", req.RoomID).Msg("could not write client log")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged"})
}
