package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	log "github.com/getchatads/chatads-relay/internal/logging"
)

// enableKeepAlive registers the /keep-alive endpoint and starts a goroutine
// that shuts the relay down when no heartbeat arrives within the timeout.
// Used when the relay runs as a sidecar of a desktop tool-calling host: the
// host pings while alive, and the relay exits once the host is gone.
func (s *Server) enableKeepAlive(timeout time.Duration, onTimeout func()) {
	if timeout <= 0 || onTimeout == nil {
		return
	}

	s.keepAliveEnabled = true
	s.keepAliveTimeout = timeout
	s.keepAliveOnTimeout = onTimeout
	s.keepAliveHeartbeat = make(chan struct{}, 1)
	s.keepAliveStop = make(chan struct{}, 1)

	s.engine.GET("/keep-alive", s.handleKeepAlive)

	go s.watchKeepAlive()
}

func (s *Server) handleKeepAlive(c *gin.Context) {
	s.signalKeepAlive()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// signalKeepAlive forwards a heartbeat to the monitor. The send is
// non-blocking; a heartbeat already in flight counts.
func (s *Server) signalKeepAlive() {
	if !s.keepAliveEnabled {
		return
	}
	select {
	case s.keepAliveHeartbeat <- struct{}{}:
	default:
	}
}

// watchKeepAlive fires onTimeout once the heartbeat goes quiet for the
// configured timeout. The loop exits on timeout or via keepAliveStop.
func (s *Server) watchKeepAlive() {
	if !s.keepAliveEnabled {
		return
	}

	timer := time.NewTimer(s.keepAliveTimeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			log.Warnf("keep-alive idle for %s, shutting down", s.keepAliveTimeout)
			if s.keepAliveOnTimeout != nil {
				s.keepAliveOnTimeout()
			}
			return
		case <-s.keepAliveHeartbeat:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.keepAliveTimeout)
		case <-s.keepAliveStop:
			return
		}
	}
}
