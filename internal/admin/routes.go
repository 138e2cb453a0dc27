package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/ipcril/internal/ril"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

type submitBody struct {
	Kind    string          `json:"kind" binding:"required"`
	Request json.RawMessage `json:"request"`
}

func (s *Server) RegisterRoutes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Ready once the modem has announced itself.
	r.GET("/ready", func(c *gin.Context) {
		st := s.engine.Status()
		status := http.StatusOK
		ready := st.Radio != ril.RadioUnavailable.String()
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"radio":   st.Radio,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": version,
		})
	})

	v1 := r.Group("/v1")
	v1.GET("/radio", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.engine.Status())
	})
	v1.GET("/radio/graph", func(c *gin.Context) {
		c.String(http.StatusOK, s.engine.RadioGraph())
	})

	v1.GET("/kinds", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"kinds": Kinds()})
	})

	v1.GET("/requests", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"requests": s.bridge.List()})
	})
	v1.POST("/requests", s.submit)
	v1.GET("/requests/:token", func(c *gin.Context) {
		tok, ok := tokenParam(c)
		if !ok {
			return
		}
		item, found := s.bridge.Get(tok)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusOK, item)
	})
	v1.DELETE("/requests/:token", func(c *gin.Context) {
		tok, ok := tokenParam(c)
		if !ok {
			return
		}
		s.engine.Cancel(tok)
		s.bridge.Remove(tok)
		c.JSON(http.StatusOK, gin.H{"status": "canceled", "token": tok})
	})

	v1.GET("/events", func(c *gin.Context) {
		since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an unsigned integer"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": s.bridge.EventsSince(since)})
	})
}

// submit mints a token, hands the request to the engine and returns the
// token. The completion shows up later under /v1/requests/:token.
func (s *Server) submit(c *gin.Context) {
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := DecodeRequest(body.Kind, body.Request)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUnknownKind) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	tok := s.bridge.Mint(req.Kind())
	s.engine.OnRequest(tok, req)
	s.log.Debug().Uint64("token", uint64(tok)).Str("kind", req.Kind()).Msg("request submitted")

	c.JSON(http.StatusAccepted, gin.H{"token": tok, "kind": req.Kind()})
}

func tokenParam(c *gin.Context) (ril.Token, bool) {
	n, err := strconv.ParseUint(c.Param("token"), 10, 64)
	if err != nil || ril.Token(n) == ril.NoToken {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		return ril.NoToken, false
	}
	return ril.Token(n), true
}
