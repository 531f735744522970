package httpserver

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"imgtranslate/internal/logger"
	"imgtranslate/internal/session"
)

const (
	sessionCookie = "imgtranslate_session"
	sessionKey    = "session"
	requestIDKey  = "requestid"
)

// accessLog writes one zerolog line per request.
func accessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		rid, _ := c.Locals(requestIDKey).(string)
		log := logger.WithRequestID(rid)
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("component", "http").
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
		return err
	}
}

// withSession resolves the caller's session from its cookie, issuing a new
// one when the cookie is missing or expired.
func (s *Server) withSession(c *fiber.Ctx) error {
	sess, created := s.deps.Sessions.Get(c.Cookies(sessionCookie))
	if created {
		c.Cookie(&fiber.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		sessLog := logger.WithSession("httpserver", sess.ID)
		sessLog.Debug().Msg("Session created")
	}
	c.Locals(sessionKey, sess)
	return c.Next()
}

func sessionFrom(c *fiber.Ctx) *session.Session {
	sess, _ := c.Locals(sessionKey).(*session.Session)
	return sess
}
