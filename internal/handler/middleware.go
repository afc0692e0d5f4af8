package handler

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/spin-reward-engine/internal/metrics"
	"github.com/fairyhunter13/spin-reward-engine/internal/model"
)

const subjectLocal = "subject"

// Claims are the bearer token claims the engine reads. Registered users carry
// sub; guests carry guest_id.
type Claims struct {
	Tier      string `json:"tier,omitempty"`
	GuestID   string `json:"guest_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// AsSubject converts the claims into the identity used by the services.
func (c *Claims) AsSubject() model.Subject {
	return model.Subject{
		UserID:    c.Subject,
		GuestID:   c.GuestID,
		SessionID: c.SessionID,
		Tier:      c.Tier,
	}
}

// RequireSubject verifies an HS256 bearer token and stores the caller's
// subject for the handlers. issuer is checked when non-empty.
func RequireSubject(secret []byte, issuer string) fiber.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(c *fiber.Ctx) error {
		raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}

		var claims Claims
		if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, keyFunc); err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
		}

		subject := claims.AsSubject()
		if !subject.Valid() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "token carries no subject"})
		}
		c.Locals(subjectLocal, subject)
		return c.Next()
	}
}

// SubjectFrom returns the subject stored by RequireSubject.
func SubjectFrom(c *fiber.Ctx) (model.Subject, bool) {
	s, ok := c.Locals(subjectLocal).(model.Subject)
	return s, ok
}

// RequireInternalKey guards collaborator endpoints with a shared key sent in
// X-Internal-Key. An empty key disables the check.
func RequireInternalKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}
		if subtle.ConstantTimeCompare([]byte(c.Get("X-Internal-Key")), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid internal key"})
		}
		return c.Next()
	}
}

// Metrics records request counts and latency per route pattern.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		code := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		path := c.Route().Path
		labels := []string{path, strconv.Itoa(code)}
		metrics.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}

// Tracing starts a server span per request, continuing any trace carried in
// the request headers. Handlers see the span through c.UserContext().
func Tracing() fiber.Handler {
	tracer := otel.Tracer("github.com/fairyhunter13/spin-reward-engine/internal/handler")
	return func(c *fiber.Ctx) error {
		carrier := propagation.HeaderCarrier(c.GetReqHeaders())
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), carrier)
		ctx, span := tracer.Start(ctx, c.Method(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		code := c.Response().StatusCode()
		span.SetName(c.Method() + " " + c.Route().Path)
		span.SetAttributes(
			attribute.String("http.route", c.Route().Path),
			attribute.Int("http.status_code", code),
		)
		if err != nil {
			span.RecordError(err)
		}
		if code >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(code))
		}
		return err
	}
}
