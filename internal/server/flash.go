package server

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const flashCookie = "flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

type flashClaims struct {
	Messages []Flash `json:"msgs"`
	jwt.RegisteredClaims
}

// flashCodec signs queued messages into a cookie so they survive a redirect.
type flashCodec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func newFlashCodec(secret []byte, secure bool) *flashCodec {
	return &flashCodec{secret: secret, ttl: 5 * time.Minute, secure: secure, now: time.Now}
}

func (c *flashCodec) encode(msgs []Flash) (string, error) {
	now := c.now()
	claims := flashClaims{
		Messages: msgs,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *flashCodec) decode(value string) ([]Flash, error) {
	claims := &flashClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, errors.Wrap(err, "decode flash cookie")
	}
	return claims.Messages, nil
}

func (c *flashCodec) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *flashCodec) expired() *http.Cookie {
	return &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: c.secure}
}

// flashBag holds the messages carried in by the request cookie and the ones
// queued while handling it.
type flashBag struct {
	incoming  []Flash
	pending   []Flash
	hadCookie bool
}

func (b *flashBag) drain() []Flash {
	msgs := append(append([]Flash{}, b.incoming...), b.pending...)
	b.incoming, b.pending = nil, nil
	return msgs
}

type flashKey struct{}

func (s *Server) withFlashes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bag := &flashBag{}
		if c, err := r.Cookie(flashCookie); err == nil {
			bag.hadCookie = true
			msgs, err := s.flashes.decode(c.Value)
			if err != nil {
				s.log.WithError(err).Debug("discarding flash cookie")
			}
			bag.incoming = msgs
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), flashKey{}, bag)))
	})
}

func bagFrom(r *http.Request) *flashBag {
	if bag, ok := r.Context().Value(flashKey{}).(*flashBag); ok {
		return bag
	}
	return &flashBag{}
}

// flash queues a message for the next page the client sees.
func (s *Server) flash(r *http.Request, category, message string) {
	bag := bagFrom(r)
	bag.pending = append(bag.pending, Flash{Category: category, Message: message})
}

// redirect carries any undisplayed messages to the target page.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, url string) {
	bag := bagFrom(r)
	if msgs := bag.drain(); len(msgs) > 0 {
		value, err := s.flashes.encode(msgs)
		if err != nil {
			s.log.WithError(err).Error("encode flash cookie")
		} else {
			http.SetCookie(w, s.flashes.cookie(value))
		}
	} else if bag.hadCookie {
		http.SetCookie(w, s.flashes.expired())
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
