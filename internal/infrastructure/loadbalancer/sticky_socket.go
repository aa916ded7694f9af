package loadbalancer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// StickyRouter keeps a client's websocket reconnects landing on the
// instance that already holds its negotiation state. It issues a
// signed affinity cookie naming the instance; the balancer in front
// reads it, and this middleware validates and refreshes it.
type StickyRouter struct {
	secretKey  []byte
	cookieName string
	maxAge     int
}

func NewStickyRouter(secretKey, cookieName string, maxAge int) *StickyRouter {
	return &StickyRouter{
		secretKey:  []byte(secretKey),
		cookieName: cookieName,
		maxAge:     maxAge,
	}
}

// Affinity returns the instance the request is pinned to, if the
// cookie is present and its signature checks out.
func (s *StickyRouter) Affinity(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	if !s.validate(cookie.Value) {
		return "", false
	}
	return s.extract(cookie.Value), true
}

// Pin writes the affinity cookie naming instanceID.
func (s *StickyRouter) Pin(w http.ResponseWriter, instanceID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    s.sign(instanceID),
		Path:     "/",
		MaxAge:   s.maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PinMiddleware pins every socket upgrade that reaches this instance.
// A valid cookie naming another node means the balancer mis-routed;
// log-worthy upstream, but the connection still proceeds here and the
// cookie is rewritten so the next reconnect sticks.
func (s *StickyRouter) PinMiddleware(instanceID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pinned, ok := s.Affinity(c.Request); !ok || pinned != instanceID {
			s.Pin(c.Writer, instanceID)
		}
		c.Next()
	}
}

func (s *StickyRouter) sign(instanceID string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(instanceID))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("%s.%s", instanceID, signature)
}

func (s *StickyRouter) validate(cookieValue string) bool {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 2 {
		return false
	}
	expected := s.sign(parts[0])
	return hmac.Equal([]byte(cookieValue), []byte(expected))
}

func (s *StickyRouter) extract(cookieValue string) string {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 2 {
		return ""
	}
	return parts[0]
}

// ConsistentHash maps a live session to a preferred instance so that
// classmates in one room tend to share a node and most signaling stays
// off the event bus.
type ConsistentHash struct {
	instances []string
}

func NewConsistentHash(instances []string) *ConsistentHash {
	return &ConsistentHash{instances: instances}
}

// GetInstance picks the instance for the given key. Empty when no
// instances are configured.
func (ch *ConsistentHash) GetInstance(key string) string {
	if len(ch.instances) == 0 {
		return ""
	}

	hash := sha256.Sum256([]byte(key))
	hashValue := uint64(hash[0])<<56 | uint64(hash[1])<<48 | uint64(hash[2])<<40 | uint64(hash[3])<<32 |
		uint64(hash[4])<<24 | uint64(hash[5])<<16 | uint64(hash[6])<<8 | uint64(hash[7])

	return ch.instances[int(hashValue%uint64(len(ch.instances)))]
}
