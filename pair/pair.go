// Package pair binds a physical display to a user's configuration.
// The device invents a short code, claims it, and polls until the
// setup wizard writes a webhook URL into the entry. Entries live in
// the shared KV store so any server instance can answer the poll.
package pair

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"regexp"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/m1ckyb/CommuteCompute-sub001/storage"
)

const (
	// CodeLength and codeAlphabet match what devices generate at
	// first boot. 36^6 codes is plenty for a 10 minute window.
	CodeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// EntryTTL is how long an unclaimed or unconsumed pairing code
	// survives before the device has to present a fresh one.
	EntryTTL = 600 * time.Second

	// kvTimeout caps each store round trip so a stalled backend
	// cannot eat the handler's whole response window.
	kvTimeout = time.Second

	keyPrefix = "pair:"
)

// ErrCodeInUse means a different device already claimed the code.
var ErrCodeInUse = errors.New("pairing code already claimed")

// ErrBadCode rejects codes that are not 6 chars of A-Z0-9.
var ErrBadCode = errors.New("malformed pairing code")

var codeRe = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// Status is what polls and claims report back to the client.
type Status string

const (
	StatusCreated Status = "created"
	StatusWaiting Status = "waiting"
	StatusPaired  Status = "paired"
	StatusExpired Status = "expired"
)

// Entry is the KV payload for one pairing code.
type Entry struct {
	DeviceID    string            `json:"deviceId,omitempty"`
	DeviceKind  string            `json:"deviceKind,omitempty"`
	WebhookURL  string            `json:"webhookUrl,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	CreatedAt   time.Time         `json:"createdAtUTC"`
}

// Result is the outcome of a claim, completion, or poll.
type Result struct {
	Status     Status
	WebhookURL string
}

// Service performs pairing operations against a KV store. The store
// owns entry lifetime via TTL; expiry needs no sweeper here.
type Service struct {
	kv    storage.KV
	clock clockwork.Clock
}

func NewService(kv storage.KV) *Service {
	return &Service{kv: kv, clock: clockwork.NewRealClock()}
}

// NewServiceWithClock exists for tests that steer time.
func NewServiceWithClock(kv storage.KV, clock clockwork.Clock) *Service {
	return &Service{kv: kv, clock: clock}
}

// GenerateCode draws a fresh pairing code from the system RNG. The
// server offers this for clients that cannot generate locally.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Claim registers a device against a code. Claiming a code already
// held by another device fails with ErrCodeInUse; re-claiming with
// the same device ID resets the TTL.
func (s *Service) Claim(ctx context.Context, code, deviceID, deviceKind string) (Result, error) {
	if !codeRe.MatchString(code) {
		return Result{}, ErrBadCode
	}

	existing, err := s.load(ctx, code)
	if err != nil && err != storage.ErrNotFound {
		return Result{}, err
	}
	if err == nil && existing.DeviceID != "" && existing.DeviceID != deviceID {
		return Result{}, ErrCodeInUse
	}

	entry := Entry{
		DeviceID:   deviceID,
		DeviceKind: deviceKind,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.store(ctx, code, entry); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusCreated}, nil
}

// Complete is the wizard half: it writes the webhook URL into the
// entry, creating it if the device has not claimed yet.
func (s *Service) Complete(ctx context.Context, code, webhookURL string, preferences map[string]string) (Result, error) {
	if !codeRe.MatchString(code) {
		return Result{}, ErrBadCode
	}

	entry, err := s.load(ctx, code)
	if err == storage.ErrNotFound {
		entry = Entry{CreatedAt: s.clock.Now().UTC()}
	} else if err != nil {
		return Result{}, err
	}

	entry.WebhookURL = webhookURL
	if preferences != nil {
		entry.Preferences = preferences
	}
	if err := s.store(ctx, code, entry); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusPaired}, nil
}

// Poll is the device half. Once the webhook URL is present the entry
// is deleted before returning, so a completed pairing is handed out
// exactly once; the next poll sees expired.
func (s *Service) Poll(ctx context.Context, code string) (Result, error) {
	if !codeRe.MatchString(code) {
		return Result{}, ErrBadCode
	}

	entry, err := s.load(ctx, code)
	if err == storage.ErrNotFound {
		return Result{Status: StatusExpired}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if entry.WebhookURL == "" {
		return Result{Status: StatusWaiting}, nil
	}

	deleteCtx, cancel := context.WithTimeout(ctx, kvTimeout)
	defer cancel()
	if err := s.kv.Delete(deleteCtx, keyPrefix+code); err != nil {
		return Result{}, errors.Wrap(err, "consuming pairing entry")
	}
	return Result{Status: StatusPaired, WebhookURL: entry.WebhookURL}, nil
}

func (s *Service) load(ctx context.Context, code string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, kvTimeout)
	defer cancel()

	value, err := s.kv.Get(ctx, keyPrefix+code)
	if err != nil {
		if err == storage.ErrNotFound {
			return Entry{}, err
		}
		return Entry{}, errors.Wrap(err, "reading pairing entry")
	}
	var entry Entry
	if err := json.Unmarshal(value, &entry); err != nil {
		return Entry{}, errors.Wrap(err, "decoding pairing entry")
	}
	return entry, nil
}

func (s *Service) store(ctx context.Context, code string, entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encoding pairing entry")
	}
	ctx, cancel := context.WithTimeout(ctx, kvTimeout)
	defer cancel()
	return errors.Wrap(s.kv.Set(ctx, keyPrefix+code, value, EntryTTL), "writing pairing entry")
}
