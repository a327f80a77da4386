// Package parameter implements ParameterService: incremental full-set
// download, set-with-ack, and per-name/wildcard change observers, per spec
// §4.6.
//
// Grounded on original_source/dronesdk/parameters/manager.py.
package parameter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/openskylab/groundlink/groundlinkerr"
	"github.com/openskylab/groundlink/mavbus"
)

const (
	waitReadyPollInterval = 100 * time.Millisecond // 10 Hz, per spec §5
	setPollInterval       = 100 * time.Millisecond
	setPollWindow         = 1 * time.Second
	defaultSetRetries     = 3
)

// rawSender is the subset of transport.Transport the service needs: send a
// pre-built message and check liveness.
type rawSender interface {
	Send(msg message.Message) error
	Alive() bool
}

type observer struct {
	id uuid.UUID
	fn func(name string, value float32)
}

// Service is a case-insensitive (stored uppercase) name -> float32 map
// synchronized with the vehicle's parameter set.
type Service struct {
	transport rawSender
	mu        sync.RWMutex
	values    map[string]float32
	seen      map[string]bool
	count     int
	countSet  bool

	obsMu      sync.Mutex
	byName     map[string][]observer
	wildcard   []observer
	limiter    *rate.Limiter
}

// New constructs a Service sending requests through transport.
func New(transport rawSender) *Service {
	return &Service{
		transport: transport,
		values:    make(map[string]float32),
		seen:      make(map[string]bool),
		byName:    make(map[string][]observer),
		limiter:   rate.NewLimiter(rate.Every(setPollInterval), 1),
	}
}

// Attach subscribes to PARAM_VALUE on bus.
func (s *Service) Attach(bus *mavbus.Bus) {
	bus.SubscribeMessage("PARAM_VALUE", mavbus.PriorityNormal, s.onParamValue)
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimRight(name, "\x00"))
}

func (s *Service) onParamValue(evt mavbus.MessageEvent) {
	msg, ok := evt.Message.(*ardupilotmega.MessageParamValue)
	if !ok {
		return
	}
	name := normalize(msg.ParamId)

	s.mu.Lock()
	previous, had := s.values[name]
	changed := !had || previous != msg.ParamValue
	s.values[name] = msg.ParamValue
	s.seen[name] = true
	if !s.countSet {
		s.count = int(msg.ParamCount)
		s.countSet = true
	}
	s.mu.Unlock()

	if changed {
		s.notify(name, msg.ParamValue)
	}
}

func (s *Service) notify(name string, value float32) {
	s.obsMu.Lock()
	handlers := append(append([]observer{}, s.byName[name]...), s.wildcard...)
	s.obsMu.Unlock()
	for _, o := range handlers {
		o.fn(name, value)
	}
}

// Subscribe registers fn for changes to name (normalized). Returns an
// unsubscribe func.
func (s *Service) Subscribe(name string, fn func(name string, value float32)) func() {
	name = normalize(name)
	s.obsMu.Lock()
	o := observer{id: uuid.New(), fn: fn}
	s.byName[name] = append(s.byName[name], o)
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		s.byName[name] = removeObserver(s.byName[name], o.id)
	}
}

// SubscribeAll registers fn for every parameter change.
func (s *Service) SubscribeAll(fn func(name string, value float32)) func() {
	s.obsMu.Lock()
	o := observer{id: uuid.New(), fn: fn}
	s.wildcard = append(s.wildcard, o)
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		s.wildcard = removeObserver(s.wildcard, o.id)
	}
}

func removeObserver(list []observer, id uuid.UUID) []observer {
	for i, o := range list {
		if o.id == id {
			out := make([]observer, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			return out
		}
	}
	return list
}

// Initialize issues PARAM_REQUEST_LIST to begin the full-set download.
func (s *Service) Initialize() error {
	return s.transport.Send(&ardupilotmega.MessageParamRequestList{})
}

// IsLoaded reports |seen| >= count && count > 0, per spec §4.6.
func (s *Service) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countSet && s.count > 0 && len(s.seen) >= s.count
}

// WaitReady polls IsLoaded at 10 Hz until true, ctx is done, timeout
// elapses (ErrTimeout), or the transport dies (ErrNotConnected).
func (s *Service) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if s.IsLoaded() {
			return nil
		}
		if !s.transport.Alive() {
			return groundlinkerr.ErrNotConnected
		}
		if time.Now().After(deadline) {
			return groundlinkerr.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitReadyPollInterval):
		}
	}
}

// Get returns the stored value for name (normalized), or ErrNotFound.
func (s *Service) Get(name string) (float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[normalize(name)]
	if !ok {
		return 0, groundlinkerr.ErrNotFound
	}
	return v, nil
}

// Set sends PARAM_SET for name=value (value round-tripped through 32-bit
// precision per spec §3), then polls the stored value every 100ms for up
// to 1s, retrying the send up to retries times (default 3 when retries<=0).
// Returns (true, nil) on success, (false, nil) on exhausted retries —
// per spec §7, Timeout on a parameter set returns false rather than an
// error.
func (s *Service) Set(ctx context.Context, name string, value float32, retries int) (bool, error) {
	if retries <= 0 {
		retries = defaultSetRetries
	}
	name = normalize(name)
	target := value // already float32: the 32-bit round-trip spec §3 calls for.

	for attempt := 0; attempt < retries; attempt++ {
		if !s.transport.Alive() {
			return false, groundlinkerr.ErrNotConnected
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return false, err
		}
		if err := s.transport.Send(&ardupilotmega.MessageParamSet{
			ParamId:    name,
			ParamValue: target,
		}); err != nil {
			return false, err
		}

		deadline := time.Now().Add(setPollWindow)
		for time.Now().Before(deadline) {
			if v, err := s.Get(name); err == nil && v == target {
				return true, nil
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(setPollInterval):
			}
		}
	}
	return false, nil
}
