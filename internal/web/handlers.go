package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/cjeanneret/JoyStep/internal/debug"
	"github.com/cjeanneret/JoyStep/internal/hw/adc"
	"github.com/cjeanneret/JoyStep/internal/logic/joystick"
	"github.com/cjeanneret/JoyStep/internal/logic/motion"
)

// MaxJoystickValue is the largest raw sample accepted by POST /joystick.
const MaxJoystickValue = 4095

const maxRequestBytes = 1 << 10

// StatusFunc returns the current per-axis state.
type StatusFunc func() []motion.AxisStatus

// JoystickSetter moves a software joystick. *adc.Virtual implements it.
type JoystickSetter interface {
	Set(channel, value int) error
}

// AxisConfig describes one axis for GET /config.
type AxisConfig struct {
	Name        string               `json:"name"`
	Driver      string               `json:"driver"`
	DriveMode   string               `json:"drive_mode,omitempty"`
	Channel     int                  `json:"channel"`
	StepsPerRev int                  `json:"steps_per_rev"`
	Joystick    joystick.Calibration `json:"joystick"`
}

// ConfigView is the read-only configuration served by GET /config.
type ConfigView struct {
	TickMs     int          `json:"tick_ms"`
	MinDelayMs int          `json:"min_delay_ms"`
	MaxDelayMs int          `json:"max_delay_ms"`
	Output     string       `json:"output"`
	Input      string       `json:"input"`
	Axes       []AxisConfig `json:"axes"`
}

// JoystickRequest is the body of POST /joystick.
type JoystickRequest struct {
	Channel *int `json:"channel"`
	Value   *int `json:"value"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Status      StatusFunc
	Joystick    JoystickSetter // nil when the joystick is real hardware
	Config      ConfigView
}

// NewHandlers creates handlers with the given dependencies.
// If joystick is nil, POST /joystick returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, status StatusFunc, joystick JoystickSetter, cfg ConfigView) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Status:      status,
		Joystick:    joystick,
		Config:      cfg,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Error(fmt.Errorf("web: encode response: %w", err))
	}
}

// HandleConfig returns the running configuration as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Config)
}

// HandleStatus returns a snapshot of every axis as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.Status == nil {
		http.Error(w, "status not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"axes": h.Status()})
}

// HandleJoystick handles POST /joystick to move the virtual joystick.
func (h *Handlers) HandleJoystick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Joystick == nil {
		http.Error(w, "virtual joystick not configured", http.StatusServiceUnavailable)
		return
	}

	var req JoystickRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Channel == nil || req.Value == nil {
		http.Error(w, "channel and value are required", http.StatusBadRequest)
		return
	}
	if *req.Value < 0 || *req.Value > MaxJoystickValue {
		http.Error(w, fmt.Sprintf("value must be between 0 and %d", MaxJoystickValue), http.StatusBadRequest)
		return
	}

	if err := h.Joystick.Set(*req.Channel, *req.Value); err != nil {
		if errors.Is(err, adc.ErrUnknownChannel) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	debug.Live("Virtual joystick channel %d = %d", *req.Channel, *req.Value)

	writeJSON(w, http.StatusOK, map[string]int{"channel": *req.Channel, "value": *req.Value})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// PublishAxes polls status every interval and broadcasts the snapshot when
// it changed and someone is listening. It returns when ctx is done.
func PublishAxes(ctx context.Context, b *StatusBroadcaster, status StatusFunc, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []motion.AxisStatus
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.Clients() == 0 {
				continue
			}
			cur := status()
			if reflect.DeepEqual(cur, last) {
				continue
			}
			b.BroadcastAxes(cur)
			last = cur
		}
	}
}
