package apitypes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ApiError represents an RFC 7807 (problem+json) error response.
type ApiError struct {
	// Status is the HTTP-style status code (e.g., 400, 404, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// --

type PingResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

// StatusResponse is a diagnostics snapshot of the driver.
type StatusResponse struct {
	Fault        string `json:"fault"`
	FaultPending bool   `json:"faultPending"`
	Buffered     int    `json:"buffered"`
	Capacity     int    `json:"capacity"`
	Overflows    uint64 `json:"overflows"`
	Frames       uint64 `json:"frames"`
	Shift        bool   `json:"shift"`
	CapsLock     bool   `json:"capsLock"`
	NumLock      bool   `json:"numLock"`
}

type LEDResponse struct {
	Leds uint8 `json:"leds"`
}

type EchoResponse struct {
	Reply string `json:"reply"`
}

type ResetResponse struct {
	BAT string `json:"bat"`
}

type DeviceIDResponse struct {
	ID string `json:"id"`
}

// FaultClearResponse carries the fault that was pending when the flag was cleared.
type FaultClearResponse struct {
	Fault string `json:"fault"`
}

// LEDRequest is the payload of the leds command.
type LEDRequest struct {
	Leds uint8 `json:"leds"`
}

// UnmarshalJSON accepts the mask as a number or a hex string (e.g., "0x04" or 4).
func (l *LEDRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Leds any `json:"leds"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Leds == nil {
		return fmt.Errorf("leds: missing")
	}
	val, err := ParseByteOrHex(raw.Leds)
	if err != nil {
		return fmt.Errorf("leds: %w", err)
	}
	l.Leds = val
	return nil
}

// ParseByteOrHex accepts either a JSON number or a hex string like "0x04".
func ParseByteOrHex(v any) (uint8, error) {
	switch val := v.(type) {
	case float64:
		if val < 0 || val > 255 {
			return 0, fmt.Errorf("value %v out of byte range", val)
		}
		return uint8(val), nil
	case string:
		s := strings.TrimSpace(val)
		base := 10
		if strings.HasPrefix(strings.ToLower(s), "0x") {
			s = s[2:]
			base = 16
		} else if strings.ContainsAny(s, "abcdefABCDEF") {
			base = 16
		}
		parsed, err := strconv.ParseUint(s, base, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid hex/numeric string %q: %w", val, err)
		}
		return uint8(parsed), nil
	default:
		return 0, fmt.Errorf("expected number or hex string, got %T", v)
	}
}
