// Package wire defines the newline-delimited JSON command protocol spoken
// between the voice client and the scene-host listener. One request line is
// answered by exactly one response line on the same connection, in order.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action names carried on the wire.
const (
	ActionActivatePair = "activate_pair"
	ActionActivateVset = "activate_vset"
	ActionPing         = "ping"
)

// Error codes returned in Response.Error.
const (
	ErrInvalidJSON     = "invalid_json"
	ErrUnauthorized    = "unauthorized"
	ErrMissingVsetName = "missing_vset_name"
	ErrMissingName     = "missing_name"
	ErrUnknownAction   = "unknown_action"
	ErrInvalidAck      = "invalid_ack"
)

// Request is one command message. Group/Name are used by activate_pair,
// VsetName by activate_vset. Token is the optional shared secret.
type Request struct {
	Action   string `json:"action"`
	Group    string `json:"group,omitempty"`
	Name     string `json:"name,omitempty"`
	VsetName string `json:"vset_name,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Response is the per-request acknowledgment. Ok reports whether the action
// was accepted for execution, never whether it was executed.
type Response struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Pong  bool   `json:"pong,omitempty"`
}

// EncodeLine marshals v and appends the line terminator.
func EncodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses one request line. Leading and trailing whitespace is
// tolerated; the payload must be a single JSON object.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	s := strings.TrimSpace(string(line))
	if s == "" {
		return req, fmt.Errorf("wire: empty line")
	}
	if err := json.Unmarshal([]byte(s), &req); err != nil {
		return req, fmt.Errorf("wire: decode request: %w", err)
	}
	return req, nil
}

// DecodeResponse parses one acknowledgment line.
func DecodeResponse(line []byte) (Response, error) {
	var resp Response
	s := strings.TrimSpace(string(line))
	if s == "" {
		return resp, fmt.Errorf("wire: empty ack")
	}
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		return resp, fmt.Errorf("wire: decode response: %w", err)
	}
	return resp, nil
}
