package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/sweeney/relay-lights/internal/control"
	"github.com/sweeney/relay-lights/internal/logic"
)

// Commander accepts commands for the control loop.
type Commander interface {
	Submit(ctx context.Context, req control.Request) (logic.CommandResult, error)
}

// CommandMessage is the JSON body accepted on the command topic.
// Value may be a string, number or bool.
type CommandMessage struct {
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// CommandReply is published on the command result topic.
type CommandReply struct {
	ID     string               `json:"id"`
	Result *logic.CommandResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// ParseCommand decodes a command message into a control request.
func ParseCommand(payload []byte) (control.Request, error) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return control.Request{}, fmt.Errorf("decode command: %w", err)
	}
	if msg.Command == "" {
		return control.Request{}, fmt.Errorf("decode command: missing command")
	}
	req := control.Request{ID: msg.ID, Source: "mqtt", Command: msg.Command}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if len(msg.Value) > 0 {
		v, err := rawToString(msg.Value)
		if err != nil {
			return control.Request{}, fmt.Errorf("decode command value: %w", err)
		}
		req.Value = v
	}
	return req, nil
}

func rawToString(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("unsupported value %s", raw)
}

// HandleCommand runs one command message and returns the reply payload.
func HandleCommand(ctx context.Context, cmd Commander, payload []byte) []byte {
	req, err := ParseCommand(payload)
	if err != nil {
		data, _ := json.Marshal(CommandReply{Error: err.Error()})
		return data
	}
	reply := CommandReply{ID: req.ID}
	res, err := cmd.Submit(ctx, req)
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.Result = &res
	}
	data, _ := json.Marshal(reply)
	return data
}
