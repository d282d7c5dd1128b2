// Package tools implements the MCP tool handlers for the graph engine and
// the conversation summary pipeline.
//
// Each tool follows the same shape:
// - A struct holding its dependencies, injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Every result is a JSON envelope: {"success":true,"data":...} on success,
// {"success":false,"error":...,"code":...,"category":...} on failure.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/mark3labs/mcp-go/mcp"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

type envelope struct {
	Success  bool   `json:"success"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
}

// success wraps data in the success envelope.
func success(data any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(envelope{Success: true, Data: data})
	if err != nil {
		return failure(faults.Storage("encode result", err))
	}
	return mcp.NewToolResultText(string(b)), nil
}

// failure converts err into the failure envelope. Errors without a code
// are reported as storage failures.
func failure(err error) (*mcp.CallToolResult, error) {
	var fe *faults.Error
	if !errors.As(err, &fe) {
		fe = &faults.Error{Code: faults.StorageError, Err: err}
	}
	b, _ := json.Marshal(envelope{
		Error:    err.Error(),
		Code:     fe.Code.Name(),
		Category: string(fe.Code.Category()),
	})
	res := mcp.NewToolResultText(string(b))
	res.IsError = true
	return res, nil
}

func invalidArg(format string, args ...any) (*mcp.CallToolResult, error) {
	return failure(faults.New(faults.InvalidArgument, format, args...))
}

// requiredString extracts a non-blank string argument.
func requiredString(req mcp.CallToolRequest, key string) (string, error) {
	v := strings.TrimSpace(req.GetString(key, ""))
	if v == "" {
		return "", faults.New(faults.InvalidArgument, "'%s' is required", key)
	}
	return v, nil
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// timeArg parses an optional RFC 3339 argument. A missing argument yields
// the zero time.
func timeArg(req mcp.CallToolRequest, key string) (time.Time, error) {
	s := strings.TrimSpace(req.GetString(key, ""))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, faults.Wrap(faults.InvalidArgument, err, "'%s' must be an RFC 3339 timestamp", key)
	}
	return t, nil
}

// listArg accepts either a JSON array of strings or a comma-separated
// string.
func listArg(req mcp.CallToolRequest, key string) ([]string, error) {
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil, nil
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, faults.New(faults.InvalidArgument, "'%s' must contain only strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, faults.New(faults.InvalidArgument, "'%s' must be a list of strings", key)
	}
}

// jsonArg returns an argument as raw JSON. A string argument is taken to
// hold JSON text already; anything else is re-encoded.
func jsonArg(req mcp.CallToolRequest, key string) ([]byte, error) {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return nil, faults.New(faults.InvalidArgument, "'%s' is required", key)
	}
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding '%s': %w", key, err)
	}
	return b, nil
}
