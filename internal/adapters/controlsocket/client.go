package controlsocket

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

// Client is a thin JSON-RPC 2.0 client over the control socket: one
// connection per call, matching the server's one-request-per-connection
// framing.
type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 30 * time.Second}
}

// Call sends method with params marshaled as the request body and unmarshals
// the result into out (pass a pointer, or nil to discard the result).
func (c *Client) Call(method string, params interface{}, out interface{}) error {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return fmt.Errorf("controlsocket: dialing %s: %w", c.socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	var rawParams json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("controlsocket: encoding params: %w", err)
		}
		rawParams = encoded
	}

	req := Request{JSONRPC: jsonrpcVersion, Method: method, Params: rawParams, ID: json.RawMessage("1")}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("controlsocket: encoding request: %w", err)
	}

	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("controlsocket: writing request: %w", err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	respBody, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("controlsocket: reading response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("controlsocket: decoding response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("controlsocket: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}

	if out == nil || resp.Result == nil {
		return nil
	}
	resultBytes, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("controlsocket: re-encoding result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("controlsocket: decoding result: %w", err)
	}
	return nil
}
