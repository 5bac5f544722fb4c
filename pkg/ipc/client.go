package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Client talks to a Server over newline-delimited JSON-RPC, matching
// scenex's own command surface (LoadConfig, SetRequired, RequiredView,
// Execute, Shutdown). The tasks and steps views arrive in LoadConfig's
// result.
type Client struct {
	writer io.Writer
	reader *bufio.Scanner
	nextID int
	mu     sync.Mutex

	pending map[int]chan *Message

	// Events receives every server-pushed notification.
	Events chan *Message

	done chan struct{}
}

// NewClient creates a Client reading from r and writing to w. Call Listen
// in a goroutine before issuing requests.
func NewClient(r io.Reader, w io.Writer) *Client {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	return &Client{
		writer:  w,
		reader:  scanner,
		pending: make(map[int]chan *Message),
		Events:  make(chan *Message, 64),
		done:    make(chan struct{}),
	}
}

// Listen reads server messages until the pipe closes.
func (c *Client) Listen() {
	defer close(c.done)
	for c.reader.Scan() {
		line := c.reader.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.ID != nil {
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			if ok {
				delete(c.pending, *msg.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- &msg
			}
			continue
		}
		if msg.Method != "" {
			select {
			case c.Events <- &msg:
			default:
			}
		}
	}
}

// Done closes when Listen returns (the underlying pipe closed).
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) request(method string, params any) (*Message, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan *Message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		rawParams = b
	}

	data, err := json.Marshal(Message{JSONRPC: "2.0", ID: &id, Method: method, Params: rawParams})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.mu.Lock()
	_, werr := fmt.Fprintf(c.writer, "%s\n", data)
	c.mu.Unlock()
	if werr != nil {
		return nil, fmt.Errorf("write request: %w", werr)
	}

	resp := <-ch
	if resp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp, nil
}

// LoadConfig calls load_config and returns the raw result for the caller
// to unmarshal (tasks/steps views).
func (c *Client) LoadConfig(path string) (json.RawMessage, error) {
	resp, err := c.request(MethodLoadConfig, LoadConfigParams{Path: path})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// SetRequired calls set_required.
func (c *Client) SetRequired(values map[string]string) error {
	_, err := c.request(MethodSetRequired, SetRequiredParams{Values: values})
	return err
}

// RequiredView calls required_view and returns the raw result.
func (c *Client) RequiredView() (json.RawMessage, error) {
	resp, err := c.request(MethodRequiredView, nil)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Execute calls execute and blocks until the run completes.
func (c *Client) Execute() error {
	_, err := c.request(MethodExecute, nil)
	return err
}

// Shutdown calls shutdown.
func (c *Client) Shutdown() error {
	_, err := c.request(MethodShutdown, nil)
	return err
}
