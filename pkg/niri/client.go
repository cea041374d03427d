// Package niri is a minimal client for the niri compositor's IPC socket.
package niri

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrNotRunning = errors.New("niri might not be running")

type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Connect dials the socket advertised by the niri session.
func Connect() (*Client, error) {
	socketPath := os.Getenv("NIRI_SOCKET")
	if socketPath == "" {
		return nil, fmt.Errorf("NIRI_SOCKET is not set, %w", ErrNotRunning)
	}

	return ConnectTo(socketPath)
}

func ConnectTo(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Request writes one JSON request line and returns the reply. A reply
// carrying an "Err" member is surfaced as an error.
func (c *Client) Request(request string) (string, error) {
	if _, err := c.conn.Write([]byte(request + "\n")); err != nil {
		return "", fmt.Errorf("write to niri socket: %w", err)
	}

	reply, err := c.ReadLine()
	if err != nil {
		return "", err
	}
	if e := gjson.Get(reply, "Err"); e.Exists() {
		return "", fmt.Errorf("niri: %s", e.String())
	}

	return reply, nil
}

func (c *Client) ReadLine() (string, error) {
	str, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read from niri socket: %w", err)
	}
	return strings.TrimSuffix(str, "\n"), nil
}
