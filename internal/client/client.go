package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/directchat/internal/chat"
)

// DefaultExitWait bounds how long the client waits for the server to close
// the stream after a logout.
const DefaultExitWait = 2 * time.Second

var (
	// ErrRejected is returned when the server refuses a registration.
	ErrRejected = errors.New("registration rejected")

	errLoggedOut    = errors.New("logged out")
	errStreamClosed = errors.New("stream closed by server")
)

// Config holds the client settings.
type Config struct {
	// ServerURL is the relay base URL, e.g. http://localhost:8080.
	ServerURL string
	// Username is used without prompting when set.
	Username string
	ExitWait time.Duration
}

// Client is one interactive chat session bound to an input and an output.
type Client struct {
	cfg    Config
	http   *http.Client
	dialer *websocket.Dialer
	logger *slog.Logger

	in    *bufio.Scanner
	outMu sync.Mutex
	out   io.Writer

	roster Roster
	name   string
	target string
}

// New creates a client reading commands from in and writing to out.
func New(cfg Config, in io.Reader, out io.Writer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ExitWait <= 0 {
		cfg.ExitWait = DefaultExitWait
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
		in:     bufio.NewScanner(in),
		out:    out,
	}
}

// Run registers, opens the chat stream and processes input until the user
// logs out, input ends or the server closes the stream. A logout or a normal
// server close returns nil.
func (c *Client) Run(ctx context.Context) error {
	resp, err := c.login(ctx)
	if err != nil {
		return err
	}
	c.roster.Update(resp.OnlineUsers)
	c.printf("Registered as %s. Online: %s\n", c.name, formatNames(resp.OnlineUsers))

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(chat.ClientMessage{Sender: c.name}); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = conn.Close() })
	defer stop()

	lines := make(chan string)
	go c.scan(gctx, lines)

	g.Go(func() error { return c.receive(conn) })
	g.Go(func() error { return c.input(gctx, conn, lines) })

	err = g.Wait()
	if errors.Is(err, errLoggedOut) || errors.Is(err, errStreamClosed) || errors.Is(err, context.Canceled) {
		c.printf("Goodbye.\n")
		return nil
	}
	return err
}

// login registers the configured username, or prompts until the server
// accepts one when none was configured.
func (c *Client) login(ctx context.Context) (chat.RegisterResponse, error) {
	name := c.cfg.Username
	interactive := name == ""

	for {
		if interactive {
			c.printf("Enter username: ")
			if !c.in.Scan() {
				return chat.RegisterResponse{}, io.EOF
			}
			name = strings.TrimSpace(c.in.Text())
			if name == "" {
				continue
			}
		}

		resp, err := c.Register(ctx, name)
		if err == nil {
			c.name = name
			return resp, nil
		}
		if !interactive || !errors.Is(err, ErrRejected) {
			return resp, err
		}
		c.printf("%v. Online: %s\n", err, formatNames(resp.OnlineUsers))
	}
}

// Register asks the server to reserve name.
func (c *Client) Register(ctx context.Context, name string) (chat.RegisterResponse, error) {
	body, err := json.Marshal(chat.RegisterRequest{Username: name})
	if err != nil {
		return chat.RegisterResponse{}, fmt.Errorf("encode registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL+"/register", bytes.NewReader(body))
	if err != nil {
		return chat.RegisterResponse{}, fmt.Errorf("create registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return chat.RegisterResponse{}, fmt.Errorf("register: %w", err)
	}
	defer res.Body.Close()

	var resp chat.RegisterResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return chat.RegisterResponse{}, fmt.Errorf("decode registration response (status %d): %w", res.StatusCode, err)
	}
	if !resp.Accepted {
		return resp, fmt.Errorf("%w: %s", ErrRejected, resp.Reason)
	}
	return resp, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(c.cfg.ServerURL, "http") + "/chat"
	conn, res, err := c.dialer.DialContext(ctx, url, nil)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	c.logger.Debug("chat stream opened", "url", url)
	return conn, nil
}

// scan forwards input lines until input ends or ctx is done.
func (c *Client) scan(ctx context.Context, lines chan<- string) {
	defer close(lines)
	for c.in.Scan() {
		select {
		case lines <- c.in.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) receive(conn *websocket.Conn) error {
	for {
		var msg chat.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errStreamClosed
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.printf("Disconnected: %s\n", closeErr.Text)
				if closeErr.Code == websocket.CloseTryAgainLater {
					return errStreamClosed
				}
				return fmt.Errorf("server closed stream: %w", err)
			}
			return fmt.Errorf("read: %w", err)
		}

		if msg.Kind == chat.KindPresence {
			c.roster.Update(msg.Online)
			c.logger.Debug("online list updated", "online", len(msg.Online))
			continue
		}
		if msg.Kind == chat.KindNotice && msg.Event == chat.EventLeft && msg.Subject == c.currentTarget() {
			c.printf("%s\n", Render(msg))
			c.printf("! %s went offline; choose another chat\n", msg.Subject)
			c.setTarget("")
			continue
		}
		c.printf("%s\n", Render(msg))
	}
}

func (c *Client) input(ctx context.Context, conn *websocket.Conn, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return c.logout(ctx, conn)
			}
			if err := c.handleLine(ctx, conn, line); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handleLine(ctx context.Context, conn *websocket.Conn, line string) error {
	cmd, err := ParseCommand(line)
	if err != nil {
		c.printf("! %v\n", err)
		return nil
	}

	switch cmd.Kind {
	case CmdHelp:
		c.printf("%s\n", HelpText)
	case CmdList:
		c.printf("Online: %s\n", formatNames(c.roster.Names()))
	case CmdExit:
		return c.logout(ctx, conn)
	case CmdChat:
		switch {
		case cmd.Arg == c.name:
			c.printf("! you cannot chat with yourself\n")
		case !c.roster.Contains(cmd.Arg):
			c.printf("! %s is not online\n", cmd.Arg)
		default:
			c.setTarget(cmd.Arg)
			c.printf("Now chatting with %s\n", cmd.Arg)
		}
	case CmdAll:
		if cmd.Arg != "" {
			return c.send(conn, chat.BroadcastToken, cmd.Arg)
		}
		c.setTarget(chat.BroadcastToken)
		c.printf("Next line will be broadcast to everyone\n")
	case CmdText:
		if cmd.Arg == "" {
			return nil
		}
		target := c.currentTarget()
		switch {
		case target == "":
			c.printf("! no chat selected; use /chat <user> or /all\n")
		case target != chat.BroadcastToken && !c.roster.Contains(target):
			c.printf("! %s is no longer online\n", target)
			c.setTarget("")
		case target == chat.BroadcastToken:
			// A bare /all covers a single line.
			c.setTarget("")
			return c.send(conn, target, cmd.Arg)
		default:
			return c.send(conn, target, cmd.Arg)
		}
	}
	return nil
}

func (c *Client) send(conn *websocket.Conn, recipient, content string) error {
	err := conn.WriteJSON(chat.ClientMessage{Sender: c.name, Recipient: recipient, Content: content})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// logout sends the logout token and waits for the server to close the
// stream, giving up after ExitWait.
func (c *Client) logout(ctx context.Context, conn *websocket.Conn) error {
	if err := c.send(conn, chat.LogoutToken, ""); err != nil {
		return err
	}
	c.logger.Debug("logout sent", "user", c.name)

	timer := time.NewTimer(c.cfg.ExitWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return errLoggedOut
}

func (c *Client) setTarget(target string) {
	c.outMu.Lock()
	c.target = target
	c.outMu.Unlock()
}

func (c *Client) currentTarget() string {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.target
}

func (c *Client) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
