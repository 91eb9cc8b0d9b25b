// Command agentctl-tui is a terminal dashboard for the ManagementAPI: a
// live agents/jobs table fed by the StatusStream WebSocket (C13), plus a
// command line for starting and stopping agents over the REST routes (C9).
//
// Usage:
//
//	agentctl-tui -api http://localhost:8420 -token $KOLOSAL_TOKEN
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8420", "ManagementAPI base URL")
	token := flag.String("token", os.Getenv("KOLOSAL_TOKEN"), "bearer token for the ManagementAPI")
	flag.Parse()

	client := &apiClient{base: strings.TrimRight(*apiURL, "/"), token: *token, http: &http.Client{Timeout: 10 * time.Second}}

	p := tea.NewProgram(newModel(client), tea.WithAltScreen())
	stream := newStatusStream(client, p)
	go stream.run()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentctl-tui: %v\n", err)
		os.Exit(1)
	}
}

// ─────────────────────────────────────────────────────
// API client — REST + the status stream WebSocket
// ─────────────────────────────────────────────────────

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func (c *apiClient) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func (c *apiClient) startAgent(ctx context.Context, id string) error {
	return c.simpleCall(ctx, http.MethodPut, "/v1/agents/"+url.PathEscape(id)+"/start")
}

func (c *apiClient) stopAgent(ctx context.Context, id string) error {
	return c.simpleCall(ctx, http.MethodPut, "/v1/agents/"+url.PathEscape(id)+"/stop")
}

func (c *apiClient) simpleCall(ctx context.Context, method, path string) error {
	resp, err := c.do(ctx, method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error.Message != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body.Error.Message)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// wireSystemStatus mirrors internal/api's §6C SystemStatus JSON shape.
type wireSystemStatus struct {
	LLMBackend struct {
		Running bool `json:"running"`
		Healthy bool `json:"healthy"`
	} `json:"llm_backend"`
	Agents struct {
		Total   int `json:"total"`
		Running int `json:"running"`
	} `json:"agents"`
	Jobs struct {
		Pending        int `json:"pending"`
		Running        int `json:"running"`
		CompletedTotal int `json:"completed_total"`
		FailedTotal    int `json:"failed_total"`
	} `json:"jobs"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	LastHealthCheck   int64   `json:"last_health_check_unix"`
}

// statusStream owns the WebSocket connection to /v1/system/status/stream
// and forwards each frame into the Bubble Tea program as a statusMsg,
// reconnecting with backoff if the connection drops.
type statusStream struct {
	client  *apiClient
	program *tea.Program
}

func newStatusStream(client *apiClient, program *tea.Program) *statusStream {
	return &statusStream{client: client, program: program}
}

func (s *statusStream) run() {
	backoff := time.Second
	for {
		if err := s.connectOnce(); err != nil {
			s.program.Send(streamErrMsg{err: err})
		}
		time.Sleep(backoff)
		if backoff < 15*time.Second {
			backoff *= 2
		}
	}
}

func (s *statusStream) connectOnce() error {
	wsURL := strings.Replace(s.client.base, "http", "ws", 1) + "/v1/system/status/stream"
	if s.client.token != "" {
		wsURL += "?token=" + url.QueryEscape(s.client.token)
	}

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "tui closed")

	for {
		var status wireSystemStatus
		if err := wsjson.Read(ctx, conn, &status); err != nil {
			return err
		}
		s.program.Send(statusMsg{status: status})
	}
}

// ─────────────────────────────────────────────────────
// Bubble Tea messages
// ─────────────────────────────────────────────────────

type statusMsg struct{ status wireSystemStatus }
type streamErrMsg struct{ err error }
type commandResultMsg struct {
	ok  bool
	msg string
}

// ─────────────────────────────────────────────────────
// Styles
// ─────────────────────────────────────────────────────

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	metricStyle = lipgloss.NewStyle().Foreground(mutedColor)
	okStyle     = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// ─────────────────────────────────────────────────────
// Model
// ─────────────────────────────────────────────────────

type model struct {
	client  *apiClient
	table   table.Model
	input   textinput.Model
	status  wireSystemStatus
	lastMsg string
	lastOK  bool
	width   int
}

func newModel(client *apiClient) model {
	columns := []table.Column{
		{Title: "Metric", Width: 22},
		{Title: "Value", Width: 20},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(7),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(mutedColor).BorderBottom(true).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(primaryColor)
	t.SetStyles(styles)

	ti := textinput.New()
	ti.Placeholder = "start <agent-id> | stop <agent-id>"
	ti.Focus()
	ti.CharLimit = 128
	ti.Width = 50

	return model{client: client, table: t, input: ti}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			cmd := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if cmd == "" {
				return m, nil
			}
			return m, runCommand(m.client, cmd)
		}

	case statusMsg:
		m.status = msg.status
		m.table.SetRows(statusRows(msg.status))
		return m, nil

	case streamErrMsg:
		m.lastOK = false
		m.lastMsg = "status stream: " + msg.err.Error()
		return m, nil

	case commandResultMsg:
		m.lastOK = msg.ok
		m.lastMsg = msg.msg
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	header := headerStyle.Render(" agentctl-tui — multi-agent orchestration runtime ")

	var feedback string
	switch {
	case m.lastMsg == "":
		feedback = ""
	case m.lastOK:
		feedback = okStyle.Render("✓ " + m.lastMsg)
	default:
		feedback = errStyle.Render("✗ " + m.lastMsg)
	}

	footer := footerStyle.Render("enter a command and press Enter · ctrl+c to quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		m.table.View(),
		"",
		m.input.View(),
		feedback,
		footer,
	)
}

func statusRows(s wireSystemStatus) []table.Row {
	return []table.Row{
		{"llm backend running", boolStr(s.LLMBackend.Running)},
		{"llm backend healthy", boolStr(s.LLMBackend.Healthy)},
		{"agents total", fmt.Sprintf("%d", s.Agents.Total)},
		{"agents running", fmt.Sprintf("%d", s.Agents.Running)},
		{"jobs pending", fmt.Sprintf("%d", s.Jobs.Pending)},
		{"jobs running", fmt.Sprintf("%d", s.Jobs.Running)},
		{"jobs completed", fmt.Sprintf("%d", s.Jobs.CompletedTotal)},
		{"jobs failed", fmt.Sprintf("%d", s.Jobs.FailedTotal)},
		{"avg response ms", fmt.Sprintf("%.1f", s.AvgResponseTimeMs)},
	}
}

func boolStr(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// runCommand parses a "start <id>" / "stop <id>" line and dispatches it as
// a Bubble Tea command so the HTTP round trip never blocks the UI loop.
func runCommand(client *apiClient, line string) tea.Cmd {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return func() tea.Msg {
			return commandResultMsg{ok: false, msg: "usage: start <agent-id> | stop <agent-id>"}
		}
	}
	verb, id := parts[0], parts[1]

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var err error
		switch verb {
		case "start":
			err = client.startAgent(ctx, id)
		case "stop":
			err = client.stopAgent(ctx, id)
		default:
			return commandResultMsg{ok: false, msg: fmt.Sprintf("unknown command %q", verb)}
		}
		if err != nil {
			return commandResultMsg{ok: false, msg: fmt.Sprintf("%s %s: %v", verb, id, err)}
		}
		return commandResultMsg{ok: true, msg: fmt.Sprintf("%s %s", verb, id)}
	}
}
