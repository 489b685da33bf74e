// Package repl implements the interactive loop: it reads one line at a time,
// runs control commands locally and sends everything else to the agent.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/zhouzirui/tuft-client/internal/model/chat"
	model "github.com/zhouzirui/tuft-client/internal/model/journal"
	"github.com/zhouzirui/tuft-client/internal/service/extract"
	"github.com/zhouzirui/tuft-client/internal/service/format"
	"github.com/zhouzirui/tuft-client/internal/service/journal"
	"github.com/zhouzirui/tuft-client/internal/service/session"
)

// Prompt is printed before every read.
const Prompt = ">> "

const usage = "使い方: debug on|off|raw|list|open <name>"

const maxLineBytes = 1 << 20

// SessionClient sends conversational turns.
type SessionClient interface {
	SendTurn(ctx context.Context, req chat.TurnRequest, rec session.Recorder) (session.Exchange, error)
}

// Journal is the debug journal the REPL writes to and browses.
type Journal interface {
	session.Recorder
	List() ([]string, error)
	Open(name string) (model.Entry, error)
	Dir() string
}

// State is everything the loop owns for the lifetime of the process.
type State struct {
	Session    chat.Session
	Journaling bool
	RawOutput  bool

	listing []string
}

// Dispatcher routes input lines.
type Dispatcher struct {
	client    SessionClient
	journal   Journal
	formatter *format.Formatter
	out       io.Writer
	logger    *zap.Logger
	opening   string

	errorStyle  lipgloss.Style
	statusStyle lipgloss.Style
	agentStyle  lipgloss.Style
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the operator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithOpeningLine sets the persona greeting printed by Welcome.
func WithOpeningLine(line string) Option {
	return func(d *Dispatcher) {
		d.opening = strings.TrimSpace(line)
	}
}

// NewDispatcher writes all user-facing output to out. Styling is only
// applied when out is a terminal.
func NewDispatcher(client SessionClient, j Journal, formatter *format.Formatter, out io.Writer, opts ...Option) *Dispatcher {
	renderer := lipgloss.NewRenderer(out)
	d := &Dispatcher{
		client:      client,
		journal:     j,
		formatter:   formatter,
		out:         out,
		logger:      zap.NewNop(),
		errorStyle:  renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		statusStyle: renderer.NewStyle().Foreground(lipgloss.Color("8")),
		agentStyle:  renderer.NewStyle().Foreground(lipgloss.Color("14")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Welcome prints the banner for a freshly created session.
func (d *Dispatcher) Welcome(state *State) {
	d.println(d.paint(d.statusStyle, "スレッドを作成しました。Thread ID: "+state.Session.ID))
	d.println("対話型クライアントへようこそ！")
	d.println("終了するには 'exit' と入力してください。" + usage)
	if d.opening != "" {
		d.println(d.paint(d.agentStyle, d.formatter.AgentName()+": "+d.opening))
	}
	if state.Journaling {
		d.println(d.paint(d.statusStyle, "デバッグログ: ON (保存先: "+d.journal.Dir()+")"))
	}
}

// Run reads lines from in until exit or end of input. End of input is not
// an error. A line longer than maxLineBytes is reported and skipped.
func (d *Dispatcher) Run(ctx context.Context, state *State, in io.Reader) error {
	reader := bufio.NewReader(in)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(d.out, Prompt)
		line, tooLong, err := readLine(reader)
		if errors.Is(err, io.EOF) {
			d.println("")
			return nil
		}
		if err != nil {
			return err
		}

		if tooLong {
			d.logger.Warn("input line too long, skipped", zap.Int("limit", maxLineBytes))
			d.println(d.paint(d.errorStyle, format.ErrorLine(fmt.Sprintf("入力が長すぎます (上限 %d バイト)", maxLineBytes))))
			continue
		}
		if d.Handle(ctx, state, line) {
			return nil
		}
	}
}

// readLine returns the next line without its terminator. The rest of an
// oversized line is drained so the next read starts on a fresh line.
func readLine(r *bufio.Reader) (string, bool, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineBytes+len("\r\n") {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(buf) > 0 || tooLong):
			// final line without a trailing newline
		case err != nil:
			return "", false, err
		}

		line := strings.TrimSuffix(string(buf), "\n")
		return strings.TrimSuffix(line, "\r"), tooLong, nil
	}
}

// Handle processes one line and reports whether the loop should stop.
func (d *Dispatcher) Handle(ctx context.Context, state *State, line string) bool {
	cmd := Parse(line)

	switch cmd.Kind {
	case KindEmpty:
	case KindExit:
		d.println("対話を終了します。")
		return true
	case KindTurn:
		d.turn(ctx, state, cmd.Text)
	case KindDebugStatus:
		d.println(d.paint(d.statusStyle, fmt.Sprintf("デバッグログ: %s / 生レスポンス表示: %s", onOff(state.Journaling), onOff(state.RawOutput))))
	case KindDebugOn:
		state.Journaling = true
		d.println(d.paint(d.statusStyle, "デバッグログを有効にしました (保存先: "+d.journal.Dir()+")"))
	case KindDebugOff:
		state.Journaling = false
		d.println(d.paint(d.statusStyle, "デバッグログを無効にしました"))
	case KindDebugRaw:
		state.RawOutput = !state.RawOutput
		d.println(d.paint(d.statusStyle, "生レスポンス表示: "+onOff(state.RawOutput)))
	case KindDebugList:
		d.list(state)
	case KindDebugOpen:
		d.open(state, cmd.Arg)
	case KindDebugUnknown:
		d.println(d.paint(d.errorStyle, "不明なデバッグコマンド: "+cmd.Arg))
		d.println(usage)
	}
	return false
}

func (d *Dispatcher) turn(ctx context.Context, state *State, text string) {
	var rec session.Recorder
	if state.Journaling {
		rec = d.journal
	}

	ex, err := d.client.SendTurn(ctx, chat.TurnRequest{SessionID: state.Session.ID, Text: text}, rec)
	if err != nil {
		d.println(d.paint(d.errorStyle, format.Error(err)))
	} else if state.RawOutput {
		d.println(format.Indent(ex.Response))
	} else {
		reply := extract.Extract(ex.Response)
		out := d.formatter.Format(reply)
		if reply.IsError() {
			out = d.paint(d.errorStyle, out)
		} else if reply.IsStructured() {
			out = d.paint(d.agentStyle, out)
		}
		d.println(out)
	}

	if ex.JournalFile != "" {
		d.println(d.paint(d.statusStyle, "デバッグログを保存しました: "+ex.JournalFile))
	}
}

func (d *Dispatcher) list(state *State) {
	names, err := d.journal.List()
	if err != nil {
		d.logger.Warn("journal list failed", zap.Error(err))
		d.println(d.paint(d.errorStyle, format.Error(err)))
		return
	}

	state.listing = names
	if len(names) == 0 {
		d.println("デバッグログはまだありません")
		return
	}
	for i, name := range names {
		d.println(fmt.Sprintf("%3d. %s", i+1, name))
	}
}

func (d *Dispatcher) open(state *State, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		d.println(usage)
		return
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 1 && n <= len(state.listing) {
		name = state.listing[n-1]
	}

	entry, err := d.journal.Open(name)
	switch {
	case errors.Is(err, journal.ErrNotFound):
		d.println(d.paint(d.errorStyle, "デバッグログが見つかりません: "+name))
	case err != nil:
		d.logger.Warn("journal open failed", zap.String("name", name), zap.Error(err))
		d.println(d.paint(d.errorStyle, format.Error(err)))
	default:
		d.println(format.Indent(entry))
	}
}

// paint styles single-line text. Multi-line blocks are left alone so the
// renderer does not pad them into a rectangle.
func (d *Dispatcher) paint(style lipgloss.Style, s string) string {
	if strings.Contains(s, "\n") {
		return s
	}
	return style.Render(s)
}

func (d *Dispatcher) println(s string) {
	fmt.Fprintln(d.out, s)
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
