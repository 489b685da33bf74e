package repl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/tuft-client/internal/model/chat"
	"github.com/zhouzirui/tuft-client/internal/service/format"
	"github.com/zhouzirui/tuft-client/internal/service/journal"
	"github.com/zhouzirui/tuft-client/internal/service/session"
)

// fakeTransport sits under a real session client so journaling goes through
// the same path as in production.
type fakeTransport struct {
	response any
	err      error
	turns    []string
}

func (f *fakeTransport) CreateThread(context.Context, map[string]any) (string, error) {
	return "thread-1", nil
}

func (f *fakeTransport) RunWait(_ context.Context, threadID string, _ any, _ string) (any, error) {
	f.turns = append(f.turns, threadID)
	return f.response, f.err
}

type harness struct {
	transport *fakeTransport
	store     *journal.Store
	out       *bytes.Buffer
	disp      *Dispatcher
	state     *State
}

func newHarness(t *testing.T, response any, err error) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{response: response, err: err},
		store:     journal.NewStore(filepath.Join(t.TempDir(), "debug_logs")),
		out:       &bytes.Buffer{},
	}
	client := session.NewClient(h.transport)
	h.disp = NewDispatcher(client, h.store, format.New("タフト"), h.out)
	h.state = &State{Session: chat.Session{ID: "thread-1"}}
	return h
}

func (h *harness) run(t *testing.T, input string) string {
	t.Helper()
	h.out.Reset()
	require.NoError(t, h.disp.Run(context.Background(), h.state, strings.NewReader(input)))
	return h.out.String()
}

const happyReply = `{"output":{"messages":[{"content":"hi","additional_kwargs":{"json_data":{"content":"元気だよ","emotion":"happy"}}}]}}`

func decoded(t *testing.T, body string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var raw any
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func TestRunFormattedTurn(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.transport.response = decoded(t, happyReply)

	out := h.run(t, "元気？\n")

	assert.Contains(t, out, ">> タフト (happy): 元気だよ\n")
	assert.Len(t, h.transport.turns, 1)
}

func TestRunEndOfInputIsNotAnError(t *testing.T) {
	h := newHarness(t, map[string]any{}, nil)

	out := h.run(t, "")
	assert.Equal(t, ">> \n", out)
}

func TestRunSkipsOversizedLine(t *testing.T) {
	h := newHarness(t, map[string]any{}, nil)
	input := strings.Repeat("a", 2*maxLineBytes) + "\nhello\nexit\n"

	out := h.run(t, input)

	assert.Contains(t, out, "エラー: 入力が長すぎます")
	assert.Contains(t, out, "対話を終了します。")
	assert.Len(t, h.transport.turns, 1)
}

func TestRunLastLineWithoutNewline(t *testing.T) {
	h := newHarness(t, map[string]any{}, nil)

	h.run(t, "hello\r\nagain")
	assert.Len(t, h.transport.turns, 2)
}

func TestReadLineOversizedAtEndOfInput(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(strings.Repeat("a", maxLineBytes+10)))

	line, tooLong, err := readLine(r)
	require.NoError(t, err)
	assert.True(t, tooLong)
	assert.Empty(t, line)

	_, _, err = readLine(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRunExit(t *testing.T) {
	h := newHarness(t, map[string]any{}, nil)

	out := h.run(t, "Exit\nnever sent\n")

	assert.Contains(t, out, "対話を終了します。")
	assert.Empty(t, h.transport.turns)
}

func TestRunSkipsEmptyLines(t *testing.T) {
	h := newHarness(t, map[string]any{}, nil)

	h.run(t, "\n   \n")
	assert.Empty(t, h.transport.turns)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	h := newHarness(t, map[string]any{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.disp.Run(ctx, h.state, strings.NewReader("hello\n"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.transport.turns)
}

func TestTransportErrorIsOneLineAndJournaled(t *testing.T) {
	h := newHarness(t, nil, errors.New("connection refused"))
	h.state.Journaling = true

	out := h.run(t, "hello\n")

	assert.Contains(t, out, "エラー: connection refused\n")
	names, err := h.store.List()
	require.NoError(t, err)
	require.Len(t, names, 1)

	entry, err := h.store.Open(names[0])
	require.NoError(t, err)
	assert.Equal(t, "connection refused", entry.Error)
}

func TestServerErrorEnvelope(t *testing.T) {
	h := newHarness(t, decoded(t, `{"error":"timeout"}`), nil)

	out := h.run(t, "hello\n")
	assert.Contains(t, out, ">> エラー: timeout\n")
}

func TestDebugToggles(t *testing.T) {
	h := newHarness(t, decoded(t, happyReply), nil)

	out := h.run(t, "debug on\n")
	assert.Contains(t, out, "デバッグログを有効にしました (保存先: "+h.store.Dir()+")")
	assert.True(t, h.state.Journaling)

	out = h.run(t, "debug raw\n")
	assert.Contains(t, out, "生レスポンス表示: ON")
	assert.True(t, h.state.RawOutput)

	out = h.run(t, "debug\n")
	assert.Contains(t, out, "デバッグログ: ON / 生レスポンス表示: ON")

	out = h.run(t, "debug off\ndebug raw\n")
	assert.Contains(t, out, "デバッグログを無効にしました")
	assert.Contains(t, out, "生レスポンス表示: OFF")
	assert.False(t, h.state.Journaling)
	assert.False(t, h.state.RawOutput)
}

func TestRawOutputMode(t *testing.T) {
	h := newHarness(t, decoded(t, `{"output":{"messages":[]}}`), nil)
	h.state.RawOutput = true

	out := h.run(t, "hi\n")
	assert.Contains(t, out, "{\n  \"output\": {\n    \"messages\": []\n  }\n}\n")
}

func TestJournalingWritesOneEntryPerTurn(t *testing.T) {
	h := newHarness(t, decoded(t, happyReply), nil)

	h.run(t, "debug on\nHello, world!!\nsecond\n")

	names, err := h.store.List()
	require.NoError(t, err)
	require.Len(t, names, 2)

	var helloEntry string
	for _, name := range names {
		if strings.HasPrefix(name, "Hello_world_") {
			helloEntry = name
		}
	}
	require.NotEmpty(t, helloEntry)

	entry, err := h.store.Open(helloEntry)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!!", entry.UserInput)
	assert.GreaterOrEqual(t, entry.ElapsedSeconds, 0.0)
}

func TestJournalingDisabledWritesNothing(t *testing.T) {
	h := newHarness(t, decoded(t, happyReply), nil)

	h.run(t, "hello\n")

	names, err := h.store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestJournalFailureStillShowsReply(t *testing.T) {
	h := newHarness(t, decoded(t, happyReply), nil)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	h.disp.journal = journal.NewStore(filepath.Join(blocker, "logs"))
	h.state.Journaling = true

	out := h.run(t, "hello\n")

	assert.Contains(t, out, "タフト (happy): 元気だよ")
	assert.NotContains(t, out, "デバッグログを保存しました")
}

func TestDebugListAndOpen(t *testing.T) {
	h := newHarness(t, decoded(t, happyReply), nil)

	out := h.run(t, "debug list\n")
	assert.Contains(t, out, "デバッグログはまだありません")

	h.run(t, "debug on\nfirst\n")
	names, err := h.store.List()
	require.NoError(t, err)
	require.Len(t, names, 1)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(h.store.Dir(), names[0]), old, old))
	h.run(t, "second\n")

	out = h.run(t, "debug list\n")
	names, err = h.store.List()
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.True(t, strings.HasPrefix(names[0], "second_"))
	assert.Contains(t, out, "  1. "+names[0]+"\n")
	assert.Contains(t, out, "  2. "+names[1]+"\n")

	out = h.run(t, "debug open 2\n")
	assert.Contains(t, out, `"user_input": "first"`)

	out = h.run(t, "debug open "+strings.TrimSuffix(names[0], ".json")+"\n")
	assert.Contains(t, out, `"user_input": "second"`)
}

func TestDebugOpenMissingAndUsage(t *testing.T) {
	h := newHarness(t, map[string]any{}, nil)

	out := h.run(t, "debug open nope.json\n")
	assert.Contains(t, out, "デバッグログが見つかりません: nope.json")

	out = h.run(t, "debug open\n")
	assert.Contains(t, out, usage)
}

func TestUnknownDebugCommandContinues(t *testing.T) {
	h := newHarness(t, decoded(t, happyReply), nil)

	out := h.run(t, "debug dance\nhello\n")

	assert.Contains(t, out, "不明なデバッグコマンド: dance")
	assert.Contains(t, out, usage)
	assert.Len(t, h.transport.turns, 1)
}

func TestWelcome(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.state.Journaling = true

	h.disp.Welcome(h.state)

	out := h.out.String()
	assert.Contains(t, out, "スレッドを作成しました。Thread ID: thread-1")
	assert.Contains(t, out, "対話型クライアントへようこそ！")
	assert.Contains(t, out, "デバッグログ: ON")
	assert.NotContains(t, out, "タフト: ")
}

func TestWelcomePrintsOpeningLine(t *testing.T) {
	h := newHarness(t, nil, nil)
	disp := NewDispatcher(session.NewClient(h.transport), h.store, format.New("タフト"), h.out,
		WithOpeningLine("やぁ 僕はタフト"))

	disp.Welcome(h.state)

	assert.Contains(t, h.out.String(), "タフト: やぁ 僕はタフト\n")
	assert.NotContains(t, h.out.String(), "デバッグログ: ON")
}
