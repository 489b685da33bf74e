package main

import (
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/tuft-client/internal/config"
	"github.com/zhouzirui/tuft-client/internal/handler/repl"
	"github.com/zhouzirui/tuft-client/internal/model/persona"
	"github.com/zhouzirui/tuft-client/internal/service/agentapi"
	"github.com/zhouzirui/tuft-client/internal/service/format"
	"github.com/zhouzirui/tuft-client/internal/service/journal"
	"github.com/zhouzirui/tuft-client/internal/service/session"
	"github.com/zhouzirui/tuft-client/pkg/logging"
)

// app carries the resolved configuration between cobra hooks.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	envFile    string
	baseURL    string
	assistant  string
	personaID  string
	journalDir string
	logLevel   string
	debug      bool
	raw        bool
	timeout    time.Duration

	cfg       *config.Config
	logger    *zap.Logger
	newLogger func(level string) (*zap.Logger, error)
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newApp(in, out, errOut).command()
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, newLogger: logging.New}
}

func (a *app) command() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tuft",
		Short: "Interactive client for the Tuft conversational agent",
		Long: `tuft opens a conversation thread on the agent service and reads turns from stdin.

Inside the session:
  exit                 end the conversation
  debug on|off         toggle the request/response journal
  debug raw            toggle raw response output
  debug list           list journal entries, newest first
  debug open <name>    show one journal entry (name or list number)`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runInteractive,
	}
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&a.baseURL, "url", "", "agent service base URL (or TUFT_BASE_URL)")
	flags.StringVar(&a.assistant, "assistant", "", "assistant id (or TUFT_ASSISTANT_ID)")
	flags.StringVar(&a.personaID, "persona", "", "persona used to label replies (or TUFT_PERSONA)")
	flags.StringVar(&a.journalDir, "journal-dir", "", "debug journal directory (or TUFT_JOURNAL_DIR)")
	flags.StringVar(&a.logLevel, "log-level", "", "operator log level (or LOG_LEVEL)")
	flags.BoolVar(&a.debug, "debug", false, "start with the debug journal enabled (or TUFT_DEBUG)")
	flags.BoolVar(&a.raw, "raw", false, "start in raw response mode (or TUFT_RAW)")
	flags.DurationVar(&a.timeout, "timeout", 0, "per-request timeout, 0 for none (or TUFT_HTTP_TIMEOUT)")

	rootCmd.AddCommand(newJournalCmd(a))
	return rootCmd
}

// setup loads .env and the environment, then applies explicitly set flags.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	envLoadErr := godotenv.Load(a.envFile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Client.BaseURL = a.baseURL
	}
	if flags.Changed("assistant") {
		cfg.Client.AssistantID = a.assistant
	}
	if flags.Changed("persona") {
		cfg.Client.Persona = a.personaID
	}
	if flags.Changed("journal-dir") {
		cfg.Journal.Dir = a.journalDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("debug") {
		cfg.Client.Debug = a.debug
	}
	if flags.Changed("raw") {
		cfg.Client.Raw = a.raw
	}
	if flags.Changed("timeout") {
		cfg.Client.Timeout = a.timeout
	}

	logger, err := a.newLogger(cfg.Log.LevelOr("warn"))
	if err != nil {
		return err
	}
	if envLoadErr != nil {
		logger.Debug("no .env file loaded, using process environment", zap.String("path", a.envFile), zap.Error(envLoadErr))
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// syncLogger flushes buffered log entries. cobra skips post-run hooks when
// RunE fails, so every RunE defers this instead.
func (a *app) syncLogger() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) journalStore() *journal.Store {
	return journal.NewStore(a.cfg.Journal.Dir)
}

func (a *app) runInteractive(cmd *cobra.Command, _ []string) error {
	defer a.syncLogger()
	ctx := cmd.Context()
	cfg := a.cfg

	p := persona.Resolve(persona.NewMemoryStore(persona.Seed()), cfg.Client.Persona)
	transport := agentapi.NewClient(cfg.Client.BaseURL,
		agentapi.WithTimeout(cfg.Client.Timeout),
		agentapi.WithLogger(a.logger))
	client := session.NewClient(transport,
		session.WithAssistantID(cfg.Client.AssistantID),
		session.WithExtras(cfg.Client.Extras),
		session.WithLogger(a.logger))

	sess, err := client.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("スレッドを作成できませんでした: %w", err)
	}

	dispatcher := repl.NewDispatcher(client, a.journalStore(), format.New(p.Name), a.out,
		repl.WithLogger(a.logger),
		repl.WithOpeningLine(p.OpeningLine))
	state := &repl.State{
		Session:    sess,
		Journaling: cfg.Client.Debug,
		RawOutput:  cfg.Client.Raw,
	}

	dispatcher.Welcome(state)
	return dispatcher.Run(ctx, state, a.in)
}
