package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/llmcouncil/council"
	"github.com/BaSui01/llmcouncil/store"
)

// =============================================================================
// 🏛️ ask 命令
// =============================================================================

type contextFiles []string

func (c *contextFiles) String() string     { return strings.Join(*c, ",") }
func (c *contextFiles) Set(v string) error { *c = append(*c, v); return nil }

func runAsk(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	format := fs.String("format", "markdown", "Output format: markdown, json")
	save := fs.Bool("save", false, "Store the result in the conversation database")
	dumpMetrics := fs.Bool("metrics", false, "Print Prometheus metrics to stderr when done")
	var files contextFiles
	fs.Var(&files, "context", "File to add as context for the first round (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(stderr, "ask: a query is required")
		return 2
	}
	if *format != "markdown" && *format != "json" {
		fmt.Fprintf(stderr, "ask: unsupported format %q\n", *format)
		return 2
	}

	evidence, err := readEvidence(files)
	if err != nil {
		fmt.Fprintf(stderr, "ask: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	a, err := newApp(cfg, logger, *save)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := a.pipeline.Deliberate(ctx, council.Request{
		Query:    query,
		Council:  a.members,
		Chairman: a.chairman,
		Evidence: evidence,
	})

	saveFailed := false
	if result != nil {
		if err := writeResult(stdout, result, *format); err != nil {
			fmt.Fprintf(stderr, "Failed to write result: %v\n", err)
			return 1
		}
		if *save {
			saveFailed = saveConversation(context.Background(), a.store, result, logger, stderr) != nil
		}
	}
	if *dumpMetrics {
		if err := a.dumpMetrics(stderr); err != nil {
			fmt.Fprintf(stderr, "Failed to print metrics: %v\n", err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "Deliberation failed: %v\n", runErr)
		return 1
	}
	if saveFailed {
		return 1
	}
	return 0
}

type conversationSaver interface {
	Save(ctx context.Context, r *council.Result) (*store.Conversation, error)
}

// saveConversation 保存结果；失败时同时写日志和 stderr
func saveConversation(ctx context.Context, s conversationSaver, result *council.Result, logger *zap.Logger, stderr io.Writer) error {
	if _, err := s.Save(ctx, result); err != nil {
		logger.Error("failed to save conversation", zap.String("session_id", result.SessionID), zap.Error(err))
		fmt.Fprintf(stderr, "Failed to save conversation %s: %v\n", result.SessionID, err)
		return err
	}
	fmt.Fprintf(stderr, "Saved conversation %s\n", result.SessionID)
	return nil
}

// readEvidence 把上下文文件读为 Evidence，Source 为文件名，
// 按扩展名识别源码语言
func readEvidence(paths []string) ([]council.Evidence, error) {
	out := make([]council.Evidence, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read context file: %w", err)
		}
		meta := map[string]string{council.MetaFilePath: filepath.ToSlash(p)}
		if lang, ok := sourceLanguages[strings.ToLower(filepath.Ext(p))]; ok {
			meta[council.MetaLanguage] = lang
		}
		out = append(out, council.Evidence{Source: filepath.Base(p), Content: string(data), Metadata: meta})
	}
	return out, nil
}

var sourceLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".rs":   "rust",
	".rb":   "ruby",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
}

func writeResult(w io.Writer, r *council.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	_, err := io.WriteString(w, council.FormatMarkdown(r))
	return err
}

// =============================================================================
// 📜 history / show 命令
// =============================================================================

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("limit", store.DefaultListLimit, "Number of conversations to list")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	s, logger, err := openStoreOnly(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "history: %v\n", err)
		return 1
	}
	defer logger.Sync()
	defer s.Close()

	convs, err := s.List(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(stderr, "history: %v\n", err)
		return 1
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTATE\tQUERY")
	for _, c := range convs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.CreatedAt.Local().Format(time.DateTime), c.State, truncate(c.Query, 60))
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}

func runShow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	format := fs.String("format", "markdown", "Output format: markdown, json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "show: exactly one conversation id is required")
		return 2
	}

	s, logger, err := openStoreOnly(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "show: %v\n", err)
		return 1
	}
	defer logger.Sync()
	defer s.Close()

	conv, err := s.Get(context.Background(), fs.Arg(0))
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(stderr, "show: no conversation %s\n", fs.Arg(0))
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "show: %v\n", err)
		return 1
	}
	result, err := conv.Decode()
	if err != nil {
		fmt.Fprintf(stderr, "show: %v\n", err)
		return 1
	}
	if err := writeResult(stdout, result, *format); err != nil {
		return 1
	}
	return 0
}

// openStoreOnly 只打开会话存储，不装配任何 Provider
func openStoreOnly(configPath string) (*store.Store, *zap.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := initLogger(cfg.Log)
	s, err := store.Open(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, logger, nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// =============================================================================
// 🏥 health 命令
// =============================================================================

func runHealth(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 10*time.Second, "Health check timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	code := 0
	results := registry.HealthCheckAll(ctx)
	for _, name := range registry.List() {
		if err := results[name]; err != nil {
			fmt.Fprintf(stdout, "%-12s FAIL  %v\n", name, err)
			code = 1
			continue
		}
		fmt.Fprintf(stdout, "%-12s OK\n", name)
	}
	return code
}
