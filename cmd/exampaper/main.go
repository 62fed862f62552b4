package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/export"
	"github.com/pavelanni/exampaper/internal/handler"
	"github.com/pavelanni/exampaper/internal/i18n"
	"github.com/pavelanni/exampaper/internal/imagecache"
	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/question"
	"github.com/pavelanni/exampaper/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exampaper",
		Short: "Render question banks as printable exam papers and answer keys",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), importCmd(), presetsCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `exampaper --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "text", "Log format (text, json)")
}

func addRenderFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("font", "", "TrueType font file for PDF output (required for CJK text)")
	f.String("image-dir", ".", "Directory relative image paths are resolved against")
	f.String("image-url", "", "Base URL tried for relative image paths not found locally")
	f.Duration("image-timeout", 10*time.Second, "Timeout for fetching one remote image")
	f.Int("prefetch-workers", export.DefaultPrefetchWorkers, "Concurrent image fetches")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP export API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "exampaper.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Question JSON files imported at startup (repeatable)")
	f.StringP("lang", "l", "en", "Fallback language for labels and messages (en, zh-TW)")
	f.String("default-template", "standard", "Template or preset applied when a request names none")
	f.String("admin-password", "", "Initial admin password (or set EXAMPAPER_ADMIN_PASSWORD)")
	addRenderFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [questions.json...]",
		Short: "Export questions to PDF, Markdown, text, HTML or JSON",
		Long: `Export renders questions read from JSON files, or from the database when
no files are given, into a single document written to the output directory.`,
		RunE: runExport,
	}
	f := cmd.Flags()
	f.String("db", "exampaper.db", "SQLite database path (used when no files are given)")
	f.StringSlice("ids", nil, "Question IDs to export from the database, in order")
	f.String("type", "", "Only export stored questions of this type")
	f.String("subject", "", "Only export stored questions of this subject")
	f.StringP("format", "f", "pdf", "Output format (pdf, md, txt, html, json)")
	f.StringP("template", "t", "", "Saved template or built-in preset (see exampaper presets)")
	f.StringP("config", "c", "", "Style configuration file (YAML, JSON or TOML) merged over the template")
	f.String("title", "", "Exam title, overriding the configuration")
	f.String("scope", "", "What to include: complete, questions, answers")
	f.StringP("lang", "l", "en", "Language for default labels")
	f.StringP("output", "o", ".", "Output directory (- for stdout)")
	addRenderFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import questions.json...",
		Short: "Import question files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	cmd.Flags().String("db", "exampaper.db", "SQLite database path")
	addLogFlags(cmd)
	return cmd
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List built-in style presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range config.Presets() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMPAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("exampaper")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/exampaper")
	v.AddConfigPath("/etc/exampaper")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := importFiles(db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if n, err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired tokens", "error", err)
	} else if n > 0 {
		slog.Info("removed expired tokens", "count", n)
	}

	lang := v.GetString("lang")
	bundle, err := i18n.Load(lang)
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	h, err := handler.New(db, handler.Config{
		DefaultTemplate: v.GetString("default-template"),
		ImageBaseDir:    v.GetString("image-dir"),
		ImageBaseURL:    v.GetString("image-url"),
		ImageTimeout:    v.GetDuration("image-timeout"),
		FontFile:        v.GetString("font"),
		PrefetchWorkers: v.GetInt("prefetch-workers"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(i18n.Middleware(bundle, lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"languages", bundle.Languages(),
		"default_template", v.GetString("default-template"),
		"image_dir", v.GetString("image-dir"),
		"font", v.GetString("font"),
	)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	format, err := export.ParseFormat(v.GetString("format"))
	if err != nil {
		return err
	}

	var db *store.Store
	openDB := func() (*store.Store, error) {
		if db == nil {
			if db, err = store.New(v.GetString("db")); err != nil {
				return nil, fmt.Errorf("open database: %w", err)
			}
		}
		return db, nil
	}
	defer func() {
		if db != nil {
			db.Close()
		}
	}()

	var questions []model.QuestionRecord
	if len(args) > 0 {
		questions, err = readQuestionFiles(args)
	} else {
		var s *store.Store
		if s, err = openDB(); err == nil {
			questions, err = storedQuestions(s, v)
		}
	}
	if err != nil {
		return err
	}

	cfg, err := exportConfig(v, openDB)
	if err != nil {
		return err
	}

	bundle, err := i18n.Load("en")
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	langs := []string{v.GetString("lang")}
	if cfg.Language != nil {
		langs = append([]string{*cfg.Language}, langs...)
	}

	res := export.Run(cmd.Context(), export.Request{
		Format:          format,
		Questions:       questions,
		Config:          cfg,
		Catalog:         bundle.Catalog(langs...),
		Fetcher:         imagecache.NewHTTPFetcher(v.GetString("image-dir"), v.GetString("image-url"), v.GetDuration("image-timeout")),
		PrefetchWorkers: v.GetInt("prefetch-workers"),
	})
	if !res.Success {
		return errors.New(res.Message)
	}

	out := v.GetString("output")
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(res.Data)
		return err
	}
	path, err := export.WriteFile(out, res)
	if err != nil {
		return err
	}
	slog.Info("export written", "path", path, "questions", res.Questions, "pages", res.Pages, "call_id", res.CallID)
	fmt.Fprintln(cmd.ErrOrStderr(), res.Message)
	return nil
}

// exportConfig layers template, style file and flag overrides.
func exportConfig(v *viper.Viper, openDB func() (*store.Store, error)) (*config.ExportConfiguration, error) {
	var cfg *config.ExportConfiguration
	if name := v.GetString("template"); name != "" {
		preset, err := config.Preset(name)
		if err != nil {
			// Not built in, so look for a saved template.
			db, dbErr := openDB()
			if dbErr != nil {
				return nil, dbErr
			}
			t, tErr := db.GetTemplate(name)
			if errors.Is(tErr, store.ErrTemplateNotFound) {
				return nil, fmt.Errorf("unknown template %q", name)
			}
			if tErr != nil {
				return nil, tErr
			}
			preset = &t.Config
		}
		cfg = preset
	}
	if path := v.GetString("config"); path != "" {
		file, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = config.Merge(cfg, file)
	}

	over := &config.ExportConfiguration{}
	if title := v.GetString("title"); title != "" {
		over.Header = &config.HeaderConfig{Title: config.String(title)}
	}
	if font := v.GetString("font"); font != "" {
		over.Typography = &config.TypographyConfig{FontFile: config.String(font)}
	}
	switch strings.ToLower(v.GetString("scope")) {
	case "", "complete":
	case "questions":
		over.ExportOptions = &config.ExportOptions{QuestionsOnly: config.Bool(true)}
	case "answers":
		over.ExportOptions = &config.ExportOptions{AnswerSheetOnly: config.Bool(true)}
	default:
		return nil, fmt.Errorf("unknown scope %q (want complete, questions or answers)", v.GetString("scope"))
	}
	return config.Merge(cfg, over), nil
}

func readQuestionFiles(paths []string) ([]model.QuestionRecord, error) {
	var raws []question.Raw
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		r, err := question.DecodeRaw(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		raws = append(raws, r...)
	}
	return question.NormalizeAll(raws), nil
}

func storedQuestions(db *store.Store, v *viper.Viper) ([]model.QuestionRecord, error) {
	f := store.QuestionFilter{
		IDs:     v.GetStringSlice("ids"),
		Subject: v.GetString("subject"),
	}
	if t := v.GetString("type"); t != "" {
		typ, ok := model.ParseType(t)
		if !ok {
			return nil, fmt.Errorf("unknown question type %q", t)
		}
		f.Type = typ
	}
	questions, err := db.ListQuestions(f)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(f.IDs) == 0 {
		return questions, nil
	}
	byID := make(map[string]model.QuestionRecord, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]model.QuestionRecord, 0, len(f.IDs))
	for _, id := range f.IDs {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %q not found", id)
		}
		ordered = append(ordered, q)
	}
	return ordered, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return importFiles(db, args)
}

func importFiles(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := db.ImportQuestions(path, data); err != nil {
			return err
		}
	}
	return nil
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or EXAMPAPER_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
