package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"docroute/internal/adapter/agentstore"
	"docroute/internal/adapter/mcpserver"
	"docroute/internal/domain"
	"docroute/internal/usecase"
)

func runAsk(args []string) error {
	flags := parseFlags(args)
	question := strings.TrimSpace(strings.Join(flags.Args, " "))
	if question == "" {
		return errors.New("a question is required")
	}

	docs, err := loadDocuments(flags.Docs)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := initApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.answerer.Answer(ctx, usecase.AnswerRequest{
		Question:  question,
		Documents: docs,
	})
	if err != nil {
		return err
	}

	if flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Print(newRenderer(flags.Trace).Render(resp))
	return nil
}

func runREPL(args []string) error {
	flags := parseFlags(args)
	docs, err := loadDocuments(flags.Docs)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := initApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.warmer != nil {
		a.warmer.Start(ctx)
	}

	fmt.Println(styleBold.Render("docroute") + styleDim.Render(fmt.Sprintf(" · %d documents · /reset clears memory · /exit quits", len(docs))))
	return newSession(a.answerer, docs, a.cfg.Router.HistoryLimit, newRenderer(flags.Trace)).run(ctx, os.Stdin, os.Stdout)
}

// answerer is the slice of usecase.Answerer a session needs.
type answerer interface {
	Answer(ctx context.Context, req usecase.AnswerRequest) (*usecase.AnswerResponse, error)
}

// session carries history and memory across REPL turns.
type session struct {
	answerer answerer
	docs     []domain.Document
	limit    int
	render   *renderer
	history  []domain.Turn
	memory   domain.Memory
}

func newSession(a answerer, docs []domain.Document, historyLimit int, r *renderer) *session {
	if historyLimit <= 0 {
		historyLimit = domain.DefaultHistoryLimit
	}
	return &session{answerer: a, docs: docs, limit: historyLimit, render: r}
}

func (s *session) reset() {
	s.history = nil
	s.memory = domain.Memory{}
}

// ask answers one question and folds the result into the session state.
func (s *session) ask(ctx context.Context, question string) (*usecase.AnswerResponse, error) {
	resp, err := s.answerer.Answer(ctx, usecase.AnswerRequest{
		Question:  question,
		History:   s.history,
		Memory:    s.memory,
		Documents: s.docs,
	})
	if err != nil {
		return nil, err
	}
	s.memory = usecase.NextMemory(s.memory, resp)
	s.history = append(s.history,
		domain.Turn{Role: domain.RoleUser, Content: question},
		domain.Turn{Role: domain.RoleAssistant, Content: resp.Answer},
	)
	// Keep twice the limit so the classifier always sees full context.
	if keep := 2 * s.limit; len(s.history) > keep {
		s.history = append([]domain.Turn(nil), s.history[len(s.history)-keep:]...)
	}
	return resp, nil
}

func (s *session) run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, styleInfo.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			s.reset()
			fmt.Fprintln(out, styleDim.Render("memory cleared"))
			continue
		}

		resp, err := s.ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, styleError.Render("error: "+err.Error()))
			continue
		}
		fmt.Fprint(out, s.render.Render(resp))
	}
}

func runAgents(args []string) error {
	flags := parseFlags(args)
	ctx := context.Background()

	a, err := initApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.registry.EnsureLoaded(ctx); err != nil {
		return err
	}
	active := a.registry.ListActive()
	if flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(active)
	}
	for _, d := range active {
		fmt.Printf("%s  %s\n", styleBold.Render(fmt.Sprintf("%-9s", d.Key)), d.Name)
		if d.Description != "" {
			fmt.Printf("           %s\n", styleDim.Render(d.Description))
		}
	}
	fmt.Println(styleDim.Render(fmt.Sprintf("%d active · loaded %s", len(active), a.registry.LoadedAt().Format("15:04:05"))))
	return nil
}

func runSeed(args []string) error {
	flags := parseFlags(args)
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	store, err := agentstore.NewSQLiteStore(cfg.AgentStore.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	defs := agentstore.Definitions(cfg.Agents)
	if err := store.Seed(context.Background(), cfg.AgentStore.Scope, defs); err != nil {
		return err
	}
	fmt.Println(styleSuccess.Render(fmt.Sprintf("seeded %d agents into %s (scope %q)", len(defs), cfg.AgentStore.Path, cfg.AgentStore.Scope)))
	return nil
}

func runMCP(args []string) error {
	flags := parseFlags(args)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := initApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.warmer != nil {
		a.warmer.Start(ctx)
	}

	srv, err := mcpserver.New(a.answerer, a.registry, version, a.log)
	if err != nil {
		return err
	}

	a.log.Info("mcp server starting on stdio", "version", version)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ServeStdio()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		return nil
	case err := <-serverErr:
		return err
	}
}
