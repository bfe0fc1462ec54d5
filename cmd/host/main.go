package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/config"
	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/game"
	"github.com/victornm/quizsync/internal/infra"
	"github.com/victornm/quizsync/internal/logger"
	"github.com/victornm/quizsync/internal/store"
)

type Config struct {
	Log       config.Log
	Redis     config.Redis
	Postgres  config.Postgres
	Transport config.Transport
	Cache     config.Cache
	Game      config.Game

	// Quiz is the path of the quiz file to host.
	Quiz string
	// Recover resumes the game with this code instead of creating one.
	Recover string
}

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	lg := logger.Setup(c.Log.Level, c.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	if err := run(ctx, c, lg); err != nil {
		lg.Fatal().Err(err).Msg("host stopped")
	}
}

func run(ctx context.Context, c Config, lg zerolog.Logger) error {
	quiz, err := config.LoadQuiz(c.Quiz)
	if err != nil {
		return err
	}

	deps, err := infra.Open(ctx, infra.Stack{
		Redis:     c.Redis,
		Postgres:  c.Postgres,
		Transport: c.Transport,
		Cache:     c.Cache,
	}, lg)
	if err != nil {
		return fmt.Errorf("open infra: %w", err)
	}
	defer deps.Close()

	hc := game.HostConfig{
		Config: game.Config{
			Transport:    deps.Transport,
			Cache:        deps.Cache,
			Backend:      deps.Backend,
			Tick:         c.Game.Tick,
			PollInterval: c.Cache.PollInterval,
			Log:          lg,
			OnChange:     show,
		},
		Quiz: quiz,
		TopN: c.Game.TopN,
	}

	var h *game.Host
	if c.Recover != "" {
		h, err = game.RecoverHost(ctx, hc, c.Recover)
	} else {
		h, err = game.NewHost(ctx, hc)
	}
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Printf("room %s, commands: start, close, board, next, kick <id>, results, players, export <file>, quit\n", h.Code())

	lines := make(chan string)
	go func() {
		s := bufio.NewScanner(os.Stdin)
		for s.Scan() {
			lines <- s.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			quit, err := command(ctx, h, line)
			if err != nil {
				fmt.Println("error:", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func command(ctx context.Context, h *game.Host, line string) (bool, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return false, nil
	}

	switch f[0] {
	case "start":
		return false, h.Start(ctx)
	case "close":
		return false, h.CloseQuestion(ctx)
	case "board":
		if err := h.ShowLeaderboard(ctx); err != nil {
			return false, err
		}
		for _, e := range h.Leaderboard() {
			fmt.Printf("  %d. %s %-15s %d\n", e.Rank, e.Avatar, e.Nickname, e.Score)
		}
		return false, nil
	case "next":
		return false, h.Next(ctx)
	case "kick":
		if len(f) < 2 {
			return false, fmt.Errorf("usage: kick <player id>")
		}
		return false, h.Kick(ctx, f[1])
	case "results":
		r, err := h.Results(ctx)
		if err != nil {
			return false, err
		}
		for _, a := range r.Question.Answers {
			fmt.Printf("  %-6s %-30s %d\n", a.Color, a.Text, r.Distribution[a.ID])
		}
		return false, nil
	case "players":
		for _, p := range h.Session().Players {
			fmt.Printf("  %s %s %-15s %d\n", p.ID, p.Avatar, p.Nickname, p.Score)
		}
		return false, nil
	case "export":
		if len(f) < 2 {
			return false, h.Export(os.Stdout)
		}
		out, err := os.Create(f[1])
		if err != nil {
			return false, err
		}
		defer out.Close()
		return false, h.Export(out)
	case "quit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", f[0])
	}
}

func show(gs domain.GameState, s *store.Snapshot) {
	switch gs.Phase {
	case domain.PhaseCountdown:
		fmt.Printf("%d...\n", gs.CountdownValue())
	case domain.PhaseQuestion:
		if q, ok := s.Session.Question(gs.QuestionIndex); ok {
			fmt.Printf("Q%d: %s\n", gs.QuestionIndex+1, q.Text)
		}
	default:
		fmt.Printf("[%s]\n", gs.Phase)
	}
}

func loadConfig() (Config, error) {
	c := Config{
		Transport: config.Transport{Kind: infra.KindRedis},
		Cache:     config.Cache{Kind: infra.KindRedis},
	}

	p := os.Getenv("CONFIG_PATH")
	if p == "" {
		return c, fmt.Errorf("CONFIG_PATH not set")
	}

	if err := config.Load(p, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
