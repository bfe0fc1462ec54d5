package main

import (
	"bufio"
	"context"
	"flag"
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
}

func main() {
	code := flag.String("code", "", "room code")
	nickname := flag.String("nickname", "", "nickname, 2 to 15 characters")
	playerID := flag.String("id", "", "rejoin as this player id")
	flag.Parse()

	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	lg := logger.Setup(c.Log.Level, c.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	pc := game.PlayerConfig{
		Code:     *code,
		Nickname: *nickname,
		PlayerID: *playerID,
	}
	if err := run(ctx, c, pc, lg); err != nil {
		lg.Fatal().Err(err).Msg("player stopped")
	}
}

func run(ctx context.Context, c Config, pc game.PlayerConfig, lg zerolog.Logger) error {
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

	pc.Config = game.Config{
		Transport:    deps.Transport,
		Cache:        deps.Cache,
		Backend:      deps.Backend,
		Tick:         c.Game.Tick,
		PollInterval: c.Cache.PollInterval,
		Log:          lg,
		OnChange:     show,
	}

	p, err := game.Join(ctx, pc)
	if err != nil {
		return err
	}
	defer p.Close()

	me := p.Me()
	fmt.Printf("joined %s as %s %s (id %s), answer with red, blue, yellow or green\n", p.Code(), me.Avatar, me.Nickname, me.ID)

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

			color := domain.Color(strings.ToLower(strings.TrimSpace(line)))
			if color == "" {
				continue
			}
			if color == "quit" {
				return nil
			}

			pa, err := p.AnswerColor(ctx, color)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if pa.IsCorrect {
				fmt.Printf("correct, +%d\n", pa.PointsEarned)
			} else {
				fmt.Println("wrong")
			}
		}
	}
}

func show(gs domain.GameState, s *store.Snapshot) {
	switch gs.Phase {
	case domain.PhaseCountdown:
		fmt.Printf("%d...\n", gs.CountdownValue())
	case domain.PhaseQuestion:
		q, ok := s.Session.Question(gs.QuestionIndex)
		if !ok {
			return
		}
		fmt.Printf("Q%d: %s\n", gs.QuestionIndex+1, q.Text)
		for _, a := range q.Answers {
			fmt.Printf("  %-6s %s\n", a.Color, a.Text)
		}
	case domain.PhaseLeaderboard, domain.PhaseFinished:
		if s.Me != nil {
			fmt.Printf("[%s] your score: %d\n", gs.Phase, s.Me.Score)
			return
		}
		fmt.Printf("[%s]\n", gs.Phase)
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
