package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/victornm/quizsync/internal/backend"
	"github.com/victornm/quizsync/internal/config"
)

type Config struct {
	Postgres config.Postgres
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate up|down|version|force <version>")
	}
	flag.Parse()

	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	m, err := backend.NewMigrator(c.Postgres.URL())
	if err != nil {
		log.Fatalf("Init migrator failed: %v", err)
	}
	defer m.Close()

	if err := run(m, flag.Args()); err != nil {
		log.Fatalf("Migrate failed: %v", err)
	}
}

func run(m *migrate.Migrate, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	switch args[0] {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Steps(-1))
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("version %d, dirty %t\n", v, dirty)
		return nil
	case "force":
		if len(args) < 2 {
			return errors.New("force needs a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("version %q: %w", args[1], err)
		}
		return m.Force(v)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func loadConfig() (Config, error) {
	var c Config

	p := os.Getenv("CONFIG_PATH")
	if p == "" {
		return c, fmt.Errorf("CONFIG_PATH not set")
	}

	if err := config.Load(p, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
