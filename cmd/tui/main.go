package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"emabot-go/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== EMA Bot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit bankroll and strategy")
		fmt.Println("3) Edit server, storage and feed")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch API server")
		fmt.Println("6) Launch headless paper loop")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editStrategy(reader, cfg)
		case "3":
			editRuntime(reader, cfg)
		case "4":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
			} else if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launch(reader, "./cmd/server")
		case "6":
			launch(reader, "./cmd/paper")
		case "7":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Starting cash: $%.2f\n", cfg.Paper.StartingCash)
	fmt.Printf("Strategy: %s (short %d / long %d)\n", cfg.Strategy.Mode, cfg.Strategy.ShortSpan, cfg.Strategy.LongSpan)
	fmt.Printf("HTTP listen: %s\n", cfg.HTTP.Addr())
	fmt.Printf("Storage: %s %s\n", cfg.Storage.Driver, cfg.Storage.DSN)
	fmt.Printf("Feed: %s %s every %dms\n", cfg.Feed.Provider, cfg.Feed.Symbol, cfg.Feed.PollInterval)
	if cfg.Redis.Addr != "" {
		fmt.Printf("Redis cache: %s (ttl %ds)\n", cfg.Redis.Addr, cfg.Redis.CacheTTLSeconds)
	}
	if cfg.RabbitMQ.URL != "" {
		fmt.Printf("RabbitMQ exchange: %s\n", cfg.RabbitMQ.Exchange)
	}
}

func editStrategy(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Bankroll / Strategy ---")
	cfg.Paper.StartingCash = promptFloat(reader, "Starting cash", cfg.Paper.StartingCash)
	cfg.Strategy.Mode = promptString(reader, "Strategy mode (ema_crossover|ema_edge)", cfg.Strategy.Mode)
	cfg.Strategy.ShortSpan = int(promptFloat(reader, "Short EMA span", float64(cfg.Strategy.ShortSpan)))
	cfg.Strategy.LongSpan = int(promptFloat(reader, "Long EMA span", float64(cfg.Strategy.LongSpan)))
}

func editRuntime(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Server / Storage / Feed ---")
	cfg.HTTP.Port = int(promptFloat(reader, "HTTP port", float64(cfg.HTTP.Port)))
	cfg.Storage.Driver = promptString(reader, "Storage driver (sqlite|postgres|memory)", cfg.Storage.Driver)
	cfg.Storage.DSN = promptString(reader, "Storage DSN", cfg.Storage.DSN)
	cfg.Feed.Provider = promptString(reader, "Feed provider (none|stub|alphavantage)", cfg.Feed.Provider)
	cfg.Feed.Symbol = strings.ToUpper(promptString(reader, "Feed symbol", cfg.Feed.Symbol))
	cfg.Feed.PollInterval = int(promptFloat(reader, "Poll interval (ms)", float64(cfg.Feed.PollInterval)))
}

func launch(reader *bufio.Reader, pkg string) {
	fmt.Printf("Launching %s (Ctrl+C to stop)...\n", pkg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", pkg, "-config", locateConfig())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	if line = strings.TrimSpace(line); line == "" {
		return current
	}
	return line
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
