// Konsul voice agent — joins consultation rooms, runs the realtime LLM
// session and drives per-session orchestration.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/konsulhq/konsul/pkg/bridge"
	"github.com/konsulhq/konsul/pkg/config"
	"github.com/konsulhq/konsul/pkg/extraction"
	"github.com/konsulhq/konsul/pkg/knowledge"
	"github.com/konsulhq/konsul/pkg/llm"
	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/notify"
	"github.com/konsulhq/konsul/pkg/orchestrator"
	"github.com/konsulhq/konsul/pkg/research"
	"github.com/konsulhq/konsul/pkg/rooms"
	"github.com/konsulhq/konsul/pkg/store"
	"github.com/konsulhq/konsul/pkg/version"
)

const (
	pidFile      = ".agent.pid"
	roomPollRate = 2 * time.Second
)

func main() {
	cfg, warnings := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	slog.Info("Starting konsul voice agent", "version", version.Full())
	for _, w := range warnings {
		slog.Warn(w)
	}

	if err := acquirePIDFile(); err != nil {
		slog.Error("Another agent instance is running", "error", err)
		os.Exit(1)
	}
	defer os.Remove(pidFile)

	if cfg.OpenAI.APIKey == "" {
		slog.Error("OPENAI_API_KEY is required for the voice agent")
		os.Exit(1)
	}
	roomClient := rooms.New(cfg.LiveKit.HostURL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	if roomClient == nil {
		slog.Error("LiveKit credentials are required for the voice agent")
		os.Exit(1)
	}

	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		slog.Error("Failed to open session store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	chat, err := llm.New()
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	b := bridge.New(bridge.Config{
		Store: st,
		Rooms: roomClient,
		Orchestrator: orchestrator.Deps{
			Store:     st,
			Extractor: extraction.New(chat),
			Knowledge: knowledge.NewBase(st),
			Research:  research.NewEngine(research.NewDuckDuckGoSearcher(), research.NewFetcher()),
			Runtime:   bridge.NewRuntimeForwarder(serverURL),
			Notifier: notify.NewService(notify.ServiceConfig{
				WebhookURL:   cfg.Webhook.URL,
				AuthToken:    cfg.Webhook.AuthToken,
				DashboardURL: cfg.Server.DashboardURL,
			}),
			BasePrompt: basePrompt(cfg),
			OutputDir:  cfg.Storage.OutputDir,
		},
		Dial: bridge.DialConfig{
			APIKey:       cfg.OpenAI.APIKey,
			Model:        cfg.OpenAI.RealtimeModel,
			BaseURL:      os.Getenv("OPENAI_REALTIME_URL"),
			GreetingLock: cfg.Voice.GreetingLock,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Shutdown signal received", "signal", sig)
		cancel()
	}()

	serveRooms(ctx, roomClient, b)
	slog.Info("Konsul voice agent stopped")
}

// serveRooms polls for occupied consultation rooms and runs one bridge per
// room until the context is cancelled.
func serveRooms(ctx context.Context, roomClient *rooms.Client, b *bridge.Bridge) {
	var wg sync.WaitGroup
	active := make(map[string]bool)
	var mu sync.Mutex

	ticker := time.NewTicker(roomPollRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
		}

		roomList, err := roomClient.ListRooms(ctx)
		if err != nil {
			slog.Warn("Room listing failed", "error", err)
			continue
		}

		for _, room := range roomList {
			if models.SessionIDFromRoom(room.Name) == "" || room.NumParticipants == 0 {
				continue
			}

			mu.Lock()
			if active[room.Name] {
				mu.Unlock()
				continue
			}
			active[room.Name] = true
			mu.Unlock()

			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				defer func() {
					mu.Lock()
					delete(active, name)
					mu.Unlock()
				}()
				if err := b.Run(ctx, name); err != nil {
					slog.Error("Bridge run failed", "room", name, "error", err)
				}
			}(room.Name)
		}
	}
}

// acquirePIDFile guards against a second agent instance on the same host.
// A stale file left by a dead process is taken over.
func acquirePIDFile() error {
	if data, err := os.ReadFile(pidFile); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid > 0 {
			if syscall.Kill(pid, 0) == nil {
				return fmt.Errorf("agent already running with pid %d", pid)
			}
		}
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func basePrompt(cfg *config.Config) string {
	if cfg.Voice.BasePrompt != "" {
		return cfg.Voice.BasePrompt
	}
	return defaultBasePrompt
}

const defaultBasePrompt = `Ты — голосовой консультант компании, который помогает клиенту составить анкету для запуска голосового ИИ-агента.
Веди разговор на русском языке, дружелюбно и по делу.
Выясни: чем занимается бизнес, какие услуги и товары предлагает, кто клиенты, какие задачи должен решать голосовой агент, какие интеграции нужны.
Задавай по одному вопросу за раз и уточняй детали, когда ответ слишком общий.`
