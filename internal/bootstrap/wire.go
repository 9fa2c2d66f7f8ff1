package bootstrap

import (
	"log/slog"

	"lingchat/internal/api"
	"lingchat/internal/audio"
	"lingchat/internal/config"
	"lingchat/internal/ports"
	"lingchat/internal/store"
	"lingchat/internal/transport"
	"lingchat/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Coordinator *usecase.Coordinator
	Store       ports.SnapshotStore
	Config      config.Config
}

// Build wires all client dependencies for the current runtime. A cache that
// fails to open degrades to a stateless client rather than failing the boot.
func Build(events ports.EventSink, exporter ports.Exporter) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	var snapshots ports.SnapshotStore
	if s, err := store.Open(cfg.Session.CachePath); err != nil {
		slog.Warn("session cache unavailable", "path", cfg.Session.CachePath, "error", err)
	} else {
		snapshots = s
	}

	coordinator := usecase.NewCoordinator(
		api.NewClient(cfg.Server.BaseURL),
		transport.NewTransport(transport.Config{
			BaseURL:    cfg.Server.BaseURL,
			StreamPath: cfg.Server.StreamPath,
		}),
		audio.NewFFmpegCapture(cfg.Audio.RecorderCommand),
		audio.NewFFplayPlayer(cfg.Audio.PlayerCommand),
		snapshots,
		exporter,
		events,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkInterval:     cfg.Audio.ChunkInterval,
			ChatTimeout:       cfg.Server.ChatTimeout,
			EndSessionTimeout: cfg.Server.EndSessionTimeout,
			LookupTimeout:     cfg.Server.LookupTimeout,
			CompactUI:         cfg.Session.CompactUI,
			AutoSubmit:        cfg.Session.AutoSubmit,
		},
	)

	return Services{Coordinator: coordinator, Store: snapshots, Config: cfg}, nil
}
