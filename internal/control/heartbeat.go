package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/render"
	"github.com/DockerDiscordControl/ddc/internal/surface"
)

// RunHeartbeat posts a periodic alive signal to the configured channel so an
// external monitor can alert when this program stops. Edits one surface in
// place rather than piling up messages. The configuration is re-read on
// every beat, so a reload can enable, retarget or silence the heartbeat
// without a restart. Blocks until ctx is done.
func (a *App) RunHeartbeat(ctx context.Context, platform surface.Platform) {
	var surfaceID, channelID string
	for {
		hb := a.cfg.Current().Heartbeat
		wait := a.hbRecheck
		if hb.Enabled && hb.ChannelID != "" {
			if hb.ChannelID != channelID {
				channelID = hb.ChannelID
				surfaceID = ""
			}
			surfaceID = a.beat(ctx, platform, channelID, surfaceID)
			wait = hb.Interval()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (a *App) beat(ctx context.Context, platform surface.Platform, channelID, surfaceID string) string {
	out := render.Output{
		Text: "💓 alive " + a.now().In(a.cfg.Current().Location).Format("2006-01-02 15:04:05"),
	}
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if surfaceID == "" {
		id, err := platform.Create(cctx, channelID, out)
		if err != nil {
			slog.Warn("heartbeat post failed", "error", err)
			return ""
		}
		return id
	}
	if err := platform.Update(cctx, channelID, surfaceID, out); err != nil {
		slog.Warn("heartbeat update failed", "error", err)
		return ""
	}
	return surfaceID
}
