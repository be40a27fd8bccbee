package webpanel

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/DockerDiscordControl/ddc/internal/control"
	"github.com/DockerDiscordControl/ddc/internal/docker"
	"github.com/DockerDiscordControl/ddc/internal/sched"
	"github.com/DockerDiscordControl/ddc/internal/surface"
	"github.com/DockerDiscordControl/ddc/internal/ws"
)

// RegisterHandlers wires the panel's websocket events to the control layer.
func RegisterHandlers(srv *ws.Server, app *control.App, panel *Panel, tasks *sched.Store, coord *surface.Coordinator) {
	panel.onActivity = coord.NoteActivity

	// A fresh connection gets the channel list right away, before it picks
	// one to watch.
	srv.HandleConnect(func(c *ws.Conn) {
		ws.SendEvent(c, "channels", app.Channels())
	})

	srv.Handle("watch", func(c *ws.Conn, msg *ws.ClientMessage) {
		var args struct {
			Channel string `json:"channel"`
		}
		if err := json.Unmarshal(msg.Args, &args); err != nil {
			return
		}
		c.SetChannel(args.Channel)
		ws.SendEvent(c, "feed", panel.Entries(args.Channel))
	})

	srv.Handle("message", func(c *ws.Conn, msg *ws.ClientMessage) {
		var args struct {
			Channel string `json:"channel"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(msg.Args, &args); err != nil || args.Text == "" {
			return
		}
		panel.PostUserMessage(args.Channel, args.Text)
	})

	srv.Handle("delete_entry", func(c *ws.Conn, msg *ws.ClientMessage) {
		var args struct {
			Channel string `json:"channel"`
			ID      string `json:"id"`
		}
		if err := json.Unmarshal(msg.Args, &args); err != nil {
			return
		}
		panel.DeleteEntry(args.Channel, args.ID)
	})

	srv.Handle("action", func(c *ws.Conn, msg *ws.ClientMessage) {
		var args struct {
			Channel   string `json:"channel"`
			Container string `json:"container"`
			Action    string `json:"action"`
		}
		if err := json.Unmarshal(msg.Args, &args); err != nil {
			ackErr(c, msg, "bad request")
			return
		}
		err := app.Dispatch(context.Background(), args.Channel, args.Container, docker.Action(args.Action))
		if err != nil {
			slog.Warn("panel action rejected", "container", args.Container, "action", args.Action, "error", err)
			ackErr(c, msg, err.Error())
			return
		}
		ackOK(c, msg, "")
	})

	srv.Handle("toggle", func(c *ws.Conn, msg *ws.ClientMessage) {
		var args struct {
			Channel   string `json:"channel"`
			Container string `json:"container"`
		}
		if err := json.Unmarshal(msg.Args, &args); err != nil {
			ackErr(c, msg, "bad request")
			return
		}
		expanded := app.ToggleDetails(args.Channel, args.Container)
		if msg.ID != nil {
			ws.SendAck(c, *msg.ID, struct {
				OK       bool `json:"ok"`
				Expanded bool `json:"expanded"`
			}{true, expanded})
		}
	})

	srv.Handle("overview", func(c *ws.Conn, msg *ws.ClientMessage) {
		var args struct {
			Channel string `json:"channel"`
		}
		if err := json.Unmarshal(msg.Args, &args); err != nil {
			ackErr(c, msg, "bad request")
			return
		}
		out := app.Overview(args.Channel)
		if msg.ID != nil {
			ws.SendAck(c, *msg.ID, struct {
				OK   bool   `json:"ok"`
				Text string `json:"text"`
			}{true, out.Text})
		}
	})

	srv.Handle("refresh", func(c *ws.Conn, msg *ws.ClientMessage) {
		app.ForceRefreshAll(context.Background())
		ackOK(c, msg, "refreshed")
	})

	srv.Handle("task_list", func(c *ws.Conn, msg *ws.ClientMessage) {
		list, err := tasks.List()
		if err != nil {
			ackErr(c, msg, err.Error())
			return
		}
		if msg.ID != nil {
			ws.SendAck(c, *msg.ID, list)
		}
	})

	srv.Handle("task_add", func(c *ws.Conn, msg *ws.ClientMessage) {
		var t sched.Task
		if err := json.Unmarshal(msg.Args, &t); err != nil {
			ackErr(c, msg, "bad request")
			return
		}
		if err := tasks.Add(&t); err != nil {
			ackErr(c, msg, err.Error())
			return
		}
		ackOK(c, msg, t.ID)
	})

	srv.Handle("task_delete", func(c *ws.Conn, msg *ws.ClientMessage) {
		var args struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg.Args, &args); err != nil {
			ackErr(c, msg, "bad request")
			return
		}
		if err := tasks.Delete(args.ID); err != nil {
			ackErr(c, msg, err.Error())
			return
		}
		ackOK(c, msg, "")
	})
}

func ackOK(c *ws.Conn, msg *ws.ClientMessage, text string) {
	if msg.ID != nil {
		ws.SendAck(c, *msg.ID, ws.OkResponse{OK: true, Msg: text})
	}
}

func ackErr(c *ws.Conn, msg *ws.ClientMessage, text string) {
	if msg.ID != nil {
		ws.SendAck(c, *msg.ID, ws.ErrorResponse{OK: false, Msg: text})
	}
}
