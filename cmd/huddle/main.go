// Command huddle is a headless call client: it starts or joins a room on a
// relay, sends synthetic media and logs call snapshots until interrupted.
// SIGUSR1 and SIGUSR2 toggle the local audio and video tracks.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/Huddle/internal/adapters/callsvc"
	"github.com/dkeye/Huddle/internal/adapters/rtc"
	"github.com/dkeye/Huddle/internal/adapters/signalclient"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/app/store"
	"github.com/dkeye/Huddle/internal/auth"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/media"
)

type options struct {
	room      string
	video     bool
	videoFile string
	mint      bool
	ttl       time.Duration
}

func flags(v *viper.Viper) (options, error) {
	var o options
	fs := pflag.NewFlagSet("huddle", pflag.ContinueOnError)
	fs.String("server", "", "relay base url")
	fs.String("token", "", "bearer token issued by the relay")
	fs.String("user", "", "user id, used with --mint-token")
	fs.String("secret", "", "relay signing secret, used with --mint-token")
	fs.String("log-level", "", "log level")
	fs.StringVar(&o.room, "room", "", "room id to join; a new room is started when empty")
	fs.BoolVar(&o.video, "video", false, "send video")
	fs.StringVar(&o.videoFile, "video-file", "", "VP8 IVF file used as the camera")
	fs.BoolVar(&o.mint, "mint-token", false, "print a token for --user signed with --secret and exit")
	fs.DurationVar(&o.ttl, "ttl", 24*time.Hour, "lifetime of a minted token")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return o, err
	}
	for key, name := range map[string]string{
		"client.server_url": "server",
		"client.token":      "token",
		"client.user_id":    "user",
		"client.log_level":  "log-level",
		"server.secret":     "secret",
	} {
		if f := fs.Lookup(name); f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return o, err
			}
		}
	}
	return o, nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	v := config.New()
	opts, err := flags(v)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("bad flags")
	}
	cfg, err := config.LoadFile(v, config.FileName())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Client.LogLevel); err == nil && cfg.Client.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	if opts.mint {
		id, err := domain.ParseUserID(cfg.Client.UserID)
		if err != nil {
			log.Fatal().Err(err).Msg("--user is required")
		}
		tok, err := auth.Issue(cfg.Server.Secret, domain.User{ID: id}, opts.ttl)
		if err != nil {
			log.Fatal().Err(err).Msg("mint token")
		}
		fmt.Println(tok)
		return
	}

	if err := run(cfg.Client, opts); err != nil {
		log.Fatal().Err(err).Msg("huddle")
	}
}

func run(cfg config.ClientConfig, opts options) error {
	if cfg.Token == "" {
		return errors.New("a token is required (--token or HUDDLE_CLIENT_TOKEN)")
	}
	self, err := auth.Subject(cfg.Token)
	if err != nil {
		return err
	}
	wsURL, err := signalclient.SignalURL(cfg.ServerURL)
	if err != nil {
		return err
	}
	conns, err := rtc.NewFactory(rtc.ConfigFromURLs(cfg.ICEServers))
	if err != nil {
		return err
	}
	devices := media.DefaultDevices()
	if opts.videoFile != "" {
		path := opts.videoFile
		devices.Video = func() (media.SampleSource, error) { return media.OpenIVF(path) }
	}

	o := orch.New(orch.Deps{
		Self:    self,
		Token:   cfg.Token,
		Devices: devices,
		Calls:   callsvc.New(cfg.ServerURL, cfg.Token, nil),
		Dial: orch.ChannelDialer(signalclient.Config{
			URL:               wsURL,
			ReconnectAttempts: cfg.ReconnectAttempts,
			ReconnectDelay:    cfg.ReconnectDelay,
			PingPeriod:        cfg.PingPeriod,
			WriteTimeout:      cfg.WriteTimeout,
		}),
		Conns: conns,
		Store: store.New(),
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go func() { _ = o.Run(runCtx) }()

	snaps, unsubscribe := o.Store().Subscribe(8)
	defer unsubscribe()
	go logSnapshots(snaps)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.room == "" {
		kind := domain.CallAudio
		if opts.video {
			kind = domain.CallVideo
		}
		id, err := o.StartCall(ctx, kind)
		if err != nil {
			return err
		}
		log.Info().Str("room", id.String()).Msg("call started, share this room id")
	} else {
		if err := o.JoinCall(ctx, domain.RoomID(opts.room), opts.video); err != nil {
			return err
		}
		log.Info().Str("room", opts.room).Msg("joined call")
	}

	if len(toggleSignals) > 0 {
		sigs := make(chan os.Signal, 4)
		for s := range toggleSignals {
			signal.Notify(sigs, s)
		}
		defer signal.Stop(sigs)
		go handleToggles(ctx, o, sigs, toggleSignals)
		log.Info().Msg("SIGUSR1 toggles audio, SIGUSR2 toggles video")
	}

	<-ctx.Done()
	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer leaveCancel()
	if err := o.LeaveCall(leaveCtx); err != nil {
		log.Warn().Err(err).Msg("leave call")
	}
	log.Info().Msg("left call")
	return nil
}

func logSnapshots(snaps <-chan store.Snapshot) {
	for snap := range snaps {
		ev := log.Info().Str("module", "huddle").Str("signaling", snap.Signaling)
		if s := snap.Session; s != nil {
			ev = ev.Str("room", s.RoomID.String()).
				Int("participants", len(s.Participants)).
				Bool("audio", s.Local.AudioEnabled).
				Bool("video", s.Local.VideoEnabled)
		}
		var packets uint64
		for _, tracks := range snap.Streams {
			for _, t := range tracks {
				packets += t.Packets
			}
		}
		ev.Int("remote_streams", len(snap.Streams)).Uint64("packets", packets).Msg("call state")
	}
}
