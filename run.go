package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maastricht-university/moodcam/capture"
	"github.com/maastricht-university/moodcam/clients"
	cfg "github.com/maastricht-university/moodcam/config"
	"github.com/maastricht-university/moodcam/display"
	"github.com/maastricht-university/moodcam/sampler"
)

const stopTimeout = 10 * time.Second

func newRunCmd(a *app, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the camera and track emotions until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("source", "", "frame source: dir or snapshot")
	f.String("frames", "", "directory of frames for the dir source")
	f.String("snapshot-url", "", "camera snapshot URL for the snapshot source")
	f.String("inference-url", "", "expression model service URL")
	f.String("listen", "", "address for the live display server (empty disables it)")
	_ = v.BindPFlag("capture.source", f.Lookup("source"))
	_ = v.BindPFlag("capture.dir", f.Lookup("frames"))
	_ = v.BindPFlag("capture.snapshot_url", f.Lookup("snapshot-url"))
	_ = v.BindPFlag("inference.url", f.Lookup("inference-url"))
	_ = v.BindPFlag("display.listen", f.Lookup("listen"))
	return cmd
}

func (a *app) source() capture.Source {
	c := a.conf.Capture
	if c.Source == "snapshot" {
		return capture.NewSnapshotSource(c.SnapshotURL, cfg.Seconds(a.conf.API.TimeoutSeconds))
	}
	return capture.NewDirSource(c.Dir)
}

func (a *app) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conf := a.conf
	log := a.log.WithField("app", conf.App.Name)

	// Sampler treats a nil Store as "not logged in".
	var store sampler.Store
	api, who, err := a.authed()
	switch {
	case err == nil:
		store = api
		log.WithField("user", who.User.Fullname).Info("welcome back")
	case errors.Is(err, clients.ErrNotLoggedIn):
		log.WithError(err).Info("not logged in - mood records will not be saved")
	default:
		return err
	}

	inf := clients.NewExpressions(conf.Inference.URL, conf.Inference.ModelURL, cfg.Seconds(conf.Inference.TimeoutSeconds), a.log)
	s := sampler.New(sampler.Config{
		SaveInterval:  cfg.Millis(conf.Sampler.SaveIntervalMs),
		FrameInterval: cfg.Millis(conf.Sampler.FrameIntervalMs),
		Constraints:   capture.Constraints{Width: conf.Capture.Width, Height: conf.Capture.Height},
		ReportDir:     conf.Paths.Outputs,
	}, inf, store, sampler.WithLogger(a.log))

	s.OnDisplayUpdate(display.NewLogSurface(a.log).Render)

	if conf.Display.Listen != "" {
		hub := display.NewHub(display.NewBoard(), a.log)
		s.OnDisplayUpdate(hub.Render)
		srv := &http.Server{Addr: conf.Display.Listen, Handler: hub.Router()}
		go func() {
			log.WithField("addr", conf.Display.Listen).Info("display server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("display server")
			}
		}()
		defer func() {
			hub.Close()
			_ = srv.Close()
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx, a.source()); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return s.Stop(stopCtx)
}
