package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maastricht-university/moodcam/clients"
	cfg "github.com/maastricht-university/moodcam/config"
	"github.com/maastricht-university/moodcam/creds"
)

// app is what every subcommand shares once flags, env and file are merged.
type app struct {
	conf  *cfg.Root
	log   *logrus.Logger
	api   *clients.HTTP
	creds *creds.Store
}

// authed returns the API client with the stored token, or
// clients.ErrNotLoggedIn when there is no usable login.
func (a *app) authed() (*clients.HTTP, *creds.Credentials, error) {
	c, err := a.creds.Load()
	if err != nil {
		if errors.Is(err, creds.ErrNone) {
			return nil, nil, clients.ErrNotLoggedIn
		}
		return nil, nil, err
	}
	if !c.Valid(time.Now()) {
		return nil, nil, fmt.Errorf("stored login expired, log in again: %w", clients.ErrNotLoggedIn)
	}
	return a.api.WithToken(c.Token), c, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	v := viper.New()
	var cfgPath string

	root := &cobra.Command{
		Use:           "moodcam",
		Short:         "Webcam mood tracker client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional
			_ = godotenv.Load()

			v.SetEnvPrefix("MOODCAM")
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			for _, k := range cfg.EnvKeys() {
				if err := v.BindEnv(k); err != nil {
					return err
				}
			}

			conf, err := cfg.Load(cfgPath)
			if err != nil {
				return err
			}
			conf.Overlay(v)
			if err := conf.Validate(); err != nil {
				return err
			}

			log := logrus.New()
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			lvl, err := logrus.ParseLevel(conf.App.LogLvl)
			if err != nil {
				return fmt.Errorf("app.log_level: %w", err)
			}
			log.SetLevel(lvl)

			a.conf = conf
			a.log = log
			a.api = clients.NewHTTP(conf.API.BaseURL, cfg.Seconds(conf.API.TimeoutSeconds), log)
			a.creds = creds.NewStore(conf.Paths.Credentials)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	pf.String("api-url", "", "backend API base URL")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("api.base_url", pf.Lookup("api-url"))
	_ = v.BindPFlag("app.log_level", pf.Lookup("log-level"))

	root.AddCommand(
		newRunCmd(a, v),
		newSignupCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProfileCmd(a),
		newRenameCmd(a),
		newDeleteAccountCmd(a),
		newHistoryCmd(a),
		newRecordCmd(a),
		newDeleteRecordCmd(a),
		newSessionsCmd(a),
		newStatsCmd(a),
		newHealthCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "moodcam:", err)
		os.Exit(1)
	}
}
