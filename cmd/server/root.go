package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"blog/internal/config"
	"blog/internal/db"
	"blog/internal/logging"
	"blog/internal/mailer"
	"blog/internal/models"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "blog [command] [flags]",
	Short:         "A small personal blog server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

// bootstrap loads the configuration and builds the process logger.
func bootstrap() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr), nil
}

func openStore(cfg *config.Config, log logrus.FieldLogger) (*models.Store, error) {
	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	log.WithField("driver", cfg.Database.Driver).Info("database ready")
	return models.NewStore(database, log), nil
}

// newSender relays over SMTP when a host is configured and logs otherwise.
func newSender(cfg *config.Config, log logrus.FieldLogger) mailer.Sender {
	if cfg.Mail.Host == "" {
		log.Warn("smtp host not set, contact messages will only be logged")
		return mailer.LogSender{Log: log}
	}
	return mailer.NewSMTP(mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Mode:     cfg.Mail.Mode,
		Timeout:  cfg.Mail.Timeout,
	})
}
