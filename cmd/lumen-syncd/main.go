package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/lumen/core/internal/config"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/database"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/dedup"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/entity"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/events"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/history"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/logging"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/sharing"
	"github.com/MarcoPoloResearchLab/lumen/core/internal/store"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lumen-syncd",
		Short: "Lumen multi-peer synchronization daemon",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("owned-database-path", defaults.GetString("database.owned_path"), "Owned partition SQLite database path")
	cmd.PersistentFlags().String("shared-database-path", defaults.GetString("database.shared_path"), "Shared partition SQLite database path")
	cmd.PersistentFlags().String("author-tag", defaults.GetString("author.tag"), "Transaction author tag for locally-originated writes")
	cmd.PersistentFlags().String("author-identity", defaults.GetString("author.identity"), "Local sharing identity")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", defaults.GetString("log.file"), "Rotated log file path (empty logs to stderr)")
	cmd.PersistentFlags().Duration("poll-interval", defaults.GetDuration("replay.poll_interval"), "How often to replay pending ledger history")
	cmd.PersistentFlags().Int("remote-max-zones", defaults.GetInt("remote.max_zones"), "Zone cap enforced by the remote collaborator (0 = unlimited)")

	bindFlag(cmd, "database.owned_path", "owned-database-path")
	bindFlag(cmd, "database.shared_path", "shared-database-path")
	bindFlag(cmd, "author.tag", "author-tag")
	bindFlag(cmd, "author.identity", "author-identity")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "replay.poll_interval", "poll-interval")
	bindFlag(cmd, "remote.max_zones", "remote-max-zones")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runDaemon(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ownedDB, err := database.OpenPartition(appConfig.OwnedDatabasePath, logger)
	if err != nil {
		return err
	}
	ownedSQL, err := ownedDB.DB()
	if err != nil {
		return err
	}
	defer ownedSQL.Close()

	sharedDB, err := database.OpenPartition(appConfig.SharedDatabasePath, logger)
	if err != nil {
		return err
	}
	sharedSQL, err := sharedDB.DB()
	if err != nil {
		return err
	}
	defer sharedSQL.Close()

	partitionStore, err := store.New(store.Config{
		Owned:       ownedDB,
		Shared:      sharedDB,
		LocalAuthor: appConfig.AuthorTag,
		Clock:       time.Now,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	dedupEngine, err := dedup.NewEngine(dedup.Config{
		Store:  partitionStore,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	dispatcher := events.NewDispatcher()
	replayEngine, err := history.NewEngine(history.Config{
		Store:      partitionStore,
		Dispatcher: dispatcher,
		Dedup:      dedupEngine,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	remote := sharing.NewLocalRemote(sharing.LocalRemoteConfig{
		MaxZones: appConfig.RemoteMaxZones,
	})
	shareManager, err := sharing.NewManager(sharing.Config{
		Store:         partitionStore,
		Remote:        remote,
		Dedup:         dedupEngine,
		Signaler:      replayEngine,
		LocalIdentity: appConfig.LocalIdentity,
		IDs:           entity.NewUUIDProvider(),
		Clock:         time.Now,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	titles, err := shareManager.ShareTitles(signalCtx)
	if err != nil {
		return err
	}
	logger.Info("known shares", zap.Strings("titles", titles))

	storeEvents, unsubscribe := dispatcher.Subscribe(signalCtx, "")
	defer unsubscribe()
	go func() {
		for event := range storeEvents {
			logger.Info("store changed",
				zap.String("partition", string(event.Partition)),
				zap.Int("records", len(event.Records)))
		}
	}()

	logger.Info("sync daemon starting",
		zap.String("owned_path", appConfig.OwnedDatabasePath),
		zap.String("shared_path", appConfig.SharedDatabasePath),
		zap.Duration("poll_interval", appConfig.PollInterval))

	ticker := time.NewTicker(appConfig.PollInterval)
	defer ticker.Stop()

	replayAll := func() {
		for _, partition := range store.Partitions() {
			if err := replayEngine.ProcessRemoteChange(signalCtx, partition); err != nil {
				logger.Error("history replay failed",
					zap.String("partition", string(partition)),
					zap.Error(err))
			}
		}
	}

	replayAll()
	for {
		select {
		case <-signalCtx.Done():
			logger.Info("sync daemon stopping")
			return nil
		case <-ticker.C:
			replayAll()
		}
	}
}
