package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/follow-scope/fscope/internal/livematch"
	"github.com/follow-scope/fscope/internal/overlap"
	"github.com/follow-scope/fscope/internal/tracking"
	"github.com/follow-scope/fscope/internal/tweetscout"
)

const (
	commandUse              = "merge"
	commandShortDescription = "Merge dated tracking snapshots and re-verify them against live follow lists"
	envPrefix               = "FSCOPE_MERGE"
	flagSeedsName           = "seeds"
	flagSeedsDescription    = "Path to the seeds file (one profile link per line)"
	flagDataDirName         = "data-dir"
	flagDataDirDescription  = "Directory holding the dated snapshots and merge outputs"
	flagAPIKeyName          = "api-key"
	flagAPIKeyDescription   = "TweetScout API key"
	flagAPIBaseURLName      = "api-base-url"
	flagAPIBaseDescription  = "TweetScout API base URL"
	flagDelayName           = "delay-ms"
	flagDelayDescription    = "Base delay between seed fetches in milliseconds"
	defaultSeedsPath        = "followed_accounts.txt"
	defaultDataDir          = "."
	defaultDelayMillis      = 1000
	errMessageLoggerCreate  = "create logger"
	errMessageClientCreate  = "create tweetscout client"
	errMessageMatcherCreate = "create live matcher"
	logMessageRunStarting   = "starting merge run"
	logFieldSeedsPath       = "seedsPath"
	logFieldDataDir         = "dataDir"
)

func main() {
	cobra.CheckErr(newMergeCommand().Execute())
}

func newMergeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   commandUse,
		Short: commandShortDescription,
		RunE:  runMergeCommand,
	}

	command.Flags().String(flagSeedsName, defaultSeedsPath, flagSeedsDescription)
	command.Flags().String(flagDataDirName, defaultDataDir, flagDataDirDescription)
	command.Flags().String(flagAPIKeyName, "", flagAPIKeyDescription)
	command.Flags().String(flagAPIBaseURLName, "", flagAPIBaseDescription)
	command.Flags().Int(flagDelayName, defaultDelayMillis, flagDelayDescription)

	bindFlagToViper(command, flagSeedsName)
	bindFlagToViper(command, flagDataDirName)
	bindFlagToViper(command, flagAPIKeyName)
	bindFlagToViper(command, flagAPIBaseURLName)
	bindFlagToViper(command, flagDelayName)

	cobra.OnInitialize(configureEnvironment)

	return command
}

func bindFlagToViper(command *cobra.Command, flagName string) {
	cobra.CheckErr(viper.BindPFlag(flagName, command.Flags().Lookup(flagName)))
}

func configureEnvironment() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runMergeCommand(command *cobra.Command, _ []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", errMessageLoggerCreate, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	seedsPath := viper.GetString(flagSeedsName)
	dataDir := viper.GetString(flagDataDirName)
	logger.Info(logMessageRunStarting,
		zap.String(logFieldSeedsPath, seedsPath),
		zap.String(logFieldDataDir, dataDir))

	client, clientErr := tweetscout.NewClient(tweetscout.Config{
		BaseURL: viper.GetString(flagAPIBaseURLName),
		APIKey:  viper.GetString(flagAPIKeyName),
	})
	if clientErr != nil {
		return fmt.Errorf("%s: %w", errMessageClientCreate, clientErr)
	}

	matcher, matcherErr := livematch.NewMatcher(livematch.Config{
		Source: client,
		Pacing: overlap.SeedPacingConfig{BaseDelay: time.Duration(viper.GetInt(flagDelayName)) * time.Millisecond},
		Logger: logger,
	})
	if matcherErr != nil {
		return fmt.Errorf("%s: %w", errMessageMatcherCreate, matcherErr)
	}

	store := tracking.NewStore(tracking.StoreConfig{DataDir: dataDir, Logger: logger})

	application := NewMergeApplication(MergeDependencies{
		DiscoverSnapshots: store.DiscoverTrackingSnapshots,
		Rematch:           matcher.Rematch,
		WriteMergedOutput: store.WriteMergedOutput,
	})

	return application.Run(command.Context(), MergeConfiguration{
		SeedsPath: seedsPath,
		RunDate:   time.Now(),
	})
}
