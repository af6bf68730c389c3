package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/follow-scope/fscope/internal/notify"
	"github.com/follow-scope/fscope/internal/overlap"
	"github.com/follow-scope/fscope/internal/tracking"
	"github.com/follow-scope/fscope/internal/tweetscout"
)

const (
	commandUse               = "scan"
	commandShortDescription  = "Aggregate seed follow lists and classify common follows"
	envPrefix                = "FSCOPE_SCAN"
	flagSeedsName            = "seeds"
	flagSeedsDescription     = "Path to the seeds file (one profile link per line)"
	flagDataDirName          = "data-dir"
	flagDataDirDescription   = "Directory holding the persisted store and dated snapshots"
	flagThresholdName        = "threshold"
	flagThresholdDescription = "Support threshold fraction of seeds required for tracking"
	flagAPIKeyName           = "api-key"
	flagAPIKeyDescription    = "TweetScout API key"
	flagAPIBaseURLName       = "api-base-url"
	flagAPIBaseDescription   = "TweetScout API base URL"
	flagDelayName            = "delay-ms"
	flagDelayDescription     = "Base delay between seed fetches in milliseconds"
	flagBotTokenName         = "telegram-bot-token"
	flagBotTokenDescription  = "Telegram bot token for notifications (optional)"
	flagChatIDName           = "telegram-chat-id"
	flagChatIDDescription    = "Telegram chat id for notifications (optional)"
	defaultSeedsPath         = "followed_accounts.txt"
	defaultDataDir           = "."
	defaultThresholdFraction = 0.2
	defaultDelayMillis       = 1000
	errMessageLoggerCreate   = "create logger"
	errMessageClientCreate   = "create tweetscout client"
	errMessageBuildAggregate = "create aggregator"
	logMessageRunStarting    = "starting scan run"
	logFieldSeedsPath        = "seedsPath"
	logFieldDataDir          = "dataDir"
	logFieldThreshold        = "threshold"
)

func main() {
	cobra.CheckErr(newScanCommand().Execute())
}

func newScanCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   commandUse,
		Short: commandShortDescription,
		RunE:  runScanCommand,
	}

	command.Flags().String(flagSeedsName, defaultSeedsPath, flagSeedsDescription)
	command.Flags().String(flagDataDirName, defaultDataDir, flagDataDirDescription)
	command.Flags().Float64(flagThresholdName, defaultThresholdFraction, flagThresholdDescription)
	command.Flags().String(flagAPIKeyName, "", flagAPIKeyDescription)
	command.Flags().String(flagAPIBaseURLName, "", flagAPIBaseDescription)
	command.Flags().Int(flagDelayName, defaultDelayMillis, flagDelayDescription)
	command.Flags().String(flagBotTokenName, "", flagBotTokenDescription)
	command.Flags().String(flagChatIDName, "", flagChatIDDescription)

	bindFlagToViper(command, flagSeedsName)
	bindFlagToViper(command, flagDataDirName)
	bindFlagToViper(command, flagThresholdName)
	bindFlagToViper(command, flagAPIKeyName)
	bindFlagToViper(command, flagAPIBaseURLName)
	bindFlagToViper(command, flagDelayName)
	bindFlagToViper(command, flagBotTokenName)
	bindFlagToViper(command, flagChatIDName)

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

func runScanCommand(command *cobra.Command, _ []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", errMessageLoggerCreate, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	seedsPath := viper.GetString(flagSeedsName)
	dataDir := viper.GetString(flagDataDirName)
	thresholdFraction := viper.GetFloat64(flagThresholdName)
	logger.Info(logMessageRunStarting,
		zap.String(logFieldSeedsPath, seedsPath),
		zap.String(logFieldDataDir, dataDir),
		zap.Float64(logFieldThreshold, thresholdFraction))

	client, clientErr := tweetscout.NewClient(tweetscout.Config{
		BaseURL: viper.GetString(flagAPIBaseURLName),
		APIKey:  viper.GetString(flagAPIKeyName),
	})
	if clientErr != nil {
		return fmt.Errorf("%s: %w", errMessageClientCreate, clientErr)
	}

	aggregator, aggregatorErr := overlap.NewAggregator(overlap.AggregatorConfig{
		Source: client,
		Pacing: overlap.SeedPacingConfig{BaseDelay: time.Duration(viper.GetInt(flagDelayName)) * time.Millisecond},
		Logger: logger,
	})
	if aggregatorErr != nil {
		return fmt.Errorf("%s: %w", errMessageBuildAggregate, aggregatorErr)
	}

	store := tracking.NewStore(tracking.StoreConfig{DataDir: dataDir, Logger: logger})

	application := NewScanApplication(ScanDependencies{
		Aggregate:          aggregator.Aggregate,
		LoadStore:          store.LoadStore,
		ReplaceStore:       store.Replace,
		WriteDatedTracking: store.WriteDatedTracking,
		StorePath:          store.StorePath,
		Sink:               buildNotificationSink(logger),
	})

	return application.Run(command.Context(), ScanConfiguration{
		SeedsPath:         seedsPath,
		ThresholdFraction: thresholdFraction,
		RunDate:           time.Now(),
	})
}

func buildNotificationSink(logger *zap.Logger) notify.Sink {
	botToken := viper.GetString(flagBotTokenName)
	chatID := viper.GetString(flagChatIDName)
	if strings.TrimSpace(botToken) != "" && strings.TrimSpace(chatID) != "" {
		return notify.NewTelegramSink(notify.TelegramConfig{BotToken: botToken, ChatID: chatID})
	}
	return notify.NewLogSink(logger)
}
