package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/follow-scope/fscope/internal/server"
	"github.com/follow-scope/fscope/internal/tracking"
)

const (
	commandUse               = "server"
	commandShortDescription  = "Serve the tracking tables over HTTP"
	envPrefix                = "FSCOPE_SERVER"
	flagHostName             = "host"
	flagHostDescription      = "Host interface for the HTTP server"
	flagPortName             = "port"
	flagPortDescription      = "Port for the HTTP server"
	flagDataDirName          = "data-dir"
	flagDataDirDescription   = "Directory holding the persisted store and dated snapshots"
	defaultHost              = "127.0.0.1"
	defaultPort              = 8080
	defaultDataDir           = "."
	shutdownTimeout          = 10 * time.Second
	errMessageLoggerCreate   = "create logger"
	errMessageListenAndServe = "listen and serve"
	logMessageStartingServer = "starting HTTP server"
	logMessageServerStopped  = "server stopped"
	logMessageListenError    = "server listen failure"
	logFieldAddress          = "address"
)

func main() {
	cobra.CheckErr(newServerCommand().Execute())
}

func newServerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   commandUse,
		Short: commandShortDescription,
		RunE:  runServerCommand,
	}

	command.Flags().String(flagHostName, defaultHost, flagHostDescription)
	command.Flags().Int(flagPortName, defaultPort, flagPortDescription)
	command.Flags().String(flagDataDirName, defaultDataDir, flagDataDirDescription)

	bindFlagToViper(command, flagHostName)
	bindFlagToViper(command, flagPortName)
	bindFlagToViper(command, flagDataDirName)

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

func runServerCommand(command *cobra.Command, _ []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", errMessageLoggerCreate, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store := tracking.NewStore(tracking.StoreConfig{
		DataDir: viper.GetString(flagDataDirName),
		Logger:  logger,
	})
	router, routerErr := server.NewRouter(server.RouterConfig{
		Store:  store,
		Logger: logger,
	})
	if routerErr != nil {
		return routerErr
	}

	host := viper.GetString(flagHostName)
	port := viper.GetInt(flagPortName)
	address := fmt.Sprintf("%s:%d", host, port)
	logger.Info(logMessageStartingServer, zap.String(logFieldAddress, address))

	signalContext, cancelSignals := signal.NotifyContext(command.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelSignals()

	httpServer := &http.Server{Addr: address, Handler: router}
	group, groupContext := errgroup.WithContext(signalContext)
	group.Go(func() error {
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error(logMessageListenError, zap.Error(serveErr))
			return fmt.Errorf("%s: %w", errMessageListenAndServe, serveErr)
		}
		return nil
	})
	group.Go(func() error {
		<-groupContext.Done()
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		return httpServer.Shutdown(shutdownContext)
	})

	if waitErr := group.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	logger.Info(logMessageServerStopped)
	return nil
}
