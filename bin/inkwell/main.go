package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/useinkwell/inkwell/server"
	"github.com/useinkwell/inkwell/server/profile"
	"github.com/useinkwell/inkwell/store"
	"github.com/useinkwell/inkwell/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Inkwell is a note-taking server with a streaming AI assistant",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := profile.GetFromViper()
		if err != nil {
			return err
		}

		driver, err := db.NewDriver(p)
		if err != nil {
			return err
		}
		st := store.New(driver)
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		srv := server.NewServer(p, st)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("server stopped", "err", err)
				stop()
			}
		}()
		slog.Info("inkwell started", "addr", p.Addr, "port", p.Port, "driver", p.Driver)

		<-ctx.Done()
		slog.Info("shutting down")
		return srv.Shutdown(context.Background())
	},
}

func init() {
	// Values from a local .env are visible to viper's env binding below.
	_ = godotenv.Load()

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `server mode: "prod" or "dev"`)
	flags.String("addr", "", "bind address")
	flags.Int("port", 8081, "bind port")
	flags.String("data", ".", "data directory")
	flags.String("driver", "sqlite", `database driver: "sqlite", "mysql" or "postgres"`)
	flags.String("dsn", "", "database connection string")
	flags.String("secret", "", "access token signing secret")
	flags.String("ai-base-url", "", "completion provider base URL")

	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("inkwell")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
}
