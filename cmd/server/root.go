package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AnshRaj112/chatooz-backend/internal/config"
	"github.com/AnshRaj112/chatooz-backend/internal/database"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

// newRootCommand builds the chatooz CLI. Running it without a subcommand
// starts the server.
func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "chatooz",
		Short:        "chatooz chat backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")

	cmd.AddCommand(newServeCommand(&configFile))
	cmd.AddCommand(newInitDBCommand(&configFile))
	return cmd
}

func newServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configFile)
		},
	}
}

func newInitDBCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create PostgreSQL tables and MongoDB indexes, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			return initDB(cmd.Context(), cfg)
		},
	}
}

// loadConfig reads configuration, letting --config win over CONFIG_FILE.
func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

func initDB(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := database.ConnectPostgres(cfg.PostgresURI)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.InitPostgresTables(ctx, db); err != nil {
		return err
	}
	log.Println("✅ PostgreSQL tables ready")

	client, mdb, err := database.ConnectMongo(cfg.MongoURI)
	if err != nil {
		return err
	}
	defer database.DisconnectMongo(client)
	if err := services.NewProfileDirectory(mdb.Collection(services.ProfilesCollection)).EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := services.NewChatHistory(mdb.Collection(services.MessagesCollection)).EnsureIndexes(ctx); err != nil {
		return err
	}
	log.Println("✅ MongoDB indexes ready")
	return nil
}
