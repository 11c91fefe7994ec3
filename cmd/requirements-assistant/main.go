package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"requirements-assistant/internal/config"
	"requirements-assistant/internal/helpers"
	"requirements-assistant/internal/parser"
	"requirements-assistant/internal/repositories"
	"requirements-assistant/internal/server"
	"requirements-assistant/internal/services"
	"requirements-assistant/internal/store"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "requirements-assistant",
		Short: "Generate, refine and send requirements to JIRA using RAG",
		Long: `An assistant that drafts functional requirements as user stories from a
client request, refines them through conversation, validates them and creates
the approved stories as JIRA tickets, optionally planned into a sprint.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configFile)
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(configFile, force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")

	checkJiraCmd := &cobra.Command{
		Use:   "check-jira",
		Short: "Verify JIRA credentials and project access",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkJira(configFile)
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(checkJiraCmd)

	if err := rootCmd.Execute(); err != nil {
		helpers.PrintError("%v", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	p, err := parser.New(cfg.LLM.OutputFormat)
	if err != nil {
		return err
	}

	var retriever services.Retriever
	if cfg.Retriever.BaseURL != "" {
		retriever = repositories.NewRetrieverRepository(&cfg.Retriever)
	} else {
		helpers.PrintWarning("No retriever configured; generation will run without document context")
	}

	generator := services.NewAIService(&cfg.LLM, logger)
	analysis := services.NewAnalysisService(retriever, generator, cfg.Retriever.TopK, logger)

	jira := repositories.NewJiraRepository(&cfg.Jira)
	dispatcher := services.NewDispatcher(jira, cfg.Jira.ProjectKey, cfg.Jira.Concurrency, logger)
	sprint := services.NewSprintService(generator, jira, dispatcher, cfg.Jira.BoardID,
		time.Duration(cfg.Jira.SprintStartDelaySeconds)*time.Second, logger)

	var audio *services.AudioService
	if cfg.Audio.TranscriberURL != "" {
		transcriber := repositories.NewTranscriberRepository(&cfg.Audio)
		audio = services.NewAudioService(transcriber, cfg.Audio.MaxSeconds, logger)
	} else {
		helpers.PrintWarning("No transcriber configured; /audio_chat will be unavailable")
	}

	var chats *store.Store
	if cfg.Storage.DatabasePath != "" {
		chats, err = store.Open(cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open chat store: %w", err)
		}
		defer chats.Close()
	} else {
		helpers.PrintWarning("No database configured; conversations will not be persisted")
	}

	srv := server.New(analysis, sprint, dispatcher, audio, p, chats, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	helpers.PrintSuccess("Configuration loaded - output format: %s", cfg.LLM.OutputFormat)
	helpers.PrintInfo("Listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}

func initConfig(configPath string, force bool) error {
	helpers.PrintTitle("Initializing Requirements Assistant Configuration")

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.Config{}
	cfg.LLM.APIKey = "your-api-key-here"
	cfg.LLM.Model = "claude-sonnet-4-20250514"
	cfg.LLM.TimeoutSeconds = 120
	cfg.LLM.MaxTokens = 4000
	cfg.LLM.Temperature = 0.3
	cfg.LLM.RetryCount = 3
	cfg.LLM.RetryDelaySeconds = 5
	cfg.LLM.OutputFormat = "marker"
	cfg.Retriever.BaseURL = "http://localhost:8080"
	cfg.Retriever.Collection = "documentos"
	cfg.Retriever.TopK = 6
	cfg.Jira.BaseURL = "https://your-domain.atlassian.net"
	cfg.Jira.Username = "your-email@example.com"
	cfg.Jira.APIToken = "your-jira-api-token"
	cfg.Jira.ProjectKey = "PROJ"
	cfg.Jira.BoardID = 1
	cfg.Jira.Timeout = 30
	cfg.Jira.Concurrency = 4
	cfg.Jira.SprintStartDelaySeconds = 2
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8000
	cfg.Audio.MaxSeconds = 120
	cfg.Audio.TranscriberURL = "http://localhost:9000"
	cfg.Audio.TimeoutSeconds = 60
	cfg.Storage.DatabasePath = "./app.db"

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	helpers.PrintSuccess("Configuration file created at %s", configPath)
	helpers.PrintWarning("Please edit the configuration file and add your API keys before serving.")
	return nil
}

func checkJira(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	repo := repositories.NewJiraRepository(&cfg.Jira)
	ctx := context.Background()

	helpers.PrintInfo("Testing JIRA authentication and listing accessible projects...")
	projects, err := repo.TestConnection(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	helpers.PrintSuccess("Authentication successful! Found %d accessible projects:", len(projects))

	projectFound := false
	for _, project := range projects {
		marker := "📋"
		if project.Key == cfg.Jira.ProjectKey {
			marker = "✅"
			projectFound = true
		}
		helpers.PrintInfo("  %s %s (%s)", marker, project.Key, project.Name)
	}

	if !projectFound {
		helpers.PrintWarning("Project key '%s' not found in accessible projects!", cfg.Jira.ProjectKey)
		return fmt.Errorf("project key '%s' not found in accessible projects", cfg.Jira.ProjectKey)
	}

	helpers.PrintInfo("Testing access to project '%s'...", cfg.Jira.ProjectKey)
	if _, err := repo.GetProjectInfo(ctx, cfg.Jira.ProjectKey); err != nil {
		return fmt.Errorf("failed to access project: %w", err)
	}

	helpers.PrintSuccess("JIRA connection successful")
	return nil
}
