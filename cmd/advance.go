package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lanecrew/tournament-system/config"
	"github.com/lanecrew/tournament-system/db"
	"github.com/lanecrew/tournament-system/live"
	"github.com/lanecrew/tournament-system/metrics"
	"github.com/lanecrew/tournament-system/repositories"
	"github.com/lanecrew/tournament-system/services"
)

var (
	advanceTournamentID int
	advanceStageIndex   int
)

func init() {
	advanceCmd.Flags().IntVar(&advanceTournamentID, "tournament", 0, "tournament ID")
	advanceCmd.Flags().IntVar(&advanceStageIndex, "stage", -1, "stage index to advance from (all stages when omitted)")
	advanceCmd.MarkFlagRequired("tournament")
	rootCmd.AddCommand(advanceCmd)
}

// Запасной путь на случай, если админка недоступна: тот же сервис, что и у
// HTTP-эндпоинта, поэтому повторный запуск безопасен.
var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Advance qualifying bowlers out of a completed stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dbConn.Close()

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		hub := live.NewHub(logger)
		go hub.Run()

		tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
		stageRepo := repositories.NewPostgresStageRepository(dbConn)
		registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)

		m := metrics.NewService(prometheus.NewRegistry())
		advancer := services.NewAdvancementService(
			dbConn, tournamentRepo, stageRepo, registrationRepo, hub, m, logger)

		if advanceStageIndex < 0 {
			result, err := advancer.AdvanceAll(cmd.Context(), advanceTournamentID)
			if err != nil {
				return fmt.Errorf("advancement failed: %w", err)
			}
			for _, stage := range result.Stages {
				log.Info("stage advancement complete",
					"tournament", stage.TournamentID,
					"stage", stage.StageIndex,
					"next_stage", stage.NextStageIndex,
					"eligible", stage.Eligible,
					"already_advanced", stage.AlreadyAdvanced,
					"advanced", stage.Advanced)
			}
			log.Info("tournament advancement complete",
				"tournament", result.TournamentID,
				"advanced", result.Advanced)
			return nil
		}

		result, err := advancer.AdvanceStage(cmd.Context(), advanceTournamentID, advanceStageIndex)
		if err != nil {
			return fmt.Errorf("advancement failed: %w", err)
		}

		log.Info("stage advancement complete",
			"tournament", result.TournamentID,
			"stage", result.StageIndex,
			"next_stage", result.NextStageIndex,
			"eligible", result.Eligible,
			"already_advanced", result.AlreadyAdvanced,
			"advanced", result.Advanced)
		return nil
	},
}
