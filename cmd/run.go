package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/logger"
	"github.com/spigell/talentmatch/internal/models"
	"github.com/spigell/talentmatch/internal/pipeline"
)

const (
	PromptReasoning     = "Show reasoning"
	PromptMatchesToFile = "Dump matches to file"
	PromptExit          = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptReasoning, PromptMatchesToFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run <resume>",
	Short: "Match a resume file (PDF or text) against the job catalog",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("yes", "y", false, "print the matches and exit without the interactive menu")
}

// run is the main command for the cli.
func run(cmd *cobra.Command, path string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig(viper.GetViper())
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the talentmatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading the resume", zap.Error(err), zap.String("path", path))
	}

	svc, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	spinner, _ := pterm.DefaultSpinner.Start("Matching the resume against ", svc.index.Len(), " jobs...")

	state, outcome := svc.pipeline.Process(ctx, models.BytesInput(data))
	if outcome != pipeline.OutcomeSucceeded {
		spinner.Fail("Matching failed")
		svc.logger.Fatal("exiting",
			zap.String("reason", state.Error),
			zap.String("run_id", state.RunID),
			zap.String("last_step", string(state.CurrentStep)),
		)
	}
	spinner.Success("Matched ", state.CandidateProfile.Name, " against ", len(state.JobMatches), " jobs")

	if err := renderMatches(state.JobMatches); err != nil {
		svc.logger.Fatal("rendering matches", zap.Error(err))
	}

	if cmd.Flag("yes").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			svc.logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, svc.logger, state.JobMatches); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			svc.logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, matches []*models.MatchResult) error {
	switch action {
	case PromptReasoning:
		for _, m := range matches {
			pterm.Println(reasoningReport(m))
		}
		return nil
	case PromptMatchesToFile:
		filename, err := dumpMatchesToTmpFile(matches)
		if err != nil {
			return fmt.Errorf("dump matches to file: %w", err)
		}
		logger.Info("dumping matches to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func renderMatches(matches []*models.MatchResult) error {
	return pterm.DefaultTable.WithHasHeader().WithData(matchesTable(matches)).Render()
}

func matchesTable(matches []*models.MatchResult) pterm.TableData {
	data := pterm.TableData{{"#", "Job", "Score", "Status", "Recommendation"}}
	for i, m := range matches {
		recommendation := m.Recommendation
		if recommendation == "" {
			recommendation = "-"
		}
		data = append(data, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%s (%s)", m.MatchedJob.Title, m.MatchedJob.ID),
			fmt.Sprintf("%.2f", m.ConfidenceScore),
			string(m.Status),
			recommendation,
		})
	}
	return data
}

func reasoningReport(m *models.MatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %.2f %s\n", m.MatchedJob.Title, m.MatchedJob.ID, m.ConfidenceScore, m.Status)
	fmt.Fprintf(&b, "  %s\n", m.Reasoning)
	if len(m.KeyStrengths) > 0 {
		fmt.Fprintf(&b, "  strengths: %s\n", strings.Join(m.KeyStrengths, "; "))
	}
	if len(m.KeyGaps) > 0 {
		fmt.Fprintf(&b, "  gaps: %s\n", strings.Join(m.KeyGaps, "; "))
	}
	return b.String()
}

func dumpMatchesToTmpFile(matches []*models.MatchResult) (string, error) {
	file, err := os.CreateTemp("", "matches_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(matches); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// redacted returns a copy of config safe to print.
func redacted(config *Config) Config {
	c := *config
	if c.AI.Gemini.APIKey != "" {
		c.AI.Gemini.APIKey = "***"
	}
	if c.AI.Anthropic.APIKey != "" {
		c.AI.Anthropic.APIKey = "***"
	}
	return c
}
