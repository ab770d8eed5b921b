package main

import (
	"fmt"
	"strings"

	"github.com/printmind/printmind/core"
	"github.com/spf13/cobra"
)

var (
	askUserID   string
	askPrinter  string
	askMaterial string
	askBeginner bool
	askStrict   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Long: `Runs one turn against a fresh session and prints the answer.
With --strict the question goes through the decomposition pipeline and
the answer carries a quality score.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		engine, cleanup, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		sessionID, err := engine.StartSession(askUserID, func(s *core.Session) {
			s.PrinterModel = askPrinter
			s.Material = askMaterial
			if askBeginner {
				s.SetMeta("audience", "beginner")
			}
		})
		if err != nil {
			return err
		}
		defer func() { _ = engine.EndSession(sessionID) }()

		if askStrict {
			result, err := engine.ProcessTurnStrict(cmd.Context(), sessionID, question)
			if err != nil {
				return err
			}
			fmt.Println(result.FinalAnswer)
			fmt.Printf("\nquality: %.1f (correctness %d, completeness %d, clarity %d) after %d attempt(s)\n",
				result.Score.Average(), result.Score.Correctness, result.Score.Completeness,
				result.Score.Clarity, result.Attempts)
			if result.QualityShortfall {
				fmt.Println("note: answer did not clear the quality bar; best attempt shown")
				for _, d := range result.Score.Deficiencies {
					fmt.Printf("  - %s\n", d)
				}
			}
			return nil
		}

		result, err := engine.ProcessTurn(cmd.Context(), sessionID, question)
		if err != nil {
			return err
		}
		fmt.Println(result.FinalAnswer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", "local", "user id for the session")
	askCmd.Flags().StringVar(&askPrinter, "printer", "", "printer model for session context")
	askCmd.Flags().StringVar(&askMaterial, "material", "", "loaded material for session context")
	askCmd.Flags().BoolVar(&askBeginner, "beginner", false, "simplify the answer for newcomers")
	askCmd.Flags().BoolVar(&askStrict, "strict", false, "use the decomposition pipeline with the quality gate")
}
