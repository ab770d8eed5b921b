package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/printmind/printmind/core"
	"github.com/spf13/cobra"
)

var (
	chatUserID   string
	chatPrinter  string
	chatMaterial string
	chatBeginner bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session with the assistant",
	Long: `Starts a session and reads questions from stdin until EOF or
"/quit". Capability calls made on your behalf are reported after each
answer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		engine, cleanup, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		sessionID, err := engine.StartSession(chatUserID, func(s *core.Session) {
			s.PrinterModel = chatPrinter
			s.Material = chatMaterial
			if chatBeginner {
				s.SetMeta("audience", "beginner")
			}
		})
		if err != nil {
			return err
		}
		defer func() { _ = engine.EndSession(sessionID) }()

		fmt.Printf("session %s started. /quit to exit.\n", sessionID)

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" || line == "/exit" {
				break
			}

			result, err := engine.ProcessTurn(cmd.Context(), sessionID, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}

			fmt.Println()
			fmt.Println(result.FinalAnswer)
			if len(result.Results) > 0 {
				fmt.Printf("\n(%d capability call(s) in %d round(s)", len(result.Results), result.Rounds)
				var failed int
				for _, r := range result.Results {
					if !r.Success {
						failed++
					}
				}
				if failed > 0 {
					fmt.Printf(", %d failed", failed)
				}
				fmt.Println(")")
			}
			fmt.Println()
		}

		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatUserID, "user", "local", "user id for the session")
	chatCmd.Flags().StringVar(&chatPrinter, "printer", "", "printer model for session context")
	chatCmd.Flags().StringVar(&chatMaterial, "material", "", "loaded material for session context")
	chatCmd.Flags().BoolVar(&chatBeginner, "beginner", false, "simplify answers for newcomers")
}
