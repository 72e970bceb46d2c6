package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/speakquest/internal/llm"
	"github.com/abhisek/speakquest/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect LLM request/response events",
}

// withStore runs fn against the configured database.
func withStore(cmd *cobra.Command, fn func(*store.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		student, _ := cmd.Flags().GetString("student")

		return withStore(cmd, func(s *store.Store) error {
			events, err := s.Events().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit, Purpose: purpose})
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}
			if len(events) == 0 {
				fmt.Println("No LLM events found.")
				return nil
			}

			fmt.Printf("%-5s  %-19s  %-16s  %-28s  %-12s  %-6s  %-6s  %-7s  %s\n",
				"ID", "Timestamp", "Purpose", "Model", "Student", "In", "Out", "Ms", "OK")
			fmt.Println(strings.Repeat("─", 112))

			for _, e := range events {
				if student != "" && e.StudentID != student {
					continue
				}
				ok := "✓"
				if !e.Success {
					ok = "✗"
				}
				fmt.Printf("%-5d  %-19s  %-16s  %-28s  %-12s  %-6d  %-6d  %-7d  %s\n",
					e.ID,
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.Purpose,
					truncate(e.Model, 28),
					truncate(e.StudentID, 12),
					e.InputTokens,
					e.OutputTokens,
					e.LatencyMs,
					ok,
				)
			}
			return nil
		})
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View full request/response for an LLM event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		return withStore(cmd, func(s *store.Store) error {
			e, err := s.Events().GetLLMEvent(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get event: %w", err)
			}

			sep := strings.Repeat("─", 60)
			fmt.Printf("ID:        %d\n", e.ID)
			fmt.Printf("Time:      %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
			fmt.Printf("Provider:  %s\n", e.Provider)
			fmt.Printf("Model:     %s\n", e.Model)
			fmt.Printf("Purpose:   %s\n", e.Purpose)
			if e.StudentID != "" {
				fmt.Printf("Student:   %s\n", e.StudentID)
			}
			fmt.Printf("Tokens:    %d in / %d out\n", e.InputTokens, e.OutputTokens)
			fmt.Printf("Latency:   %dms\n", e.LatencyMs)
			fmt.Printf("Success:   %v\n", e.Success)
			if e.ErrorMessage != "" {
				fmt.Printf("Error:     %s\n", e.ErrorMessage)
			}

			for _, part := range []struct{ title, body string }{
				{"REQUEST", e.RequestBody},
				{"RESPONSE", e.ResponseBody},
			} {
				fmt.Println()
				fmt.Println(sep)
				fmt.Println(part.title)
				fmt.Println(sep)
				if part.body == "" {
					fmt.Println("(not captured)")
					continue
				}
				fmt.Println(part.body)
			}
			return nil
		})
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *store.Store) error {
			usage, err := s.Events().LLMUsageByPurpose(cmd.Context())
			if err != nil {
				return fmt.Errorf("query usage: %w", err)
			}
			if len(usage) == 0 {
				fmt.Println("No LLM usage recorded yet.")
				return nil
			}
			printUsage(usage)
			return nil
		})
	},
}

func printUsage(usage []store.PurposeUsage) {
	fmt.Println("Usage by Model and Purpose")
	fmt.Println(strings.Repeat("─", 96))
	fmt.Printf("%-28s  %-16s  %6s  %6s  %10s  %10s  %8s\n",
		"Model", "Purpose", "Calls", "Failed", "Input", "Output", "Avg Ms")
	fmt.Println(strings.Repeat("─", 96))

	type modelTotal struct {
		calls, in, out int
	}
	var models []string
	byModel := map[string]*modelTotal{}

	for _, u := range usage {
		fmt.Printf("%-28s  %-16s  %6d  %6d  %10d  %10d  %8.0f\n",
			truncate(u.Model, 28), u.Purpose, u.Requests, u.Failures, u.InputTokens, u.OutputTokens, u.AvgLatencyMs)
		t, ok := byModel[u.Model]
		if !ok {
			t = &modelTotal{}
			byModel[u.Model] = t
			models = append(models, u.Model)
		}
		t.calls += u.Requests
		t.in += u.InputTokens
		t.out += u.OutputTokens
	}

	fmt.Println()
	fmt.Println("Estimated Cost (USD)")
	fmt.Println(strings.Repeat("─", 72))
	fmt.Printf("%-32s  %6s  %10s  %10s  %10s\n", "Model", "Calls", "Input", "Output", "Cost")
	fmt.Println(strings.Repeat("─", 72))

	var totalCost float64
	var unknown []string
	for _, m := range models {
		t := byModel[m]
		cost := llm.LookupCost(m)
		if cost == nil {
			unknown = append(unknown, m)
			fmt.Printf("%-32s  %6d  %10d  %10d  %10s\n", truncate(m, 32), t.calls, t.in, t.out, "?")
			continue
		}
		c := cost.Cost(t.in, t.out)
		totalCost += c
		fmt.Printf("%-32s  %6d  %10d  %10d  %10s\n", truncate(m, 32), t.calls, t.in, t.out, formatCost(c))
	}

	fmt.Println(strings.Repeat("─", 72))
	label := "TOTAL"
	if len(unknown) > 0 {
		label = "TOTAL (partial)"
	}
	fmt.Printf("%-32s  %6s  %10s  %10s  %10s\n", label, "", "", "", formatCost(totalCost))
	if len(unknown) > 0 {
		fmt.Printf("\nPricing unavailable for: %s\n", strings.Join(unknown, ", "))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (e.g. conversation-turn, conversation-eval, practice-gen)")
	llmListCmd.Flags().String("student", "", "Only show events for this student id")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
