package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/speakquest/internal/analytics"
	"github.com/abhisek/speakquest/internal/practice"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <student-id>",
	Short: "Print a student's weakness analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svc, err := buildServices(cmd.Context(), cfg, false, adminLogger())
		if err != nil {
			return err
		}
		defer svc.Close()

		a, err := svc.analyzer.Analyze(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("analyze %s: %w", args[0], err)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(a)
		}
		printAnalysis(a)
		return nil
	},
}

var practiceCmd = &cobra.Command{
	Use:   "practice <student-id>",
	Short: "Generate and store personalized practices for a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svc, err := buildServices(cmd.Context(), cfg, true, adminLogger())
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.practice.GenerateForStudent(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("generate practices for %s: %w", args[0], err)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(res)
		}

		printAnalysis(res.Analysis)
		fmt.Println()
		if len(res.Practices) == 0 {
			fmt.Println("No practices needed right now.")
			return nil
		}
		fmt.Println(practice.ActionPlan(res.Analysis, res.Practices))
		fmt.Println()
		for _, p := range res.Practices {
			fmt.Printf("%s  %-16s  %-13s  %-12s  %3d pts\n", p.ID, p.Title, p.Kind, p.Difficulty, p.PointsReward)
		}
		return nil
	},
}

func printAnalysis(a *analytics.WeaknessAnalysis) {
	fmt.Printf("Student %s  overall: %s\n", a.StudentID, a.OverallLevel)
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("%-14s  %7s  %-10s  %-9s  %s\n", "Skill", "Avg", "Trend", "Weakness", "Attempts")
	for _, s := range a.Skills {
		fmt.Printf("%-14s  %7.1f  %-10s  %-9s  %d\n", s.SkillArea, s.AverageScore, s.Trend, s.WeaknessLevel, s.ActivitiesCompleted)
	}
	fmt.Println(strings.Repeat("─", 60))
	if a.PrimaryWeakness != "" {
		fmt.Printf("Primary:    %s\n", a.PrimaryWeakness)
	}
	if a.SecondaryWeakness != "" {
		fmt.Printf("Secondary:  %s\n", a.SecondaryWeakness)
	}
	if len(a.GrammarIssues) > 0 {
		fmt.Printf("Grammar:    %s\n", strings.Join(a.GrammarIssues, ", "))
	}
	if len(a.FocusAreas) > 0 {
		fmt.Printf("Focus:      %s\n", strings.Join(a.FocusAreas, "; "))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// adminLogger keeps one-shot commands quiet unless something goes wrong.
func adminLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "Print the analysis as JSON")
	practiceCmd.Flags().Bool("json", false, "Print the result as JSON")
}
