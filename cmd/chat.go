package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/parla/internal/app"
	"github.com/abhisek/parla/internal/lessons"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive tutor (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, lessonFlags(cmd))
	},
}

func init() {
	addLessonFlags(chatCmd)
}

func addLessonFlags(cmd *cobra.Command) {
	cmd.Flags().String("native", "English", "Your native language")
	cmd.Flags().String("learning", "", "The language you are learning")
	cmd.Flags().String("level", string(lessons.Beginner), "Proficiency: Beginner, Intermediate or Advanced")
	cmd.Flags().String("scenario", lessons.DefaultScenario, "Conversation scenario")
}

// lessonFlags reads the setup form defaults from the lesson flags.
func lessonFlags(cmd *cobra.Command) lessons.Config {
	native, _ := cmd.Flags().GetString("native")
	learning, _ := cmd.Flags().GetString("learning")
	level, _ := cmd.Flags().GetString("level")
	scenario, _ := cmd.Flags().GetString("scenario")
	return lessons.Config{
		NativeLanguage:   native,
		LearningLanguage: learning,
		Proficiency:      lessons.Proficiency(level),
		Scenario:         scenario,
	}
}

// runApp opens the store, builds dependencies, and launches the TUI.
func runApp(cmd *cobra.Command, defaults lessons.Config) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	deps, err := buildTutor(ctx, cfg, st, logger, nil)
	if err != nil {
		return err
	}
	defer deps.Close()

	if p, err := lessons.ParseProficiency(string(defaults.Proficiency)); err == nil {
		defaults.Proficiency = p
	} else {
		defaults.Proficiency = lessons.Beginner
	}

	logger.Info("starting tutor", zap.String("model", deps.Provider.ModelID()))
	err = app.Run(ctx, app.Options{
		Lessons:  deps.Service,
		Mistakes: st.MistakeRepo(),
		Status:   deps.Provider.ModelID(),
		Defaults: defaults,
	})
	if err != nil {
		return fmt.Errorf("run tutor: %w", err)
	}
	return nil
}
