package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/planfold/planfold/internal/analytics"
	"github.com/planfold/planfold/internal/config"
	"github.com/planfold/planfold/internal/logger"
	"github.com/planfold/planfold/internal/sprints"
	"github.com/planfold/planfold/internal/storage/sqlite"
	"github.com/planfold/planfold/internal/types"
	"github.com/planfold/planfold/internal/workflow"
)

var (
	cfgFile     string
	dbPath      string
	actorFlag   string
	roleFlag    string
	jsonOutput  bool
	verboseFlag bool

	cfg    *config.Config
	store  *sqlite.Store
	engine *workflow.Engine
	mgr    *sprints.Manager
	charts *analytics.Engine
	log    zerolog.Logger

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

// noDbCommands run without opening the store.
var noDbCommands = map[string]bool{
	"help":       true,
	"completion": true,
	"version":    true,
}

// getActor returns the acting user for audit trails with git config fallback.
// Priority: --actor flag > PF_ACTOR env > config > git config user.name >
// $USER > "unknown".
func getActor() string {
	if actorFlag != "" {
		return actorFlag
	}
	if pfActor := os.Getenv("PF_ACTOR"); pfActor != "" {
		return pfActor
	}
	if cfg != nil && cfg.Actor.Name != "" {
		return cfg.Actor.Name
	}
	if out, err := exec.Command("git", "config", "user.name").Output(); err == nil {
		if gitUser := strings.TrimSpace(string(out)); gitUser != "" {
			return gitUser
		}
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// getRole returns the acting user's role. Priority: --role flag > PF_ROLE env
// > config > member.
func getRole() types.Role {
	candidate := roleFlag
	if candidate == "" {
		candidate = os.Getenv("PF_ROLE")
	}
	if candidate == "" && cfg != nil {
		candidate = cfg.Actor.Role
	}
	role := types.Role(strings.ToLower(candidate))
	if !role.IsValid() {
		if candidate != "" {
			FatalErrorWithHint(fmt.Sprintf("invalid role %q", candidate),
				"Valid roles: admin, project-lead, member")
		}
		return types.RoleMember
	}
	return role
}

// currentActor builds the workflow actor from the resolved identity and role.
func currentActor() workflow.Actor {
	return workflow.Actor{ID: getActor(), Role: getRole()}
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:   "pf",
	Short: "pf - Sprint-based project tracker",
	Long:  `A lightweight agile project tracker with sprint planning, a role-gated issue workflow, and replay-based burndown and velocity reports.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help() // Help() always returns nil for cobra commands
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			FatalError("%v", err)
		}

		level := cfg.Log.Level
		if verboseFlag {
			level = "debug"
		}
		log = logger.New(level, cfg.Log.Pretty)

		if noDbCommands[cmd.Name()] {
			return
		}

		path := dbPath
		if path == "" {
			path = cfg.Database.Path
		}
		store, err = sqlite.New(rootCtx, path)
		if err != nil {
			FatalError("opening database %s: %v", path, err)
		}

		engine = workflow.New(store, log)
		mgr = sprints.New(store, log)
		charts = analytics.New(store)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: .planfold/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: .planfold/planfold.db)")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor name for audit trail (default: $PF_ACTOR, git user.name, $USER)")
	rootCmd.PersistentFlags().StringVar(&roleFlag, "role", "", "Actor role: admin, project-lead, member (default: $PF_ROLE, config, member)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")

	// Command groups for organized help output
	rootCmd.AddGroup(&cobra.Group{ID: "issues", Title: "Working With Issues:"})
	rootCmd.AddGroup(&cobra.Group{ID: "sprints", Title: "Sprint Planning:"})
	rootCmd.AddGroup(&cobra.Group{ID: "views", Title: "Views & Reports:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
