package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stratline/internal/app"
	"stratline/internal/config"
	"stratline/internal/db"
	"stratline/internal/domain"
	"stratline/internal/engine"
	"stratline/internal/migrate"
	"stratline/internal/repo"
	"stratline/internal/scoring"
	"stratline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Stratline CLI",
	Long: `Stratline tracks strategy execution across yearly planning hierarchies.
Core concepts:
- Workspace: your .stratline box with the database; planning defaults live in stratline.yml.
- Years and cycles: the calendar skeleton; cycles flow planning -> active -> review -> archived.
- Pillars: the year's strategic themes, each measured by KPIs.
- Narratives: the stories teams commit to inside a cycle, ideally linked to a pillar.
- Commitments and tasks: the concrete work under each narrative.
- Alignment: structural gaps (unlinked narratives, empty pillars) scored 0-100.
- Health: execution state (at-risk, blocked, stale, overdue work) scored 0-100.
- Event log: diary of changes, view with 'sl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STRATLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("workspace-id", "", "workspace id (overrides stratline.yml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("workspace-id", rootCmd.PersistentFlags().Lookup("workspace-id"))
}

func registerCommands() {
	rootCmd.AddCommand(workspaceCmd())
	rootCmd.AddCommand(yearCmd())
	rootCmd.AddCommand(cycleCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(pillarCmd())
	rootCmd.AddCommand(narrativeCmd())
	rootCmd.AddCommand(commitmentCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(alignCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(treeCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func workspaceCmd() *cobra.Command {
	ws := &cobra.Command{Use: "workspace", Short: "Manage workspaces"}
	ws.AddCommand(workspaceInitCmd())
	ws.AddCommand(workspaceListCmd())
	ws.AddCommand(workspaceShowCmd())
	ws.AddCommand(workspaceUpdateCmd())
	ws.AddCommand(workspaceDeleteCmd())
	return ws
}

func workspaceInitCmd() *cobra.Command {
	var id, name, rhythm string
	var weeks int
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			var weeksPtr *int
			if cmd.Flags().Changed("cycle-length-weeks") {
				weeksPtr = &weeks
			}
			e := engine.New(conn, config.Default(id))
			w, err := e.InitWorkspace(cmd.Context(), id, name, domain.PlanningRhythm(rhythm), weeksPtr, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault(id)), 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", cfgPath)
			}
			return printJSONOrTable(w)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "workspace id")
	cmd.Flags().StringVar(&name, "name", "", "workspace name")
	cmd.Flags().StringVar(&rhythm, "rhythm", "", "planning rhythm (quarters, cycles, custom)")
	cmd.Flags().IntVar(&weeks, "cycle-length-weeks", 0, "cycle length in weeks (cycles rhythm)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func workspaceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListWorkspaces(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func workspaceShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.Repo.GetWorkspace(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	return cmd
}

func workspaceUpdateCmd() *cobra.Command {
	var rhythm string
	var weeks int
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update workspace planning settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var weeksPtr *int
				if cmd.Flags().Changed("cycle-length-weeks") {
					weeksPtr = &weeks
				}
				w, err := e.SetWorkspacePlanning(ctx, e.Config.Workspace.ID, domain.PlanningRhythm(rhythm), weeksPtr, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&rhythm, "rhythm", "", "planning rhythm (quarters, cycles, custom)")
	cmd.Flags().IntVar(&weeks, "cycle-length-weeks", 0, "cycle length in weeks")
	return cmd
}

func workspaceDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the active workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteWorkspace(ctx, e.Config.Workspace.ID)
			})
		},
	}
	return cmd
}

func yearCmd() *cobra.Command {
	yr := &cobra.Command{Use: "year", Short: "Manage planning years"}
	yr.AddCommand(yearCreateCmd())
	yr.AddCommand(yearListCmd())
	return yr
}

func yearCreateCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a planning year",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				y, err := e.CreateYear(ctx, e.Config.Workspace.ID, year, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(y)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func yearListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List planning years",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListYears(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func cycleCmd() *cobra.Command {
	cyc := &cobra.Command{
		Use:   "cycle",
		Short: "Manage planning cycles",
		Long:  "Cycles are the time boxes narratives are scheduled into. They flow planning -> active -> review -> archived; review can reopen to active.",
	}
	cyc.AddCommand(cycleCreateCmd())
	cyc.AddCommand(cycleListCmd())
	cyc.AddCommand(cycleSuggestCmd())
	cyc.AddCommand(cycleStatusCmd())
	cyc.AddCommand(cycleProgressCmd())
	cyc.AddCommand(cycleDeleteCmd())
	return cyc
}

func cycleCreateCmd() *cobra.Command {
	var id, name, start, end, status string
	var year int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a cycle",
		Long:  "Create a cycle. Name and dates left blank are filled from the workspace planning rhythm.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				wsID := e.Config.Workspace.ID
				if name == "" || start == "" || end == "" {
					d, err := e.CycleDefaults(ctx, wsID)
					if err != nil {
						return err
					}
					if name == "" {
						name = d.Name
					}
					if start == "" {
						start = d.StartDate
					}
					if end == "" {
						end = d.EndDate
					}
				}
				if !cmd.Flags().Changed("year") {
					t, err := time.Parse("2006-01-02", start)
					if err != nil {
						return fmt.Errorf("start date %q must be a YYYY-MM-DD date", start)
					}
					year = t.Year()
				}
				y, err := e.EnsureYear(ctx, wsID, year, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				c, err := e.CreateCycle(ctx, engine.CycleCreateOptions{
					ID:          id,
					WorkspaceID: wsID,
					YearID:      y.ID,
					Name:        name,
					StartDate:   start,
					EndDate:     end,
					Status:      domain.CycleStatus(status),
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "cycle id (optional)")
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (defaults to the start date's year)")
	cmd.Flags().StringVar(&name, "name", "", "cycle name")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "initial status (defaults to planning)")
	return cmd
}

func cycleListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cycles, err := e.Repo.ListCycles(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cycles)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Start", "End", "Status"})
				for _, c := range cycles {
					tw.AppendRow(table.Row{c.ID, c.Name, c.StartDate, c.EndDate, c.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func cycleSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest the next cycle from the planning rhythm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CycleDefaults(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

func cycleStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a cycle to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.SetCycleStatus(ctx, args[0], domain.CycleStatus(args[1]), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func cycleProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress <id>",
		Short: "Show a cycle's time-window progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Progress(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("Cycle: %s (%s)\n", p.Cycle.Name, p.Cycle.Status)
				if p.Progress.InsideWindow {
					fmt.Printf("Week %d of %d (%d%% elapsed)\n", p.Progress.CurrentWeek, p.Progress.TotalWeeks, p.Progress.Percent)
				} else {
					fmt.Printf("Outside window (%d%% elapsed)\n", p.Progress.Percent)
				}
				return nil
			})
		},
	}
	return cmd
}

func cycleDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteCycle(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func teamCmd() *cobra.Command {
	team := &cobra.Command{Use: "team", Short: "Manage teams"}
	team.AddCommand(teamCreateCmd())
	team.AddCommand(teamListCmd())
	team.AddCommand(teamDeleteCmd())
	return team
}

func teamCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTeam(ctx, e.Config.Workspace.ID, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "team name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func teamListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTeams(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func teamDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTeam(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func pillarCmd() *cobra.Command {
	pil := &cobra.Command{
		Use:   "pillar",
		Short: "Manage strategic pillars",
		Long:  "Pillars are the year's strategic themes. Narratives link to them; a pillar with no narratives is an alignment gap.",
	}
	pil.AddCommand(pillarCreateCmd())
	pil.AddCommand(pillarListCmd())
	pil.AddCommand(pillarStatusCmd())
	pil.AddCommand(kpiCmd())
	return pil
}

func pillarCreateCmd() *cobra.Command {
	var name, description string
	var year int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pillar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				y, err := e.EnsureYear(ctx, e.Config.Workspace.ID, year, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				p, err := e.CreatePillar(ctx, engine.PillarCreateOptions{
					WorkspaceID: e.Config.Workspace.ID,
					YearID:      y.ID,
					Name:        name,
					Description: description,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year")
	cmd.Flags().StringVar(&name, "name", "", "pillar name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func pillarListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pillars",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pillars, err := e.Repo.ListPillars(ctx, e.Config.Workspace.ID, activeOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(pillars)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status"})
				for _, p := range pillars {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active-only", false, "only active pillars")
	return cmd
}

func pillarStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set pillar status (active, archived)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SetPillarStatus(ctx, args[0], domain.PillarStatus(args[1]), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func kpiCmd() *cobra.Command {
	kpi := &cobra.Command{Use: "kpi", Short: "Manage pillar KPIs"}
	kpi.AddCommand(kpiAddCmd())
	kpi.AddCommand(kpiListCmd())
	kpi.AddCommand(kpiSetCmd())
	return kpi
}

func kpiAddCmd() *cobra.Command {
	var name, unit string
	var target float64
	cmd := &cobra.Command{
		Use:   "add <pillar-id>",
		Short: "Add a KPI to a pillar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, err := e.CreateKPI(ctx, args[0], name, target, unit, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(k)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "KPI name")
	cmd.Flags().Float64Var(&target, "target", 0, "target value")
	cmd.Flags().StringVar(&unit, "unit", "", "unit label")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func kpiListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <pillar-id>",
		Short: "List a pillar's KPIs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListKPIs(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func kpiSetCmd() *cobra.Command {
	var current float64
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Set a KPI's current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("current") {
				return fmt.Errorf("--current required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.UpdateKPICurrent(ctx, args[0], current)
			})
		},
	}
	cmd.Flags().Float64Var(&current, "current", 0, "current value")
	return cmd
}

func narrativeCmd() *cobra.Command {
	nar := &cobra.Command{
		Use:   "narrative",
		Short: "Manage narratives",
		Long:  "Narratives are the strategic stories. Links to team, cycle and pillar are all optional; missing links show up in the alignment report.",
	}
	nar.AddCommand(narrativeCreateCmd())
	nar.AddCommand(narrativeListCmd())
	nar.AddCommand(narrativeShowCmd())
	nar.AddCommand(narrativeUpdateCmd())
	nar.AddCommand(narrativeDeleteCmd())
	return nar
}

func narrativeCreateCmd() *cobra.Command {
	var opts engine.NarrativeCreateOptions
	var status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a narrative",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Status = domain.NarrativeStatus(status)
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.WorkspaceID == "" {
					opts.WorkspaceID = e.Config.Workspace.ID
				}
				n, err := e.CreateNarrative(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "narrative id (optional)")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "team id")
	cmd.Flags().StringVar(&opts.CycleID, "cycle", "", "cycle id")
	cmd.Flags().StringVar(&opts.PillarID, "pillar", "", "pillar id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status (defaults to draft)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func narrativeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List narratives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListNarratives(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Team", "Cycle", "Pillar"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.ID, n.Title, n.Status, strOr(n.TeamID), strOr(n.CycleID), strOr(n.PillarID)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func narrativeShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a narrative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.Repo.GetNarrative(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	return cmd
}

func narrativeUpdateCmd() *cobra.Command {
	var title, description, status, team, cycle, pillar string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a narrative",
		Long:  "Update a narrative. Passing an empty value to --team, --cycle or --pillar clears the link.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.NarrativeUpdateOptions{
				ID:      args[0],
				Status:  domain.NarrativeStatus(status),
				ActorID: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("team") {
				opts.SetTeam = &team
			}
			if cmd.Flags().Changed("cycle") {
				opts.SetCycle = &cycle
			}
			if cmd.Flags().Changed("pillar") {
				opts.SetPillar = &pillar
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.UpdateNarrative(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&team, "team", "", "team id (empty clears)")
	cmd.Flags().StringVar(&cycle, "cycle", "", "cycle id (empty clears)")
	cmd.Flags().StringVar(&pillar, "pillar", "", "pillar id (empty clears)")
	return cmd
}

func narrativeDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a narrative and its commitments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteNarrative(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func commitmentCmd() *cobra.Command {
	com := &cobra.Command{Use: "commitment", Short: "Manage commitments"}
	com.AddCommand(commitmentCreateCmd())
	com.AddCommand(commitmentListCmd())
	com.AddCommand(commitmentShowCmd())
	com.AddCommand(commitmentUpdateCmd())
	com.AddCommand(commitmentDeleteCmd())
	return com
}

func commitmentCreateCmd() *cobra.Command {
	var opts engine.CommitmentCreateOptions
	var status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a commitment under a narrative",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.NarrativeID == "" {
				return fmt.Errorf("--narrative required")
			}
			opts.Status = domain.CommitmentStatus(status)
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCommitment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "commitment id (optional)")
	cmd.Flags().StringVar(&opts.NarrativeID, "narrative", "", "narrative id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "status (defaults to draft)")
	_ = cmd.MarkFlagRequired("narrative")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func commitmentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List commitments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListCommitments(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Narrative", "Title", "Status", "Due"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.NarrativeID, c.Title, c.Status, strOr(c.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func commitmentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a commitment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetCommitment(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func commitmentUpdateCmd() *cobra.Command {
	var title, status, due string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a commitment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.CommitmentUpdateOptions{
				ID:      args[0],
				Status:  domain.CommitmentStatus(status),
				ActorID: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("due") {
				opts.DueDate = &due
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateCommitment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&due, "due", "", "due date (empty clears)")
	return cmd
}

func commitmentDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a commitment and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteCommitment(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task under a commitment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.CommitmentID == "" {
				return fmt.Errorf("--commitment required")
			}
			opts.Status = domain.TaskStatus(status)
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (optional)")
	cmd.Flags().StringVar(&opts.CommitmentID, "commitment", "", "commitment id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "status (defaults to todo)")
	_ = cmd.MarkFlagRequired("commitment")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var commitment string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var tasks []domain.Task
				var err error
				if commitment != "" {
					tasks, err = e.Repo.ListTasksByCommitment(ctx, commitment)
				} else {
					tasks, err = e.Repo.ListTasks(ctx, e.Config.Workspace.ID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Commitment", "Title", "Status", "Due"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.CommitmentID, t.Title, t.Status, strOr(t.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&commitment, "commitment", "", "filter by commitment id")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, status, due string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ID:      args[0],
				Status:  domain.TaskStatus(status),
				ActorID: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("due") {
				opts.DueDate = &due
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&due, "due", "", "due date (empty clears)")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func alignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Show the alignment report",
		Long:  "Score structural completeness: every pillar backed by narratives, every narrative linked and broken into commitments and tasks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rep, err := e.Alignment(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				fmt.Printf("Alignment: %d/100\n", rep.Score)
				if len(rep.Gaps) == 0 {
					fmt.Println("No gaps.")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Severity", "Gap", "Message", "Next step"})
				for _, g := range rep.Gaps {
					tw.AppendRow(table.Row{g.Severity, g.Type, g.Message, g.Action.Label})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func healthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the execution health report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.Health(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(h)
				}
				fmt.Printf("Health: %d/100 (%s)\n", h.Score, h.Status)
				for _, issue := range h.Issues {
					fmt.Printf("  - %s\n", issue)
				}
				fmt.Printf("Narratives: %d total, %d active, %d at risk, %d stale\n",
					h.Stats.TotalNarratives, h.Stats.ActiveNarratives, h.Stats.AtRiskNarratives, h.Stats.StaleNarratives)
				fmt.Printf("Commitments: %d total, %d on track, %d at risk, %d blocked\n",
					h.Stats.TotalCommitments, h.Stats.OnTrackCommitments, h.Stats.AtRiskCommitments, h.Stats.BlockedCommitments)
				fmt.Printf("Tasks: %d total, %d done, %d blocked, %d overdue (%.0f%% complete)\n",
					h.Stats.TotalTasks, h.Stats.CompletedTasks, h.Stats.BlockedTasks, h.Stats.OverdueTasks, h.Stats.TaskCompletion*100)
				return nil
			})
		},
	}
	return cmd
}

func treeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the workspace hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Tree(ctx, e.Config.Workspace.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				for _, y := range t.Years {
					fmt.Printf("%d\n", y.Year.Year)
					for _, c := range y.Cycles {
						fmt.Printf("  %s (%s) %s .. %s\n", c.Name, c.Status, c.StartDate, c.EndDate)
						for _, tm := range c.Teams {
							fmt.Printf("    %s\n", tm.Name)
							printNarrativeNodes(tm.Narratives, "    ")
						}
						if len(c.Unassigned) > 0 {
							fmt.Println("    (no team)")
							printNarrativeNodes(c.Unassigned, "    ")
						}
					}
				}
				if len(t.Uncategorized) > 0 {
					fmt.Println("Uncategorized")
					printNarrativeNodes(t.Uncategorized, "")
				}
				return nil
			})
		},
	}
	return cmd
}

func printNarrativeNodes(nodes []scoring.NarrativeNode, prefix string) {
	for i, n := range nodes {
		connector := "├── "
		childPrefix := prefix + "│   "
		if i == len(nodes)-1 {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		fmt.Printf("%s%s%s [%s] %d/%d tasks\n", prefix, connector, n.Title, n.Status, n.DoneTasks, n.TaskCount)
		for j, c := range n.Commitments {
			cc := "├── "
			if j == len(n.Commitments)-1 {
				cc = "└── "
			}
			fmt.Printf("%s%s%s [%s] %d/%d tasks\n", childPrefix, cc, c.Title, c.Status, c.DoneTasks, c.TaskCount)
		}
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: workspace setup, cycle moves, narrative and commitment changes.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Log(ctx, e.Config.Workspace.ID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				for _, evt := range events {
					fmt.Printf("%s %-24s %s/%s by %s\n", evt.TS, evt.Type, evt.EntityKind, evt.EntityID, evt.ActorID)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 50, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveWorkspaceAndConfig(cmd.Context(), workspace, viper.GetString("workspace-id"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Stratline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveWorkspaceAndConfig(ctx, workspace, viper.GetString("workspace-id"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func strOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
