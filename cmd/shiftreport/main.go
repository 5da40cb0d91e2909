package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"shiftreport/internal/app"
	"shiftreport/internal/config"
	"shiftreport/internal/db"
	"shiftreport/internal/domain"
	"shiftreport/internal/engine"
	"shiftreport/internal/engine/auth"
	"shiftreport/internal/logging"
	"shiftreport/internal/migrate"
	"shiftreport/internal/server"
	"shiftreport/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "shiftreport",
	Short: "Security guard shift report service",
	Long: `shiftreport stores the daily reports security guards file after a shift.
- Reports: contract, location, work type, work window, guards, photos and notes; validated before they are stored.
- Modes: remote (SQL database plus a photo bucket) or demo (a single local file); chosen by config, never mixed.
- Exports: one-page A4 PDFs per report, batch PDFs and an XLSX sheet for administrators.
- OCR: pre-fill a form from a photo of the paper report (needs ocr.api_key).
- Activity: signups, logins, submissions and downloads are logged for administrators.
Run 'shiftreport init' to write shiftreport.yml, then 'shiftreport serve'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/shiftreport.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "act as this account email (default: seeded admin)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(ocrCmd())
	rootCmd.AddCommand(activityCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter shiftreport.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.Template), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.Server.Addr
				}
				if basePath == "" {
					basePath = a.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Logger: a.Logger.Named("http")})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				a.Logger.Info("serving", zap.String("addr", addr), zap.String("base_path", basePath), zap.String("mode", a.Config.Mode))
				fmt.Printf("Serving Shift Report API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)\n", addr, basePath, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default server.base_path)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (remote mode)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Mode != config.ModeRemote {
				return fmt.Errorf("migrate applies to mode %q only (current %q)", config.ModeRemote, cfg.Mode)
			}
			conn, err := app.OpenDB(viper.GetString("workspace"), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			v, err := migrate.Version(conn)
			if err != nil {
				return err
			}
			return printJSONOrText(map[string]any{"driver": cfg.Database.Driver, "version": v}, fmt.Sprintf("schema at version %d", v))
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the initial accounts if the store is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				users, err := a.Gateway.ListUsers(ctx)
				if err != nil {
					return err
				}
				return printUsers(users)
			})
		},
	}
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage accounts"}
	u.AddCommand(userCreateCmd())
	u.AddCommand(userListCmd())
	return u
}

func userCreateCmd() *cobra.Command {
	var opts engine.UserCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.CreateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "login email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (at least 6 characters)")
	cmd.Flags().StringVar(&opts.FullName, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Role, "role", domain.RoleEmployee, "employee or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrincipal(cmd.Context(), func(ctx context.Context, a *app.App, p auth.Principal) error {
				users, err := a.Engine.ListUsers(ctx, p)
				if err != nil {
					return err
				}
				return printUsers(users)
			})
		},
	}
}

func reportCmd() *cobra.Command {
	r := &cobra.Command{Use: "report", Short: "Submit, list and export reports"}
	r.AddCommand(reportSubmitCmd())
	r.AddCommand(reportListCmd())
	r.AddCommand(reportSearchCmd())
	r.AddCommand(reportPDFCmd())
	r.AddCommand(reportExportCmd())
	return r
}

func reportSubmitCmd() *cobra.Command {
	var formFile string
	var photos []string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a report from a JSON form file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(formFile)
			if err != nil {
				return err
			}
			var form domain.ReportFormData
			if err := json.Unmarshal(data, &form); err != nil {
				return fmt.Errorf("parse %s: %w", formFile, err)
			}
			uploads := make([]store.PhotoUpload, 0, len(photos))
			for _, path := range photos {
				b, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				uploads = append(uploads, store.PhotoUpload{Filename: filepath.Base(path), Data: b})
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, a *app.App, p auth.Principal) error {
				rep, err := a.Engine.SubmitReport(ctx, p, engine.SubmitOptions{
					Form:   form,
					Photos: uploads,
					Progress: func(done, total int) {
						if !viper.GetBool("json") {
							fmt.Fprintf(os.Stderr, "uploaded photo %d/%d\n", done, total)
						}
					},
				})
				if err != nil {
					return err
				}
				return printReports([]domain.Report{rep}, a.Engine.Location)
			})
		},
	}
	cmd.Flags().StringVar(&formFile, "form", "", "JSON file with the form fields")
	cmd.Flags().StringArrayVar(&photos, "photo", nil, "photo to attach (repeatable)")
	_ = cmd.MarkFlagRequired("form")
	return cmd
}

func reportListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reports visible to the acting account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrincipal(cmd.Context(), func(ctx context.Context, a *app.App, p auth.Principal) error {
				items, err := a.Engine.ListReports(ctx, p)
				if err != nil {
					return err
				}
				return printReports(items, a.Engine.Location)
			})
		},
	}
}

func searchFlags(cmd *cobra.Command, opts *engine.SearchOptions) {
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "work_date_from on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EndDate, "end", "", "work_date_to on or before (YYYY-MM-DD, whole day)")
	cmd.Flags().StringVar(&opts.UserID, "user-id", "", "owner id")
	cmd.Flags().StringVar(&opts.ContractName, "contract", "", "contract name substring")
}

func reportSearchCmd() *cobra.Command {
	var opts engine.SearchOptions
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrincipal(cmd.Context(), func(ctx context.Context, a *app.App, p auth.Principal) error {
				items, err := a.Engine.SearchReports(ctx, p, opts)
				if err != nil {
					return err
				}
				return printReports(items, a.Engine.Location)
			})
		},
	}
	searchFlags(cmd, &opts)
	return cmd
}

func reportPDFCmd() *cobra.Command {
	var opts engine.SearchOptions
	var out string
	cmd := &cobra.Command{
		Use:   "pdf [report-id]",
		Short: "Render one report, or every matching report, as PDF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrincipal(cmd.Context(), func(ctx context.Context, a *app.App, p auth.Principal) error {
				var (
					f   engine.File
					err error
				)
				if len(args) == 1 {
					f, err = a.Engine.ExportPDF(ctx, p, args[0])
				} else {
					f, err = a.Engine.ExportBatchPDF(ctx, p, opts)
				}
				if err != nil {
					return err
				}
				return writeFile(f, out)
			})
		},
	}
	searchFlags(cmd, &opts)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: suggested file name)")
	return cmd
}

func reportExportCmd() *cobra.Command {
	var opts engine.SearchOptions
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching reports as XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrincipal(cmd.Context(), func(ctx context.Context, a *app.App, p auth.Principal) error {
				f, err := a.Engine.ExportXLSX(ctx, p, opts)
				if err != nil {
					return err
				}
				return writeFile(f, out)
			})
		},
	}
	searchFlags(cmd, &opts)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: suggested file name)")
	return cmd
}

func ocrCmd() *cobra.Command {
	o := &cobra.Command{Use: "ocr", Short: "Read paper report forms"}
	o.AddCommand(&cobra.Command{
		Use:   "analyze <image>",
		Short: "Extract form fields from a photo of a paper report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withPrincipal(cmd.Context(), func(ctx context.Context, a *app.App, p auth.Principal) error {
				res, err := a.Engine.AnalyzePhoto(ctx, p, data)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	})
	return o
}

func activityCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent activity, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrincipal(cmd.Context(), func(ctx context.Context, a *app.App, p auth.Principal) error {
				logs, err := a.Engine.ListActivity(ctx, p, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(logs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "User", "Action", "Resource", "Resource ID"})
				for _, l := range logs {
					tw.AppendRow(table.Row{l.CreatedAt.In(a.Engine.Location).Format("2006-01-02 15:04:05"), l.UserID, l.Action, l.ResourceType, l.ResourceID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 50, "number of entries")
	return cmd
}

// --- helpers ---

func configPath() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}
	return config.Path(viper.GetString("workspace"))
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetString("workspace"), viper.GetString("config"))
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withPrincipal runs fn as the account named by --as.
func withPrincipal(ctx context.Context, fn func(context.Context, *app.App, auth.Principal) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		email := viper.GetString("as")
		if email == "" {
			email = a.Config.Demo.AdminEmail
		}
		if email == "" {
			email = store.DefaultAdminEmail
		}
		u, _, err := a.Gateway.GetUserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("account %s: %w", email, err)
		}
		return fn(ctx, a, auth.PrincipalFor(u))
	})
}

func writeFile(f engine.File, out string) error {
	if out == "" {
		out = f.Name
	}
	if err := os.WriteFile(out, f.Bytes, 0o644); err != nil {
		return err
	}
	return printJSONOrText(map[string]any{"path": out, "bytes": len(f.Bytes), "content_type": f.ContentType}, fmt.Sprintf("wrote %s (%d bytes)", out, len(f.Bytes)))
}

func printUsers(users []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Email", "Name", "Role"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Email, u.FullName, u.Role})
	}
	tw.Render()
	return nil
}

func printReports(items []domain.Report, loc *time.Location) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Contract", "Work Type", "From", "To", "Photos", "Status"})
	for _, r := range items {
		tw.AppendRow(table.Row{
			r.ID,
			r.ContractName,
			r.WorkType,
			r.WorkDateFrom.In(loc).Format("2006-01-02 15:04"),
			r.WorkDateTo.In(loc).Format("2006-01-02 15:04"),
			len(r.PhotoURLs),
			r.Status,
		})
	}
	tw.Render()
	return nil
}

func printJSONOrText(v any, text string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(text)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
