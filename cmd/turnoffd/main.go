// Package main is the CLI entry point for turnoffd.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dkpark22-ai/TurnOffApp/internal/config"
	"github.com/dkpark22-ai/TurnOffApp/internal/daemon"
	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
	"github.com/dkpark22-ai/TurnOffApp/internal/infra"
	"github.com/dkpark22-ai/TurnOffApp/internal/policy"
	"github.com/dkpark22-ai/TurnOffApp/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "turnoffd",
	Short: "Self-imposed app and website blocking",
	Long: `turnoffd monitors the foreground application and browser URLs and
blocks the ones you told it to block, on the weekly schedules and focus
sessions you configured.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the enforcement daemon in the foreground",
	Long: `Runs the monitoring loops until interrupted. Scheduled focus starts
and stops automatically; --focus also starts a timed focus session for the
named profile at startup.`,
	RunE: runDaemon,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active schedule and effective blocklists",
	RunE:  runStatus,
}

var checkCmd = &cobra.Command{
	Use:   "check (app|site) <target>",
	Short: "Check whether an app or website would be blocked right now",
	Args:  cobra.ExactArgs(2),
	RunE:  runCheck,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	configPath   string
	focusProfile string
	jsonOutput   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	runCmd.Flags().StringVar(&focusProfile, "focus", "", "Start a timed focus session for this profile")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(versionCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	directory := infra.NewProcessDirectory(nil)
	engineCfg := daemon.EngineConfig{
		AppMonitor: daemon.AppMonitorConfig{
			PollInterval: cfg.PollInterval,
			UsageWindow:  cfg.UsageWindow,
		},
		ScheduleMonitor: daemon.ScheduleMonitorConfig{
			CheckInterval: cfg.ScheduleCheckInterval,
		},
		Browsers:    cfg.Browsers,
		SelfPackage: cfg.SelfPackage,
	}

	engine := daemon.NewEngine(
		engineCfg,
		store,
		infra.NewProcessProbe(),
		directory,
		infra.NewDesktopSurface(directory, logger),
		infra.NewDesktopNotifier(logger),
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if focusProfile != "" {
		if err := engine.StartFocus(focusProfile); err != nil {
			return err
		}
		fmt.Printf("Focus session started: %s\n", focusProfile)
	}

	logger.Info("daemon starting",
		zap.String("version", Version),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("schedule_check_interval", cfg.ScheduleCheckInterval))
	fmt.Println("turnoffd is running. Press Ctrl+C to stop.")

	err = engine.Run(ctx)
	engine.StopFocus()
	if err == context.Canceled {
		return nil
	}
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	resolver := oneShotResolver(store)
	now := time.Now()

	fmt.Println("\n=== turnoffd Status ===")

	if active := resolver.ActiveSchedule(now); active != nil {
		fmt.Printf("Active schedule: %s (%s-%s)\n", active.Name,
			config.FormatClock(active.StartMinute), config.FormatClock(active.EndMinute))
	} else {
		fmt.Println("Active schedule: none")
	}

	schedules, err := store.LoadSchedules()
	if err != nil {
		return err
	}
	fmt.Printf("Schedules configured: %d\n", len(schedules))

	profiles, err := store.LoadFocusProfiles()
	if err != nil {
		return err
	}
	fmt.Printf("Focus profiles: %d\n", len(profiles))

	fmt.Println("\nEffective blocked apps right now:")
	printSet(resolver.EffectiveBlockedApps(now))
	fmt.Println("\nEffective blocked websites right now:")
	printSet(resolver.EffectiveBlockedWebsites(now))

	fmt.Println("=======================")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	kind, target := args[0], args[1]

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	resolver := oneShotResolver(store)
	now := time.Now()

	var blocked bool
	switch kind {
	case "app":
		blocked = resolver.EffectiveBlockedApps(now)[target]
	case "site":
		blocked = resolver.Enforcing(now) && resolver.EffectiveBlockedWebsites(now)[target]
	default:
		return fmt.Errorf("unknown kind %q: want app or site", kind)
	}

	if blocked {
		fmt.Printf("%s is BLOCKED right now\n", target)
	} else {
		fmt.Printf("%s is allowed right now\n", target)
	}
	return nil
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage blocking schedules",
}

var (
	scheduleName     string
	scheduleStart    string
	scheduleEnd      string
	scheduleDays     string
	scheduleApps     []string
	scheduleSites    []string
	scheduleDisabled bool
)

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a blocking schedule",
	Long: `Adds a weekly blocking schedule. End before start means the window
wraps past midnight, e.g. --start 22:00 --end 06:00.`,
	RunE: runScheduleAdd,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocking schedules",
	RunE:  runScheduleList,
}

var scheduleRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a blocking schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRm,
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleName, "name", "", "Schedule name")
	scheduleAddCmd.Flags().StringVar(&scheduleStart, "start", "", "Start time (HH:mm)")
	scheduleAddCmd.Flags().StringVar(&scheduleEnd, "end", "", "End time (HH:mm)")
	scheduleAddCmd.Flags().StringVar(&scheduleDays, "days", "all", "Days (mon,tue,... or all)")
	scheduleAddCmd.Flags().StringSliceVar(&scheduleApps, "apps", nil, "Blocked app packages")
	scheduleAddCmd.Flags().StringSliceVar(&scheduleSites, "sites", nil, "Blocked website domains")
	scheduleAddCmd.Flags().BoolVar(&scheduleDisabled, "disabled", false, "Create disabled")
	_ = scheduleAddCmd.MarkFlagRequired("name")
	_ = scheduleAddCmd.MarkFlagRequired("start")
	_ = scheduleAddCmd.MarkFlagRequired("end")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRmCmd)
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	start, err := config.ParseClock(scheduleStart)
	if err != nil {
		return err
	}
	end, err := config.ParseClock(scheduleEnd)
	if err != nil {
		return err
	}
	days, err := config.ParseDays(scheduleDays)
	if err != nil {
		return err
	}

	store, err := openStoreFromFlags()
	if err != nil {
		return err
	}
	defer store.Close()

	sc := domain.Schedule{
		ID:              uuid.NewString(),
		Name:            scheduleName,
		StartMinute:     start,
		EndMinute:       end,
		Days:            days,
		Enabled:         !scheduleDisabled,
		BlockedApps:     toSet(scheduleApps),
		BlockedWebsites: toSet(scheduleSites),
	}
	if err := store.SaveSchedule(sc); err != nil {
		return err
	}

	fmt.Printf("Added schedule %s (%s)\n", sc.Name, sc.ID)
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	store, err := openStoreFromFlags()
	if err != nil {
		return err
	}
	defer store.Close()

	schedules, err := store.LoadSchedules()
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		fmt.Println("No schedules configured.")
		return nil
	}

	for _, sc := range schedules {
		state := "enabled"
		if !sc.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %s  %s-%s  %s  [%s]\n",
			sc.ID, sc.Name,
			config.FormatClock(sc.StartMinute), config.FormatClock(sc.EndMinute),
			formatDays(sc.Days), state)
		if len(sc.BlockedApps) > 0 {
			fmt.Printf("    apps: %s\n", strings.Join(sortedKeys(sc.BlockedApps), ", "))
		}
		if len(sc.BlockedWebsites) > 0 {
			fmt.Printf("    sites: %s\n", strings.Join(sortedKeys(sc.BlockedWebsites), ", "))
		}
	}
	return nil
}

func runScheduleRm(cmd *cobra.Command, args []string) error {
	store, err := openStoreFromFlags()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteSchedule(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed schedule %s\n", args[0])
	return nil
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage focus profiles",
}

var (
	profileName     string
	profileDuration int
	profileApps     []string
	profileSites    []string
)

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a focus profile",
	Long:  `Adds a focus profile. --duration 0 means the session runs until stopped.`,
	RunE:  runProfileAdd,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List focus profiles",
	RunE:  runProfileList,
}

var profileRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a focus profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileRm,
}

func init() {
	profileAddCmd.Flags().StringVar(&profileName, "name", "", "Profile name")
	profileAddCmd.Flags().IntVar(&profileDuration, "duration", 0, "Duration in minutes (0 = until stopped)")
	profileAddCmd.Flags().StringSliceVar(&profileApps, "apps", nil, "Blocked app packages")
	profileAddCmd.Flags().StringSliceVar(&profileSites, "sites", nil, "Blocked website domains")
	_ = profileAddCmd.MarkFlagRequired("name")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileRmCmd)
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	if profileDuration < 0 {
		return fmt.Errorf("duration must be zero or positive, got %d", profileDuration)
	}

	store, err := openStoreFromFlags()
	if err != nil {
		return err
	}
	defer store.Close()

	p := domain.FocusProfile{
		ID:              uuid.NewString(),
		Name:            profileName,
		DurationMinutes: profileDuration,
		BlockedApps:     toSet(profileApps),
		BlockedWebsites: toSet(profileSites),
	}
	if err := store.SaveFocusProfile(p); err != nil {
		return err
	}

	fmt.Printf("Added focus profile %s (%s)\n", p.Name, p.ID)
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) error {
	store, err := openStoreFromFlags()
	if err != nil {
		return err
	}
	defer store.Close()

	profiles, err := store.LoadFocusProfiles()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("No focus profiles configured.")
		return nil
	}

	for _, p := range profiles {
		duration := "until stopped"
		if !p.Unlimited() {
			duration = fmt.Sprintf("%d min", p.DurationMinutes)
		}
		fmt.Printf("%s  %s  %s\n", p.ID, p.Name, duration)
		if len(p.BlockedApps) > 0 {
			fmt.Printf("    apps: %s\n", strings.Join(sortedKeys(p.BlockedApps), ", "))
		}
		if len(p.BlockedWebsites) > 0 {
			fmt.Printf("    sites: %s\n", strings.Join(sortedKeys(p.BlockedWebsites), ", "))
		}
	}
	return nil
}

func runProfileRm(cmd *cobra.Command, args []string) error {
	store, err := openStoreFromFlags()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteFocusProfile(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed focus profile %s\n", args[0])
	return nil
}

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Manage the always-on blocklists",
}

var blockAppCmd = &cobra.Command{
	Use:   "app <package>",
	Short: "Add an app to the manual blocklist",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setBlocked("app", args[0], !blockRemove) },
}

var blockSiteCmd = &cobra.Command{
	Use:   "site <domain>",
	Short: "Add a website to the manual blocklist",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setBlocked("site", args[0], !blockRemove) },
}

var blockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the manual blocklists",
	RunE:  runBlockList,
}

var blockRemove bool

func init() {
	blockAppCmd.Flags().BoolVar(&blockRemove, "rm", false, "Remove instead of add")
	blockSiteCmd.Flags().BoolVar(&blockRemove, "rm", false, "Remove instead of add")

	blockCmd.AddCommand(blockAppCmd)
	blockCmd.AddCommand(blockSiteCmd)
	blockCmd.AddCommand(blockListCmd)
}

func setBlocked(kind, target string, blocked bool) error {
	store, err := openStoreFromFlags()
	if err != nil {
		return err
	}
	defer store.Close()

	if kind == "app" {
		err = store.SetAppBlocked(target, blocked)
	} else {
		err = store.SetWebsiteBlocked(target, blocked)
	}
	if err != nil {
		return err
	}

	verb := "Blocked"
	if !blocked {
		verb = "Unblocked"
	}
	fmt.Printf("%s %s\n", verb, target)
	return nil
}

func runBlockList(cmd *cobra.Command, args []string) error {
	store, err := openStoreFromFlags()
	if err != nil {
		return err
	}
	defer store.Close()

	apps, sites, err := store.LoadManualBlocklists()
	if err != nil {
		return err
	}

	fmt.Println("Blocked apps:")
	printSet(apps)
	fmt.Println("Blocked websites:")
	printSet(sites)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("turnoffd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// openStore opens the encrypted settings store, creating the key on first use.
func openStore(cfg config.Config) (*infra.SettingsDB, error) {
	key, err := infra.EnsureKey(infra.NewKeyFile(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare store key: %w", err)
	}
	return infra.NewSettingsDB(cfg.DataDir, key)
}

func openStoreFromFlags() (*infra.SettingsDB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return openStore(cfg)
}

// oneShotResolver evaluates policy with no live session and no temporary
// allows, which is what a separate CLI process can see.
func oneShotResolver(store domain.SettingsStore) *policy.Resolver {
	logger := zap.NewNop()
	sessions := usecase.NewSessionManager(nil, logger)
	return policy.NewResolver(store, sessions, policy.NewTemporaryAllowlist(), logger)
}

func createLogger(logFile string) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		sink,
		zap.InfoLevel,
	)
	return zap.New(core)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			set[item] = true
		}
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printSet(set map[string]bool) {
	if len(set) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, k := range sortedKeys(set) {
		fmt.Printf("  - %s\n", k)
	}
}

func formatDays(days map[int]bool) string {
	if len(days) == 7 {
		return "all"
	}
	names := []string{"", "sun", "mon", "tue", "wed", "thu", "fri", "sat"}
	var out []string
	for d := 1; d <= 7; d++ {
		if days[d] {
			out = append(out, names[d])
		}
	}
	return strings.Join(out, ",")
}
