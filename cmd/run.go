package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/prospector/internal/config"
	"github.com/spigell/prospector/internal/export"
	"github.com/spigell/prospector/internal/leads"
	"github.com/spigell/prospector/internal/lock"
	"github.com/spigell/prospector/internal/logger"
	"github.com/spigell/prospector/internal/orchestrator"
	"github.com/spigell/prospector/internal/outreach"
)

const (
	PromptExportCSV           = "Export to csv"
	PromptPersist             = "Persist to sink"
	PromptDrafts              = "Create outreach drafts"
	PromptReportBySignal      = "Report by signal"
	PromptDumpToFile          = "Dump opportunities to file"
	PromptAppendToExcludeFile = "Append all companies to exclude file"
	PromptExit                = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptExportCSV, PromptPersist, PromptDrafts, PromptReportBySignal, PromptDumpToFile, PromptAppendToExcludeFile, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run lead generation over all configured signals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask what to do with found opportunities, run every configured output")
	runCmd.Flags().IntP("target", "t", 0, "stop after this many opportunities. Default is run.target")
	runCmd.Flags().IntSlice("signals", nil, "signal ids to process. Default is run.signals or the whole catalog")
	runCmd.Flags().StringP("exclude-file", "e", "", "file with already contacted companies. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("run.signals", runCmd.Flags().Lookup("signals"))
}

// output is the state shared by the post-run actions.
type output struct {
	cfg     *config.Config
	signals leads.Signals
	result  *orchestrator.Result
	logger  *zap.Logger
}

// run is the main command for the cli.
func run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	cfg, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	logger.Info("starting the prospector", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(cfg, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	runLock, err := lock.Acquire(cfg.Run.LockFile)
	if err != nil {
		logger.Error("another run is in progress", zap.Error(err))
		return err
	}
	defer func() {
		if err := runLock.Release(); err != nil {
			logger.Warn("releasing the lock file", zap.Error(err))
		}
	}()

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building the pipeline: %w", err)
	}
	defer p.Close()

	target, _ := cmd.Flags().GetInt("target")

	result, err := p.orchestrator.GenerateLeads(ctx, cfg.RunSignals(), target)
	if err != nil {
		return fmt.Errorf("generating leads: %w", err)
	}

	stats, _ := json.MarshalIndent(result.Stats, "", "  ")
	logger.Info("run statistics", zap.String("run_id", result.Stats.RunID), zap.ByteString("stats", stats))
	logger.Info("search budget", zap.Int("used", p.budget.Used()), zap.Int("remaining", p.budget.Remaining()))

	if result.Opportunities.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no opportunities found"))
		return nil
	}

	out := &output{cfg: cfg, signals: p.signals, result: result, logger: logger}

	if autoApprove, _ := cmd.Flags().GetBool("auto-approve"); autoApprove {
		return out.all(ctx)
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}

		logger.Info("current list of opportunities", zap.Int("count", result.Opportunities.Len()))

		if err := out.handle(ctx, action); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			return err
		}
	}
}

func (o *output) handle(ctx context.Context, action string) error {
	switch action {
	case PromptExportCSV:
		return o.exportCSV()
	case PromptPersist:
		return o.persist(ctx)
	case PromptDrafts:
		return o.drafts()
	case PromptReportBySignal:
		pretty, _ := json.MarshalIndent(o.result.Opportunities.ReportBySignal(o.signals), "", "  ")
		o.logger.Info(string(pretty), zap.Int("opportunities count", o.result.Opportunities.Len()))
		return nil
	case PromptDumpToFile:
		filename, err := o.result.Opportunities.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		o.logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return o.appendContacted()
	case PromptExit:
		o.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// all runs every configured output in order.
func (o *output) all(ctx context.Context) error {
	if err := o.exportCSV(); err != nil {
		return err
	}
	if err := o.persist(ctx); err != nil {
		return err
	}
	if o.cfg.Output.DraftsDir != "" {
		if err := o.drafts(); err != nil {
			return err
		}
	}
	if o.cfg.ExcludeFile != "" {
		return o.appendContacted()
	}
	return nil
}

func (o *output) exportCSV() error {
	path := o.cfg.Output.CSV
	if path == "" {
		o.logger.Info("skipping csv export", zap.String("reason", "output.csv is not set"))
		return nil
	}
	if err := o.result.Opportunities.ToCSVFile(path); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	o.logger.Info("opportunities exported", zap.String("filename", path), zap.Int("count", o.result.Opportunities.Len()))
	return nil
}

// persist never fails the run: sink errors are logged.
func (o *output) persist(ctx context.Context) error {
	sink, err := newSink(ctx, o.cfg.Sink)
	if err != nil {
		o.logger.Warn("sink is not available, skipping persistence", zap.String("kind", o.cfg.Sink.Kind), zap.Error(err))
		return nil
	}
	if sink == nil {
		o.logger.Debug("no sink configured")
		return nil
	}
	defer sink.Close()

	export.Persist(ctx, sink, o.result.Opportunities, o.result.Stats.RunID, time.Now(), o.logger)
	return nil
}

func (o *output) drafts() error {
	set, err := o.templates()
	if err != nil {
		return err
	}

	drafts, err := set.RenderAll(o.result.Opportunities, o.signals)
	if err != nil {
		return err
	}

	dir := o.cfg.Output.DraftsDir
	if dir == "" {
		dir = "drafts"
	}
	paths, err := outreach.WriteDir(dir, drafts)
	if err != nil {
		return err
	}

	summary := outreach.Summarize(drafts)
	o.logger.Info("outreach drafts created",
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
		zap.Int("drafts", summary.Total),
		zap.Int("needs_review", summary.NeedsReview),
	)
	return nil
}

func (o *output) templates() (*outreach.Set, error) {
	var (
		set *outreach.Set
		err error
	)
	if o.cfg.Outreach != nil && o.cfg.Outreach.TemplatesFile != "" {
		set, err = outreach.FromFile(o.cfg.Outreach.TemplatesFile)
	} else {
		set, err = outreach.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading outreach templates: %w", err)
	}

	if o.cfg.Outreach != nil {
		set.WithSender(outreach.Sender{
			Name:    o.cfg.Outreach.SenderName,
			Title:   o.cfg.Outreach.SenderTitle,
			Company: o.cfg.Outreach.SenderCompany,
		})
	}
	return set, nil
}

func (o *output) appendContacted() error {
	path := o.cfg.ExcludeFile
	if path == "" {
		o.logger.Info("skipping contacted history", zap.String("reason", "exclude-file is not set"))
		return nil
	}

	contacted, err := leads.ContactedFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		contacted, err = &leads.Contacted{}, nil
	}
	if err != nil {
		return err
	}

	contacted.Append(o.result.Opportunities.ToContacted(time.Now()))
	if err := contacted.ToFile(path); err != nil {
		return err
	}

	o.logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("companies", len(contacted.Companies())))
	return nil
}
