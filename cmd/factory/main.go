// Package main provides the model factory CLI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/born-ml/factory/factory"
)

const version = "v0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "factory: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return nil
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "Born model factory %s\n", version)
		return nil
	case "models":
		for _, name := range factory.Names() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	case "summary":
		return summaryCmd(args[1:], stdout, stderr)
	case "infer":
		return inferCmd(args[1:], stdout, stderr)
	case "train":
		return trainCmd(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Born model factory")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  models     List registered models")
	fmt.Fprintln(w, "  summary    Print the stage shapes of a model")
	fmt.Fprintln(w, "  infer      Run inference on a synthetic batch")
	fmt.Fprintln(w, "  train      Train on synthetic batches")
}

// common holds the flags shared by every model command.
type common struct {
	configPath string
	batch      int
	workers    int
	logLevel   string

	be factory.Backend
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML or JSON config file (defaults when empty)")
	fs.IntVar(&c.batch, "batch", 4, "batch size when the config leaves it dynamic")
	fs.IntVar(&c.workers, "workers", 0, "kernel goroutines (0 uses every core)")
	fs.StringVar(&c.logLevel, "log-level", "info", "debug, info, warn or error")
}

func (c *common) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid -log-level: %w", err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func (c *common) config() (factory.Config, error) {
	if c.configPath == "" {
		return factory.DefaultConfig(), nil
	}
	return factory.LoadConfig(c.configPath)
}

func (c *common) backend() factory.Backend {
	if c.workers > 0 {
		return factory.NewBackendWithWorkers(c.workers)
	}
	return factory.NewBackend()
}

func (c *common) batchSize(cfg factory.Config) int {
	if cfg.ActiveBatchSize > 0 {
		return cfg.ActiveBatchSize
	}
	return max(c.batch, 1)
}

// build parses fs, loads the config, applies override and builds the model.
func (c *common) build(fs *flag.FlagSet, args []string, stderr io.Writer, override func(*factory.Config)) (factory.Model, *slog.Logger, error) {
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	logger, err := c.logger(stderr)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	if override != nil {
		override(&cfg)
	}

	c.be = c.backend()
	model, err := factory.Build(cfg.ModelName, cfg, c.be, logger)
	if err != nil {
		return nil, nil, err
	}
	return model, logger, nil
}

func summaryCmd(args []string, stdout, stderr io.Writer) error {
	var c common
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c.register(fs)

	model, _, err := c.build(fs, args, stderr, nil)
	if err != nil {
		return err
	}

	var params int
	for _, p := range model.Parameters() {
		params += p.Tensor().NumElements()
	}
	cfg := model.Config()
	fmt.Fprintf(stdout, "%s: %d branches, %d parameters\n\n", cfg.ModelName, cfg.NumParallelModules, params)
	return factory.WriteSummary(stdout, model.Summary())
}

func inferCmd(args []string, stdout, stderr io.Writer) error {
	var (
		c     common
		phase string
		seed  uint64
		ckpt  string
	)
	fs := flag.NewFlagSet("infer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c.register(fs)
	fs.StringVar(&phase, "phase", string(factory.PhaseTest), "train or test")
	fs.Uint64Var(&seed, "seed", 1, "seed of the synthetic batch")
	fs.StringVar(&ckpt, "checkpoint", "", "restore weights from a .born file")

	model, _, err := c.build(fs, args, stderr, func(cfg *factory.Config) {
		cfg.Phase = factory.Phase(phase)
	})
	if err != nil {
		return err
	}
	if ckpt != "" {
		if _, err := factory.LoadCheckpoint(ckpt, model); err != nil {
			return err
		}
	}

	cfg := model.Config()
	data := newSynthetic(cfg, seed)
	images, _ := data.batch(c.batchSize(cfg), cfg, c.be)

	pred, err := model.Inference(images)
	if err != nil {
		return err
	}

	shape := pred.Shape()
	fmt.Fprintf(stdout, "output %v\n", shape)
	for i := range shape[0] {
		row := pred.Data()[i*shape[1] : (i+1)*shape[1]]
		fmt.Fprintf(stdout, "  %d: %s\n", i, formatRow(row))
	}
	return nil
}

func trainCmd(args []string, stdout, stderr io.Writer) error {
	var (
		c         common
		steps     int
		evalEvery int
		seed      uint64
		save      string
	)
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c.register(fs)
	fs.IntVar(&steps, "steps", 100, "number of training steps")
	fs.IntVar(&evalEvery, "eval-every", 20, "evaluate every N steps (0 disables)")
	fs.Uint64Var(&seed, "seed", 1, "seed of the synthetic data")
	fs.StringVar(&save, "save", "", "write a .born checkpoint after training")

	model, logger, err := c.build(fs, args, stderr, func(cfg *factory.Config) {
		cfg.Phase = factory.PhaseTrain
	})
	if err != nil {
		return err
	}
	if steps <= 0 {
		return errors.New("-steps must be positive")
	}

	cfg := model.Config()
	data := newSynthetic(cfg, seed)
	batch := c.batchSize(cfg)

	var last factory.StepResult
	for step := range steps {
		images, targets := data.batch(batch, cfg, c.be)
		pred, err := model.Inference(images)
		if err != nil {
			return err
		}
		loss, err := model.Loss(pred, targets, nil)
		if err != nil {
			return err
		}
		res, err := model.Train(loss, step)
		if err != nil {
			return err
		}
		last = res
		logger.Info("train", "step", res.Step, "loss", res.Loss, "lr", res.LR)

		if evalEvery > 0 && (step+1)%evalEvery == 0 {
			evalLoss, err := evaluate(model, c.be, data, batch, step)
			if err != nil {
				return err
			}
			logger.Info("eval", "step", step, "loss", evalLoss)
		}
	}

	if save != "" {
		meta := factory.CheckpointMeta{Step: last.Step, Loss: last.Loss}
		if err := factory.SaveCheckpoint(save, model, meta); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout, "trained %s for %d steps\n", cfg.ModelName, steps)
	return nil
}

// evaluate scores one held-out batch in the test phase and restores training.
func evaluate(model factory.Model, backend factory.Backend, data *synthetic, batch, step int) (float32, error) {
	model.SetPhase(factory.PhaseTest)
	defer model.SetPhase(factory.PhaseTrain)

	cfg := model.Config()
	images, targets := data.batch(batch, cfg, backend)
	pred, err := model.Inference(images)
	if err != nil {
		return 0, err
	}
	loss, err := model.Loss(pred, targets, nil)
	if err != nil {
		return 0, err
	}
	return model.Test(loss, step)
}

func formatRow(row []float32) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return strings.Join(parts, " ")
}
