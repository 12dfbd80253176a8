package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/base/linear"
	"github.com/pbanos/napkinxc/config"
	"github.com/pbanos/napkinxc/infer"
	"github.com/pbanos/napkinxc/model"
	"github.com/pbanos/napkinxc/online"
	"github.com/pbanos/napkinxc/plg"
	"github.com/pbanos/napkinxc/vector"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type predictCmdConfig struct {
	*rootCmdConfig
	modelDir  string
	kind      string
	topK      int
	threshold float64
	labels    int
}

func predictCmd(rootConfig *rootCmdConfig) *cobra.Command {
	pcc := &predictCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Rank labels for examples read from STDIN",
		Long:  `Reads one sparse feature vector per line from STDIN ("idx1:val1 idx2:val2 ..."), no label prefix, and prints its top-K ranked labels.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := pcc.run(); err != nil {
				fmt.Fprintln(os.Stderr, errors.Wrap(err, "predict"))
				os.Exit(1)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&(pcc.modelDir), "model", "d", "", "path to a trained model directory (required)")
	cmd.PersistentFlags().StringVarP(&(pcc.kind), "kind", "k", "plt", "model kind: plt, hsm, br, ovr, plg, or online")
	cmd.PersistentFlags().IntVar(&(pcc.topK), "top-k", 5, "number of labels to report per example")
	cmd.PersistentFlags().Float64Var(&(pcc.threshold), "threshold", 0, "minimum score a label must reach to be reported")
	cmd.PersistentFlags().IntVar(&(pcc.labels), "labels", 0, "label count (required for kind=plg, which carries no label-space metadata in its model directory)")
	return cmd
}

func (c *predictCmdConfig) run() error {
	if c.modelDir == "" {
		return fmt.Errorf("required model flag was not set")
	}
	factory := func() base.Learner { return linear.New() }

	if c.kind == "plg" {
		return c.runPLG(factory)
	}
	if c.kind == "online" {
		return c.runOnline(factory)
	}
	kind, err := parseKind(c.kind)
	if err != nil {
		return err
	}
	m, err := model.Load(c.modelDir, kind, int32(c.labels), factory)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		x, err := parseFeatureLine(scanner.Text())
		if err != nil {
			return err
		}
		var preds []infer.Prediction
		if kind == model.BR || kind == model.OVR {
			preds = infer.RankBR(m, x, c.topK, c.threshold)
		} else {
			preds, err = infer.TopK(m, x, c.topK, c.threshold)
			if err != nil {
				return err
			}
		}
		printPredictions(preds)
	}
	return scanner.Err()
}

// runOnline loads a tree grown by `train --kind online` and ranks
// labels through the same infer.TopK path a batch PLT model uses, via
// OnlinePLT.ToModel.
func (c *predictCmdConfig) runOnline(factory base.Factory) error {
	m, err := loadOnlineModel(c.modelDir, factory)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		x, err := parseFeatureLine(scanner.Text())
		if err != nil {
			return err
		}
		preds, err := infer.TopK(m, x, c.topK, c.threshold)
		if err != nil {
			return err
		}
		printPredictions(preds)
	}
	return scanner.Err()
}

// loadOnlineModel reads online.bin and args.bin from dir and snapshots
// the resulting OnlinePLT as a *model.Model for inference.
func loadOnlineModel(dir string, factory base.Factory) (*model.Model, error) {
	af, err := os.Open(joinPath(dir, "args.bin"))
	if err != nil {
		return nil, fmt.Errorf("loading online args: %w", err)
	}
	args, err := config.LoadBin(af)
	af.Close()
	if err != nil {
		return nil, fmt.Errorf("loading online args: %w", err)
	}
	bargs := base.Args{Eta: args.Eta, L1: args.L1, L2: args.L2, Epochs: args.Epochs, Optimizer: args.Optimizer, Seed: args.Seed}
	f, err := os.Open(joinPath(dir, "online.bin"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	o, err := online.Load(f, factory, bargs, args.Arity, args.MaxLeaves, onlineDescent(args.TreeType), args.OnlineTreeAlfa, args.Hash, args.Seed)
	if err != nil {
		return nil, fmt.Errorf("loading online tree: %w", err)
	}
	return o.ToModel(), nil
}

func (c *predictCmdConfig) runPLG(factory base.Factory) error {
	if c.labels <= 0 {
		return fmt.Errorf("--labels is required for kind=plg")
	}
	gf, err := os.Open(joinPath(c.modelDir, "graph.bin"))
	if err != nil {
		return err
	}
	defer gf.Close()
	g, err := plg.Load(gf)
	if err != nil {
		return err
	}
	wf, err := os.Open(joinPath(c.modelDir, "weights.bin"))
	if err != nil {
		return err
	}
	defer wf.Close()
	br := bufio.NewReader(wf)
	var size int32
	if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
		return fmt.Errorf("reading PLG weights size: %w", err)
	}
	if int(size) != len(g.Bases) {
		return fmt.Errorf("PLG weights.bin has %d bases, graph has %d", size, len(g.Bases))
	}
	for i := int32(0); i < size; i++ {
		var present int32
		if err := binary.Read(br, binary.LittleEndian, &present); err != nil {
			return fmt.Errorf("reading PLG base %d presence flag: %w", i, err)
		}
		if present == 0 {
			continue
		}
		b := factory()
		if err := b.Load(br); err != nil {
			return fmt.Errorf("loading PLG base %d: %w", i, err)
		}
		g.Bases[i] = b
	}

	candidates := make([]int32, c.labels)
	for i := range candidates {
		candidates[i] = int32(i)
	}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		x, err := parseFeatureLine(scanner.Text())
		if err != nil {
			return err
		}
		preds := plg.TopK(g, x, candidates, c.topK, c.threshold)
		for _, p := range preds {
			fmt.Printf("%d:%f ", p.Label, p.Value)
		}
		fmt.Println()
	}
	return scanner.Err()
}

func printPredictions(preds []infer.Prediction) {
	for _, p := range preds {
		fmt.Printf("%d:%f ", p.Label, p.Value)
	}
	fmt.Println()
}

func parseFeatureLine(line string) (*vector.Sparse, error) {
	var indices []int32
	var values []float64
	var idx int32
	var val float64
	fields := splitFields(line)
	for _, f := range fields {
		if _, err := fmt.Sscanf(f, "%d:%f", &idx, &val); err != nil {
			return nil, fmt.Errorf("parsing feature pair %q: %w", f, err)
		}
		indices = append(indices, idx)
		values = append(values, val)
	}
	return &vector.Sparse{Indices: indices, Values: values}, nil
}

func splitFields(line string) []string {
	var fields []string
	start := -1
	for i, r := range line {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				fields = append(fields, line[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
	}
	return fields
}
