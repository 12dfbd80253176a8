package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/base/linear"
	"github.com/pbanos/napkinxc/infer"
	"github.com/pbanos/napkinxc/model"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type testCmdConfig struct {
	*rootCmdConfig
	dataInput  string
	dataFormat string
	mongoDB    string
	modelDir   string
	kind       string
	topK       int
}

func testCmd(rootConfig *rootCmdConfig) *cobra.Command {
	tcc := &testCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Report precision@k of a trained model against a labeled test set",
		Run: func(cmd *cobra.Command, args []string) {
			if err := tcc.run(); err != nil {
				fmt.Fprintln(os.Stderr, errors.Wrap(err, "test"))
				os.Exit(1)
			}
		},
	}
	addDatasetFlags(cmd.PersistentFlags(), &tcc.dataFormat, &tcc.dataInput, &tcc.mongoDB)
	cmd.PersistentFlags().StringVarP(&(tcc.modelDir), "model", "d", "", "path to a trained model directory (required)")
	cmd.PersistentFlags().StringVarP(&(tcc.kind), "kind", "k", "plt", "model kind: plt, hsm, br, ovr, or online")
	cmd.PersistentFlags().IntVar(&(tcc.topK), "top-k", 5, "report precision@k for k = 1..top-k")
	return cmd
}

func (c *testCmdConfig) run() error {
	if c.modelDir == "" {
		return fmt.Errorf("required model flag was not set")
	}
	ctx := context.Background()
	examples, err := readExamples(ctx, c.dataFormat, c.dataInput, c.mongoDB)
	if err != nil {
		return fmt.Errorf("reading test set: %w", err)
	}
	k := int32(0)
	for _, e := range examples {
		for _, l := range e.Labels {
			if l+1 > k {
				k = l + 1
			}
		}
	}
	factory := func() base.Learner { return linear.New() }

	var m *model.Model
	kind := model.PLT
	if c.kind == "online" {
		m, err = loadOnlineModel(c.modelDir, factory)
		if err != nil {
			return err
		}
	} else {
		kind, err = parseKind(c.kind)
		if err != nil {
			return err
		}
		m, err = model.Load(c.modelDir, kind, k, factory)
		if err != nil {
			return fmt.Errorf("loading model: %w", err)
		}
	}
	c.Log().Logf("testing %s model against %d examples...", c.kind, len(examples))

	hits := make([]int, c.topK)
	for _, e := range examples {
		var preds []infer.Prediction
		if kind == model.BR || kind == model.OVR {
			preds = infer.RankBR(m, e.Features, c.topK, 0)
		} else {
			preds, err = infer.TopK(m, e.Features, c.topK, 0)
			if err != nil {
				return fmt.Errorf("predicting: %w", err)
			}
		}
		labelSet := make(map[int32]bool, len(e.Labels))
		for _, l := range e.Labels {
			labelSet[l] = true
		}
		correct := 0
		for i, p := range preds {
			if i >= c.topK {
				break
			}
			if labelSet[p.Label] {
				correct++
			}
			hits[i] += correct
		}
		for i := len(preds); i < c.topK; i++ {
			hits[i] += correct
		}
	}

	n := float64(len(examples))
	if n == 0 {
		return fmt.Errorf("test set is empty")
	}
	for i := 0; i < c.topK; i++ {
		fmt.Printf("precision@%d: %f\n", i+1, float64(hits[i])/(n*float64(i+1)))
	}
	return nil
}
