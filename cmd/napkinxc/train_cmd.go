package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/base/linear"
	"github.com/pbanos/napkinxc/config"
	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/kmeans"
	"github.com/pbanos/napkinxc/model"
	"github.com/pbanos/napkinxc/online"
	"github.com/pbanos/napkinxc/plg"
	"github.com/pbanos/napkinxc/trainpool"
	"github.com/pbanos/napkinxc/tree"
	"github.com/pbanos/napkinxc/vector"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type trainCmdConfig struct {
	*rootCmdConfig
	dataInput      string
	dataFormat     string
	mongoDB        string
	configInput    string
	output         string
	kind           string
}

func trainCmd(rootConfig *rootCmdConfig) *cobra.Command {
	tcc := &trainCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier from a set of labeled examples",
		Long:  `Build a label tree or label graph and train its base classifiers against a dataset.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := tcc.run(); err != nil {
				fmt.Fprintln(os.Stderr, errors.Wrap(err, "train"))
				os.Exit(1)
			}
		},
	}
	addDatasetFlags(cmd.PersistentFlags(), &tcc.dataFormat, &tcc.dataInput, &tcc.mongoDB)
	cmd.PersistentFlags().StringVarP(&(tcc.configInput), "config", "c", "", "path to a YAML config file (defaults built in, see package config)")
	cmd.PersistentFlags().StringVarP(&(tcc.output), "output", "o", "", "path to the directory the model will be written to (required)")
	cmd.PersistentFlags().StringVarP(&(tcc.kind), "kind", "k", "plt", "model kind: plt, hsm, br, ovr, or plg")
	return cmd
}

func (c *trainCmdConfig) run() error {
	if c.output == "" {
		return fmt.Errorf("required output flag was not set")
	}
	args := config.Default()
	if c.configInput != "" {
		var err error
		args, err = config.ParseFile(c.configInput)
		if err != nil {
			return err
		}
	}
	if err := args.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	c.Log().Logf("reading training set from %s (format=%s)...", describeInput(c.dataInput), c.dataFormat)
	examples, err := readExamples(ctx, c.dataFormat, c.dataInput, c.mongoDB)
	if err != nil {
		return fmt.Errorf("reading training set: %w", err)
	}
	labels := collectLabels(examples)
	k := int32(0)
	if len(labels) > 0 {
		k = labels[len(labels)-1] + 1
	}
	c.Log().Logf("read %d examples spanning %d labels", len(examples), len(labels))

	factory := func() base.Learner { return linear.New() }
	bargs := base.Args{Eta: args.Eta, L1: args.L1, L2: args.L2, Epochs: args.Epochs, Optimizer: args.Optimizer, Seed: args.Seed}
	pool := trainpool.New(args.Threads, factory, bargs)

	if err := os.MkdirAll(c.output, 0o755); err != nil {
		return err
	}

	if isOnlineTreeType(args.TreeType) {
		return c.trainOnline(examples, args, factory, bargs)
	}
	if c.kind == "plg" {
		return c.trainPLG(examples, k, args, factory, pool)
	}
	return c.trainBatch(examples, labels, k, args, factory, pool)
}

func (c *trainCmdConfig) trainBatch(examples []*example.Example, labels []int32, k int32, args config.Args, factory base.Factory, pool *trainpool.Pool) error {
	kind, err := parseKind(c.kind)
	if err != nil {
		return err
	}

	var t *tree.Tree
	if kind == model.PLT || kind == model.HSM {
		c.Log().Logf("building %s tree...", args.TreeType)
		t, err = buildTree(args, labels, examples, factory, base.Args{Eta: args.Eta, L1: args.L1, L2: args.L2, Epochs: args.Epochs, Optimizer: args.Optimizer, Seed: args.Seed}, pool)
		if err != nil {
			return fmt.Errorf("building tree: %w", err)
		}
	}

	c.Log().Logf("training %s bases...", kind)
	m, err := model.Train(kind, t, k, examples, pool, args.HSMPickOneLabelWeighting)
	if err != nil {
		return err
	}
	c.Log().Logf("saving model to %s...", c.output)
	if err := m.Save(c.output, factory); err != nil {
		return err
	}
	return saveArgs(c.output, args)
}

func (c *trainCmdConfig) trainPLG(examples []*example.Example, k int32, args config.Args, factory base.Factory, pool *trainpool.Pool) error {
	hashes := make([]plg.Hash, args.PLGLayers)
	for i := range hashes {
		p := plg.NextPrime(uint32(args.PLGLayerSize))
		hashes[i] = plg.Hash{A: uint32(i*2 + 1), B: uint32(i + 1), P: p}
	}
	g := plg.New(hashes, args.PLGLayerSize)
	c.Log().Logf("training PLG graph with %d layers, layer size %d (%d bases)...", args.PLGLayers, args.PLGLayerSize, len(g.Bases))
	if err := plg.Train(g, examples, pool); err != nil {
		return err
	}
	f, err := os.Create(joinPath(c.output, "graph.bin"))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := g.Save(f); err != nil {
		return err
	}
	wf, err := os.Create(joinPath(c.output, "weights.bin"))
	if err != nil {
		return err
	}
	defer wf.Close()
	bw := bufio.NewWriter(wf)
	if err := binary.Write(bw, binary.LittleEndian, int32(len(g.Bases))); err != nil {
		return err
	}
	for i, b := range g.Bases {
		if b == nil {
			if err := binary.Write(bw, binary.LittleEndian, int32(0)); err != nil {
				return err
			}
			continue
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(1)); err != nil {
			return err
		}
		if err := b.Save(bw); err != nil {
			return errors.Wrapf(err, "saving PLG base %d", i)
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return saveArgs(c.output, args)
}

func (c *trainCmdConfig) trainOnline(examples []*example.Example, args config.Args, factory base.Factory, bargs base.Args) error {
	descent := onlineDescent(args.TreeType)
	o := online.New(factory, bargs, args.Arity, args.MaxLeaves, descent, args.OnlineTreeAlfa, args.Hash, args.Seed)
	c.Log().Logf("growing online tree over %d examples...", len(examples))
	for i, e := range examples {
		if err := o.Update(e); err != nil {
			return fmt.Errorf("updating online tree at example %d: %w", i, err)
		}
	}
	f, err := os.Create(joinPath(c.output, "online.bin"))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := o.Save(f); err != nil {
		return err
	}
	return saveArgs(c.output, args)
}

func buildTree(args config.Args, labels []int32, examples []*example.Example, factory base.Factory, bargs base.Args, pool *trainpool.Pool) (*tree.Tree, error) {
	k := int32(0)
	if len(labels) > 0 {
		k = labels[len(labels)-1] + 1
	}
	switch args.TreeType {
	case config.Complete:
		return tree.BuildComplete(k, args.Arity, true, args.Seed), nil
	case config.Balanced:
		return tree.BuildBalanced(labels, args.Arity), nil
	case config.Huffman:
		return tree.BuildHuffman(k, labelFrequencies(examples, k), args.Arity), nil
	case config.HierarchicalKMeans:
		centroids := labelCentroids(examples, k)
		return tree.BuildHierarchicalKMeans(centroids, args.Arity, args.MaxLeaves, kmeans.Default(), kmeans.Args{Eps: args.KMeansEps, Balanced: args.KMeansBalanced, Hash: args.KMeansHash, Seed: args.Seed})
	case config.KMeansWithProjection:
		centroids := labelCentroids(examples, k)
		return tree.BuildRandomProjectionKMeans(centroids, args.Arity, args.MaxLeaves, args.ProjectDim, args.Seed, kmeans.Default(), kmeans.Args{Eps: args.KMeansEps, Balanced: args.KMeansBalanced, Hash: args.KMeansHash, Seed: args.Seed})
	case config.TopDown:
		result, err := tree.BuildTopDown(labels, examples, args.Arity, factory, bargs, pool)
		if err != nil {
			return nil, err
		}
		return result.Tree, nil
	default:
		return nil, fmt.Errorf("tree type %q is not a batch tree strategy", args.TreeType)
	}
}

func isOnlineTreeType(t config.TreeType) bool {
	switch t {
	case config.OnlineBalanced, config.OnlineComplete, config.OnlineRandom, config.OnlineKMeans, config.OnlineBestScore:
		return true
	}
	return false
}

func onlineDescent(t config.TreeType) online.Descent {
	switch t {
	case config.OnlineKMeans:
		return online.DescentKMeans
	case config.OnlineRandom:
		return online.DescentRandom
	default:
		return online.DescentBestScore
	}
}

func parseKind(s string) (model.Kind, error) {
	switch s {
	case "plt":
		return model.PLT, nil
	case "hsm":
		return model.HSM, nil
	case "br":
		return model.BR, nil
	case "ovr":
		return model.OVR, nil
	}
	return 0, fmt.Errorf("unknown model kind %q", s)
}

func collectLabels(examples []*example.Example) []int32 {
	seen := make(map[int32]bool)
	for _, e := range examples {
		for _, l := range e.Labels {
			seen[l] = true
		}
	}
	labels := make([]int32, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

func labelFrequencies(examples []*example.Example, k int32) map[int32]int64 {
	freq := make(map[int32]int64, k)
	for _, e := range examples {
		for _, l := range e.Labels {
			freq[l]++
		}
	}
	return freq
}

func labelCentroids(examples []*example.Example, k int32) map[int32]*vector.Sparse {
	sums := make(map[int32]map[int32]float64)
	counts := make(map[int32]int)
	for _, e := range examples {
		for _, l := range e.Labels {
			acc, ok := sums[l]
			if !ok {
				acc = make(map[int32]float64)
				sums[l] = acc
			}
			if e.Features != nil {
				for i, idx := range e.Features.Indices {
					acc[idx] += e.Features.Values[i]
				}
			}
			counts[l]++
		}
	}
	centroids := make(map[int32]*vector.Sparse, len(sums))
	for l, acc := range sums {
		n := float64(counts[l])
		dense := make(map[int32]float64, len(acc))
		for idx, sum := range acc {
			dense[idx] = sum / n
		}
		centroids[l] = vector.FromDense(dense)
	}
	return centroids
}

func saveArgs(dir string, args config.Args) error {
	f, err := os.Create(joinPath(dir, "args.bin"))
	if err != nil {
		return err
	}
	defer f.Close()
	return args.SaveBin(f)
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + string(os.PathSeparator) + name
}

func describeInput(path string) string {
	if path == "" {
		return "STDIN"
	}
	return path
}
