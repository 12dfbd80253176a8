/*
Package model composes tree, assign and trainpool into the batch
Model capability set of §9: train, save, load and printInfo, shared
across the PLT, HSM, BR and OVR variants instead of giving each one
its own type hierarchy. predict/predictForLabel live in package infer,
which operates on a *Model rather than being a method of it, so the
inference engine can be swapped or tested independently of training.
*/
package model

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pbanos/napkinxc/assign"
	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/trainpool"
	"github.com/pbanos/napkinxc/tree"
)

// Kind identifies which of the four batch variants a Model is.
type Kind int

const (
	PLT Kind = iota
	HSM
	BR
	OVR
)

func (k Kind) String() string {
	switch k {
	case PLT:
		return "plt"
	case HSM:
		return "hsm"
	case BR:
		return "br"
	case OVR:
		return "ovr"
	default:
		return "unknown"
	}
}

// Model is a closed sum type over the four batch variants: PLT and
// HSM carry a Tree and index Bases by node; BR and OVR have no tree
// and index Bases directly by label.
type Model struct {
	Kind                     Kind
	Tree                     *tree.Tree // nil for BR/OVR
	K                        int32
	Bases                    []base.Learner
	HSMPickOneLabelWeighting bool
}

// Train builds the per-node (or per-label) training assignment for
// kind and trains every base through pool, returning the composed
// Model. t is required for PLT/HSM and ignored for BR/OVR.
func Train(kind Kind, t *tree.Tree, k int32, examples []*example.Example, pool *trainpool.Pool, hsmPickOneLabelWeighting bool) (*Model, error) {
	var a *assign.Assignment
	var size int32
	switch kind {
	case PLT:
		if t == nil {
			return nil, fmt.Errorf("model: PLT requires a tree")
		}
		a = assign.PLT(t, examples)
		size = t.NumNodes()
	case HSM:
		if t == nil {
			return nil, fmt.Errorf("model: HSM requires a tree")
		}
		a = assign.HSM(t, examples, hsmPickOneLabelWeighting)
		size = t.NumNodes()
	case BR:
		a = assign.BR(k, examples, false)
		size = k
	case OVR:
		a = assign.BR(k, examples, true)
		size = k
	default:
		return nil, fmt.Errorf("model: unknown kind %v", kind)
	}

	jobs := make([]trainpool.Job, 0, size)
	for i := int32(0); i < size; i++ {
		if len(a.Targets[i]) == 0 {
			continue
		}
		jobs = append(jobs, trainpool.Job{
			Index:    int(i),
			Targets:  a.Targets[i],
			Features: a.Features[i],
			Weights:  a.Weights[i],
		})
	}
	bases, err := pool.Train(jobs)
	if err != nil {
		return nil, fmt.Errorf("training %s model: %w", kind, err)
	}
	for int32(len(bases)) < size {
		bases = append(bases, nil)
	}

	return &Model{
		Kind:                     kind,
		Tree:                     t,
		K:                        k,
		Bases:                    bases,
		HSMPickOneLabelWeighting: hsmPickOneLabelWeighting,
	}, nil
}

// Save writes the model directory layout of §6 (tree.bin, tree.txt,
// weights.bin; args.bin is written by the config package, which owns
// the training arguments this Model does not itself carry). weights.bin
// carries a presence flag ahead of each base so nodes HSM never trains
// (the root, and every right child of a 2-child parent) can be skipped
// instead of forcing a base into a slot with no target.
func (m *Model) Save(dir string, factory base.Factory) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if m.Tree != nil {
		if err := writeFile(filepath.Join(dir, "tree.bin"), m.Tree.Save); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, "tree.txt"), m.Tree.SaveText); err != nil {
			return err
		}
	}
	return writeFile(filepath.Join(dir, "weights.bin"), func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := binary.Write(bw, binary.LittleEndian, int32(len(m.Bases))); err != nil {
			return err
		}
		for i, b := range m.Bases {
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
				return fmt.Errorf("model: saving base for node %d: %w", i, err)
			}
		}
		return bw.Flush()
	})
}

// Load reads a model directory previously written by Save. kind and
// factory must match what Save was originally called with; k is the
// label count (needed for BR/OVR, which carry no tree to derive it
// from).
func Load(dir string, kind Kind, k int32, factory base.Factory) (*Model, error) {
	m := &Model{Kind: kind, K: k}
	treePath := filepath.Join(dir, "tree.bin")
	if _, err := os.Stat(treePath); err == nil {
		t, err := readFile(treePath, tree.Load)
		if err != nil {
			return nil, err
		}
		m.Tree = t
	}

	weightsPath := filepath.Join(dir, "weights.bin")
	f, err := os.Open(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("loading model: opening %s: %w", weightsPath, err)
	}
	defer f.Close()
	br := bufio.NewReader(f)
	var size int32
	if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("loading model: reading weights size: %w", err)
	}
	bases := make([]base.Learner, size)
	for i := int32(0); i < size; i++ {
		var present int32
		if err := binary.Read(br, binary.LittleEndian, &present); err != nil {
			return nil, fmt.Errorf("loading model: node %d presence flag: %w", i, err)
		}
		if present == 0 {
			continue
		}
		b := factory()
		if err := b.Load(br); err != nil {
			return nil, fmt.Errorf("loading model: node %d: %w", i, err)
		}
		bases[i] = b
	}
	m.Bases = bases
	return m, nil
}

// PrintInfo writes a human-readable summary of the model, in the
// spirit of pbanos/botanic's tree-dump commands.
func (m *Model) PrintInfo(w io.Writer) {
	fmt.Fprintf(w, "kind: %s\n", m.Kind)
	fmt.Fprintf(w, "labels: %d\n", m.K)
	if m.Tree != nil {
		fmt.Fprintf(w, "nodes: %d\n", m.Tree.NumNodes())
	}
	fmt.Fprintf(w, "bases: %d\n", len(m.Bases))
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	return read(f)
}
