/*
Package config parses the training/inference argument set of §6 from
YAML, the same way pbanos/botanic's feature/yaml package parses
feature metadata: unmarshal into a plain struct with gopkg.in/yaml.v2
struct tags, then fill in defaults for anything the file omitted.
*/
package config

import (
	"encoding/gob"
	"fmt"
	"io"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"
)

// TreeType names one of the tree-building or online-growth strategies
// a model can be configured with.
type TreeType string

const (
	Complete           TreeType = "complete"
	Balanced           TreeType = "balanced"
	Huffman            TreeType = "huffman"
	HierarchicalKMeans TreeType = "hierarchicalKMeans"
	KMeansWithProjection TreeType = "kMeansWithProjection"
	TopDown            TreeType = "topDown"
	OnlineBalanced     TreeType = "onlineBalanced"
	OnlineComplete     TreeType = "onlineComplete"
	OnlineRandom       TreeType = "onlineRandom"
	OnlineKMeans       TreeType = "onlineKMeans"
	OnlineBestScore    TreeType = "onlineBestScore"
)

// Args is every configuration option named in §6.
type Args struct {
	Arity                   int      `yaml:"arity"`
	MaxLeaves               int      `yaml:"maxLeaves"`
	TopK                    int      `yaml:"topK"`
	Threshold               float64  `yaml:"threshold"`
	Threads                 int      `yaml:"threads"`
	TreeType                TreeType `yaml:"treeType"`
	KMeansEps               float64  `yaml:"kMeansEps"`
	KMeansBalanced          bool     `yaml:"kMeansBalanced"`
	KMeansHash              int32    `yaml:"kMeansHash"`
	Hash                    int32    `yaml:"hash"`
	OnlineTreeAlfa          float64  `yaml:"onlineTreeAlfa"`
	ProjectDim              int      `yaml:"projectDim"`
	Seed                    int64    `yaml:"seed"`
	HSMPickOneLabelWeighting bool    `yaml:"hsmPickOneLabelWeighting"`
	PLGLayers               int      `yaml:"plgLayers"`
	PLGLayerSize            int32    `yaml:"plgLayerSize"`

	// Ambient base-learner knobs (§6's BaseLearner contract is
	// external, but its hyperparameters are still configured here).
	Eta       float64 `yaml:"eta"`
	L1        float64 `yaml:"l1"`
	L2        float64 `yaml:"l2"`
	Epochs    int     `yaml:"epochs"`
	Optimizer string  `yaml:"optimizer"`
}

// Default returns an Args populated with the same baseline values
// napkinXC ships: a binary complete tree, topK of 10, no
// threshold floor, and a single-threaded pool.
func Default() Args {
	return Args{
		Arity:          2,
		MaxLeaves:      100,
		TopK:           10,
		Threshold:      0.0,
		Threads:        1,
		TreeType:       Complete,
		KMeansEps:      0.001,
		KMeansBalanced: true,
		OnlineTreeAlfa: 0.5,
		ProjectDim:     100,
		Seed:           1,
		PLGLayers:      3,
		PLGLayerSize:   1000,
		Eta:            1.0,
		L1:             0.0,
		L2:             1.0,
		Epochs:         1,
		Optimizer:      "adagrad",
	}
}

// Parse unmarshals YAML bytes over Default(), so a config file only
// needs to set the options it wants to override.
func Parse(data []byte) (Args, error) {
	args := Default()
	if err := yaml.Unmarshal(data, &args); err != nil {
		return Args{}, fmt.Errorf("parsing config: %w", err)
	}
	return args, nil
}

// ParseFile reads and parses a YAML config file from disk.
func ParseFile(path string) (Args, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Args{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	args, err := Parse(data)
	if err != nil {
		return Args{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return args, nil
}

// SaveBin writes Args to the model directory's args.bin, the
// training-time configuration record §6 says every model directory
// carries alongside its weights. gob is used rather than the yaml.v2
// text format Parse reads from: args.bin is an internal round-trip
// record the CLI never hand-edits, so there is no ecosystem parser in
// the retrieval pack whose concern this is; encoding/gob is the
// standard-library answer for that case.
func (a Args) SaveBin(w io.Writer) error {
	return gob.NewEncoder(w).Encode(a)
}

// LoadBin reads an args.bin record written by SaveBin.
func LoadBin(r io.Reader) (Args, error) {
	var a Args
	if err := gob.NewDecoder(r).Decode(&a); err != nil {
		return Args{}, fmt.Errorf("loading args.bin: %w", err)
	}
	return a, nil
}

// Validate checks the ConfigError cases of §7: an unrecognized
// treeType is fatal.
func (a Args) Validate() error {
	switch a.TreeType {
	case Complete, Balanced, Huffman, HierarchicalKMeans, KMeansWithProjection, TopDown,
		OnlineBalanced, OnlineComplete, OnlineRandom, OnlineKMeans, OnlineBestScore:
		return nil
	default:
		return fmt.Errorf("config: unknown treeType %q", a.TreeType)
	}
}
