package main

import (
	"fmt"
	"os"

	"github.com/pbanos/napkinxc/tree"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type treeCmdConfig struct {
	*rootCmdConfig
	modelDir string
}

func treeCmd(rootConfig *rootCmdConfig) *cobra.Command {
	tcc := &treeCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the label tree of a trained PLT/HSM model",
		Run: func(cmd *cobra.Command, args []string) {
			if err := tcc.run(); err != nil {
				fmt.Fprintln(os.Stderr, errors.Wrap(err, "tree"))
				os.Exit(1)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&(tcc.modelDir), "model", "d", "", "path to a trained model directory (required)")
	return cmd
}

func (c *treeCmdConfig) run() error {
	if c.modelDir == "" {
		return fmt.Errorf("required model flag was not set")
	}
	f, err := os.Open(joinPath(c.modelDir, "tree.bin"))
	if err != nil {
		return fmt.Errorf("opening tree.bin (only PLT and HSM models carry a tree): %w", err)
	}
	defer f.Close()
	t, err := tree.Load(f)
	if err != nil {
		return fmt.Errorf("parsing tree.bin: %w", err)
	}
	printNode(t, t.Root, 0)
	return nil
}

func printNode(t *tree.Tree, idx int32, depth int) {
	n := t.Nodes[idx]
	for i := 0; i < depth; i++ {
		fmt.Print("  ")
	}
	if n.IsLeaf() {
		fmt.Printf("node %d: label %d\n", n.Index, n.Label)
		return
	}
	fmt.Printf("node %d: %d children\n", n.Index, len(n.Children))
	for _, c := range n.Children {
		printNode(t, c, depth+1)
	}
}
