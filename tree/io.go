package tree

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Save writes the tree.bin layout of §6: k, t, (index,label) records
// in node-array order, the root index, then parentIndex records in
// node-array order. Child order within a parent is recovered on Load
// by stable insertion as children are read in parent order, so it is
// never written.
func (t *Tree) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, t.K); err != nil {
		return err
	}
	tcount := t.NumNodes()
	if err := binary.Write(bw, binary.LittleEndian, tcount); err != nil {
		return err
	}
	for _, n := range t.Nodes {
		if err := binary.Write(bw, binary.LittleEndian, n.Index); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, n.Label); err != nil {
			return err
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, t.Root); err != nil {
		return err
	}
	for _, n := range t.Nodes {
		if err := binary.Write(bw, binary.LittleEndian, n.Parent); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads the tree.bin layout written by Save.
func Load(r io.Reader) (*Tree, error) {
	var k, tcount int32
	if err := binary.Read(r, binary.LittleEndian, &k); err != nil {
		return nil, fmt.Errorf("loading tree: reading k: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &tcount); err != nil {
		return nil, fmt.Errorf("loading tree: reading t: %w", err)
	}
	t := newTree(k)
	t.Nodes = make([]*Node, tcount)
	for i := int32(0); i < tcount; i++ {
		var idx, label int32
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return nil, fmt.Errorf("loading tree: reading node %d index: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &label); err != nil {
			return nil, fmt.Errorf("loading tree: reading node %d label: %w", i, err)
		}
		n := &Node{Index: idx, Label: label, Parent: -1}
		t.Nodes[idx] = n
		if label >= 0 {
			t.Leaves[label] = idx
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &t.Root); err != nil {
		return nil, fmt.Errorf("loading tree: reading root index: %w", err)
	}
	for i := int32(0); i < tcount; i++ {
		var parent int32
		if err := binary.Read(r, binary.LittleEndian, &parent); err != nil {
			return nil, fmt.Errorf("loading tree: reading node %d parent: %w", i, err)
		}
		t.Nodes[i].Parent = parent
		if parent >= 0 {
			t.Nodes[parent].Children = append(t.Nodes[parent].Children, i)
		}
	}
	return t, nil
}

// SaveText writes the tree.txt human-readable layout of §6: a `k t`
// header line followed by one `parent child label` line per node
// (label -1 for internal children, parent -1 for the root).
func (t *Tree) SaveText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d %d\n", t.K, t.NumNodes()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "-1 %d -1\n", t.Root); err != nil {
		return err
	}
	for _, n := range t.Nodes {
		if n.Index == t.Root {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%d %d %d\n", n.Parent, n.Index, n.Label); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadText reads the tree.txt layout written by SaveText. Children
// are attached in file order, which the loader treats as their
// canonical left-to-right order.
func LoadText(r io.Reader) (*Tree, error) {
	br := bufio.NewReader(r)
	var k, tcount int32
	if _, err := fmt.Fscanf(br, "%d %d\n", &k, &tcount); err != nil {
		return nil, fmt.Errorf("loading tree text: reading header: %w", err)
	}
	t := newTree(k)
	t.Nodes = make([]*Node, tcount)
	for i := int32(0); i < tcount; i++ {
		t.Nodes[i] = &Node{Index: i, Label: -1, Parent: -1}
	}
	for {
		var parent, child, label int32
		n, err := fmt.Fscanf(br, "%d %d %d\n", &parent, &child, &label)
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loading tree text: reading edge: %w", err)
		}
		t.Nodes[child].Label = label
		if label >= 0 {
			t.Leaves[label] = child
		}
		if parent == -1 {
			t.Root = child
			t.Nodes[child].Parent = -1
			continue
		}
		t.Nodes[child].Parent = parent
		t.Nodes[parent].Children = append(t.Nodes[parent].Children, child)
	}
	return t, nil
}
