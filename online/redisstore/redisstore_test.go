package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/pbanos/napkinxc/base"
	"github.com/pbanos/napkinxc/base/linear"
	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/online"
	"github.com/pbanos/napkinxc/vector"
	redis "gopkg.in/redis.v5"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	n := online.NodeRecord{Index: 3, Label: 7, Parent: 1, Children: []int32{4, 5}, SubtreeLeaves: 2}
	data, err := encode(n)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Index != n.Index || decoded.Label != n.Label || decoded.Parent != n.Parent || decoded.SubtreeLeaves != n.SubtreeLeaves {
		t.Fatalf("decoded %+v, want %+v", *decoded, n)
	}
	if len(decoded.Children) != len(n.Children) {
		t.Fatalf("decoded children %v, want %v", decoded.Children, n.Children)
	}
	for i, c := range n.Children {
		if decoded.Children[i] != c {
			t.Errorf("decoded child %d = %d, want %d", i, decoded.Children[i], c)
		}
	}
}

func TestKeyForNamespacesByPrefix(t *testing.T) {
	s := &store{prefix: "tree42"}
	if got, want := s.keyFor(9), "tree42:9"; got != want {
		t.Errorf("keyFor(9) = %q, want %q", got, want)
	}
}

// TestSyncToAgainstRedis exercises New/SyncTo/Get against a real Redis
// instance, skipping if one isn't reachable at NAPKINXC_TEST_REDIS_ADDR
// (default localhost:6379): this package has no fake in-process client
// to substitute, so the round trip can only be proven against the real
// backend it wraps.
func TestSyncToAgainstRedis(t *testing.T) {
	addr := os.Getenv("NAPKINXC_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{Addr: addr})
	defer rc.Close()
	if err := rc.Ping().Err(); err != nil {
		t.Skipf("no redis reachable at %s: %v", addr, err)
	}

	ctx := context.Background()
	s := New(rc, t.Name())

	factory := func() base.Learner { return linear.New() }
	o := online.New(factory, base.DefaultArgs(), 2, 2, online.DescentBestScore, 0.5, 0, 1)
	feats := &vector.Sparse{Indices: []int32{0}, Values: []float64{1}}
	if err := o.Update(&example.Example{Features: feats, Labels: []int32{5, 7}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	defer func() {
		for i := int32(0); i < o.NumNodes(); i++ {
			_ = s.Delete(ctx, i)
		}
	}()

	if err := o.SyncTo(ctx, s); err != nil {
		t.Fatalf("SyncTo: %v", err)
	}

	for i := int32(0); i < o.NumNodes(); i++ {
		rec, err := s.Get(ctx, i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if rec == nil {
			t.Fatalf("node %d missing after SyncTo", i)
		}
	}
}
