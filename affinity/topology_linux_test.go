//go:build linux

package affinity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maxatome/go-testdeep/td"
)

func writeNode(t *testing.T, dir, node, cpulist string) {
	t.Helper()
	path := filepath.Join(dir, node)
	td.Require(t).CmpNoError(os.MkdirAll(path, 0o755))
	td.Require(t).CmpNoError(os.WriteFile(filepath.Join(path, "cpulist"), []byte(cpulist), 0o644))
}

func TestReadTopology(t *testing.T) {
	t.Run("sparse_nodes", func(t *testing.T) {
		// Arrange
		dir := t.TempDir()
		writeNode(t, dir, "node0", "0-1\n")
		writeNode(t, dir, "node2", "2,3\n")

		// Act
		topo, ok := readTopology(dir)

		// Assert
		td.CmpTrue(t, ok)
		td.Cmp(t, topo.Domains, [][]int{{0, 1}, nil, {2, 3}})
	})

	t.Run("missing_dir", func(t *testing.T) {
		_, ok := readTopology(filepath.Join(t.TempDir(), "nope"))

		td.CmpFalse(t, ok)
	})

	t.Run("bad_cpulist", func(t *testing.T) {
		dir := t.TempDir()
		writeNode(t, dir, "node0", "zz")

		_, ok := readTopology(dir)

		td.CmpFalse(t, ok)
	})
}

func TestPinRelease(t *testing.T) {
	// Arrange
	topo := Detect()
	cpus := topo.Domains[0]
	if len(cpus) == 0 {
		t.Skip("first domain has no cpu")
	}
	done := make(chan struct{})

	go func() {
		defer close(done)

		// Act
		pinned, err := Pin(cpus[:1])
		if err != nil {
			t.Errorf("pin: %v", err)
			return
		}
		domain := CurrentDomain(topo)
		releaseErr := pinned.Release()
		againErr := pinned.Release()

		// Assert
		td.Cmp(t, domain, topo.DomainOf(cpus[0]))
		td.CmpNoError(t, releaseErr)
		td.CmpNoError(t, againErr)
	}()
	<-done
}
