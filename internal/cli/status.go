package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sonata-sse/sse-core/internal/daemon"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print current fabric, scheduler, and health status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	health := d.Health.Check()
	stats := d.Scheduler.Stats()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "checked\t%s\n", humanize.Time(health.CheckedAt))
	fmt.Fprintf(w, "healthy\t%v\n", health.Healthy())
	fmt.Fprintf(w, "telescopes\t%d\n", health.RegisteredTelescopes)
	fmt.Fprintf(w, "if chains\t%d\n", health.RegisteredIFChains)
	fmt.Fprintf(w, "test generators\t%d\n", health.RegisteredTestgens)
	fmt.Fprintf(w, "detectors\t%d\n", health.RegisteredDetectors)
	fmt.Fprintf(w, "targets chosen\t%d\n", stats.Chosen)
	fmt.Fprintf(w, "targets rejected\t%d\n", stats.Rejected)
	fmt.Fprintf(w, "cycles with no target\t%d\n", stats.NoTarget)
	fmt.Fprintf(w, "data products\t%s (%s)\n",
		d.Config.Scheduler.DataProductsRoot,
		humanize.Bytes(dirSize(d.Config.Scheduler.DataProductsRoot)))
	return w.Flush()
}

// dirSize sums the size of every regular file under root, returning 0 for
// a root that does not exist yet — a freshly installed site has written no
// data products.
func dirSize(root string) uint64 {
	var total uint64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += uint64(info.Size())
		return nil
	})
	return total
}
