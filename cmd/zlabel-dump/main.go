// zlabel-dump prints the labels and best uberblock of a single device
// image. Read-only; useful for post-mortem inspection of pool members.
package main

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	flag "github.com/spf13/pflag"

	zlabel "github.com/ehrlich-b/go-zlabel"
	"github.com/ehrlich-b/go-zlabel/device"
	"github.com/ehrlich-b/go-zlabel/internal/logging"
)

func main() {
	var (
		verbose   = flag.BoolP("verbose", "v", false, "debug logging")
		allLabels = flag.BoolP("all", "a", false, "dump every label slot, not just the first valid one")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: zlabel-dump [-v] [-a] <device-or-image>\n")
		os.Exit(2)
	}
	path := flag.Arg(0)

	if *verbose {
		cfg := logging.DefaultConfig()
		cfg.Level = logging.LevelDebug
		logging.SetDefault(logging.NewLogger(cfg))
	}

	dev, err := device.OpenFileReadOnly(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zlabel-dump: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	psize := zlabel.AlignedSize(dev.Size())
	if psize < int64(zlabel.VdevLabels)*zlabel.LabelSize {
		fmt.Fprintf(os.Stderr, "zlabel-dump: %s: too small to carry labels (%s usable)\n",
			path, datasize.ByteSize(psize).HumanReadable())
		os.Exit(1)
	}
	fmt.Printf("%s: %s usable, %d labels\n", path,
		datasize.ByteSize(psize).HumanReadable(), zlabel.VdevLabels)

	leaf := zlabel.NewLeaf(zlabel.KindFile, 0, dev)
	root := zlabel.NewInterior(zlabel.KindRoot, 0)
	root.AddChild(leaf)

	pool := zlabel.NewPool("", 0)
	pool.SetRoot(root)

	if *allLabels {
		dumpAllSlots(pool, leaf, psize)
	} else if cfg := pool.ReadLabelConfig(leaf); cfg != nil {
		fmt.Printf("label config:\n%s", cfg.Dump())
	} else {
		fmt.Println("no valid label")
	}

	ub, err := pool.LoadBestUberblock(root)
	if err != nil {
		fmt.Println("no valid uberblock")
		return
	}
	fmt.Printf("best uberblock: txg=%d timestamp=%d guid_sum=%016x birth=%d\n",
		ub.Txg, ub.Timestamp, ub.GuidSum, ub.RootBP.BirthTxg)
}

// dumpAllSlots reads each label slot independently and reports which
// slots decode.
func dumpAllSlots(pool *zlabel.Pool, leaf *zlabel.Vdev, psize int64) {
	for l := 0; l < zlabel.VdevLabels; l++ {
		fmt.Printf("label %d @ %d:\n", l, zlabel.LabelOffset(psize, l, 0))
		cfg := pool.ReadLabelConfigSlot(leaf, l)
		if cfg == nil {
			fmt.Println("    (unreadable)")
			continue
		}
		if txg, ok := cfg.LookupUint64(zlabel.KeyTxg); ok {
			fmt.Printf("    txg: %d\n", txg)
		}
		if name, ok := cfg.LookupString(zlabel.KeyName); ok {
			fmt.Printf("    pool: %s\n", name)
		}
		if guid, ok := cfg.LookupUint64(zlabel.KeyGuid); ok {
			fmt.Printf("    guid: %016x\n", guid)
		}
	}
}
