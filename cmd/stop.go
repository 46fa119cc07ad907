package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/go-sif/disttable/cluster"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type stopConfig struct {
	Host     string
	Ports    []int
	Force    bool
	Deadline time.Duration
}

func newStopCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	conf := &stopConfig{}
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask ranks started with --hold to stop.",
		Long: `disttable stop asks the ranks serving on the given host and ports to stop.

By default each rank finishes its work and closes its table, which waits for
the other ranks of its group. With --force, ranks stop serving immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopRanks(conf, stdout)
		},
	}
	flags := stopCmd.Flags()
	flags.StringVar(&conf.Host, "host", "127.0.0.1", "Host of the ranks to stop.")
	flags.IntSliceVar(&conf.Ports, "ports", []int{cluster.DefaultPort}, "Ports of the ranks to stop.")
	flags.BoolVar(&conf.Force, "force", false, "Stop immediately instead of gracefully.")
	flags.DurationVar(&conf.Deadline, "deadline", 5*time.Second, "How long to wait for each rank.")
	return stopCmd
}

func stopRanks(conf *stopConfig, stdout io.Writer) error {
	for _, port := range conf.Ports {
		target := net.JoinHostPort(conf.Host, strconv.Itoa(port))
		ctx, cancel := context.WithTimeout(context.Background(), conf.Deadline)
		err := cluster.RequestStop(ctx, target, !conf.Force)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "stopping %s", target)
		}
		fmt.Fprintf(stdout, "asked %s to stop\n", target)
	}
	return nil
}
