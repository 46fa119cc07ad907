// Package testing runs disttable groups within a single process, connecting their ranks over
// gRPC on localhost. It serves tests which need a real transport without a real cluster.
package testing

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-sif/disttable"
	"github.com/go-sif/disttable/cluster"
	"github.com/go-sif/disttable/types"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// LocalGroup is a group of Tables whose ranks all run in this process
type LocalGroup struct {
	Nodes  []*cluster.Node
	Tables []*disttable.Table
}

// CreateLocalNodes starts one Node per rank on ephemeral localhost ports. opts may be nil;
// its Rank, GroupSize and addressing fields are overwritten.
func CreateLocalNodes(opts *cluster.NodeOptions, size int) (nodes []*cluster.Node, err error) {
	if opts == nil {
		opts = &cluster.NodeOptions{}
	}
	listeners := make([]net.Listener, size)
	nodes = make([]*cluster.Node, 0, size)
	defer func() {
		if err == nil {
			return
		}
		// listeners which were handed to a node are closed with it
		for _, lis := range listeners[len(nodes):] {
			if lis != nil {
				lis.Close()
			}
		}
		for _, n := range nodes {
			n.Close()
		}
		nodes = nil
	}()
	for i := range listeners {
		listeners[i], err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to listen: %v", err)
		}
	}
	coordinatorPort := listeners[0].Addr().(*net.TCPAddr).Port
	for rank, lis := range listeners {
		nopts := cluster.CloneNodeOptions(opts)
		nopts.Rank = rank
		nopts.GroupSize = size
		nopts.Host = "127.0.0.1"
		nopts.Listener = lis
		nopts.CoordinatorHost = "127.0.0.1"
		nopts.CoordinatorPort = coordinatorPort
		if nopts.JoinTimeout == 0 {
			nopts.JoinTimeout = time.Duration(5) * time.Second
		}
		node, err := cluster.CreateNode(nopts)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// StartLocalGroup starts one rank per source on localhost and initializes a Table on each
func StartLocalGroup(ctx context.Context, opts *disttable.Options, nopts *cluster.NodeOptions, sources ...types.PointSource) (*LocalGroup, error) {
	nodes, err := CreateLocalNodes(nopts, len(sources))
	if err != nil {
		return nil, err
	}
	g := &LocalGroup{Nodes: nodes, Tables: make([]*disttable.Table, len(sources))}
	eg, ectx := errgroup.WithContext(ctx)
	for rank, source := range sources {
		rank, source := rank, source
		g.Tables[rank] = disttable.New(opts)
		eg.Go(func() error {
			return g.Tables[rank].Init(ectx, source, nodes[rank])
		})
	}
	if err := eg.Wait(); err != nil {
		g.Close(ctx)
		return nil, err
	}
	return g, nil
}

// Do runs fn concurrently for every rank, returning the first error
func (g *LocalGroup) Do(fn func(rank int, table *disttable.Table) error) error {
	var eg errgroup.Group
	for rank, table := range g.Tables {
		rank, table := rank, table
		eg.Go(func() error {
			return fn(rank, table)
		})
	}
	return eg.Wait()
}

// Close closes every Table concurrently, since each waits for the others, followed by
// every Node
func (g *LocalGroup) Close(ctx context.Context) error {
	errs := make([]error, len(g.Tables))
	var eg errgroup.Group
	for rank, table := range g.Tables {
		rank, table := rank, table
		eg.Go(func() error {
			errs[rank] = table.Close(ctx)
			return nil
		})
	}
	eg.Wait()
	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, n := range g.Nodes {
		if err := n.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
