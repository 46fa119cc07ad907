package cluster

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sif/disttable/logging"
	uuid "github.com/gofrs/uuid"
)

// DefaultPort is the port rank 0 binds to when none is configured. Other ranks default to
// DefaultPort + rank, so that co-located ranks do not collide.
const DefaultPort = 1643

// NodeOptions are options for a Node, configuring one rank of a disttable group
type NodeOptions struct {
	Rank            int            // [REQUIRED] the rank of this Node within its group. Rank 0 coordinates the group.
	GroupSize       int            // [REQUIRED] the number of ranks in the group
	Port            int            // port for this Node to bind to
	Host            string         // hostname for this Node to bind to
	Listener        net.Listener   // an already-bound listener, used instead of Host and Port if supplied
	CoordinatorPort int            // port of rank 0 (identical to Port if this is rank 0)
	CoordinatorHost string         // [REQUIRED] hostname of rank 0 (identical to Host if this is rank 0)
	GroupID         string         // identifies the group, so that ranks of another group cannot join by mistake. Rank 0 generates one if empty.
	JoinTimeout     time.Duration  // how long the group should wait for every rank to join
	JoinRetries     int            // how many times a Node should retry connecting to rank 0 (at one second intervals)
	RPCTimeout      time.Duration  // timeout for control RPCs (dialing peers, logging, stopping)
	Logger          logging.Logger // receives log messages. Defaults to the standard library logger.
}

// CloneNodeOptions makes a copy of a NodeOptions
func CloneNodeOptions(opts *NodeOptions) *NodeOptions {
	return &NodeOptions{
		Rank:            opts.Rank,
		GroupSize:       opts.GroupSize,
		Port:            opts.Port,
		Host:            opts.Host,
		Listener:        opts.Listener,
		CoordinatorPort: opts.CoordinatorPort,
		CoordinatorHost: opts.CoordinatorHost,
		GroupID:         opts.GroupID,
		JoinTimeout:     opts.JoinTimeout,
		JoinRetries:     opts.JoinRetries,
		RPCTimeout:      opts.RPCTimeout,
		Logger:          opts.Logger,
	}
}

// NodeOptionsFromEnv creates NodeOptions whose rank and group size are read from
// $DISTTABLE_RANK and $DISTTABLE_GROUP_SIZE
func NodeOptionsFromEnv() (*NodeOptions, error) {
	opts := &NodeOptions{}
	for _, v := range []struct {
		name string
		dest *int
	}{{"DISTTABLE_RANK", &opts.Rank}, {"DISTTABLE_GROUP_SIZE", &opts.GroupSize}} {
		raw := os.Getenv(v.name)
		if len(raw) == 0 {
			return nil, fmt.Errorf("$%s is not set", v.name)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("$%s=\"%s\" is not an integer", v.name, raw)
		}
		*v.dest = n
	}
	opts.CoordinatorHost = os.Getenv("DISTTABLE_COORDINATOR_HOST")
	return opts, nil
}

func ensureDefaultNodeOptionsValues(opts *NodeOptions) error {
	// fail if certain required options are not supplied
	if opts.GroupSize <= 0 {
		return fmt.Errorf("NodeOptions.GroupSize must be greater than 0")
	}
	if opts.Rank < 0 || opts.Rank >= opts.GroupSize {
		return fmt.Errorf("NodeOptions.Rank %d must lie in [0, %d)", opts.Rank, opts.GroupSize)
	}
	if len(opts.CoordinatorHost) == 0 {
		return fmt.Errorf("NodeOptions.CoordinatorHost must be the address of rank 0")
	}
	// default certain options if not supplied
	if opts.Port == 0 {
		opts.Port = DefaultPort + opts.Rank
	}
	if len(opts.Host) == 0 {
		opts.Host = "0.0.0.0"
	}
	if opts.CoordinatorPort == 0 {
		opts.CoordinatorPort = DefaultPort
	}
	if len(opts.GroupID) == 0 && opts.Rank == 0 {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("failed to generate group ID: %v", err)
		}
		opts.GroupID = id.String()
	}
	if opts.RPCTimeout == 0 {
		opts.RPCTimeout = time.Duration(5) * time.Second
	}
	if opts.JoinTimeout == 0 {
		opts.JoinTimeout = time.Duration(30) * time.Second
	}
	if opts.JoinRetries == 0 {
		opts.JoinRetries = 5
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewStdLogger(logging.InfoLevel)
	}
	if opts.Listener == nil {
		return nil
	}
	// the listener decides where we actually serve
	addr, ok := opts.Listener.Addr().(*net.TCPAddr)
	if !ok {
		log.Printf("WARNING: listener %s is not using TCP", opts.Listener.Addr())
		return nil
	}
	opts.Port = addr.Port
	if opts.Rank == 0 {
		opts.CoordinatorPort = addr.Port
	}
	return nil
}

// connectionString returns the connection string for this node
func (o *NodeOptions) connectionString() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// coordinatorConnectionString returns the connection string for rank 0
func (o *NodeOptions) coordinatorConnectionString() string {
	return net.JoinHostPort(o.CoordinatorHost, strconv.Itoa(o.CoordinatorPort))
}
