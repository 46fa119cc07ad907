package cmd

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-sif/disttable/cluster"
	"github.com/go-sif/disttable/datasource/file"
	"github.com/go-sif/disttable/datasource/parser/serialized"
	"github.com/go-sif/disttable/logging"
	dtesting "github.com/go-sif/disttable/testing"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testFlags() (*pflag.FlagSet, *int, *int, *string) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	rank := flags.Int("rank", 0, "")
	size := flags.Int("group-size", 1, "")
	level := flags.String("log-level", "INFO", "")
	return flags, rank, size, level
}

func TestSetAllConfigPriority(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "disttable.toml")
	require.Nil(t, ioutil.WriteFile(conf, []byte("rank = 2\ngroup-size = 4\nlog-level = \"DEBUG\"\n"), 0644))
	require.Nil(t, os.Setenv("DISTTABLE_GROUP_SIZE", "5"))
	defer os.Unsetenv("DISTTABLE_GROUP_SIZE")

	flags, rank, size, level := testFlags()
	require.Nil(t, flags.Parse([]string{"--config", conf, "--log-level", "WARN"}))
	require.Nil(t, setAllConfig(viper.New(), flags))
	// config file < environment < flags
	require.Equal(t, 2, *rank)
	require.Equal(t, 5, *size)
	require.Equal(t, "WARN", *level)
}

func TestSetAllConfigDefaults(t *testing.T) {
	flags, rank, size, level := testFlags()
	require.Nil(t, flags.Parse([]string{}))
	require.Nil(t, setAllConfig(viper.New(), flags))
	require.Equal(t, 0, *rank)
	require.Equal(t, 1, *size)
	require.Equal(t, "INFO", *level)
}

func TestSetAllConfigInvalidKey(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "disttable.toml")
	require.Nil(t, ioutil.WriteFile(conf, []byte("ranks = 2\n"), 0644))
	flags, _, _, _ := testFlags()
	require.Nil(t, flags.Parse([]string{"--config", conf}))
	err := setAllConfig(viper.New(), flags)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "invalid option")
}

// freePort returns a localhost port which was free a moment ago
func freePort(t *testing.T) int {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.Nil(t, lis.Close())
	return port
}

func TestRunSingleRank(t *testing.T) {
	defer goleak.VerifyNone(t)
	dir := t.TempDir()
	var csv strings.Builder
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&csv, "%d,%d\n", i, i*i)
	}
	require.Nil(t, ioutil.WriteFile(filepath.Join(dir, "points.csv"), []byte(csv.String()), 0644))
	saved := filepath.Join(dir, "partition.zst")
	port := strconv.Itoa(freePort(t))

	var stdout, stderr bytes.Buffer
	rc := NewRootCommand(nil, &stdout, &stderr)
	rc.SetArgs([]string{"run",
		"--source", filepath.Join(dir, "*.csv"),
		"--host", "127.0.0.1",
		"--port", port,
		"--coordinator-port", port,
		"--log-level", "ERROR",
		"--sample", "0.5",
		"--print-tree",
		"--scan",
		"--save", saved,
		"--serializer", "zstd",
	})
	require.Nil(t, rc.Execute())
	out := stdout.String()
	require.Contains(t, out, "rank 0 of 1: 6 local points, 6 total, 2 attributes")
	require.Contains(t, out, "leaf [")
	require.Contains(t, out, "rank 0: 6 local gets")

	parser, err := serialized.CreateParser("zstd")
	require.Nil(t, err)
	n, values, err := file.CreateSource(saved, parser).Load()
	require.Nil(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []float64{0, 0, 1, 1, 2, 4, 3, 9, 4, 16, 5, 25}, values)
}

func TestRunRejectsBadConfig(t *testing.T) {
	for _, args := range [][]string{
		{"run"},
		{"run", "--source", "x", "--format", "xml"},
		{"run", "--source", "x", "--delimiter", "::"},
		{"run", "--source", "x", "--log-level", "LOUD"},
	} {
		var stdout, stderr bytes.Buffer
		rc := NewRootCommand(nil, &stdout, &stderr)
		rc.SetArgs(args)
		require.NotNil(t, rc.Execute(), strings.Join(args, " "))
	}
}

func TestStopCommand(t *testing.T) {
	defer goleak.VerifyNone(t)
	nodes, err := dtesting.CreateLocalNodes(&cluster.NodeOptions{Logger: logging.NopLogger()}, 2)
	require.Nil(t, err)
	defer func() {
		for _, n := range nodes {
			require.Nil(t, n.Close())
		}
	}()
	_, port, err := net.SplitHostPort(nodes[1].Addr())
	require.Nil(t, err)

	var stdout, stderr bytes.Buffer
	rc := NewRootCommand(nil, &stdout, &stderr)
	rc.SetArgs([]string{"stop", "--ports", port})
	require.Nil(t, rc.Execute())
	require.Contains(t, stdout.String(), "asked 127.0.0.1:"+port+" to stop")
	select {
	case <-nodes[1].StopRequested():
	case <-time.After(time.Second):
		t.Fatal("rank 1 was not asked to stop")
	}
}
