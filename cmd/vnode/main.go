package main

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"MESH-SAL/pkg/config"
	"MESH-SAL/pkg/meshstack"
	"MESH-SAL/pkg/repl"
)

func main() {
	configFile := flag.String("config", "", "YAML file describing the mesh nodes")
	// glog's -v and -logtostderr live on the standard flag set.
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	defer glog.Flush()

	if *configFile == "" {
		fmt.Printf("Usage:  %s --config <yaml file>\n", os.Args[0])
		os.Exit(1)
	}
	cfg, err := config.ParseConfig(*configFile)
	if err != nil {
		glog.Exitf("%v", err)
	}

	medium, err := initializeMedium(cfg)
	if err != nil {
		glog.Exitf("%v", err)
	}

	shell, err := repl.New(medium, cfg.LocalNode(), os.Stdout)
	if err != nil {
		glog.Exitf("%v", err)
	}
	shell.Start(os.Stdin)
	if err := shell.Close(); err != nil {
		glog.Errorf("shutdown: %v", err)
	}
}

func initializeMedium(cfg *config.Config) (*meshstack.Medium, error) {
	medium := meshstack.NewMedium()
	for i := range cfg.Nodes {
		nodeCfg, err := cfg.Nodes[i].StackConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "node %q", cfg.Nodes[i].Name)
		}
		node, err := meshstack.NewNode(nodeCfg)
		if err != nil {
			return nil, err
		}
		if err := medium.Attach(node); err != nil {
			return nil, err
		}
		glog.Infof("%s has address %s (%s)", node.Name, node.Address(), node.Role())
	}
	return medium, nil
}
