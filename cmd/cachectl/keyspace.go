package main

import (
	"fmt"

	"github.com/coinpulse/coinpulse/cache"

	"github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

var cmdKeyspace = &cli.Command{
	Name:   "keyspace",
	Usage:  "print the cache key schema grouped by eviction class",
	Action: runKeyspace,
}

// runKeyspace renders the registered key templates and their TTLs without
// touching the backend; use `stats` for live counts.
func runKeyspace(cctx *cli.Context) error {
	policy := cache.DefaultPolicy()

	tree := treeprint.NewWithRoot("coinpulse keyspace")
	for _, class := range []cache.Class{cache.ClassHot, cache.ClassWarm, cache.ClassCold} {
		branch := tree.AddBranch(string(class))
		for _, entity := range policy.Types() {
			entityClass, err := policy.ClassFor(entity)
			if err != nil {
				return err
			}
			if entityClass != class {
				continue
			}
			tmpl, err := cache.Template(entity)
			if err != nil {
				return err
			}
			ttl, err := policy.TTLFor(entity)
			if err != nil {
				return err
			}
			branch.AddMetaNode(ttl.String(), tmpl)
		}
	}
	fmt.Println(tree.String())
	return nil
}
