package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/coinpulse/coinpulse/pkg/robusthttp"

	"github.com/urfave/cli/v2"
)

// adminClient talks to the furnace admin API.
type adminClient struct {
	host string
	c    *http.Client
}

func newAdminClient(cctx *cli.Context) *adminClient {
	c := robusthttp.NewClient()
	// warming passes can exceed the default client timeout
	c.Timeout = 2 * time.Minute
	return &adminClient{
		host: strings.TrimSuffix(cctx.String("furnace-host"), "/"),
		c:    c,
	}
}

func (ac *adminClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ac.host+path, nil)
	if err != nil {
		return err
	}
	return ac.do(req, out)
}

func (ac *adminClient) postJSON(ctx context.Context, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.host+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return ac.do(req, out)
}

func (ac *adminClient) do(req *http.Request, out any) error {
	resp, err := ac.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("%s (HTTP %d): %s", apiErr.Error, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("furnace admin API returned HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var cmdStats = &cli.Command{
	Name:  "stats",
	Usage: "report live keyspace counts per entity type",
	Flags: adminFlags,
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		ac := newAdminClient(cctx)

		var resp struct {
			TotalKeys int64 `json:"totalKeys"`
			Entities  []struct {
				Entity   string `json:"entity"`
				Template string `json:"template"`
				Class    string `json:"class"`
				TTL      string `json:"ttl"`
				Keys     int64  `json:"keys"`
			} `json:"entities"`
		}
		if err := ac.getJSON(ctx, "/admin/cache/stats", &resp); err != nil {
			return err
		}

		fmt.Printf("%-24s %-6s %-8s %8s  %s\n", "ENTITY", "CLASS", "TTL", "KEYS", "TEMPLATE")
		for _, row := range resp.Entities {
			fmt.Printf("%-24s %-6s %-8s %8d  %s\n", row.Entity, row.Class, row.TTL, row.Keys, row.Template)
		}
		fmt.Printf("\ntotal keys: %d\n", resp.TotalKeys)
		return nil
	},
}

var cmdWarm = &cli.Command{
	Name:  "warm",
	Usage: "trigger a full cache warming pass",
	Flags: adminFlags,
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		ac := newAdminClient(cctx)

		var resp struct {
			Warmed map[string]int `json:"warmed"`
		}
		if err := ac.postJSON(ctx, "/admin/cache/warm", nil, &resp); err != nil {
			return err
		}

		categories := make([]string, 0, len(resp.Warmed))
		for category := range resp.Warmed {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		total := 0
		for _, category := range categories {
			fmt.Printf("%-12s %d\n", category, resp.Warmed[category])
			total += resp.Warmed[category]
		}
		fmt.Printf("\nwarmed %d keys\n", total)
		return nil
	},
}

var cmdFlush = &cli.Command{
	Name:  "flush",
	Usage: "drop every key in the cache (requires --allow-flush on the daemon)",
	Flags: adminFlags,
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		ac := newAdminClient(cctx)

		if err := ac.postJSON(ctx, "/admin/cache/flush", nil, nil); err != nil {
			return err
		}
		fmt.Println("cache flushed")
		return nil
	},
}
