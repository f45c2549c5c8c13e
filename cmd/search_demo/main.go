package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"scout/internal/bootstrap"
	"scout/internal/config"
	"scout/internal/infra"
	"scout/internal/modules/intent"
	"scout/internal/service"
	"scout/internal/types"
)

func main() {
	var (
		lang      = flag.String("lang", "", "request language, e.g. ja or zh-TW")
		region    = flag.String("region", "", "caller region code, e.g. TW")
		openNow   = flag.String("open-now", "", "require | exclude (empty leaves it to the query)")
		lat       = flag.Float64("lat", 0, "caller latitude for near-me queries")
		lng       = flag.Float64("lng", 0, "caller longitude for near-me queries")
		sortKey   = flag.String("sort", "", "best_match | distance | rating | price")
		verbose   = flag.Bool("v", false, "debug logging")
		withRedis = flag.Bool("redis", false, "use the configured Redis tier")
	)
	flag.Parse()

	query := strings.Join(flag.Args(), " ")
	if query == "" {
		query = "深夜營業的拉麵 信義區"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := infra.NewLogger(level, "console")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{SkipAuth: true, SkipDB: true, SkipRedis: !*withRedis})
	if err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}
	defer app.Close()

	q := service.Query{Text: query, RegionCode: *region, Sort: *sortKey}
	q.Filters.Language = *lang
	if *openNow != "" {
		var o intent.OpenNow
		if err := o.UnmarshalText([]byte(*openNow)); err != nil {
			log.Fatal(err)
		}
		q.Filters.OpenNow = &o
	}
	if *lat != 0 || *lng != 0 {
		q.Location = &types.Point{Lat: *lat, Lng: *lng}
	}

	fmt.Fprintf(os.Stderr, "Query: %s\n", query)
	start := time.Now()
	resp, err := app.Search.Search(ctx, q)
	if err != nil {
		log.Fatalf("search: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Mode: %s (%s) in %s, language %s\n",
		resp.Meta.Mode, resp.Meta.FailureReason, time.Since(start).Round(time.Millisecond), resp.Meta.Language)
	if resp.Assist != nil {
		fmt.Fprintf(os.Stderr, "Assistant: %s\n", resp.Assist.Message)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		log.Fatal(err)
	}
}
