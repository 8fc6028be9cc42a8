package main

import (
	"context"
	"fmt"
	"os"

	"github.com/portfolio-sync/internal/adapter"
	"github.com/portfolio-sync/internal/config"
	"github.com/portfolio-sync/internal/logging"
	"github.com/portfolio-sync/internal/service"
	"github.com/portfolio-sync/internal/types"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Println("Usage: quote_check <domestic|overseas> <code>")
		os.Exit(2)
	}

	category, ok := types.ParseCategory(os.Args[1])
	if !ok {
		fmt.Printf("Error: unknown category %q\n", os.Args[1])
		os.Exit(2)
	}
	code := os.Args[2]

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))

	ctx, cancel := context.WithTimeout(context.Background(), 3*cfg.HTTP.Timeout)
	defer cancel()

	httpClient := adapter.NewHTTPClient(cfg.HTTP.Timeout)
	yahoo := adapter.NewYahooClient(cfg.Quotes, httpClient)
	naver := adapter.NewNaverClient(cfg.Quotes, httpClient)

	fx := service.NewRateResolver(yahoo, cfg.FX.Pair, cfg.FX.FallbackRate, nil).Quote(ctx)
	price := service.NewPriceResolver(naver, yahoo, nil, nil).Resolve(ctx, code, category)

	fmt.Printf("Code:     %s (%s)\n", code, category)
	fmt.Printf("Price:    %s %s\n", price, category.Currency())
	fmt.Printf("FX rate:  %s (fallback: %v)\n", fx.Rate, fx.Fallback)

	if !price.Available {
		os.Exit(1)
	}
}
