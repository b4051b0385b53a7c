package main

import (
	"context"
	"time"

	"github.com/niksmo/product-page/config"
	"github.com/niksmo/product-page/internal/app"
	"github.com/niksmo/product-page/pkg/sigctx"
)

const closeTimeout = 5 * time.Second

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()
	cfg.Print()

	productPage := app.New(sigCtx, cfg)

	productPage.Run(closeApp)

	<-sigCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	productPage.Close(ctx)
}
