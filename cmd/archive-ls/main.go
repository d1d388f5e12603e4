// Утилита для просмотра артефактов, зеркалированных в S3.
//
// Usage:
//
//	archive-ls [-config path] [category[/YYYY[/MM]]]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ilkoid/mastication/internal/app"
	"github.com/ilkoid/mastication/pkg/s3storage"
)

func main() {
	configFlag := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// 1. Конфигурация
	cfg, _, err := app.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Archive.Enabled {
		fmt.Fprintln(os.Stderr, "archive is disabled in config")
		os.Exit(1)
	}

	// 2. Клиент
	client, err := s3storage.New(cfg.Archive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "S3 client error: %v\n", err)
		os.Exit(1)
	}

	// 3. Листинг
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	objects, err := client.List(ctx, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "List error: %v\n", err)
		os.Exit(1)
	}

	// 4. Вывод
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED")
	for _, obj := range objects {
		fmt.Fprintf(w, "%s\t%d\t%s\n", obj.Key, obj.Size, obj.LastModified.Format(time.RFC3339))
	}
	w.Flush()

	fmt.Printf("\n%d objects in %s\n", len(objects), cfg.Archive.Bucket)
}
