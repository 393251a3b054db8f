// Command catalog-import adds products listed in a JSON manifest to the
// catalog. Every entry goes through the same validation, upload and
// transaction as a submission to the API.
//
// The manifest is an array of entries:
//
//	[{"name": "Teapot", "description": "Cast iron", "price": "19.50",
//	  "images": ["teapot/front.jpg", "teapot/side.jpg"]}]
//
// Image paths are relative to the manifest's directory.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/catalog-entry/internal/app"
)

func main() {
	var manifestPath string
	flag.StringVar(&manifestPath, "manifest", "products.json", "path to the product manifest")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadEnvConfig()
		if err != nil {
			return err
		}

		f, err := os.Open(manifestPath)
		if err != nil {
			return errors.Wrap(err, "open manifest")
		}
		defer func() { _ = f.Close() }()

		entries, err := readManifest(f)
		if err != nil {
			return err
		}
		lg.Info("Manifest loaded",
			zap.String("path", manifestPath),
			zap.Int("entries", len(entries)),
		)

		catalog, err := appkg.NewCatalog(ctx, cfg, m)
		if err != nil {
			return err
		}
		defer catalog.Close()

		return importAll(ctx, lg, catalog.Writer, os.DirFS(filepath.Dir(manifestPath)), entries)
	})
}
