// Command warmcache walks an archive's declared zoom range and fetches
// every bundle origin tile, priming the facade's header/directory/resource
// cache ahead of serving traffic.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/paulmach/orb/maptile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/esri-tilepkg/tilepkg"
	"github.com/esri-tilepkg/tilepkg/httpsource"
	"github.com/esri-tilepkg/tilepkg/internal/bundle"
)

func initConf() {
	pflag.String("archive", "", "path or URL of the archive to warm")
	pflag.Int("maxZoom", 0, "lower the highest zoom level to warm (0 or a value at or above the archive's maxZoom = archive's own maxZoom)")
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine) //nolint:errcheck // flags are defined immediately above

	viper.SetEnvPrefix("warmcache")
	viper.AutomaticEnv()
	viper.SetDefault("archive", "")
	viper.SetDefault("maxZoom", 0)
	viper.SetDefault("options.coverageCheck", true)
	viper.SetDefault("options.maxDz", 8)
	viper.SetDefault("options.maxCacheEntries", 200)
}

func openArchive(archivePath string, logger *logrus.Entry) (tilepkg.ByteSource, error) {
	if strings.HasPrefix(archivePath, "http://") || strings.HasPrefix(archivePath, "https://") {
		return httpsource.New(archivePath, httpsource.WithLogger(logger))
	}
	return tilepkg.NewFileSource(archivePath)
}

func main() {
	logrus.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	initConf()

	runID := uuid.New().String()
	log := logrus.WithField("run", runID)

	archivePath := viper.GetString("archive")
	if archivePath == "" {
		log.Fatal("warmcache: --archive is required")
	}

	src, err := openArchive(archivePath, log)
	if err != nil {
		log.WithError(err).Fatal("warmcache: opening archive")
	}

	facade := tilepkg.New(src, archivePath,
		tilepkg.WithCoverageCheck(viper.GetBool("options.coverageCheck")),
		tilepkg.WithMaxDz(viper.GetInt("options.maxDz")),
		tilepkg.WithMaxCacheEntries(viper.GetInt("options.maxCacheEntries")),
		tilepkg.WithLogger(log),
	)

	ctx := context.Background()
	header, err := facade.GetHeader(ctx)
	if err != nil {
		log.WithError(err).Fatal("warmcache: reading header")
	}

	maxZoom := header.MaxZoom
	if override := viper.GetInt("maxZoom"); override > 0 && uint32(override) < maxZoom {
		maxZoom = uint32(override)
	}

	log.WithFields(logrus.Fields{
		"archive": archivePath,
		"minZoom": header.MinZoom,
		"maxZoom": maxZoom,
	}).Info("warmcache: starting")

	prefix := bundle.Prefix(header.BundlePrefix())

	var warmed, failed int
	for z := header.MinZoom; z <= maxZoom; z++ {
		origins := bundle.Origins(header.Files.Files, prefix, z)
		bar := pb.StartNew(len(origins))
		for _, origin := range origins {
			tile := maptile.Tile{Z: maptile.Zoom(z), X: origin[0], Y: origin[1]}
			if _, err := facade.GetZxy(ctx, tile); err != nil {
				log.WithError(err).WithField("tile", tile).Warn("warmcache: fetch failed")
				failed++
			} else {
				warmed++
			}
			bar.Increment()
		}
		bar.Finish()
		log.Infof("warmcache: zoom %d finished ~ run %s", z, runID)
	}

	log.WithFields(logrus.Fields{"warmed": warmed, "failed": failed}).Info("warmcache: done")
	if failed > 0 {
		os.Exit(1)
	}
	fmt.Println("warmcache: complete")
}
