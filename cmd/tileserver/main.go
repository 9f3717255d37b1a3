// Command tileserver exposes a single TilePackage archive over HTTP:
// GET /:z/:x/:y for tiles, GET /resources/*path for raw archive members,
// and GET /metadata for the decoded metadata document.
package main

import (
	"net/http"
	"strconv"
	"strings"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paulmach/orb/maptile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/esri-tilepkg/tilepkg"
	"github.com/esri-tilepkg/tilepkg/httpsource"
)

func initConf() {
	pflag.String("archive", "", "path or URL of the archive to serve")
	pflag.String("listen", ":8080", "address to listen on")
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine) //nolint:errcheck // flags are defined immediately above

	viper.SetEnvPrefix("tileserver")
	viper.AutomaticEnv()
	viper.SetDefault("archive", "")
	viper.SetDefault("listen", ":8080")
	viper.SetDefault("options.coverageCheck", true)
	viper.SetDefault("options.maxDz", 8)
	viper.SetDefault("options.maxCacheEntries", 100)
	viper.SetDefault("options.subdivideConcurrency", 4)
}

func openArchive(archivePath string, logger *logrus.Entry) (tilepkg.ByteSource, error) {
	if strings.HasPrefix(archivePath, "http://") || strings.HasPrefix(archivePath, "https://") {
		return httpsource.New(archivePath, httpsource.WithLogger(logger))
	}
	return tilepkg.NewFileSource(archivePath)
}

// requestID stamps every request with a correlation id, echoed back on the
// response and attached to every log line the handler emits for it.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set("requestID", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func loggerFor(c *gin.Context) *logrus.Entry {
	return logrus.WithField("request", c.GetString("requestID"))
}

func tileMediaType(header *tilepkg.Header) string {
	if header.Kind == tilepkg.KindVector {
		return "application/vnd.mapbox-vector-tile"
	}
	return "application/octet-stream"
}

func tileHandler(facade *tilepkg.PackageFacade) gin.HandlerFunc {
	return func(c *gin.Context) {
		z, errZ := strconv.ParseUint(c.Param("z"), 10, 32)
		x, errX := strconv.ParseUint(c.Param("x"), 10, 32)
		yParam := strings.TrimSuffix(c.Param("y"), filepathExt(c.Param("y")))
		y, errY := strconv.ParseUint(yParam, 10, 32)
		if errZ != nil || errX != nil || errY != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		tile := maptile.Tile{Z: maptile.Zoom(z), X: uint32(x), Y: uint32(y)}
		result, err := facade.GetZxy(c.Request.Context(), tile)
		if err != nil {
			loggerFor(c).WithError(err).Warn("tileserver: getZxy failed")
			c.Status(http.StatusInternalServerError)
			return
		}
		if result == nil {
			c.Status(http.StatusNotFound)
			return
		}

		if result.CacheControl != "" {
			c.Header("Cache-Control", result.CacheControl)
		}
		if result.Expires != "" {
			c.Header("Expires", result.Expires)
		}

		header, err := facade.GetHeader(c.Request.Context())
		mediaType := "application/octet-stream"
		if err == nil && header != nil {
			mediaType = tileMediaType(header)
		}
		c.Data(http.StatusOK, mediaType, result.Bytes)
	}
}

// filepathExt returns the trailing extension (from the last '.', e.g.
// ".pbf", ".mvt" or ".png") if present, so
// a conventional tile URL like "/5/3/7.pbf" resolves the same coordinate as
// "/5/3/7" — clients that append a tile extension are common enough to be
// worth tolerating without a dedicated route.
func filepathExt(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i:]
	}
	return ""
}

func resourceHandler(facade *tilepkg.PackageFacade) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Param("path"), "/")
		b, err := facade.GetResource(c.Request.Context(), path)
		if err != nil {
			loggerFor(c).WithError(err).Warn("tileserver: getResource failed")
			c.Status(http.StatusInternalServerError)
			return
		}
		if b == nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", b)
	}
}

func metadataHandler(facade *tilepkg.PackageFacade) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := facade.GetMetadata(c.Request.Context())
		if err != nil {
			loggerFor(c).WithError(err).Warn("tileserver: getMetadata failed")
			c.Status(http.StatusInternalServerError)
			return
		}
		if doc == nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func main() {
	logrus.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	initConf()

	log := logrus.WithField("component", "tileserver")

	archivePath := viper.GetString("archive")
	if archivePath == "" {
		log.Fatal("tileserver: --archive is required")
	}

	src, err := openArchive(archivePath, log)
	if err != nil {
		log.WithError(err).Fatal("tileserver: opening archive")
	}

	facade := tilepkg.New(src, archivePath,
		tilepkg.WithCoverageCheck(viper.GetBool("options.coverageCheck")),
		tilepkg.WithMaxDz(viper.GetInt("options.maxDz")),
		tilepkg.WithMaxCacheEntries(viper.GetInt("options.maxCacheEntries")),
		tilepkg.WithSubdivideConcurrency(viper.GetInt("options.subdivideConcurrency")),
		tilepkg.WithLogger(log),
	)

	router := gin.New()
	router.Use(gin.Recovery(), requestID())
	router.GET("/:z/:x/:y", tileHandler(facade))
	router.GET("/resources/*path", resourceHandler(facade))
	router.GET("/metadata", metadataHandler(facade))

	listen := viper.GetString("listen")
	log.WithFields(logrus.Fields{"archive": archivePath, "listen": listen}).Info("tileserver: starting")
	if err := router.Run(listen); err != nil {
		log.WithError(err).Fatal("tileserver: server exited")
	}
}
