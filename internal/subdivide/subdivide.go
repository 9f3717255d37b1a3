package subdivide

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/esri-tilepkg/tilepkg/internal/core"
)

// Options configures one Subdivide call.
type Options struct {
	// Buffer is the number of extent units the clip box extends past
	// [0, extent] on each side. Defaults to 128 if zero.
	Buffer float64

	// IncludeLayers, if set, is consulted per layer name; layers for
	// which it returns false are dropped from the output entirely.
	IncludeLayers func(name string) bool

	// MaxDzWarn triggers a diagnostic log (not a failure) when dz
	// exceeds it. Zero disables the diagnostic.
	MaxDzWarn int

	Logger *logrus.Entry
}

func (o Options) buffer() float64 {
	if o.Buffer == 0 {
		return 128
	}
	return o.Buffer
}

func (o Options) logger() *logrus.Entry {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Subdivide synthesizes the tile at (tz,tx,ty) from parentBytes, the MVT
// payload of its ancestor at (pz,px,py). dz<=0 returns parentBytes
// unchanged (testable property 3). Any other mismatch between the parent
// and target coordinates fails with ErrContainmentViolation, signaling a
// caller bug rather than a data problem.
func Subdivide(ctx context.Context, parentBytes []byte, pz, px, py, tz, tx, ty uint32, opts Options) ([]byte, error) {
	if tz <= pz {
		return parentBytes, nil
	}
	dz := tz - pz
	if tx>>dz != px || ty>>dz != py {
		return nil, fmt.Errorf("%w: target (%d,%d,%d) is not a descendant of parent (%d,%d,%d)", core.ErrContainmentViolation, tz, tx, ty, pz, px, py)
	}
	scale := float64(uint64(1) << dz)

	if opts.MaxDzWarn > 0 && int(dz) > opts.MaxDzWarn {
		opts.logger().WithFields(logrus.Fields{"dz": dz, "maxDzWarn": opts.MaxDzWarn}).
			Warn("tilepkg: subdivision depth exceeds maxDzWarn")
	}

	parentLayers, err := mvt.Unmarshal(parentBytes)
	if err != nil {
		return nil, fmt.Errorf("subdivide: decoding parent mvt: %w", err)
	}

	offsetXUnits := float64(tx) - float64(px)*scale
	offsetYUnits := float64(ty) - float64(py)*scale

	var outLayers mvt.Layers
	for _, layer := range parentLayers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if opts.IncludeLayers != nil && !opts.IncludeLayers(layer.Name) {
			continue
		}
		if out := subdivideLayer(layer, scale, offsetXUnits, offsetYUnits, opts); out != nil {
			outLayers = append(outLayers, out)
		}
	}

	encoded, err := mvt.Marshal(outLayers)
	if err != nil {
		return nil, fmt.Errorf("subdivide: encoding mvt: %w", err)
	}
	return encoded, nil
}

// subdivideLayer transforms and clips every feature of layer, dropping
// features whose geometry becomes empty; returns nil if no feature
// survives (the layer itself is then dropped).
func subdivideLayer(layer *mvt.Layer, scale, offsetXUnits, offsetYUnits float64, opts Options) *mvt.Layer {
	extent := float64(layer.Extent)
	if extent == 0 {
		extent = 4096
	}
	offsetX := offsetXUnits * extent
	offsetY := offsetYUnits * extent
	b := box{xmin: -opts.buffer(), xmax: extent + opts.buffer(), ymin: -opts.buffer(), ymax: extent + opts.buffer()}

	out := &mvt.Layer{
		Name:    layer.Name,
		Version: layer.Version,
		Extent:  layer.Extent,
	}

	for _, feature := range layer.Features {
		transformed := transform(feature.Geometry, scale, offsetX, offsetY)
		clipped, ok := clip(transformed, b)
		if !ok {
			continue
		}
		nf := geojson.NewFeature(clipped)
		nf.ID = feature.ID
		nf.Properties = feature.Properties
		out.Features = append(out.Features, nf)
	}

	if len(out.Features) == 0 {
		return nil
	}
	return out
}
