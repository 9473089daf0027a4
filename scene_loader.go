package prm

import (
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ParseObstacles reads the Polygon and MultiPolygon features of a GeoJSON feature
// collection. Holes are kept; other geometry types are ignored.
func ParseObstacles(data []byte) ([]orb.Polygon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse feature collection")
	}
	var polygons []orb.Polygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if len(g) > 0 {
				polygons = append(polygons, g)
			}
		case orb.MultiPolygon:
			for _, p := range g {
				if len(p) > 0 {
					polygons = append(polygons, p)
				}
			}
		}
	}
	return polygons, nil
}

// LoadObstacles loads a single GeoJSON file, or every *.geojson file in a directory.
// In a directory, unreadable files are logged and skipped.
func LoadObstacles(path string, logger *zap.Logger) ([]orb.Polygon, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open obstacles")
	}
	if !info.IsDir() {
		return loadObstacleFile(path)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.geojson"))
	if err != nil {
		return nil, err
	}
	logger.Info("loading obstacles", zap.String("dir", path), zap.Int("files", len(files)))

	var all []orb.Polygon
	for _, file := range files {
		polygons, err := loadObstacleFile(file)
		if err != nil {
			logger.Warn("skipping obstacle file", zap.String("file", file), zap.Error(err))
			continue
		}
		logger.Debug("loaded obstacles", zap.String("file", filepath.Base(file)), zap.Int("polygons", len(polygons)))
		all = append(all, polygons...)
	}
	logger.Info("obstacles loaded", zap.Int("polygons", len(all)))
	return all, nil
}

func loadObstacleFile(file string) ([]orb.Polygon, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", file)
	}
	polygons, err := ParseObstacles(data)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", file)
	}
	return polygons, nil
}

// LoadScene builds a PlanarScene from the obstacles at path. An empty bound is
// replaced by the bound of the obstacles.
func LoadScene(path string, bound orb.Bound, logger *zap.Logger) (*PlanarScene, error) {
	obstacles, err := LoadObstacles(path, logger)
	if err != nil {
		return nil, err
	}
	if bound.IsZero() {
		if len(obstacles) == 0 {
			return nil, errors.New("no workspace bound and no obstacles to derive one from")
		}
		bound = obstacles[0].Bound()
		for _, o := range obstacles[1:] {
			bound = bound.Union(o.Bound())
		}
	}
	scene := NewPlanarScene(bound, obstacles)
	logger.Info("scene ready",
		zap.Int("obstacles", len(scene.Obstacles())),
		zap.Int("contained", len(obstacles)-len(scene.Obstacles())))
	return scene, nil
}
