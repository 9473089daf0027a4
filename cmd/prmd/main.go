// Command prmd serves multi-waypoint roadmap planning over HTTP and plans scenario
// files from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	prm "waypoint-prm"
)

const shutdownTimeout = 5 * time.Second

func main() {
	app := &cli.App{
		Name:  "prmd",
		Usage: "plan collision-free paths through waypoints",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "obstacles",
				Usage: "load obstacles from a GeoJSON `FILE` or a directory of them",
			},
			&cli.StringFlag{
				Name:  "bounds",
				Usage: "workspace as `MINX,MINY,MAXX,MAXY`; defaults to the obstacle bounds",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the planning server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Value: ":8080",
						Usage: "listen address",
					},
				},
				Action: serveAction,
			},
			{
				Name:      "plan",
				Usage:     "plan the scenario in a JSON file shaped like a /plan request",
				ArgsUsage: "SCENARIO",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "save-roadmap",
						Usage: "write the roadmap snapshot to `FILE`",
					},
				},
				Action: planAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveAction(c *cli.Context) error {
	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer logger.Sync()

	scene, err := loadScene(c, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           newServer(scene, logger).handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func planAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected one scenario file")
	}
	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer logger.Sync()

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return errors.Wrap(err, "failed to read scenario")
	}
	var req PlanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.Wrap(err, "failed to parse scenario")
	}

	scene, err := loadScene(c, logger)
	if err != nil {
		return err
	}
	planner, err := newServer(scene, logger).plannerFor(&req)
	if err != nil {
		return err
	}
	res, err := planner.Plan(req.Starts, req.Interims, req.Goals)
	if err != nil {
		return err
	}

	if file := c.String("save-roadmap"); file != "" {
		if err := prm.SaveSnapshot(res.Snapshot(), file, logger); err != nil {
			return err
		}
	}
	if !res.Found() {
		return errors.Wrap(res.Err, "no path found")
	}
	fmt.Fprintln(c.App.Writer, strings.Join(res.Labels(), " -> "))
	return nil
}

// loadScene loads the --obstacles scene, or an empty scene over --bounds. It returns
// nil when neither flag is set.
func loadScene(c *cli.Context, logger *zap.Logger) (*prm.PlanarScene, error) {
	var bound orb.Bound
	if s := c.String("bounds"); s != "" {
		b, err := parseBounds(s)
		if err != nil {
			return nil, err
		}
		bound = b
	}
	path := c.String("obstacles")
	if path == "" {
		if c.String("bounds") == "" {
			return nil, nil
		}
		return prm.NewPlanarScene(bound, nil), nil
	}
	return prm.LoadScene(path, bound, logger)
}

func parseBounds(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.Errorf("bounds need 4 values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, errors.Wrapf(err, "bad bounds value %q", p)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return orb.Bound{}, errors.Errorf("bounds %q are empty", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// newLogger builds a console logger with colored levels and no stacktraces.
func newLogger(debug bool) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg := zap.Config{
		Level:    level,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	return cfg.Build()
}
