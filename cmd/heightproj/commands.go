package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/terrain-projector/internal/composite"
	"github.com/Faultbox/terrain-projector/internal/config"
	"github.com/Faultbox/terrain-projector/internal/logger"
	"github.com/Faultbox/terrain-projector/internal/preview"
	"github.com/Faultbox/terrain-projector/internal/projector"
	"github.com/Faultbox/terrain-projector/internal/scene"
	"github.com/Faultbox/terrain-projector/internal/storage"
	"github.com/Faultbox/terrain-projector/internal/tool"
	"github.com/Faultbox/terrain-projector/pkg/brush"
	"github.com/Faultbox/terrain-projector/pkg/heightmap"
)

var errUnknownCommand = errors.New("unknown command")

// usageError carries the usage line of the command that was misused.
type usageError string

func (u usageError) Error() string {
	return "usage: heightproj " + string(u)
}

type cli struct {
	cfg *config.Config
	out io.Writer
}

func (c *cli) run(command string, args []string) error {
	switch command {
	case "compose":
		return c.cmdCompose(args)
	case "bake":
		return c.cmdBake(args)
	case "preview":
		return c.cmdPreview(args)
	case "info":
		return c.cmdInfo(args)
	case "history", "log":
		return c.cmdHistory(args)
	case "init":
		return c.cmdInit(args)
	case "config":
		return c.cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}
}

// parseArgs parses flags that may appear before, between or after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	fs.SetOutput(io.Discard)
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// session is a scene bound to a height tool.
type session struct {
	scene      *scene.Scene
	projectors []projector.Projector
	tool       *tool.Tool
	storage    storage.TerrainStorage
}

// openSession loads a scene, its brushes and its terrain. Compositions start
// from the terrain baseline: the file contents, or the last baked SQLite
// generation. Unless persist is set, file terrains are composed in memory so
// the baseline on disk stays untouched.
func (c *cli) openSession(path string, persist bool) (*session, error) {
	sc, err := scene.Load(path)
	if err != nil {
		return nil, err
	}

	ps, err := sc.Projectors(brush.NewCache())
	if err != nil {
		// Projectors without a brush are skipped by the compositor.
		for _, e := range multierr.Errors(err) {
			logger.Warn("brush unavailable", zap.Error(e))
		}
	}

	opts, err := c.cfg.EngineOptions()
	if err != nil {
		return nil, err
	}

	ts, err := sc.OpenTerrain(c.cfg.Storage)
	if err != nil {
		return nil, err
	}
	work := ts
	switch s := ts.(type) {
	case *storage.SQLite:
		work = storage.BaselineSQLite{SQLite: s}
	case *storage.File:
		if !persist {
			h, err := s.Load()
			if err != nil {
				return nil, err
			}
			if work, err = storage.NewMemory(h); err != nil {
				return nil, err
			}
		}
	}

	t := tool.New(composite.New(opts))
	for _, p := range ps {
		if _, err := t.AddProjector(p); err != nil {
			closeStorage(ts)
			return nil, err
		}
	}
	if err := t.Initialize(work); err != nil {
		closeStorage(ts)
		return nil, err
	}
	return &session{scene: sc, projectors: ps, tool: t, storage: ts}, nil
}

func (s *session) Close() {
	closeStorage(s.storage)
}

func closeStorage(ts storage.TerrainStorage) {
	if c, ok := ts.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("closing terrain storage", zap.Error(err))
		}
	}
}

func (c *cli) cmdCompose(args []string) error {
	fs := flag.NewFlagSet("compose", flag.ContinueOnError)
	out := fs.String("o", "", "Write the result to this R16 file")
	png := fs.String("preview", "", "Also write a PNG preview with footprint outlines")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usageError("compose <scene.yaml> [-o out.r16] [-preview out.png]")
	}

	sess, err := c.openSession(pos[0], false)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.tool.Recompute()
	if err != nil {
		return err
	}
	c.report(res)

	if *out != "" {
		if err := storage.ExportFile(*out, res.Heightmap); err != nil {
			return fmt.Errorf("writing %s: %w", *out, err)
		}
		fmt.Fprintf(c.out, "Wrote:     %s\n", *out)
	}
	if *png != "" {
		img := preview.Render(res.Heightmap, sess.projectors, preview.Options{Outlines: true})
		if err := preview.Write(*png, img); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Preview:   %s\n", *png)
	}
	return nil
}

func (c *cli) cmdBake(args []string) error {
	fs := flag.NewFlagSet("bake", flag.ContinueOnError)
	out := fs.String("o", "", "Also write the baked terrain to this R16 file")
	keepScene := fs.Bool("keep-scene", false, "Leave the projector list in the scene file")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usageError("bake <scene.yaml> [-o out.r16] [-keep-scene]")
	}

	sess, err := c.openSession(pos[0], true)
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, ok := sess.storage.(*storage.Memory); ok && *out == "" {
		logger.Warn("terrain is kept in memory, the bake is lost without -o")
	}

	res, err := sess.tool.Recompute()
	if err != nil {
		return err
	}
	if err := sess.tool.Bake(); err != nil {
		return err
	}
	c.report(res)

	if db, ok := sess.storage.(*storage.SQLite); ok && c.cfg.Storage.KeepGenerations > 0 {
		n, err := db.Prune(c.cfg.Storage.KeepGenerations)
		if err != nil {
			return err
		}
		logger.Info("pruned generations", zap.Int64("removed", n))
	}
	if *out != "" {
		if err := storage.ExportFile(*out, res.Heightmap); err != nil {
			return fmt.Errorf("writing %s: %w", *out, err)
		}
		fmt.Fprintf(c.out, "Wrote:     %s\n", *out)
	}

	if !*keepScene && len(sess.scene.Doc.Projectors) > 0 {
		sess.scene.Doc.Projectors = nil
		if err := sess.scene.Save(); err != nil {
			return fmt.Errorf("clearing baked projectors: %w", err)
		}
	}
	fmt.Fprintf(c.out, "Baked:     %d projectors\n", res.Stats.Applied)
	return nil
}

func (c *cli) cmdPreview(args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	scenePath := fs.String("scene", "", "Outline the projectors of this scene")
	scale := fs.Int("scale", 1, "Output pixels per texel")
	gen := fs.Int64("gen", 0, "Render this SQLite generation instead of the newest")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usageError("preview <terrain> <out.png> [-scene s.yaml] [-scale N] [-gen ID]")
	}

	h, err := loadTerrain(pos[0], *gen)
	if err != nil {
		return err
	}

	var ps []projector.Projector
	if *scenePath != "" {
		sc, err := scene.Load(*scenePath)
		if err != nil {
			return err
		}
		// Outlines do not need brush images, only valid projector entries.
		ps, err = sc.Projectors(brush.NewCache())
		if ps == nil && err != nil {
			return err
		}
	}

	dst := pos[1]
	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		dst = preview.TimestampedName(dst, "heightmap")
	}
	img := preview.Render(h, ps, preview.Options{Scale: *scale, Outlines: len(ps) > 0})
	if err := preview.Write(dst, img); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Preview:   %s (%dx%d)\n", dst, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}

func (c *cli) cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	at := fs.String("at", "", "Also print the interpolated height at world position x,z")
	gen := fs.Int64("gen", 0, "Inspect this SQLite generation instead of the newest")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usageError("info <terrain> [-at x,z] [-gen ID]")
	}
	h, err := loadTerrain(pos[0], *gen)
	if err != nil {
		return err
	}

	st := h.Stats()
	o, sz := h.Extent.Origin, h.Extent.Size
	fmt.Fprintf(c.out, "Terrain:   %s\n", pos[0])
	fmt.Fprintf(c.out, "Size:      %dx%d texels\n", h.Width, h.Height)
	fmt.Fprintf(c.out, "Origin:    (%g, %g, %g)\n", o.X, o.Y, o.Z)
	fmt.Fprintf(c.out, "Extent:    %g x %g\n", sz.X, sz.Y)
	fmt.Fprintf(c.out, "Heights:   min %.4f  max %.4f  mean %.4f\n", st.Min, st.Max, st.Mean)

	if *at != "" {
		var x, z float32
		if _, err := fmt.Sscanf(*at, "%g,%g", &x, &z); err != nil {
			return fmt.Errorf("invalid -at %q, want x,z: %w", *at, err)
		}
		fmt.Fprintf(c.out, "Height at (%g, %g): %.4f\n", x, z, h.HeightAt(x, z))
	}
	return nil
}

func (c *cli) cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("n", 20, "Show at most N generations (0 = all)")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usageError("history <terrain.db> [-n N]")
	}

	db, err := storage.OpenSQLite(strings.TrimPrefix(pos[0], scene.SQLitePrefix))
	if err != nil {
		return err
	}
	defer db.Close()

	gens, err := db.History(*limit)
	if err != nil {
		return err
	}
	if len(gens) == 0 {
		fmt.Fprintln(c.out, "No generations stored")
		return nil
	}

	fmt.Fprintf(c.out, "%-6s %-20s %-12s %s\n", "ID", "CREATED", "SIZE", "")
	for _, g := range gens {
		mark := ""
		if g.Baseline {
			mark = "baseline"
		}
		fmt.Fprintf(c.out, "%-6d %-20s %-12s %s\n",
			g.ID, g.CreatedAt.Format("2006-01-02 15:04:05"), fmt.Sprintf("%dx%d", g.Width, g.Height), mark)
	}
	return nil
}

func (c *cli) cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	hm := fs.String("heightmap", "", "Terrain reference (R16 file or sqlite:<path>)")
	res := fs.Int("res", 129, "Heightmap resolution when the terrain is created")
	size := fs.Float64("size", 100, "Terrain world size along X and Z")
	brushRef := fs.String("brush", scene.SolidPrefix+"1", "Brush of the starter projector")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usageError("init <scene.yaml> [-heightmap ref] [-res N] [-size S] [-brush ref]")
	}
	if _, err := os.Stat(pos[0]); err == nil {
		return fmt.Errorf("%s already exists", pos[0])
	}

	s := float32(*size)
	p := projector.Default()
	p.Name = "projector"
	p.Transform.Position.X = s / 2
	p.Transform.Position.Z = s / 2
	p.Scale.X = s / 4
	p.Scale.Y = s / 4

	sc := &scene.Scene{
		Path: pos[0],
		Doc: scene.Document{
			Terrain: scene.Terrain{
				Heightmap: *hm,
				Width:     *res,
				Height:    *res,
				Size:      [2]float32{s, s},
			},
			Projectors: []scene.Projector{scene.Entry(p, *brushRef)},
		},
	}
	if _, err := sc.Doc.Terrain.Flat(); err != nil {
		return err
	}
	if err := sc.Save(); err != nil {
		return fmt.Errorf("writing scene: %w", err)
	}
	fmt.Fprintf(c.out, "Created:   %s\n", pos[0])
	return nil
}

func (c *cli) cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	save := fs.Bool("save", false, "Write the effective config to the user config directory")
	out := fs.String("o", "", "Write the effective config to this file")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 0 {
		return usageError("config [-save] [-o path]")
	}

	switch {
	case *out != "":
		if err := c.cfg.SaveTo(*out); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Wrote:     %s\n", *out)
	case *save:
		if err := c.cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Wrote:     %s\n", config.UserConfigPath())
	default:
		data, err := yaml.Marshal(c.cfg)
		if err != nil {
			return err
		}
		if _, err := c.out.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// loadTerrain reads an R16 file with sidecar or a generation of sqlite:<path>.
// A gen of 0 selects the newest generation.
func loadTerrain(ref string, gen int64) (*heightmap.Heightmap, error) {
	if path, ok := strings.CutPrefix(ref, scene.SQLitePrefix); ok {
		db, err := storage.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		if gen > 0 {
			return db.LoadGeneration(gen)
		}
		return db.Load()
	}
	if gen > 0 {
		return nil, fmt.Errorf("-gen needs a sqlite: terrain, got %s", ref)
	}
	f, err := storage.OpenFile(ref)
	if err != nil {
		return nil, err
	}
	return f.Load()
}

func (c *cli) report(res *composite.Result) {
	s := res.Stats
	fmt.Fprintf(c.out, "Projectors: %d applied, %d skipped, %d off terrain\n", s.Applied, s.Skipped, s.Offscreen)
	fmt.Fprintf(c.out, "Texels:     %d written in %v\n", s.TexelsWritten, s.Duration)
	for _, w := range multierr.Errors(res.Warnings) {
		fmt.Fprintf(c.out, "Warning:    %v\n", w)
	}
}
