// framecrop places a photo inside a frame template and exports it.
//
// Usage:
//
//	framecrop export -in photo.jpg -frame ravn-card [-sizes original,large] [-format png] [-out dir]
//	framecrop preview -in photo.jpg -frame ravn-card -out preview.png
//	framecrop frames [-custom my-frame.json]
//	framecrop validate my-frame.json|frames-dir ...
//	framecrop config init|show
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/framecrop"
	"github.com/menta2k/framecrop/internal/config"
	"github.com/menta2k/framecrop/internal/logging"
	"github.com/menta2k/framecrop/internal/utils"
	"github.com/menta2k/framecrop/pkg/export"
	"github.com/menta2k/framecrop/pkg/frame"
	"github.com/menta2k/framecrop/pkg/processing"
	"github.com/menta2k/framecrop/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "export":
		err = runExport(ctx, os.Args[2:])
	case "preview":
		err = runPreview(ctx, os.Args[2:])
	case "frames":
		err = runFrames(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "version":
		fmt.Println("framecrop", framecrop.Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", os.Args[1])
	}
	logging.Close()
	if err != nil {
		stop()
		fatal(err)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `framecrop %s: place a photo inside a frame template

Commands:
  export    render a photo in a frame and write the selected sizes
  preview   write a scaled preview of the composite
  frames    list built-in and custom frames
  validate  check custom frame definitions
  config    init|show the configuration file
  version   print the version

Run "framecrop <command> -h" for the flags of a command.
`, framecrop.Version)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// loadConfig reads path, or the default config file when it exists
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if def := config.GetConfigPath(); utils.FileExists(def) {
			path = def
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

// paramFlags collects repeated -param id=value pairs
type paramFlags map[string]string

func (p paramFlags) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (p paramFlags) Set(s string) error {
	id, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(id) == "" {
		return fmt.Errorf("expected id=value, got %q", s)
	}
	p[strings.TrimSpace(id)] = value
	return nil
}

// sessionFlags are shared by export and preview
type sessionFlags struct {
	configPath string
	in         string
	frameRef   string
	custom     string
	params     paramFlags
	scale      float64
	offset     string
	gestures   string
	focus      string
	focusURL   string
	model      string
}

func (f *sessionFlags) register(fs *flag.FlagSet) {
	f.params = paramFlags{}
	fs.StringVar(&f.configPath, "config", "", "config file (default "+config.GetConfigPath()+" when present)")
	fs.StringVar(&f.in, "in", "", "input image path or URL (jpg/png/webp)")
	fs.StringVar(&f.frameRef, "frame", "", "frame id from the catalog or a frame .json file")
	fs.StringVar(&f.custom, "custom", "", "use a plain custom frame of WxH pixels, e.g. 1080x1080")
	fs.Var(f.params, "param", "frame parameter id=value (repeatable)")
	fs.Float64Var(&f.scale, "scale", 0, "zoom scale, 1 covers the crop window (0 keeps the initial scale)")
	fs.StringVar(&f.offset, "offset", "", "image offset from the centered position, x,y in window pixels")
	fs.StringVar(&f.gestures, "gestures", "", "YAML or JSON file of pointer/wheel gestures to replay")
	fs.StringVar(&f.focus, "focus", "", "auto placement backend: none|saliency|ollama|llamacpp")
	fs.StringVar(&f.focusURL, "focus-url", "", "model server URL for the focus backend")
	fs.StringVar(&f.model, "model", "", "vision model name for the focus backend")
}

// open builds a session with the selected frame and the decoded input image,
// then applies scale, offset and gestures in that order
func (f *sessionFlags) open(ctx context.Context, cfg *config.Config) (*framecrop.Session, error) {
	if f.in == "" {
		return nil, errors.New("input image is required (-in)")
	}
	if f.focus != "" {
		cfg.Focus.Backend = f.focus
	}
	if f.focusURL != "" {
		cfg.Focus.URL = f.focusURL
	}
	if f.model != "" {
		cfg.Focus.Model = f.model
	}

	logger := logging.Init(logging.Merge(cfg.Logging), os.Stderr)
	s, err := framecrop.NewWithConfig(cfg, framecrop.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := f.apply(ctx, s); err != nil {
		s.Close()
		return nil, err
	}
	if img, ok := s.Store().Selected(); ok {
		logging.WithComponent("cli").Debug("image placed",
			"frame", s.Store().Frame().ID,
			"image", img.Filename,
			"scale", img.Scale,
			"offset", img.Offset)
	}
	return s, nil
}

func (f *sessionFlags) apply(ctx context.Context, s *framecrop.Session) error {
	fr, err := f.selectFrame()
	if err != nil {
		return err
	}
	if err := s.SelectFrame(fr); err != nil {
		return err
	}
	for id, value := range f.params {
		if err := s.SetParameter(id, value); err != nil {
			return err
		}
	}

	load, err := f.load(ctx, s)
	if err != nil {
		return err
	}
	if err := load.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", f.in, err)
	}

	c := s.Controller()
	if f.scale > 0 {
		if err := c.SetScale(f.scale); err != nil {
			return err
		}
	}
	if f.offset != "" {
		p, err := parsePoint(f.offset)
		if err != nil {
			return fmt.Errorf("-offset: %w", err)
		}
		if err := c.SetOffset(p); err != nil {
			return err
		}
	}
	if f.gestures != "" {
		gestures, err := loadGestures(f.gestures)
		if err != nil {
			return err
		}
		if err := replay(ctx, c, gestures, time.Sleep); err != nil {
			return err
		}
	}
	return nil
}

func (f *sessionFlags) selectFrame() (*frame.Frame, error) {
	switch {
	case f.custom != "":
		w, h, err := parseSize(f.custom)
		if err != nil {
			return nil, fmt.Errorf("-custom: %w", err)
		}
		return frame.NewCustom(w, h)
	case strings.HasSuffix(strings.ToLower(f.frameRef), ".json"):
		fr, err := frame.LoadFile(f.frameRef)
		if err != nil {
			return nil, err
		}
		fr.IsCustom = true
		return fr, nil
	case f.frameRef != "":
		return frame.Lookup(f.frameRef)
	}
	return nil, errors.New("a frame is required (-frame or -custom)")
}

func (f *sessionFlags) load(ctx context.Context, s *framecrop.Session) (*framecrop.Loading, error) {
	if strings.HasPrefix(f.in, "http://") || strings.HasPrefix(f.in, "https://") {
		img, err := processing.NewProcessor().LoadImageFromURL(f.in)
		if err != nil {
			return nil, err
		}
		return s.LoadDecoded(ctx, urlName(f.in), img)
	}
	file, err := os.Open(f.in)
	if err != nil {
		return nil, err
	}
	l, err := s.Load(ctx, filepath.Base(f.in), file)
	if err != nil {
		file.Close()
		return nil, err
	}
	go func() {
		<-l.Done()
		file.Close()
	}()
	return l, nil
}

func urlName(raw string) string {
	raw, _, _ = strings.Cut(raw, "?")
	return path.Base(raw)
}

func parsePoint(s string) (types.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return types.Point{}, fmt.Errorf("expected x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return types.Point{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return types.Point{}, err
	}
	return types.Point{X: x, Y: y}, nil
}

func parseSize(s string) (float64, float64, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(ws), 64)
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(hs), 64)
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var sf sessionFlags
	sf.register(fs)

	var sizes, format, name, out, overlay string
	var cropped bool
	fs.StringVar(&sizes, "sizes", "", "comma separated export sizes (default from config)")
	fs.StringVar(&format, "format", "", "png|webp|jpeg|pdf (default from config)")
	fs.BoolVar(&cropped, "cropped", false, "export only the crop window without the frame")
	fs.StringVar(&name, "name", "", "output file name stem (default: input file name)")
	fs.StringVar(&out, "out", "", "output directory (default from config)")
	fs.StringVar(&overlay, "overlay", "", "also write the source image with the sampled rectangle marked")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(sf.configPath)
	if err != nil {
		return err
	}
	if format != "" {
		if _, err := export.ParseFormat(format); err != nil {
			return err
		}
		cfg.Export.Format = format
	}
	if cropped {
		cfg.Export.CroppedOnly = true
	}

	s, err := sf.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	selected := cfg.Export.Sizes
	if sizes != "" {
		selected = strings.Split(sizes, ",")
	}
	if err := s.Store().SetExportSizes(trimAll(selected)); err != nil {
		return err
	}
	if name != "" {
		s.Store().SetBaseName(name)
	}

	paths, err := s.ExportTo(ctx, out)
	for _, p := range paths {
		if info, statErr := os.Stat(p); statErr == nil {
			fmt.Printf("%s (%s)\n", p, utils.FormatFileSize(info.Size()))
		} else {
			fmt.Println(p)
		}
	}
	if err != nil {
		return err
	}

	logging.WithComponent("cli").Info("export finished",
		"files", len(paths),
		"format", s.Store().ExportSettings().Format,
		"cropped", cfg.Export.CroppedOnly)

	if overlay != "" {
		return writeOverlay(s, overlay, cfg.Export.Config)
	}
	return nil
}

func writeOverlay(s *framecrop.Session, out string, ec export.Config) error {
	img, ok := s.Store().Selected()
	if !ok {
		return errors.New("no image selected")
	}
	src, err := img.Placement(s.Store().Window().Size()).SourceRect()
	if err != nil {
		return err
	}
	return saveImage(processing.NewProcessor().CreateCropOverlay(img.Image, src), out, ec)
}

func saveImage(img image.Image, out string, ec export.Config) error {
	format, err := processing.ParseFormat(filepath.Ext(out))
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
		return err
	}
	opts := processing.EncodeOptions{Quality: ec.Quality, Lossless: ec.Lossless}
	if err := processing.NewProcessor().SaveImage(img, out, format, opts); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func trimAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func runPreview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	var sf sessionFlags
	sf.register(fs)

	var out string
	var maxSize int
	fs.StringVar(&out, "out", "preview.png", "output file (.png, .jpg or .webp)")
	fs.IntVar(&maxSize, "max", 400, "longest side of the preview in pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(sf.configPath)
	if err != nil {
		return err
	}
	s, err := sf.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	thumb, err := s.Thumbnail(ctx, maxSize, maxSize)
	if err != nil {
		return err
	}
	return saveImage(thumb, out, cfg.Export.Config)
}

func runFrames(args []string) error {
	fs := flag.NewFlagSet("frames", flag.ExitOnError)
	var custom string
	fs.StringVar(&custom, "custom", "", "also list the frame in this .json file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	frames, err := frame.Catalog()
	if err != nil {
		return err
	}
	if custom != "" {
		f, err := frame.LoadFile(custom)
		if err != nil {
			return err
		}
		f.IsCustom = true
		frames = append(frames, f)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSIZE\tWINDOW\tEXPORT SIZES\tPARAMETERS")
	for _, f := range frames {
		window := f.CropWindow()
		title := f.Title
		if f.IsCustom {
			title += " (custom)"
		}
		params := make([]string, 0, len(f.Parameters))
		for _, p := range f.Parameters {
			params = append(params, p.ID)
		}
		fmt.Fprintf(w, "%s\t%s\t%gx%g\t%gx%g@%g,%g\t%s\t%s\n",
			f.ID, title, f.Width, f.Height,
			window.W, window.H, window.X, window.Y,
			strings.Join(f.SizeNames(), ","), strings.Join(params, ","))
	}
	return w.Flush()
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var single string
	fs.StringVar(&single, "frame", "", "frame .json file to check")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var files []string
	args = fs.Args()
	if single != "" {
		args = append([]string{single}, args...)
	}
	for _, arg := range args {
		if !utils.DirExists(arg) {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return errors.New("no frame files given")
	}

	failed := 0
	for _, file := range files {
		f, err := frame.LoadFile(file)
		if err == nil {
			fmt.Printf("%s: ok (%s, %gx%g)\n", file, f.ID, f.Width, f.Height)
			continue
		}
		failed++
		var verr *frame.ValidationError
		if !errors.As(err, &verr) {
			fmt.Printf("%s: %v\n", file, err)
			continue
		}
		fmt.Printf("%s: %d problem(s)\n", file, len(verr.Problems))
		for _, p := range verr.Problems {
			fmt.Printf("  - %s\n", p)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d frame file(s) invalid", failed, len(files))
	}
	return nil
}

func runConfig(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: framecrop config init|show [flags]")
	}
	fs := flag.NewFlagSet("config "+args[0], flag.ExitOnError)
	var cfgPath string
	var force bool
	fs.StringVar(&cfgPath, "path", config.GetConfigPath(), "configuration file")
	fs.BoolVar(&force, "force", false, "overwrite an existing file")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	switch args[0] {
	case "init":
		if utils.FileExists(cfgPath) && !force {
			return fmt.Errorf("%s already exists (use -force to overwrite)", cfgPath)
		}
		if err := config.Default().SaveToFile(cfgPath); err != nil {
			return err
		}
		fmt.Println(cfgPath)
		return nil
	case "show":
		cfg := config.Default()
		if utils.FileExists(cfgPath) {
			var err error
			if cfg, err = config.LoadFromFile(cfgPath); err != nil {
				return err
			}
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	return fmt.Errorf("unknown config command %q", args[0])
}
