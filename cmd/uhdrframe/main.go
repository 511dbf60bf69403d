package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/vearutop/uhdrframe"
	"github.com/vearutop/uhdrframe/internal/gainmap"
)

const defaultOutput = "framed_output.jpg"

// usageError makes main exit with status 2.
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 2
	}

	var err error
	switch args[0] {
	case "frame":
		err = runFrame(args[1:])
	case "detect":
		err = runDetect(args[1:])
	case "split":
		err = runSplit(args[1:])
	case "-h", "-help", "--help", "help":
		usage()
		return 0
	default:
		if strings.HasPrefix(args[0], "-") {
			usage()
			return 2
		}
		// uhdrframe <input> [output]
		err = runFrame(args)
	}

	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &ue):
		fmt.Fprintln(os.Stderr, "error:", err)
		usage()
		return 2
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: uhdrframe <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  frame  [-q 95] [-gq 95] [-fonts-main f.ttf] [-fonts-sub f.ttf] [-logo-dir logo] [-hdr-dump canvas.hdr]")
	fmt.Fprintln(os.Stderr, "         [-gm-scale 4] [-gm-gamma 1] [-gm-multichannel] [-display-boost 0]")
	fmt.Fprintln(os.Stderr, "         [-workers 1] [-profile dir] [-v] input.jpg [output.jpg]")
	fmt.Fprintln(os.Stderr, "  detect -in input.jpg")
	fmt.Fprintln(os.Stderr, "  split  -in input.jpg -primary-out primary.jpg -gainmap-out gainmap.jpg [-meta-out meta.json]")
	fmt.Fprintln(os.Stderr, "The frame command is the default: uhdrframe input.jpg [output.jpg]")
}

func runFrame(args []string) error {
	def := uhdrframe.DefaultConfig()

	fs := flag.NewFlagSet("frame", flag.ContinueOnError)
	q := fs.Int("q", def.Quality, "JPEG quality of the base image")
	gq := fs.Int("gq", 0, "JPEG quality of the gain map, same as -q when 0")
	mainFont := fs.String("fonts-main", def.MainFont, "font for exposure settings and camera model")
	subFont := fs.String("fonts-sub", def.SubFont, "font for date and lens")
	logoDir := fs.String("logo-dir", def.LogoDir, "directory with brand logos")
	gmScale := fs.Int("gm-scale", def.GainMapScale, "gain map downscale factor")
	gmGamma := fs.Float64("gm-gamma", float64(def.GainMapGamma), "gain map encoding gamma")
	gmMulti := fs.Bool("gm-multichannel", false, "write an RGB gain map")
	boost := fs.Float64("display-boost", 0, "cap HDR headroom of the input, full capacity when 0")
	hdrDump := fs.String("hdr-dump", "", "write the linear HDR canvas as Radiance RGBE")
	workers := fs.Int("workers", def.Workers, "resampling goroutines")
	profileDir := fs.String("profile", "", "write a CPU profile to this directory")
	verbose := fs.Bool("v", false, "debug logging")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return usageError{msg: "expected input and optional output path"}
	}
	in := fs.Arg(0)
	out := defaultOutput
	if fs.NArg() == 2 {
		out = fs.Arg(1)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *profileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*profileDir), profile.Quiet).Stop()
	}

	f, err := uhdrframe.New(func(c *uhdrframe.Config) {
		c.Quality = *q
		c.GainMapQuality = *gq
		c.GainMapScale = *gmScale
		c.GainMapGamma = float32(*gmGamma)
		c.MultiChannel = *gmMulti
		c.DisplayBoost = float32(*boost)
		c.MainFont = *mainFont
		c.SubFont = *subFont
		c.LogoDir = *logoDir
		c.HDRDumpPath = *hdrDump
		c.Workers = *workers
		c.Log = log
	})
	if err != nil {
		return usageError{msg: err.Error()}
	}

	res, err := f.FrameFile(in, out)
	if err != nil {
		return err
	}
	kind := "jpeg"
	if res.HDR {
		kind = "ultrahdr"
	}
	fmt.Fprintf(os.Stdout, "%s: %s, %d bytes\n", out, kind, len(res.Output))
	return nil
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	inPath := fs.String("in", "", "input JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return usageError{msg: "missing required arguments"}
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	if !gainmap.Detect(data) {
		fmt.Fprintln(os.Stdout, "not ultrahdr")
		return nil
	}
	fmt.Fprintln(os.Stdout, "ultrahdr")

	dec := gainmap.NewDecoder()
	defer dec.Release()
	if err := dec.SetImage(data); err != nil {
		return err
	}
	info, err := dec.Probe()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "base %dx%d, gain map %dx%d, gamut %s\n",
		info.Width, info.Height, info.GainMapWidth, info.GainMapHeight, info.Gamut)
	fmt.Fprintf(os.Stdout, "multichannel %t, iso metadata %t, primary xmp %t, primary iso version %t\n",
		info.MultiChannelGainMap, info.HasISOMetadata, info.HasPrimaryXMPMetadata, info.HasPrimaryISOVersion)
	return nil
}

func runSplit(args []string) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	primaryOut := fs.String("primary-out", "", "primary output JPEG")
	gainmapOut := fs.String("gainmap-out", "", "gainmap output JPEG")
	metaOut := fs.String("meta-out", "", "gain map metadata json output")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *primaryOut == "" || *gainmapOut == "" {
		return usageError{msg: "missing required arguments"}
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	split, err := gainmap.Split(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*primaryOut), split.PrimaryJPEG, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*gainmapOut), split.GainMapJPEG, 0o644); err != nil {
		return err
	}
	if *metaOut != "" {
		payload, err := json.MarshalIndent(split.Meta, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Clean(*metaOut), payload, 0o644); err != nil {
			return err
		}
	}
	return nil
}
