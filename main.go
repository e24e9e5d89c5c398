package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zeozeozeo/psxperiph/emulator"
	"github.com/zeozeozeo/psxperiph/logger"
	"github.com/zeozeozeo/psxperiph/player"
	"github.com/zeozeozeo/psxperiph/statsview"
	"golang.org/x/term"
)

func main() {
	// parse arguments
	in := flag.String("in", "", "raw MDEC stream of one frame (more can be given as arguments)")
	width := flag.Int("width", 320, "frame width, a multiple of 16")
	height := flag.Int("height", 240, "frame height, a multiple of 16")
	depth := flag.Int("depth", 15, "output depth: 15 or 24")
	stp := flag.Bool("stp", false, "set the mask bit of 15 bit pixels")
	synth := flag.Int("synth", 0, "number of color bar frames to synthesize when no stream is given")
	out := flag.String("out", "", "write the frames to a .png (first frame) or .gif (all frames) file")
	palette := flag.Int("palette", 256, "number of colors in GIF output")
	dither := flag.Bool("dither", true, "dither GIF output")
	scale := flag.Int("scale", 1, "integer scale factor of the output")
	smooth := flag.Bool("smooth", false, "bilinear instead of nearest neighbour scaling")
	view := flag.Bool("view", false, "show the frames in a window")
	fps := flag.Int("fps", 2, "frames per second of the viewer and GIF output")
	watch := flag.String("watch", "", "comma separated register addresses to watch")
	echo := flag.Bool("echo", false, "print diagnostics as they happen")
	verbose := flag.Bool("verbose", false, "trace every DMA transfer")
	stats := flag.Bool("statsview", false, "launch the runtime statistics server")
	save := flag.String("save", "", "write a snapshot of the peripherals after decoding")
	flag.Parse()

	if *echo {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			logger.SetEcho(logger.NewColorizer(os.Stderr))
		} else {
			logger.SetEcho(os.Stderr)
		}
	}
	if *stats {
		if !statsview.Available() {
			log.Fatal("built without the statsview tag")
		}
		statsview.Launch(os.Stdout)
	}

	mdecDepth := emulator.MDEC_DEPTH_15BIT
	switch *depth {
	case 15:
	case 24:
		mdecDepth = emulator.MDEC_DEPTH_24BIT
	default:
		log.Fatalf("unsupported depth %d", *depth)
	}

	// start emulator
	decoder, err := player.NewDecoder(emulator.Config{Verbose: *verbose}, mdecDepth)
	if err != nil {
		log.Fatal(err)
	}
	decoder.Stp = *stp
	if err := addWatchpoints(decoder.Inter.Debugger, *watch); err != nil {
		log.Fatal(err)
	}

	streams, err := loadStreams(*in, flag.Args(), *width, *height, *synth)
	if err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	frames := make([]image.Image, 0, len(streams))
	for i, stream := range streams {
		frame, err := decoder.DecodeFrame(stream)
		if err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
		frames = append(frames, player.Scale(frame, *scale, *smooth))
	}
	log.Printf("decoded %d frames in %s (%d cycles)", len(frames), time.Since(start), decoder.Inter.Th.Cycles)

	if *save != "" {
		if err := saveState(decoder.Inter, *save); err != nil {
			log.Fatal(err)
		}
	}
	if *out != "" {
		if err := writeFrames(*out, frames, *palette, *fps, *dither); err != nil {
			log.Fatal(err)
		}
	}
	if *view {
		viewer, err := player.NewViewer(decoder, frames, *fps)
		if err != nil {
			log.Fatal(err)
		}
		if err := viewer.Run("psxperiph"); err != nil {
			log.Fatal(err)
		}
	}

	if !*echo {
		logger.Write(os.Stderr)
	}
}

func loadStreams(in string, args []string, width, height, synth int) ([]*player.Stream, error) {
	paths := args
	if in != "" {
		paths = append([]string{in}, args...)
	}

	var streams []*player.Stream
	for _, path := range paths {
		log.Printf("loading stream \"%s\"", path)
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		stream, err := player.ReadStream(file, width, height)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		streams = append(streams, stream)
	}

	if len(streams) == 0 && synth == 0 {
		synth = 8
	}
	for i := 0; len(paths) == 0 && i < synth; i++ {
		stream, err := player.Synthesize(width, height, i)
		if err != nil {
			return nil, err
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

func addWatchpoints(debugger *emulator.Debugger, list string) error {
	if list == "" {
		return nil
	}
	for _, field := range strings.Split(list, ",") {
		addr, err := strconv.ParseUint(strings.TrimSpace(field), 0, 32)
		if err != nil {
			return fmt.Errorf("watchpoint %q: %w", field, err)
		}
		debugger.AddReadWatchpoint(uint32(addr))
		debugger.AddWriteWatchpoint(uint32(addr))
	}
	return nil
}

func saveState(inter *emulator.Interconnect, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return inter.SaveState(file)
}

func writeFrames(path string, frames []image.Image, colors, fps int, dither bool) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return player.WritePNG(file, frames[0])
	case ".gif":
		delay := 100
		if fps > 0 {
			delay = 100 / fps
		}
		return player.WriteGIF(file, frames, colors, delay, dither)
	}
	return fmt.Errorf("unsupported output format %q", filepath.Ext(path))
}
