package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/iansmith/mem6"
)

// chunkPixels is how many ARGB8888 pixels (4 bytes each) one scratch
// buffer holds. 256 pixels * 4 bytes = 1024 bytes, the top of the medium
// size class, so every chunk buffer comes from a single mem6 allocation
// instead of a bigger one that would have to fall back to a raw make.
const chunkPixels = 256

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: imgblocks <input-image> <output-binary>\n")
		fmt.Fprintf(os.Stderr, "Converts an image to a flat ARGB8888 binary blob.\n")
		fmt.Fprintf(os.Stderr, "Output format:\n")
		fmt.Fprintf(os.Stderr, "  4 bytes: width (uint32 little-endian)\n")
		fmt.Fprintf(os.Stderr, "  4 bytes: height (uint32 little-endian)\n")
		fmt.Fprintf(os.Stderr, "  width*height*4 bytes: ARGB8888 pixel data\n")
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	inputPath := flag.Arg(0)
	outputPath := flag.Arg(1)

	file, err := os.Open(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening image: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding image: %v\n", err)
		os.Exit(1)
	}

	bounds := img.Bounds()
	width := uint32(bounds.Dx())
	height := uint32(bounds.Dy())

	fmt.Printf("Image size: %d x %d\n", width, height)

	outFile, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer outFile.Close()
	w := bufio.NewWriter(outFile)

	if err := binary.Write(w, binary.LittleEndian, width); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing width: %v\n", err)
		os.Exit(1)
	}
	if err := binary.Write(w, binary.LittleEndian, height); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing height: %v\n", err)
		os.Exit(1)
	}

	sys, err := mem6.Startup(1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting allocator: %v\n", err)
		os.Exit(1)
	}
	defer sys.Shutdown()

	a, err := sys.Enclave(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error binding enclave: %v\n", err)
		os.Exit(1)
	}

	pixelCount := 0
	chunk, err := mem6.Alloc[uint32](a, chunkPixels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error allocating pixel chunk: %v\n", err)
		os.Exit(1)
	}
	defer mem6.Free(a, chunk)

	fill := 0
	flush := func() error {
		if fill == 0 {
			return nil
		}
		for i := 0; i < fill; i++ {
			if err := binary.Write(w, binary.LittleEndian, chunk[i]); err != nil {
				return err
			}
		}
		fill = 0
		return nil
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, al := img.At(x, y).RGBA()
			r8 := uint8(r / 257)
			g8 := uint8(g / 257)
			b8 := uint8(b / 257)
			a8 := uint8(al / 257)

			// ARGB8888: [A:8][R:8][G:8][B:8] = 0xAARRGGBB
			chunk[fill] = uint32(a8)<<24 | uint32(r8)<<16 | uint32(g8)<<8 | uint32(b8)
			fill++
			pixelCount++

			if fill == chunkPixels {
				if err := flush(); err != nil {
					fmt.Fprintf(os.Stderr, "Error writing pixel data: %v\n", err)
					os.Exit(1)
				}
			}
		}
	}
	if err := flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing pixel data: %v\n", err)
		os.Exit(1)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d pixels to %s\n", pixelCount, outputPath)
	fileInfo, _ := os.Stat(outputPath)
	fmt.Printf("Output file size: %d bytes\n", fileInfo.Size())
}
