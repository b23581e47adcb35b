package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-dmgcore/internal/chunklist"
	"github.com/deploymenttheory/go-dmgcore/internal/config"
	"github.com/deploymenttheory/go-dmgcore/internal/dmgimage"
	"github.com/deploymenttheory/go-dmgcore/internal/logger"
	"github.com/deploymenttheory/go-dmgcore/internal/ramdisk"
)

var cfg config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:              "dmgcore",
		Short:            "Read and verify Apple disk images (UDIF/DMG)",
		Long:             `dmgcore parses UDIF trailers and blkx block maps, and serves random-access reads over the decoded sector stream, without ever materializing the whole image.`,
		PersistentPreRun: setupLogging,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose debugging output")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("log-file", "", "log to file instead of stdout")
	rootCmd.PersistentFlags().Int("chunk-cache-size", 8, "number of decompressed chunks to cache")
	rootCmd.PersistentFlags().Uint64("extent-size", 1<<20, "ram-disk extent size in bytes")

	rootCmd.AddCommand(newInfoCmd(), newReadCmd(), newVerifyCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		logger.SetLevel(logger.LevelDebug)
	} else {
		logger.SetLevel(logger.LevelInfo)
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor {
		logger.DisableColors()
	}

	logFile, _ := cmd.Flags().GetString("log-file")
	cacheSize, _ := cmd.Flags().GetInt("chunk-cache-size")
	extentSize, _ := cmd.Flags().GetUint64("extent-size")

	cfg = config.Config{
		Verbose:        verbose,
		NoColor:        noColor,
		LogFile:        logFile,
		ChunkCacheSize: cacheSize,
		ExtentSize:     extentSize,
	}

	if logFile == "" {
		return
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		logger.Errorf("failed to open log file: %v", err)
		return
	}
	logger.DisableColors()
	logger.Initialize(file, file, file, file)
	logger.Infof("logging to file: %s", logFile)
}

// openContext wires the ramdisk collaborators behind the dmgimage.FileLoader
// interface and opens path as a Context, the way spec.md §4.6's second
// construction path is meant to be driven from a CLI.
func openContext(fs afero.Fs, path string) (*dmgimage.Context, error) {
	size, err := ramdisk.FileSize(fs, path)
	if err != nil {
		return nil, err
	}

	loader := ramdisk.NewFileLoader(fs, path)
	allocator := ramdisk.Allocator{ExtentSize: cfg.ExtentSize}

	return dmgimage.NewContextFromFile(loader, allocator, size, dmgimage.WithChunkCacheSize(cfg.ChunkCacheSize))
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Short: "Print trailer and block map summary for a disk image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			ctx, err := openContext(fs, args[0])
			if err != nil {
				return err
			}
			defer ctx.CloseFile()

			fmt.Printf("sectors: %d\n", ctx.SectorCount())
			fmt.Printf("blocks:  %d\n", ctx.BlockCount())
			return nil
		},
	}
}

func newReadCmd() *cobra.Command {
	var lba uint64
	var count uint64
	var out string

	cmd := &cobra.Command{
		Use:   "read <path>",
		Short: "Read sectors from a disk image and write them to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			ctx, err := openContext(fs, args[0])
			if err != nil {
				return err
			}
			defer ctx.CloseFile()

			if lba+count > ctx.SectorCount() {
				return fmt.Errorf("requested range [%d,%d) exceeds %d sectors", lba, lba+count, ctx.SectorCount())
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			buf := make([]byte, dmgimage.SectorSize)
			for i := uint64(0); i < count; i++ {
				if err := ctx.Read(lba+i, buf); err != nil {
					return fmt.Errorf("reading sector %d: %w", lba+i, err)
				}
				if _, err := w.Write(buf); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&lba, "lba", 0, "starting logical block address")
	cmd.Flags().Uint64Var(&count, "count", 1, "number of sectors to read")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var chunklistPath string

	cmd := &cobra.Command{
		Use:   "verify <path>",
		Short: "Verify a disk image's backing region against a chunklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			ctx, err := openContext(fs, args[0])
			if err != nil {
				return err
			}
			defer ctx.CloseFile()

			data, err := afero.ReadFile(fs, chunklistPath)
			if err != nil {
				return fmt.Errorf("reading chunklist: %w", err)
			}

			cl, err := chunklist.Parse(data)
			if err != nil {
				return err
			}

			ok, err := ctx.Verify(cl)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("verification FAILED")
				os.Exit(1)
			}
			fmt.Println("verification OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&chunklistPath, "chunklist", "", "path to chunklist file (required)")
	cmd.MarkFlagRequired("chunklist")
	return cmd
}
