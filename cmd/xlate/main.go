// xlate - toy32 binary translation engine
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/colorfulnotion/xlate/guest"
	"github.com/colorfulnotion/xlate/log"
	"github.com/colorfulnotion/xlate/plugin"
	"github.com/colorfulnotion/xlate/telemetry"
	"github.com/colorfulnotion/xlate/trace"
	"github.com/colorfulnotion/xlate/translator"
)

var (
	Version = "dev"
	Commit  = "none"
)

func loadImage(path string, memSize int) (*guest.CPU, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(img) > memSize {
		return nil, fmt.Errorf("image %s (%d bytes) exceeds memory size %d", path, len(img), memSize)
	}
	cpu := guest.NewCPU(memSize)
	copy(cpu.Mem, img)
	return cpu, nil
}

func enableModules(list string) {
	for _, m := range strings.Split(list, ",") {
		if m = strings.TrimSpace(m); m != "" {
			log.EnableModule(m)
		}
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "xlate",
		Short: "toy32 dynamic binary translation engine",
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	var (
		logLevel          string
		debugModules      string
		memSize           int
		entry             uint64
		maxInsns          uint32
		maxBlocks         int
		singleStep        bool
		breakpoints       []int64
		tracePath         string
		telemetryEndpoint string
	)

	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "info", "log level (trace|debug|info|warn|error|crit)")
	rootCmd.PersistentFlags().StringVar(&debugModules, "debug", "", "comma separated log modules to enable")
	rootCmd.PersistentFlags().IntVar(&memSize, "mem", 1<<20, "guest memory size in bytes")

	var disasmCmd = &cobra.Command{
		Use:   "disasm <image>",
		Short: "Disassemble a toy32 binary image",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			log.InitLogger(logLevel)
			cpu, err := loadImage(args[0], memSize)
			if err != nil {
				fmt.Printf("Failed to load image: %v\n", err)
				os.Exit(1)
			}
			img, _ := os.ReadFile(args[0])
			n := len(img) / guest.InsnBytes
			for _, line := range guest.Disassemble(cpu.Mem, entry, n) {
				fmt.Println(line)
			}
		},
	}
	disasmCmd.Flags().Uint64Var(&entry, "pc", 0, "start address")

	var translateCmd = &cobra.Command{
		Use:   "translate <image>",
		Short: "Translate one block and dump the generated operations",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			log.InitLogger(logLevel)
			enableModules(debugModules)
			cpu, err := loadImage(args[0], memSize)
			if err != nil {
				fmt.Printf("Failed to load image: %v\n", err)
				os.Exit(1)
			}
			m := guest.NewMachine(cpu, translator.NewDriver(nil))
			m.CFlags = maxInsns & translator.CFCountMask
			tb := m.TranslateAt(context.Background(), entry)
			fmt.Printf("block pc=%#x icount=%d size=%d ops=%d\n", tb.PC, tb.ICount, tb.Size, len(tb.Code.Ops))
			for i, op := range tb.Code.Ops {
				fmt.Printf("%4d: %-12s vaddr=%#x\n", i, op.Kind, op.Vaddr)
			}
		},
	}
	translateCmd.Flags().Uint64Var(&entry, "pc", 0, "block start address")
	translateCmd.Flags().Uint32Var(&maxInsns, "max-insns", 0, "instruction cap per block (0 = unlimited)")

	var runCmd = &cobra.Command{
		Use:   "run <image>",
		Short: "Run a toy32 binary image until it halts",
		Run: func(cmd *cobra.Command, args []string) {
			log.InitLogger(logLevel)
			enableModules(debugModules)

			ctx := context.Background()
			if telemetryEndpoint != "" {
				shutdown, err := telemetry.Setup(ctx, "xlate", telemetryEndpoint)
				if err != nil {
					fmt.Printf("Failed to set up telemetry: %v\n", err)
					os.Exit(1)
				}
				defer shutdown(ctx)
			}

			cpu, err := loadImage(args[0], memSize)
			if err != nil {
				fmt.Printf("Failed to load image: %v\n", err)
				os.Exit(1)
			}
			cpu.SetPC(entry)

			reg := plugin.NewRegistry()
			var tw *trace.JSONLWriter
			if tracePath != "" {
				tw, err = trace.NewJSONLWriterFile(tracePath)
				if err != nil {
					fmt.Printf("Failed to open trace file: %v\n", err)
					os.Exit(1)
				}
				defer tw.Close()
				trace.Subscribe(reg, tw, func(vaddr uint64) string {
					return guest.DecodeOne(cpu.Mem, vaddr).Disasm(vaddr)
				})
			}

			m := guest.NewMachine(cpu, translator.NewDriver(reg))
			m.CFlags = maxInsns & translator.CFCountMask
			m.SingleStep = singleStep
			for _, pc := range breakpoints {
				m.Breakpoints = append(m.Breakpoints, translator.Breakpoint{PC: uint64(pc)})
			}

			res, err := m.Run(ctx, maxBlocks)
			if err != nil {
				fmt.Printf("Run failed after %d blocks: %v\n", res.Blocks, err)
				os.Exit(1)
			}
			fmt.Printf("exit=%d blocks=%d insns=%d pc=%#x\n", res.Exit, res.Blocks, res.Insns, cpu.PC())
			for i := 0; i < guest.NumScalarRegs; i++ {
				fmt.Printf("r%-2d = %#016x\n", i, cpu.Regs[i])
			}
		},
		Args: cobra.ExactArgs(1),
	}
	runCmd.Flags().Uint64Var(&entry, "pc", 0, "entry point")
	runCmd.Flags().Uint32Var(&maxInsns, "max-insns", 0, "instruction cap per block (0 = unlimited)")
	runCmd.Flags().IntVar(&maxBlocks, "max-blocks", 0, "stop after this many executed blocks (0 = unlimited)")
	runCmd.Flags().BoolVar(&singleStep, "singlestep", false, "translate one instruction per block")
	runCmd.Flags().Int64SliceVar(&breakpoints, "break", nil, "breakpoint addresses")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "write a JSONL execution trace to this file")
	runCmd.Flags().StringVar(&telemetryEndpoint, "telemetry", "", "OTLP collector endpoint")

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xlate %s (%s)\n", Version, Commit)
		},
	}

	rootCmd.AddCommand(disasmCmd, translateCmd, runCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
